package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/pet-rehoming/backend/internal/auth"
	"github.com/pet-rehoming/backend/internal/config"
	"go.uber.org/zap"
)

const (
	CtxUserID   = "user_id"
	CtxInternal = "internal_caller"

	HeaderInternalToken = "X-Internal-Token"
)

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error":      fiber.Map{"kind": "Unauthorized", "reason": "unauthorized", "message": msg},
		"request_id": GetRequestID(c),
	})
}

func bearerClaims(c *fiber.Ctx, secret string) (*auth.Claims, string) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return nil, "missing authorization header"
	}
	tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenStr == authHeader {
		return nil, "invalid authorization format"
	}
	claims, err := auth.ParseJWT(secret, tokenStr)
	if err != nil {
		return nil, "invalid or expired token"
	}
	return claims, ""
}

func AuthMiddleware(cfg *config.Config, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, problem := bearerClaims(c, cfg.JWTSecret)
		if claims == nil {
			log.Debug("authentication failed", zap.String("reason", problem), zap.String("path", c.Path()))
			return unauthorized(c, problem)
		}
		c.Locals(CtxUserID, claims.UserID)
		return c.Next()
	}
}

// InternalMiddleware admits collaborator services holding the internal token,
// and users listed as arbiters.
func InternalMiddleware(cfg *config.Config, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if token := c.Get(HeaderInternalToken); token != "" {
			if cfg.InternalAPIToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(cfg.InternalAPIToken)) != 1 {
				log.Warn("rejected internal token", zap.String("path", c.Path()), zap.String("ip", c.IP()))
				return unauthorized(c, "invalid internal token")
			}
			c.Locals(CtxInternal, true)
			return c.Next()
		}

		claims, problem := bearerClaims(c, cfg.JWTSecret)
		if claims == nil {
			return unauthorized(c, problem)
		}
		if !cfg.IsArbiter(claims.UserID) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":      fiber.Map{"kind": "Forbidden", "reason": "arbiter_required", "message": "arbiter access required"},
				"request_id": GetRequestID(c),
			})
		}
		c.Locals(CtxUserID, claims.UserID)
		c.Locals(CtxInternal, true)
		return c.Next()
	}
}

func GetUserID(c *fiber.Ctx) uuid.UUID {
	id, _ := c.Locals(CtxUserID).(uuid.UUID)
	return id
}

// GetInternalCaller returns the arbiter user id, or nil for token-authenticated services.
func GetInternalCaller(c *fiber.Ctx) *uuid.UUID {
	id, ok := c.Locals(CtxUserID).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return nil
	}
	return &id
}
