package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/pet-rehoming/backend/internal/apperr"
	"github.com/pet-rehoming/backend/internal/http/dto"
	"github.com/pet-rehoming/backend/internal/middleware"
	"go.uber.org/zap"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.NotFound:
		return fiber.StatusNotFound
	case apperr.Forbidden:
		return fiber.StatusForbidden
	case apperr.InvalidState, apperr.Conflict:
		return fiber.StatusConflict
	case apperr.Blocked:
		return fiber.StatusLocked
	case apperr.UpstreamFailure:
		return fiber.StatusBadGateway
	case apperr.Validation:
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}

func errorBody(c *fiber.Ctx, kind apperr.Kind, reason, msg string) dto.ErrorResponse {
	return dto.ErrorResponse{
		Error:     dto.ErrorBody{Kind: string(kind), Reason: reason, Message: msg},
		RequestID: middleware.GetRequestID(c),
	}
}

func respondError(c *fiber.Ctx, log *zap.Logger, err error) error {
	kind := apperr.KindOf(err)
	msg := err.Error()
	var e *apperr.Error
	if errors.As(err, &e) {
		msg = e.Message
	}
	if kind == apperr.Internal {
		log.Error("internal error",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.String("path", c.Path()),
			zap.Error(err))
		msg = "internal error"
	}
	return c.Status(StatusFor(kind)).JSON(errorBody(c, kind, apperr.ReasonOf(err), msg))
}

func badRequest(c *fiber.Ctx, reason, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(errorBody(c, apperr.Validation, reason, msg))
}

// ErrorHandler renders errors that escape handlers, including fiber's own.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			kind := apperr.Validation
			switch {
			case fe.Code == fiber.StatusNotFound:
				kind = apperr.NotFound
			case fe.Code >= fiber.StatusInternalServerError:
				kind = apperr.Internal
			}
			return c.Status(fe.Code).JSON(errorBody(c, kind, "http_"+strconv.Itoa(fe.Code), fe.Message))
		}
		return respondError(c, log, err)
	}
}

func paramID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperr.New(apperr.Validation, "invalid_id", "invalid "+name)
	}
	return id, nil
}

func pagination(c *fiber.Ctx) (limit, offset int) {
	limit = c.QueryInt("limit", defaultLimit)
	offset = c.QueryInt("offset", 0)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func list(items any, limit, offset int) dto.SuccessResponse {
	return dto.SuccessResponse{OK: true, Data: dto.ListResponse{Items: items, Limit: limit, Offset: offset}}
}
