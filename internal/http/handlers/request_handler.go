package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/pet-rehoming/backend/internal/http/dto"
	"github.com/pet-rehoming/backend/internal/middleware"
	"github.com/pet-rehoming/backend/internal/models"
	"github.com/pet-rehoming/backend/internal/services"
	"go.uber.org/zap"
)

type RequestHandler struct {
	requests *services.RequestService
	escrow   *services.EscrowService
	log      *zap.Logger
}

func NewRequestHandler(requests *services.RequestService, escrow *services.EscrowService, log *zap.Logger) *RequestHandler {
	return &RequestHandler{requests: requests, escrow: escrow, log: log}
}

// statusFilter parses ?status=a,b into request statuses.
func statusFilter(c *fiber.Ctx) ([]models.RequestStatus, bool) {
	raw := c.Query("status")
	if raw == "" {
		return nil, true
	}
	var out []models.RequestStatus
	for _, part := range strings.Split(raw, ",") {
		s := models.RequestStatus(strings.TrimSpace(part))
		if !s.IsValid() {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func (h *RequestHandler) CreateRequest(c *fiber.Ctx) error {
	petID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	var req dto.CreateAdoptionRequestRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid_body", "invalid request body")
		}
	}

	ar, err := h.requests.Create(c.UserContext(), petID, middleware.GetUserID(c), req.Message)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: ar})
}

func (h *RequestHandler) ListForPet(c *fiber.Ctx) error {
	petID, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	statuses, ok := statusFilter(c)
	if !ok {
		return badRequest(c, "invalid_status", "unknown status in filter")
	}
	limit, offset := pagination(c)

	reqs, err := h.requests.ListForPet(c.UserContext(), petID, middleware.GetUserID(c), statuses, limit, offset)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(list(reqs, limit, offset))
}

func (h *RequestHandler) ListMine(c *fiber.Ctx) error {
	statuses, ok := statusFilter(c)
	if !ok {
		return badRequest(c, "invalid_status", "unknown status in filter")
	}
	limit, offset := pagination(c)

	reqs, err := h.requests.ListMine(c.UserContext(), middleware.GetUserID(c), c.Query("role"), statuses, limit, offset)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(list(reqs, limit, offset))
}

func (h *RequestHandler) GetRequest(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	ar, err := h.requests.Get(c.UserContext(), id, middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: ar})
}

func (h *RequestHandler) Respond(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	var req dto.RespondRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid_body", "invalid request body")
	}

	ar, err := h.requests.Respond(c.UserContext(), id, middleware.GetUserID(c), models.Decision(req.Decision))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: ar})
}

func (h *RequestHandler) Withdraw(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	ar, err := h.requests.Withdraw(c.UserContext(), id, middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: ar})
}

func (h *RequestHandler) Complete(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	ar, err := h.requests.CompleteFreeAdoption(c.UserContext(), id, middleware.GetUserID(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: ar})
}

func (h *RequestHandler) InitiatePayment(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	var req dto.InitiatePaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid_body", "invalid request body")
	}
	if req.Amount <= 0 {
		return badRequest(c, "invalid_amount", "amount must be positive")
	}

	txn, err := h.escrow.InitiatePayment(c.UserContext(), id, middleware.GetUserID(c), req.Amount, req.PayerRef)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: txn})
}
