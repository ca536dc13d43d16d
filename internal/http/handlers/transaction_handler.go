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

type TransactionHandler struct {
	escrow   *services.EscrowService
	transfer *services.TransferService
	disputes *services.DisputeService
	log      *zap.Logger
}

func NewTransactionHandler(escrow *services.EscrowService, transfer *services.TransferService, disputes *services.DisputeService, log *zap.Logger) *TransactionHandler {
	return &TransactionHandler{escrow: escrow, transfer: transfer, disputes: disputes, log: log}
}

func (h *TransactionHandler) ListMine(c *fiber.Ctx) error {
	var statuses []models.TransactionStatus
	if raw := c.Query("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			s := models.TransactionStatus(strings.TrimSpace(part))
			if _, ok := models.ValidTransactionTransitions[s]; !ok {
				return badRequest(c, "invalid_status", "unknown status in filter")
			}
			statuses = append(statuses, s)
		}
	}
	limit, offset := pagination(c)

	txns, err := h.escrow.ListMine(c.UserContext(), middleware.GetUserID(c), statuses, limit, offset)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(list(txns, limit, offset))
}

func (h *TransactionHandler) GetTransaction(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	txn, err := h.escrow.Get(c.UserContext(), id, services.UserActor(middleware.GetUserID(c)))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: txn})
}

func (h *TransactionHandler) GetEvents(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	logs, err := h.escrow.History(c.UserContext(), id, services.UserActor(middleware.GetUserID(c)))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: logs})
}

func (h *TransactionHandler) ConfirmTransfer(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	var req dto.ConfirmTransferRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid_body", "invalid request body")
		}
	}
	role := models.PartyRole(req.Role)
	if role != "" && !role.IsValid() {
		return badRequest(c, "invalid_role", "role must be owner or adopter")
	}

	res, err := h.transfer.Confirm(c.UserContext(), id, middleware.GetUserID(c), role)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: res})
}

func (h *TransactionHandler) GetConfirmations(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	conf, err := h.transfer.GetConfirmations(c.UserContext(), id, services.UserActor(middleware.GetUserID(c)))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: conf})
}

func (h *TransactionHandler) OpenDispute(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	var req dto.OpenDisputeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid_body", "invalid request body")
	}

	d, err := h.disputes.Open(c.UserContext(), id, middleware.GetUserID(c), req.Reason, req.Evidence)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: d})
}

func (h *TransactionHandler) GetDispute(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	d, err := h.disputes.Get(c.UserContext(), id, services.UserActor(middleware.GetUserID(c)))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: d})
}
