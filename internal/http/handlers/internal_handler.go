package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pet-rehoming/backend/internal/http/dto"
	"github.com/pet-rehoming/backend/internal/middleware"
	"github.com/pet-rehoming/backend/internal/models"
	"github.com/pet-rehoming/backend/internal/services"
	"go.uber.org/zap"
)

// InternalHandler serves the arbitration service, moderation and operators.
type InternalHandler struct {
	listings *services.ListingService
	escrow   *services.EscrowService
	disputes *services.DisputeService
	log      *zap.Logger
}

func NewInternalHandler(listings *services.ListingService, escrow *services.EscrowService, disputes *services.DisputeService, log *zap.Logger) *InternalHandler {
	return &InternalHandler{listings: listings, escrow: escrow, disputes: disputes, log: log}
}

func internalActor(c *fiber.Ctx) services.Actor {
	return services.ArbiterActor(middleware.GetInternalCaller(c))
}

func (h *InternalHandler) Release(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	txn, err := h.escrow.Release(c.UserContext(), id, internalActor(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: txn})
}

func (h *InternalHandler) Refund(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	var req dto.RefundRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid_body", "invalid request body")
		}
	}

	txn, err := h.escrow.Refund(c.UserContext(), id, req.Reason, internalActor(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: txn})
}

func (h *InternalHandler) ResolveDispute(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	var req dto.ResolveDisputeRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid_body", "invalid request body")
	}

	res, err := h.disputes.Resolve(c.UserContext(), id, models.DisputeOutcome(req.Outcome), req.Note, internalActor(c))
	if err != nil {
		return respondError(c, h.log, err)
	}

	out := dto.ResolveResponse{Dispute: res.Dispute, Transaction: res.Transaction, FollowUp: "done"}
	if res.FollowUpError != nil {
		out.FollowUp = "pending"
		out.FollowUpErr = res.FollowUpError.Error()
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: out})
}

func (h *InternalHandler) VerifyPet(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return respondError(c, h.log, err)
	}
	var req dto.VerifyPetRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "invalid_body", "invalid request body")
		}
	}
	verified := req.Verified == nil || *req.Verified

	pet, err := h.listings.Verify(c.UserContext(), id, verified, internalActor(c))
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: pet})
}
