package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/pet-rehoming/backend/internal/apperr"
	"github.com/pet-rehoming/backend/internal/events"
	"github.com/pet-rehoming/backend/internal/metrics"
	"github.com/pet-rehoming/backend/internal/models"
	"github.com/pet-rehoming/backend/internal/rbac"
	"github.com/pet-rehoming/backend/internal/store"
)

// change is one audited state change and the event it emits, written in the
// same store transaction.
type change struct {
	actor      Actor
	action     string
	entityType string
	entityID   uuid.UUID
	meta       map[string]any
	event      string
	payload    map[string]any
	recipients []uuid.UUID
}

func record(ctx context.Context, tx store.Store, c change) error {
	entityID := c.entityID
	if err := tx.Audit().Log(ctx, models.AuditLog{
		ActorUserID: c.actor.ID,
		ActorType:   c.actor.Type,
		Action:      c.action,
		EntityType:  c.entityType,
		EntityID:    &entityID,
		Meta:        c.meta,
	}); err != nil {
		return fmt.Errorf("audit %s: %w", c.action, err)
	}
	if c.event == "" {
		return nil
	}

	payload := make(map[string]any, len(c.payload)+1)
	for k, v := range c.payload {
		payload[k] = v
	}
	recipients := make([]string, 0, len(c.recipients))
	for _, id := range c.recipients {
		recipients = append(recipients, id.String())
	}
	payload[events.PayloadRecipients] = recipients

	if err := tx.Outbox().Enqueue(ctx, &models.OutboxEvent{EventType: c.event, Payload: payload}); err != nil {
		return fmt.Errorf("enqueue %s: %w", c.event, err)
	}
	return nil
}

// moveRequest applies a legal status transition with a version check.
func moveRequest(ctx context.Context, tx store.Store, req *models.AdoptionRequest, to models.RequestStatus) error {
	if !models.IsValidRequestTransition(req.Status, to) {
		return apperr.Newf(apperr.InvalidState, "invalid_transition",
			"adoption request cannot move from %s to %s", req.Status, to)
	}
	if err := tx.Requests().UpdateStatus(ctx, req, to); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return apperr.New(apperr.Conflict, "pet_already_allocated", "pet already has an active adoption request")
		}
		return apperr.FromStore(err, "adoption_request")
	}
	metrics.RequestTransitionsTotal.WithLabelValues(string(to)).Inc()
	return nil
}

// moveTransaction applies legal transaction and escrow transitions with a
// version check. Other fields set on txn by the caller are written with it.
func moveTransaction(ctx context.Context, tx store.Store, txn *models.RehomingTransaction, to models.TransactionStatus, escrow models.EscrowStatus) error {
	if to != txn.Status && !models.IsValidTransactionTransition(txn.Status, to) {
		return apperr.Newf(apperr.InvalidState, "invalid_transition",
			"transaction cannot move from %s to %s", txn.Status, to)
	}
	if escrow != txn.EscrowStatus && !models.IsValidEscrowTransition(txn.EscrowStatus, escrow) {
		return apperr.Newf(apperr.InvalidState, "invalid_escrow_transition",
			"escrow cannot move from %s to %s", txn.EscrowStatus, escrow)
	}
	txn.Status = to
	txn.EscrowStatus = escrow
	if err := tx.Transactions().Update(ctx, txn); err != nil {
		return apperr.FromStore(err, "transaction")
	}
	return nil
}

// rejectPendingSiblings closes the other pending requests on a pet. Rejected
// rows leave the listing, so it re-reads the first page until it runs short.
func rejectPendingSiblings(ctx context.Context, tx store.Store, pet *models.RehomingPet, keep uuid.UUID, actor Actor, reason string) error {
	for {
		siblings, err := tx.Requests().List(ctx, store.RequestFilter{
			PetID:       &pet.ID,
			ExcludeID:   &keep,
			Statuses:    []models.RequestStatus{models.RequestStatusPending},
			OldestFirst: true,
			Limit:       store.MaxLimit,
		})
		if err != nil {
			return apperr.FromStore(err, "adoption_request")
		}
		for i := range siblings {
			sib := &siblings[i]
			if err := moveRequest(ctx, tx, sib, models.RequestStatusRejected); err != nil {
				return err
			}
			if err := record(ctx, tx, change{
				actor:      actor,
				action:     "adoption_request_rejected",
				entityType: models.EntityAdoptionRequest,
				entityID:   sib.ID,
				meta:       map[string]any{"reason": reason},
				event:      events.EventRequestStatusChanged,
				payload:    requestPayload(sib, pet),
				recipients: []uuid.UUID{sib.AdopterID},
			}); err != nil {
				return err
			}
		}
		if len(siblings) < store.MaxLimit {
			return nil
		}
	}
}

func authorize(role, permission string) error {
	if rbac.HasPermission(role, permission) {
		return nil
	}
	who := role
	if who == "" {
		who = "caller"
	}
	return apperr.Newf(apperr.Forbidden, "forbidden", "%s may not %s", who, strings.ReplaceAll(permission, "_", " "))
}

// petRole is the caller's role with respect to a listing and, optionally, a request on it.
func petRole(pet *models.RehomingPet, req *models.AdoptionRequest, userID uuid.UUID) string {
	switch {
	case pet != nil && pet.OwnerID == userID:
		return rbac.RoleOwner
	case req != nil && req.AdopterID == userID:
		return rbac.RoleAdopter
	}
	return ""
}

func transactionRole(txn *models.RehomingTransaction, actor Actor) string {
	if role := actor.internalRole(); role != "" {
		return role
	}
	if actor.ID == nil {
		return ""
	}
	role, _ := txn.Role(*actor.ID)
	return string(role)
}

func requestPayload(req *models.AdoptionRequest, pet *models.RehomingPet) map[string]any {
	p := map[string]any{
		"request_id": req.ID.String(),
		"pet_id":     req.PetID.String(),
		"status":     string(req.Status),
	}
	if pet != nil {
		p["pet_name"] = pet.Name
	}
	return p
}

func transactionPayload(txn *models.RehomingTransaction) map[string]any {
	return map[string]any{
		"transaction_id": txn.ID.String(),
		"request_id":     txn.AdoptionRequestID.String(),
		"pet_id":         txn.PetID.String(),
		"status":         string(txn.Status),
		"escrow_status":  string(txn.EscrowStatus),
		"amount":         txn.Amount,
		"currency":       txn.Currency,
	}
}

func withPet(payload map[string]any, pet *models.RehomingPet) map[string]any {
	if pet != nil {
		payload["pet_name"] = pet.Name
	}
	return payload
}
