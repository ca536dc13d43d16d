package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/pet-rehoming/backend/internal/apperr"
	"github.com/pet-rehoming/backend/internal/config"
	"github.com/pet-rehoming/backend/internal/events"
	"github.com/pet-rehoming/backend/internal/models"
	"github.com/pet-rehoming/backend/internal/rbac"
	"github.com/pet-rehoming/backend/internal/store"
	"go.uber.org/zap"
)

// RequestService is the adoption request ledger. Every status change happens
// inside one store transaction that holds the pet row, so two owners' clicks or
// two adopters racing cannot allocate a pet twice.
type RequestService struct {
	store store.Store
	cfg   *config.Config
	log   *zap.Logger
}

func NewRequestService(st store.Store, cfg *config.Config, log *zap.Logger) *RequestService {
	return &RequestService{store: st, cfg: cfg, log: log}
}

func (s *RequestService) Create(ctx context.Context, petID, adopterID uuid.UUID, message string) (*models.AdoptionRequest, error) {
	req := &models.AdoptionRequest{
		PetID:     petID,
		AdopterID: adopterID,
		Message:   strings.TrimSpace(message),
		Status:    models.RequestStatusPending,
	}

	err := s.store.Atomic(ctx, func(tx store.Store) error {
		pet, err := tx.Pets().GetForUpdate(ctx, petID)
		if err != nil {
			return apperr.FromStore(err, "pet")
		}
		if pet.OwnerID == adopterID {
			return apperr.New(apperr.Forbidden, "own_listing", "owners cannot request their own pet")
		}
		if pet.IsAdopted {
			return apperr.New(apperr.Conflict, "pet_adopted", "pet has already been adopted")
		}

		existing, err := tx.Requests().List(ctx, store.RequestFilter{
			PetID:     &petID,
			AdopterID: &adopterID,
			Statuses:  models.NonTerminalRequestStatuses,
			Limit:     1,
		})
		if err != nil {
			return apperr.FromStore(err, "adoption_request")
		}
		if len(existing) > 0 {
			return apperr.New(apperr.Conflict, "duplicate_request", "an open adoption request for this pet already exists")
		}

		if err := tx.Requests().Create(ctx, req); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return apperr.New(apperr.Conflict, "duplicate_request", "an open adoption request for this pet already exists")
			}
			return apperr.FromStore(err, "adoption_request")
		}
		return record(ctx, tx, change{
			actor:      UserActor(adopterID),
			action:     "adoption_requested",
			entityType: models.EntityAdoptionRequest,
			entityID:   req.ID,
			event:      events.EventAdoptionRequested,
			payload:    requestPayload(req, pet),
			recipients: []uuid.UUID{pet.OwnerID},
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("adoption requested",
		zap.String("request_id", req.ID.String()),
		zap.String("pet_id", petID.String()),
		zap.String("adopter_id", adopterID.String()))
	return req, nil
}

// lockRequest loads the request, locks its pet and re-reads the request so the
// status seen is the one committed by any racing transaction.
func lockRequest(ctx context.Context, tx store.Store, requestID uuid.UUID) (*models.AdoptionRequest, *models.RehomingPet, error) {
	req, err := tx.Requests().GetByID(ctx, requestID)
	if err != nil {
		return nil, nil, apperr.FromStore(err, "adoption_request")
	}
	pet, err := tx.Pets().GetForUpdate(ctx, req.PetID)
	if err != nil {
		return nil, nil, apperr.FromStore(err, "pet")
	}
	if req, err = tx.Requests().GetByID(ctx, requestID); err != nil {
		return nil, nil, apperr.FromStore(err, "adoption_request")
	}
	return req, pet, nil
}

// Respond accepts or rejects a pending request. Accepting a free adoption
// moves to accepted, a paid one to payment_pending.
func (s *RequestService) Respond(ctx context.Context, requestID, ownerID uuid.UUID, decision models.Decision) (*models.AdoptionRequest, error) {
	if !decision.IsValid() {
		return nil, apperr.New(apperr.Validation, "invalid_decision", "decision must be accept or reject")
	}

	var req *models.AdoptionRequest
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		var pet *models.RehomingPet
		var err error
		req, pet, err = lockRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if err := authorize(petRole(pet, nil, ownerID), rbac.PermRespondRequest); err != nil {
			return err
		}
		if req.Status != models.RequestStatusPending {
			return apperr.Newf(apperr.InvalidState, "request_not_pending", "request is %s, not pending", req.Status)
		}

		actor := UserActor(ownerID)
		if decision == models.DecisionReject {
			if err := moveRequest(ctx, tx, req, models.RequestStatusRejected); err != nil {
				return err
			}
			return record(ctx, tx, change{
				actor:      actor,
				action:     "adoption_request_rejected",
				entityType: models.EntityAdoptionRequest,
				entityID:   req.ID,
				event:      events.EventRequestStatusChanged,
				payload:    requestPayload(req, pet),
				recipients: []uuid.UUID{req.AdopterID},
			})
		}

		if pet.IsAdopted {
			return apperr.New(apperr.Conflict, "pet_adopted", "pet has already been adopted")
		}
		active, err := tx.Requests().List(ctx, store.RequestFilter{
			PetID:     &pet.ID,
			ExcludeID: &req.ID,
			Statuses:  models.ActiveRequestStatuses,
			Limit:     1,
		})
		if err != nil {
			return apperr.FromStore(err, "adoption_request")
		}
		if len(active) > 0 {
			return apperr.New(apperr.Conflict, "pet_already_allocated", "another adoption request for this pet is already in progress")
		}

		target := models.RequestStatusAccepted
		if pet.AdoptionType == models.AdoptionTypePaid {
			target = models.RequestStatusPaymentPending
		}
		if err := moveRequest(ctx, tx, req, target); err != nil {
			return err
		}
		if err := record(ctx, tx, change{
			actor:      actor,
			action:     "adoption_request_accepted",
			entityType: models.EntityAdoptionRequest,
			entityID:   req.ID,
			meta:       map[string]any{"status": string(target)},
			event:      events.EventRequestStatusChanged,
			payload:    requestPayload(req, pet),
			recipients: []uuid.UUID{req.AdopterID},
		}); err != nil {
			return err
		}

		if s.cfg.AutoRejectSiblings {
			return rejectPendingSiblings(ctx, tx, pet, req.ID, actor, "another request was accepted")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("adoption request answered",
		zap.String("request_id", req.ID.String()),
		zap.String("decision", string(decision)),
		zap.String("status", string(req.Status)))
	return req, nil
}

// Withdraw lets the adopter back out before any money is held.
func (s *RequestService) Withdraw(ctx context.Context, requestID, adopterID uuid.UUID) (*models.AdoptionRequest, error) {
	var req *models.AdoptionRequest
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		var pet *models.RehomingPet
		var err error
		req, pet, err = lockRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if err := authorize(petRole(nil, req, adopterID), rbac.PermWithdrawRequest); err != nil {
			return err
		}
		switch req.Status {
		case models.RequestStatusPending, models.RequestStatusAccepted:
		case models.RequestStatusPaymentPending:
			if err := ensureNoPaymentInFlight(ctx, tx, req.ID); err != nil {
				return err
			}
		default:
			return apperr.Newf(apperr.InvalidState, "request_not_withdrawable", "request is %s and can no longer be withdrawn", req.Status)
		}

		if err := moveRequest(ctx, tx, req, models.RequestStatusCancelled); err != nil {
			return err
		}
		return record(ctx, tx, change{
			actor:      UserActor(adopterID),
			action:     "adoption_request_withdrawn",
			entityType: models.EntityAdoptionRequest,
			entityID:   req.ID,
			event:      events.EventRequestStatusChanged,
			payload:    requestPayload(req, pet),
			recipients: []uuid.UUID{pet.OwnerID},
		})
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// CompleteFreeAdoption is the owner's confirmation that a free adoption's
// handover happened.
func (s *RequestService) CompleteFreeAdoption(ctx context.Context, requestID, ownerID uuid.UUID) (*models.AdoptionRequest, error) {
	var req *models.AdoptionRequest
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		var pet *models.RehomingPet
		var err error
		req, pet, err = lockRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if err := authorize(petRole(pet, nil, ownerID), rbac.PermCompleteAdoption); err != nil {
			return err
		}
		if pet.AdoptionType != models.AdoptionTypeFree {
			return apperr.New(apperr.InvalidState, "not_free_adoption", "paid adoptions complete through escrow release")
		}
		if req.Status != models.RequestStatusAccepted {
			return apperr.Newf(apperr.InvalidState, "request_not_accepted", "request is %s, not accepted", req.Status)
		}

		if err := moveRequest(ctx, tx, req, models.RequestStatusCompleted); err != nil {
			return err
		}
		if err := tx.Pets().MarkAdopted(ctx, pet.ID); err != nil {
			return apperr.FromStore(err, "pet")
		}
		actor := UserActor(ownerID)
		if err := record(ctx, tx, change{
			actor:      actor,
			action:     "adoption_completed",
			entityType: models.EntityAdoptionRequest,
			entityID:   req.ID,
			event:      events.EventAdoptionCompleted,
			payload:    requestPayload(req, pet),
			recipients: []uuid.UUID{req.AdopterID, pet.OwnerID},
		}); err != nil {
			return err
		}
		return rejectPendingSiblings(ctx, tx, pet, req.ID, actor, "pet was adopted")
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("free adoption completed", zap.String("request_id", req.ID.String()))
	return req, nil
}

// Expire cancels an accepted or payment_pending request whose window ran out.
func (s *RequestService) Expire(ctx context.Context, requestID uuid.UUID, reason string) (*models.AdoptionRequest, error) {
	var req *models.AdoptionRequest
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		var pet *models.RehomingPet
		var err error
		req, pet, err = lockRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		switch req.Status {
		case models.RequestStatusAccepted:
		case models.RequestStatusPaymentPending:
			if err := ensureNoPaymentInFlight(ctx, tx, req.ID); err != nil {
				return err
			}
		default:
			return apperr.Newf(apperr.InvalidState, "request_not_expirable", "request is %s", req.Status)
		}

		if err := moveRequest(ctx, tx, req, models.RequestStatusCancelled); err != nil {
			return err
		}
		return record(ctx, tx, change{
			actor:      SystemActor(),
			action:     "adoption_request_expired",
			entityType: models.EntityAdoptionRequest,
			entityID:   req.ID,
			meta:       map[string]any{"reason": reason},
			event:      events.EventRequestStatusChanged,
			payload:    requestPayload(req, pet),
			recipients: []uuid.UUID{req.AdopterID, pet.OwnerID},
		})
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

func ensureNoPaymentInFlight(ctx context.Context, tx store.Store, requestID uuid.UUID) error {
	pending, err := tx.Transactions().List(ctx, store.TransactionFilter{
		AdoptionRequestID: &requestID,
		Statuses:          []models.TransactionStatus{models.TransactionStatusPending},
		Limit:             1,
	})
	if err != nil {
		return apperr.FromStore(err, "transaction")
	}
	if len(pending) > 0 {
		return apperr.New(apperr.Blocked, "payment_in_progress", "a payment for this request is being processed")
	}
	return nil
}

// Get returns a request to its adopter or to the pet's owner.
func (s *RequestService) Get(ctx context.Context, requestID, userID uuid.UUID) (*models.AdoptionRequest, error) {
	req, err := s.store.Requests().GetByID(ctx, requestID)
	if err != nil {
		return nil, apperr.FromStore(err, "adoption_request")
	}
	if req.AdopterID == userID {
		return req, nil
	}
	pet, err := s.store.Pets().GetByID(ctx, req.PetID)
	if err != nil {
		return nil, apperr.FromStore(err, "pet")
	}
	if pet.OwnerID != userID {
		return nil, apperr.New(apperr.Forbidden, "forbidden", "not a party to this adoption request")
	}
	return req, nil
}

func (s *RequestService) ListForPet(ctx context.Context, petID, ownerID uuid.UUID, statuses []models.RequestStatus, limit, offset int) ([]models.AdoptionRequest, error) {
	pet, err := s.store.Pets().GetByID(ctx, petID)
	if err != nil {
		return nil, apperr.FromStore(err, "pet")
	}
	if err := authorize(petRole(pet, nil, ownerID), rbac.PermViewPetRequests); err != nil {
		return nil, err
	}
	reqs, err := s.store.Requests().List(ctx, store.RequestFilter{PetID: &petID, Statuses: statuses, Limit: limit, Offset: offset})
	if err != nil {
		return nil, apperr.FromStore(err, "adoption_request")
	}
	return reqs, nil
}

// ListMine lists requests the user made (role adopter) or received (role owner).
func (s *RequestService) ListMine(ctx context.Context, userID uuid.UUID, role string, statuses []models.RequestStatus, limit, offset int) ([]models.AdoptionRequest, error) {
	f := store.RequestFilter{Statuses: statuses, Limit: limit, Offset: offset}
	switch role {
	case rbac.RoleAdopter, "":
		f.AdopterID = &userID
	case rbac.RoleOwner:
		f.OwnerID = &userID
	default:
		return nil, apperr.New(apperr.Validation, "invalid_role", "role must be owner or adopter")
	}
	reqs, err := s.store.Requests().List(ctx, f)
	if err != nil {
		return nil, apperr.FromStore(err, "adoption_request")
	}
	return reqs, nil
}
