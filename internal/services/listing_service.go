package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/pet-rehoming/backend/internal/apperr"
	"github.com/pet-rehoming/backend/internal/events"
	"github.com/pet-rehoming/backend/internal/models"
	"github.com/pet-rehoming/backend/internal/rbac"
	"github.com/pet-rehoming/backend/internal/store"
	"go.uber.org/zap"
)

type ListingService struct {
	store store.Store
	log   *zap.Logger
}

func NewListingService(st store.Store, log *zap.Logger) *ListingService {
	return &ListingService{store: st, log: log}
}

type PetInput struct {
	Name         string
	Species      string
	Breed        *string
	AgeMonths    *int
	Description  *string
	City         *string
	AdoptionType models.AdoptionType
	Price        *int64
}

func (in PetInput) apply(p *models.RehomingPet) {
	p.Name = in.Name
	p.Species = in.Species
	p.Breed = in.Breed
	p.AgeMonths = in.AgeMonths
	p.Description = in.Description
	p.City = in.City
	p.AdoptionType = in.AdoptionType
	p.Price = in.Price
}

func (s *ListingService) Create(ctx context.Context, ownerID uuid.UUID, in PetInput) (*models.RehomingPet, error) {
	pet := &models.RehomingPet{OwnerID: ownerID}
	in.apply(pet)
	if err := pet.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.Validation, "invalid_listing", err)
	}

	err := s.store.Atomic(ctx, func(tx store.Store) error {
		if err := tx.Pets().Create(ctx, pet); err != nil {
			return apperr.FromStore(err, "pet")
		}
		return record(ctx, tx, change{
			actor:      UserActor(ownerID),
			action:     "pet_listed",
			entityType: models.EntityPet,
			entityID:   pet.ID,
			meta:       map[string]any{"adoption_type": string(pet.AdoptionType)},
			event:      events.EventPetListed,
			payload:    map[string]any{"pet_id": pet.ID.String(), "pet_name": pet.Name, "species": pet.Species},
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("pet listed", zap.String("pet_id", pet.ID.String()), zap.String("owner_id", ownerID.String()))
	return pet, nil
}

// Update replaces the owner-editable fields. Pricing is frozen while the pet
// is allocated to a request.
func (s *ListingService) Update(ctx context.Context, petID, ownerID uuid.UUID, in PetInput) (*models.RehomingPet, error) {
	var pet *models.RehomingPet
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		var err error
		pet, err = tx.Pets().GetForUpdate(ctx, petID)
		if err != nil {
			return apperr.FromStore(err, "pet")
		}
		if err := authorize(petRole(pet, nil, ownerID), rbac.PermManageListing); err != nil {
			return err
		}
		if pet.IsAdopted {
			return apperr.New(apperr.InvalidState, "pet_adopted", "adopted pets cannot be edited")
		}

		pricingChanged := in.AdoptionType != pet.AdoptionType || !samePrice(in.Price, pet.Price)
		if pricingChanged {
			active, err := tx.Requests().List(ctx, store.RequestFilter{
				PetID:    &petID,
				Statuses: models.ActiveRequestStatuses,
				Limit:    1,
			})
			if err != nil {
				return apperr.FromStore(err, "adoption_request")
			}
			if len(active) > 0 {
				return apperr.New(apperr.Conflict, "pet_allocated", "adoption type and price are locked while an adoption is in progress")
			}
		}

		in.apply(pet)
		if err := pet.Validate(); err != nil {
			return apperr.Wrap(apperr.Validation, "invalid_listing", err)
		}
		if err := tx.Pets().Update(ctx, pet); err != nil {
			return apperr.FromStore(err, "pet")
		}
		return record(ctx, tx, change{
			actor:      UserActor(ownerID),
			action:     "pet_updated",
			entityType: models.EntityPet,
			entityID:   pet.ID,
			meta:       map[string]any{"pricing_changed": pricingChanged},
			event:      events.EventPetUpdated,
			payload:    map[string]any{"pet_id": pet.ID.String(), "pet_name": pet.Name},
		})
	})
	if err != nil {
		return nil, err
	}
	return pet, nil
}

// Delete soft-deletes a listing that no open request depends on.
func (s *ListingService) Delete(ctx context.Context, petID, ownerID uuid.UUID) error {
	return s.store.Atomic(ctx, func(tx store.Store) error {
		pet, err := tx.Pets().GetForUpdate(ctx, petID)
		if err != nil {
			return apperr.FromStore(err, "pet")
		}
		if err := authorize(petRole(pet, nil, ownerID), rbac.PermManageListing); err != nil {
			return err
		}

		open, err := tx.Requests().List(ctx, store.RequestFilter{
			PetID:    &petID,
			Statuses: models.NonTerminalRequestStatuses,
			Limit:    1,
		})
		if err != nil {
			return apperr.FromStore(err, "adoption_request")
		}
		if len(open) > 0 {
			return apperr.New(apperr.Conflict, "open_requests", "listing has open adoption requests")
		}

		if err := tx.Pets().SoftDelete(ctx, petID); err != nil {
			return apperr.FromStore(err, "pet")
		}
		return record(ctx, tx, change{
			actor:      UserActor(ownerID),
			action:     "pet_removed",
			entityType: models.EntityPet,
			entityID:   petID,
			event:      events.EventPetRemoved,
			payload:    map[string]any{"pet_id": petID.String(), "pet_name": pet.Name},
		})
	})
}

func (s *ListingService) Get(ctx context.Context, petID uuid.UUID) (*models.RehomingPet, error) {
	pet, err := s.store.Pets().GetByID(ctx, petID)
	if err != nil {
		return nil, apperr.FromStore(err, "pet")
	}
	return pet, nil
}

func (s *ListingService) ListAvailable(ctx context.Context, f store.PetFilter) ([]models.RehomingPet, error) {
	f.OnlyAvailable = true
	pets, err := s.store.Pets().List(ctx, f)
	if err != nil {
		return nil, apperr.FromStore(err, "pet")
	}
	return pets, nil
}

func (s *ListingService) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.RehomingPet, error) {
	pets, err := s.store.Pets().List(ctx, store.PetFilter{OwnerID: &ownerID, Limit: limit, Offset: offset})
	if err != nil {
		return nil, apperr.FromStore(err, "pet")
	}
	return pets, nil
}

// Verify is the moderation hook. It never touches adoption state.
func (s *ListingService) Verify(ctx context.Context, petID uuid.UUID, verified bool, actor Actor) (*models.RehomingPet, error) {
	if err := authorize(actor.internalRole(), rbac.PermVerifyListing); err != nil {
		return nil, err
	}
	var pet *models.RehomingPet
	err := s.store.Atomic(ctx, func(tx store.Store) error {
		if err := tx.Pets().SetVerified(ctx, petID, verified); err != nil {
			return apperr.FromStore(err, "pet")
		}
		var err error
		if pet, err = tx.Pets().GetByID(ctx, petID); err != nil {
			return apperr.FromStore(err, "pet")
		}
		return record(ctx, tx, change{
			actor:      actor,
			action:     "pet_verified",
			entityType: models.EntityPet,
			entityID:   petID,
			meta:       map[string]any{"verified": verified},
			event:      events.EventPetVerified,
			payload:    map[string]any{"pet_id": petID.String(), "pet_name": pet.Name, "verified": verified},
			recipients: []uuid.UUID{pet.OwnerID},
		})
	})
	if err != nil {
		return nil, err
	}
	return pet, nil
}

func (s *ListingService) History(ctx context.Context, petID, ownerID uuid.UUID) ([]models.AuditLog, error) {
	pet, err := s.Get(ctx, petID)
	if err != nil {
		return nil, err
	}
	if err := authorize(petRole(pet, nil, ownerID), rbac.PermManageListing); err != nil {
		return nil, err
	}
	logs, err := s.store.Audit().GetByEntity(ctx, models.EntityPet, petID, 100, 0)
	if err != nil {
		return nil, apperr.FromStore(err, "audit_log")
	}
	return logs, nil
}

func samePrice(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
