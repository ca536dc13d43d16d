package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type AdoptionType string

const (
	AdoptionTypeFree AdoptionType = "free"
	AdoptionTypePaid AdoptionType = "paid"
)

func (t AdoptionType) IsValid() bool {
	return t == AdoptionTypeFree || t == AdoptionTypePaid
}

type RehomingPet struct {
	ID           uuid.UUID    `json:"id"`
	OwnerID      uuid.UUID    `json:"owner_id"`
	Name         string       `json:"name"`
	Species      string       `json:"species"`
	Breed        *string      `json:"breed,omitempty"`
	AgeMonths    *int         `json:"age_months,omitempty"`
	Description  *string      `json:"description,omitempty"`
	City         *string      `json:"city,omitempty"`
	AdoptionType AdoptionType `json:"adoption_type"`
	Price        *int64       `json:"price,omitempty"` // minor units, set iff paid
	IsVerified   bool         `json:"is_verified"`
	IsAdopted    bool         `json:"is_adopted"`
	DeletedAt    *time.Time   `json:"-"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Validate checks the listing invariants that do not depend on other records.
func (p *RehomingPet) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(p.Species) == "" {
		return fmt.Errorf("species is required")
	}
	if !p.AdoptionType.IsValid() {
		return fmt.Errorf("adoption_type must be one of: free, paid")
	}
	switch p.AdoptionType {
	case AdoptionTypePaid:
		if p.Price == nil || *p.Price <= 0 {
			return fmt.Errorf("price must be positive for paid adoption")
		}
	case AdoptionTypeFree:
		if p.Price != nil {
			return fmt.Errorf("price must be empty for free adoption")
		}
	}
	if p.AgeMonths != nil && *p.AgeMonths < 0 {
		return fmt.Errorf("age_months must not be negative")
	}
	return nil
}

func (p *RehomingPet) IsDeleted() bool {
	return p.DeletedAt != nil
}

// IsAvailable reports whether the pet can still receive adoption requests.
func (p *RehomingPet) IsAvailable() bool {
	return !p.IsDeleted() && !p.IsAdopted
}
