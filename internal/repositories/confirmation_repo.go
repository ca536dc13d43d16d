package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pet-rehoming/backend/internal/models"
)

type ConfirmationRepo struct {
	db DBTX
}

func NewConfirmationRepo(db DBTX) *ConfirmationRepo {
	return &ConfirmationRepo{db: db}
}

func (r *ConfirmationRepo) Create(ctx context.Context, c *models.TransferConfirmation) error {
	return mapErr(r.db.QueryRow(ctx, `
		INSERT INTO transfer_confirmations (transaction_id) VALUES ($1)
		RETURNING updated_at
	`, c.TransactionID).Scan(&c.UpdatedAt))
}

func (r *ConfirmationRepo) Get(ctx context.Context, transactionID uuid.UUID) (*models.TransferConfirmation, error) {
	var c models.TransferConfirmation
	err := r.db.QueryRow(ctx, `
		SELECT transaction_id, owner_confirmed_at, adopter_confirmed_at, updated_at
		FROM transfer_confirmations WHERE transaction_id = $1
	`, transactionID).Scan(&c.TransactionID, &c.OwnerConfirmedAt, &c.AdopterConfirmedAt, &c.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

// Confirm sets the flag only while it is NULL so two concurrent calls for the
// same role cannot both report a change.
func (r *ConfirmationRepo) Confirm(ctx context.Context, transactionID uuid.UUID, role models.PartyRole, at time.Time) (*models.TransferConfirmation, bool, error) {
	column := "owner_confirmed_at"
	if role == models.PartyAdopter {
		column = "adopter_confirmed_at"
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE transfer_confirmations SET `+column+` = $1, updated_at = now()
		WHERE transaction_id = $2 AND `+column+` IS NULL
	`, at, transactionID)
	if err != nil {
		return nil, false, mapErr(err)
	}
	c, err := r.Get(ctx, transactionID)
	if err != nil {
		return nil, false, err
	}
	return c, tag.RowsAffected() == 1, nil
}
