package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/pet-rehoming/backend/internal/models"
	"github.com/pet-rehoming/backend/internal/store"
)

const transactionColumns = `id, adoption_request_id, pet_id, from_user, to_user, amount, platform_fee, net_amount,
       currency, fee_bps, status, escrow_status, dispute_status, settlement, gateway_ref,
       failure_reason, refund_reason, version, held_at, released_at, refunded_at, created_at, updated_at`

type TransactionRepo struct {
	db DBTX
}

func NewTransactionRepo(db DBTX) *TransactionRepo {
	return &TransactionRepo{db: db}
}

func scanTransaction(row interface{ Scan(...any) error }) (*models.RehomingTransaction, error) {
	var t models.RehomingTransaction
	err := row.Scan(&t.ID, &t.AdoptionRequestID, &t.PetID, &t.FromUser, &t.ToUser, &t.Amount, &t.PlatformFee, &t.NetAmount,
		&t.Currency, &t.FeeBPS, &t.Status, &t.EscrowStatus, &t.DisputeStatus, &t.Settlement, &t.GatewayRef,
		&t.FailureReason, &t.RefundReason, &t.Version, &t.HeldAt, &t.ReleasedAt, &t.RefundedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &t, nil
}

func (r *TransactionRepo) Create(ctx context.Context, t *models.RehomingTransaction) error {
	if t.DisputeStatus == "" {
		t.DisputeStatus = models.DisputeStateNone
	}
	if t.EscrowStatus == "" {
		t.EscrowStatus = models.EscrowStatusNone
	}
	return mapErr(r.db.QueryRow(ctx, `
		INSERT INTO rehoming_transactions (adoption_request_id, pet_id, from_user, to_user, amount, platform_fee,
		                                   net_amount, currency, fee_bps, status, escrow_status, dispute_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, version, created_at, updated_at
	`, t.AdoptionRequestID, t.PetID, t.FromUser, t.ToUser, t.Amount, t.PlatformFee,
		t.NetAmount, t.Currency, t.FeeBPS, t.Status, t.EscrowStatus, t.DisputeStatus,
	).Scan(&t.ID, &t.Version, &t.CreatedAt, &t.UpdatedAt))
}

func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.RehomingTransaction, error) {
	return scanTransaction(r.db.QueryRow(ctx, `SELECT `+transactionColumns+` FROM rehoming_transactions WHERE id = $1`, id))
}

func (r *TransactionRepo) List(ctx context.Context, f store.TransactionFilter) ([]models.RehomingTransaction, error) {
	var w whereBuilder
	if f.UserID != nil {
		w.add("(from_user = $%[1]d OR to_user = $%[1]d)", *f.UserID)
	}
	if f.AdoptionRequestID != nil {
		w.add("adoption_request_id = $%d", *f.AdoptionRequestID)
	}
	if len(f.Statuses) > 0 {
		w.add("status = ANY($%d)", statusStrings(f.Statuses))
	}
	if len(f.DisputeStatuses) > 0 {
		w.add("dispute_status = ANY($%d)", statusStrings(f.DisputeStatuses))
	}
	if f.UpdatedBefore != nil {
		w.add("updated_at < $%d", *f.UpdatedBefore)
	}
	if f.HeldBefore != nil {
		w.add("held_at < $%d", *f.HeldBefore)
	}
	query := `SELECT ` + transactionColumns + ` FROM rehoming_transactions` + w.sql()
	order := "created_at DESC, id DESC"
	if f.OldestFirst {
		order = "created_at ASC, id ASC"
	}
	query += w.page(order, f.Limit, f.Offset)

	rows, err := r.db.Query(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.RehomingTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// Update writes every mutable column guarded by the caller's version.
func (r *TransactionRepo) Update(ctx context.Context, t *models.RehomingTransaction) error {
	updated, err := scanTransaction(r.db.QueryRow(ctx, `
		UPDATE rehoming_transactions
		SET status = $1, escrow_status = $2, dispute_status = $3, settlement = $4, gateway_ref = $5,
		    failure_reason = $6, refund_reason = $7, held_at = $8, released_at = $9, refunded_at = $10,
		    version = version + 1, updated_at = now()
		WHERE id = $11 AND version = $12
		RETURNING `+transactionColumns,
		t.Status, t.EscrowStatus, t.DisputeStatus, t.Settlement, t.GatewayRef,
		t.FailureReason, t.RefundReason, t.HeldAt, t.ReleasedAt, t.RefundedAt,
		t.ID, t.Version))
	if err == store.ErrNotFound {
		if _, getErr := r.GetByID(ctx, t.ID); getErr != nil {
			return getErr
		}
		return store.ErrVersionConflict
	}
	if err != nil {
		return err
	}
	*t = *updated
	return nil
}
