package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/pet-rehoming/backend/internal/models"
	"github.com/pet-rehoming/backend/internal/store"
)

const disputeColumns = `id, transaction_id, opened_by, reason, evidence, status, outcome,
       arbitration_case_ref, resolution_note, created_at, resolved_at`

type DisputeRepo struct {
	db DBTX
}

func NewDisputeRepo(db DBTX) *DisputeRepo {
	return &DisputeRepo{db: db}
}

func scanDispute(row interface{ Scan(...any) error }) (*models.Dispute, error) {
	var d models.Dispute
	err := row.Scan(&d.ID, &d.TransactionID, &d.OpenedBy, &d.Reason, &d.Evidence, &d.Status, &d.Outcome,
		&d.ArbitrationCaseRef, &d.ResolutionNote, &d.CreatedAt, &d.ResolvedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &d, nil
}

func (r *DisputeRepo) Create(ctx context.Context, d *models.Dispute) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.Status == "" {
		d.Status = models.DisputeStatusOpen
	}
	evidence := d.Evidence
	if evidence == nil {
		evidence = []string{}
	}
	return mapErr(r.db.QueryRow(ctx, `
		INSERT INTO disputes (id, transaction_id, opened_by, reason, evidence, status, arbitration_case_ref)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, d.ID, d.TransactionID, d.OpenedBy, d.Reason, evidence, d.Status, d.ArbitrationCaseRef,
	).Scan(&d.CreatedAt))
}

func (r *DisputeRepo) GetLatestByTransaction(ctx context.Context, transactionID uuid.UUID) (*models.Dispute, error) {
	return scanDispute(r.db.QueryRow(ctx, `
		SELECT `+disputeColumns+` FROM disputes WHERE transaction_id = $1 ORDER BY created_at DESC LIMIT 1
	`, transactionID))
}

func (r *DisputeRepo) Update(ctx context.Context, d *models.Dispute) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE disputes SET status = $1, outcome = $2, arbitration_case_ref = $3, resolution_note = $4, resolved_at = $5
		WHERE id = $6
	`, d.Status, d.Outcome, d.ArbitrationCaseRef, d.ResolutionNote, d.ResolvedAt, d.ID)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *DisputeRepo) List(ctx context.Context, f store.DisputeFilter) ([]models.Dispute, error) {
	var w whereBuilder
	if f.TransactionID != nil {
		w.add("transaction_id = $%d", *f.TransactionID)
	}
	if f.Status != nil {
		w.add("status = $%d", *f.Status)
	}
	query := `SELECT ` + disputeColumns + ` FROM disputes` + w.sql() + w.page("created_at DESC", f.Limit, 0)

	rows, err := r.db.Query(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Dispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}
