package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/pet-rehoming/backend/internal/models"
	"github.com/pet-rehoming/backend/internal/store"
)

const requestColumns = `r.id, r.pet_id, r.adopter_id, r.message, r.status, r.version, r.decided_at, r.created_at, r.updated_at`

type AdoptionRequestRepo struct {
	db DBTX
}

func NewAdoptionRequestRepo(db DBTX) *AdoptionRequestRepo {
	return &AdoptionRequestRepo{db: db}
}

func scanRequest(row interface{ Scan(...any) error }) (*models.AdoptionRequest, error) {
	var r models.AdoptionRequest
	err := row.Scan(&r.ID, &r.PetID, &r.AdopterID, &r.Message, &r.Status, &r.Version, &r.DecidedAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &r, nil
}

func (r *AdoptionRequestRepo) Create(ctx context.Context, req *models.AdoptionRequest) error {
	if req.Status == "" {
		req.Status = models.RequestStatusPending
	}
	return mapErr(r.db.QueryRow(ctx, `
		INSERT INTO adoption_requests (pet_id, adopter_id, message, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, version, created_at, updated_at
	`, req.PetID, req.AdopterID, req.Message, req.Status,
	).Scan(&req.ID, &req.Version, &req.CreatedAt, &req.UpdatedAt))
}

func (r *AdoptionRequestRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.AdoptionRequest, error) {
	return scanRequest(r.db.QueryRow(ctx, `SELECT `+requestColumns+` FROM adoption_requests r WHERE r.id = $1`, id))
}

func (r *AdoptionRequestRepo) List(ctx context.Context, f store.RequestFilter) ([]models.AdoptionRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM adoption_requests r`
	var w whereBuilder
	if f.OwnerID != nil {
		query += ` JOIN rehoming_pets p ON p.id = r.pet_id`
		w.add("p.owner_id = $%d", *f.OwnerID)
	}
	if f.PetID != nil {
		w.add("r.pet_id = $%d", *f.PetID)
	}
	if f.AdopterID != nil {
		w.add("r.adopter_id = $%d", *f.AdopterID)
	}
	if f.ExcludeID != nil {
		w.add("r.id <> $%d", *f.ExcludeID)
	}
	if len(f.Statuses) > 0 {
		w.add("r.status = ANY($%d)", statusStrings(f.Statuses))
	}
	if f.UpdatedBefore != nil {
		w.add("r.updated_at < $%d", *f.UpdatedBefore)
	}
	order := "r.created_at DESC, r.id DESC"
	if f.OldestFirst {
		order = "r.created_at ASC, r.id ASC"
	}
	query += w.sql() + w.page(order, f.Limit, f.Offset)

	rows, err := r.db.Query(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.AdoptionRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

func (r *AdoptionRequestRepo) UpdateStatus(ctx context.Context, req *models.AdoptionRequest, status models.RequestStatus) error {
	updated, err := scanRequest(r.db.QueryRow(ctx, `
		UPDATE adoption_requests r
		SET status = $1, version = r.version + 1, updated_at = now(),
		    decided_at = CASE WHEN r.status = 'pending' THEN now() ELSE r.decided_at END
		WHERE r.id = $2 AND r.version = $3
		RETURNING `+requestColumns,
		status, req.ID, req.Version))
	if err == store.ErrNotFound {
		if _, getErr := r.GetByID(ctx, req.ID); getErr != nil {
			return getErr
		}
		return store.ErrVersionConflict
	}
	if err != nil {
		return err
	}
	*req = *updated
	return nil
}

func statusStrings[T ~string](in []T) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}
