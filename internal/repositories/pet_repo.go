package repositories

import (
	"context"

	"github.com/google/uuid"
	"github.com/pet-rehoming/backend/internal/models"
	"github.com/pet-rehoming/backend/internal/store"
)

const petColumns = `id, owner_id, name, species, breed, age_months, description, city,
       adoption_type, price, is_verified, is_adopted, deleted_at, created_at, updated_at`

type PetRepo struct {
	db DBTX
}

func NewPetRepo(db DBTX) *PetRepo {
	return &PetRepo{db: db}
}

func scanPet(row interface{ Scan(...any) error }) (*models.RehomingPet, error) {
	var p models.RehomingPet
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Species, &p.Breed, &p.AgeMonths, &p.Description, &p.City,
		&p.AdoptionType, &p.Price, &p.IsVerified, &p.IsAdopted, &p.DeletedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (r *PetRepo) Create(ctx context.Context, p *models.RehomingPet) error {
	return r.db.QueryRow(ctx, `
		INSERT INTO rehoming_pets (owner_id, name, species, breed, age_months, description, city, adoption_type, price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`, p.OwnerID, p.Name, p.Species, p.Breed, p.AgeMonths, p.Description, p.City, p.AdoptionType, p.Price,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

func (r *PetRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.RehomingPet, error) {
	return scanPet(r.db.QueryRow(ctx, `SELECT `+petColumns+` FROM rehoming_pets WHERE id = $1 AND deleted_at IS NULL`, id))
}

func (r *PetRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.RehomingPet, error) {
	return scanPet(r.db.QueryRow(ctx, `SELECT `+petColumns+` FROM rehoming_pets WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id))
}

func (r *PetRepo) Update(ctx context.Context, p *models.RehomingPet) error {
	return mapErr(r.db.QueryRow(ctx, `
		UPDATE rehoming_pets SET name = $1, species = $2, breed = $3, age_months = $4, description = $5,
		       city = $6, adoption_type = $7, price = $8, updated_at = now()
		WHERE id = $9 AND deleted_at IS NULL
		RETURNING is_verified, is_adopted, created_at, updated_at
	`, p.Name, p.Species, p.Breed, p.AgeMonths, p.Description, p.City, p.AdoptionType, p.Price, p.ID,
	).Scan(&p.IsVerified, &p.IsAdopted, &p.CreatedAt, &p.UpdatedAt))
}

func (r *PetRepo) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *PetRepo) MarkAdopted(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, `UPDATE rehoming_pets SET is_adopted = true, updated_at = now() WHERE id = $1`, id)
}

func (r *PetRepo) SetVerified(ctx context.Context, id uuid.UUID, verified bool) error {
	return r.exec(ctx, `UPDATE rehoming_pets SET is_verified = $1, updated_at = now() WHERE id = $2 AND deleted_at IS NULL`, verified, id)
}

func (r *PetRepo) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, `UPDATE rehoming_pets SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`, id)
}

func (r *PetRepo) List(ctx context.Context, f store.PetFilter) ([]models.RehomingPet, error) {
	var w whereBuilder
	w.addRaw("deleted_at IS NULL")
	if f.OnlyAvailable {
		w.addRaw("is_adopted = false")
	}
	if f.OwnerID != nil {
		w.add("owner_id = $%d", *f.OwnerID)
	}
	if f.Species != nil {
		w.add("species = $%d", *f.Species)
	}
	if f.AdoptionType != nil {
		w.add("adoption_type = $%d", *f.AdoptionType)
	}
	query := `SELECT ` + petColumns + ` FROM rehoming_pets` + w.sql()
	query += w.page("created_at DESC", f.Limit, f.Offset)

	rows, err := r.db.Query(ctx, query, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pets []models.RehomingPet
	for rows.Next() {
		p, err := scanPet(rows)
		if err != nil {
			return nil, err
		}
		pets = append(pets, *p)
	}
	return pets, rows.Err()
}
