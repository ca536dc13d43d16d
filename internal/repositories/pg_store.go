package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pet-rehoming/backend/internal/store"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore implements store.Store on PostgreSQL.
type PGStore struct {
	pool *pgxpool.Pool
	db   DBTX
	inTx bool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool, db: pool}
}

func (s *PGStore) Atomic(ctx context.Context, fn func(store.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&PGStore{pool: s.pool, db: tx, inTx: true})
	})
}

func (s *PGStore) Pets() store.PetStore                   { return NewPetRepo(s.db) }
func (s *PGStore) Requests() store.RequestStore           { return NewAdoptionRequestRepo(s.db) }
func (s *PGStore) Transactions() store.TransactionStore   { return NewTransactionRepo(s.db) }
func (s *PGStore) Disputes() store.DisputeStore           { return NewDisputeRepo(s.db) }
func (s *PGStore) Confirmations() store.ConfirmationStore { return NewConfirmationRepo(s.db) }
func (s *PGStore) Audit() store.AuditStore                { return NewAuditRepo(s.db) }
func (s *PGStore) Outbox() store.OutboxStore              { return NewOutboxRepo(s.db) }

const uniqueViolation = "23505"

// mapErr translates driver errors into store sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return store.ErrDuplicate
	}
	return err
}

// whereBuilder accumulates positional conditions the way the list queries need them.
type whereBuilder struct {
	conds []string
	args  []any
}

func (w *whereBuilder) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(cond, len(w.args)))
}

func (w *whereBuilder) addRaw(cond string) {
	w.conds = append(w.conds, cond)
}

func (w *whereBuilder) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// page appends ORDER BY/LIMIT/OFFSET with the repository default page size.
func (w *whereBuilder) page(orderBy string, limit, offset int) string {
	w.args = append(w.args, store.PageLimit(limit), offset)
	return fmt.Sprintf(" ORDER BY %s LIMIT $%d OFFSET $%d", orderBy, len(w.args)-1, len(w.args))
}
