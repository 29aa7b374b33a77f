package repository

import (
	"context"
	"errors"

	"github.com/aifai-labs/aifai/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the postgres error code for duplicate key values.
const uniqueViolation = "23505"

type InstanceRepository struct {
	pool *pgxpool.Pool
}

func NewInstanceRepository(pool *pgxpool.Pool) *InstanceRepository {
	return &InstanceRepository{pool: pool}
}

func (r *InstanceRepository) Create(ctx context.Context, i *domain.AIInstance) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO ai_instances (name, token_hash, created_at)
		 VALUES ($1, $2, $3)
		 RETURNING id`,
		i.Name, i.TokenHash, i.CreatedAt,
	).Scan(&i.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.NewDomainError(domain.ErrCodeConflict, "instance name or token already registered")
		}
		return err
	}
	return nil
}

func (r *InstanceRepository) GetByID(ctx context.Context, id int64) (*domain.AIInstance, error) {
	var i domain.AIInstance
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, token_hash, created_at FROM ai_instances WHERE id = $1`,
		id,
	).Scan(&i.ID, &i.Name, &i.TokenHash, &i.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrInstanceNotFound
		}
		return nil, err
	}
	return &i, nil
}

func (r *InstanceRepository) GetByTokenHash(ctx context.Context, hash string) (*domain.AIInstance, error) {
	var i domain.AIInstance
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, token_hash, created_at FROM ai_instances WHERE token_hash = $1`,
		hash,
	).Scan(&i.ID, &i.Name, &i.TokenHash, &i.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrInstanceNotFound
		}
		return nil, err
	}
	return &i, nil
}
