package repository

import (
	"context"
	"errors"
	"time"

	"github.com/aifai-labs/aifai/internal/domain"
	"github.com/aifai-labs/aifai/internal/pagination"
	"github.com/aifai-labs/aifai/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx so repositories can run
// inside or outside a transaction.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const entryColumns = `id, instance_id, title, description, content, code_example, context, category, tags,
		success_rate, usage_count, upvotes, downvotes, verified, verified_by, created_at, updated_at`

type EntryRepository struct {
	db dbtx
}

func NewEntryRepository(pool *pgxpool.Pool) *EntryRepository {
	return &EntryRepository{db: pool}
}

func (r *EntryRepository) Create(ctx context.Context, e *domain.KnowledgeEntry) error {
	return r.db.QueryRow(ctx,
		`INSERT INTO knowledge_entries (instance_id, title, description, content, code_example, context, category, tags, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		e.InstanceID, e.Title, e.Description, e.Content, e.CodeExample, e.Context, e.Category, e.Tags, e.CreatedAt, e.UpdatedAt,
	).Scan(&e.ID)
}

func (r *EntryRepository) GetByID(ctx context.Context, id int64) (*domain.KnowledgeEntry, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM knowledge_entries WHERE id = $1`,
		id,
	)
	return scanEntry(row)
}

func (r *EntryRepository) ListAll(ctx context.Context) ([]*domain.KnowledgeEntry, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+entryColumns+` FROM knowledge_entries ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEntryRows(rows)
}

func (r *EntryRepository) ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*service.EntryPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT `+entryColumns+`
			 FROM knowledge_entries
			 WHERE (created_at, id) < ($1, $2)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $3`,
			cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT `+entryColumns+`
			 FROM knowledge_entries
			 ORDER BY created_at DESC, id DESC
			 LIMIT $1`,
			limit+1,
		)
	}

	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items, err := scanEntryRows(rows)
	if err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		lastItem := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(lastItem.ID, lastItem.CreatedAt)
	}

	return &service.EntryPageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// IncrementUsage bumps the usage counter atomically and returns the updated
// entry. Concurrent increments never lose updates.
func (r *EntryRepository) IncrementUsage(ctx context.Context, id int64) (*domain.KnowledgeEntry, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE knowledge_entries
		 SET usage_count = usage_count + 1, updated_at = $2
		 WHERE id = $1
		 RETURNING `+entryColumns,
		id, time.Now().UTC(),
	)
	return scanEntry(row)
}

// AddVote records a vote atomically and returns the updated entry.
func (r *EntryRepository) AddVote(ctx context.Context, id int64, vote domain.VoteType) (*domain.KnowledgeEntry, error) {
	column := "upvotes"
	if vote == domain.VoteDownvote {
		column = "downvotes"
	}

	row := r.db.QueryRow(ctx,
		`UPDATE knowledge_entries
		 SET `+column+` = `+column+` + 1, updated_at = $2
		 WHERE id = $1
		 RETURNING `+entryColumns,
		id, time.Now().UTC(),
	)
	return scanEntry(row)
}

// SetVerified marks an entry verified and reports whether this call performed
// the transition. The verified flag only ever goes from false to true and the
// original verifier is never overwritten, so losing the race to another caller
// is not an error; it is reported as false so callers do not present the loser
// as the verifier.
func (r *EntryRepository) SetVerified(ctx context.Context, id, verifiedBy int64) (bool, error) {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE knowledge_entries
		 SET verified = TRUE, verified_by = $2, updated_at = $3
		 WHERE id = $1 AND verified = FALSE`,
		id, verifiedBy, time.Now().UTC(),
	)
	if err != nil {
		return false, err
	}
	if cmdTag.RowsAffected() == 0 {
		var verified bool
		err := r.db.QueryRow(ctx,
			`SELECT verified FROM knowledge_entries WHERE id = $1`,
			id,
		).Scan(&verified)
		if errors.Is(err, pgx.ErrNoRows) {
			return false, domain.ErrEntryNotFound
		}
		return false, err
	}
	return true, nil
}

func scanEntry(row pgx.Row) (*domain.KnowledgeEntry, error) {
	var e domain.KnowledgeEntry
	err := row.Scan(
		&e.ID, &e.InstanceID, &e.Title, &e.Description, &e.Content, &e.CodeExample, &e.Context,
		&e.Category, &e.Tags, &e.SuccessRate, &e.UsageCount, &e.Upvotes, &e.Downvotes,
		&e.Verified, &e.VerifiedBy, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrEntryNotFound
		}
		return nil, err
	}
	return &e, nil
}

func scanEntryRows(rows pgx.Rows) ([]*domain.KnowledgeEntry, error) {
	var results []*domain.KnowledgeEntry
	for rows.Next() {
		var e domain.KnowledgeEntry
		if err := rows.Scan(
			&e.ID, &e.InstanceID, &e.Title, &e.Description, &e.Content, &e.CodeExample, &e.Context,
			&e.Category, &e.Tags, &e.SuccessRate, &e.UsageCount, &e.Upvotes, &e.Downvotes,
			&e.Verified, &e.VerifiedBy, &e.CreatedAt, &e.UpdatedAt,
		); err != nil {
			return nil, err
		}
		results = append(results, &e)
	}
	return results, rows.Err()
}
