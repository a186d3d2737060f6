package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ibeckermayer/boardjanitor/internal/types"
)

// Postgres keeps posts in a single table keyed by (collection, id).
type Postgres struct {
	Pool *pgxpool.Pool
}

// NewPostgres connects to connStr and creates the schema if needed.
func NewPostgres(ctx context.Context, connStr string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return NewPostgresWithPool(ctx, pool)
}

// NewPostgresWithPool wraps a caller-constructed pool.
func NewPostgresWithPool(ctx context.Context, pool *pgxpool.Pool) (*Postgres, error) {
	s := &Postgres{Pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Postgres) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS posts (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			seq BIGSERIAL,
			author_key TEXT,
			content TEXT,
			created_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ,
			spam_status TEXT,
			spam_reason TEXT,
			spam_reviewed_at TIMESTAMPTZ,
			summary_short TEXT,
			summary_long TEXT,
			summary_updated_at TIMESTAMPTZ,
			PRIMARY KEY (collection, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_posts_author ON posts (collection, author_key, created_at)`,
	}

	for _, q := range queries {
		if _, err := s.Pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("failed to init schema: %w", err)
		}
	}
	return nil
}

func (s *Postgres) Close() error {
	s.Pool.Close()
	return nil
}

func (s *Postgres) Collection(name string) Collection {
	return &pgCollection{pool: s.Pool, name: name}
}

type pgCollection struct {
	pool *pgxpool.Pool
	name string
}

func (c *pgCollection) FetchAll(ctx context.Context) ([]types.Post, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT id, COALESCE(author_key, ''), COALESCE(content, ''),
			created_at, updated_at,
			COALESCE(spam_status, ''), COALESCE(spam_reason, ''), spam_reviewed_at,
			COALESCE(summary_short, ''), COALESCE(summary_long, ''), summary_updated_at
		FROM posts
		WHERE collection = $1
		ORDER BY seq`, c.name)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", c.name, err)
	}
	defer rows.Close()

	var posts []types.Post
	for rows.Next() {
		var p types.Post
		var status, reason string
		var createdAt, updatedAt, reviewedAt, summarizedAt *time.Time

		if err := rows.Scan(
			&p.ID, &p.AuthorKey, &p.Content,
			&createdAt, &updatedAt,
			&status, &reason, &reviewedAt,
			&p.SummaryShort, &p.SummaryLong, &summarizedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", c.name, err)
		}

		p.SpamStatus = types.SpamStatus(status)
		p.SpamReason = types.SpamReason(reason)
		p.CreatedAt = derefTime(createdAt)
		p.UpdatedAt = derefTime(updatedAt)
		p.SpamReviewedAt = derefTime(reviewedAt)
		p.SummaryUpdatedAt = derefTime(summarizedAt)
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func (c *pgCollection) UpdatePost(ctx context.Context, id string, patch types.PostPatch) error {
	cols := patchColumns(patch, func(t time.Time) any { return t.UTC() })
	if len(cols) == 0 {
		return nil
	}

	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+2)
	for i, col := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", col.name, i+1)
		args = append(args, col.value)
	}
	args = append(args, c.name, id)

	q := fmt.Sprintf("UPDATE posts SET %s WHERE collection = $%d AND id = $%d",
		strings.Join(sets, ", "), len(cols)+1, len(cols)+2)
	tag, err := c.pool.Exec(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", c.name, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s/%s: %w", c.name, id, ErrNotFound)
	}
	return nil
}

func (c *pgCollection) SavePost(ctx context.Context, p types.Post) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO posts (collection, id, author_key, content, created_at, updated_at,
			spam_status, spam_reason, spam_reviewed_at,
			summary_short, summary_long, summary_updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (collection, id) DO UPDATE SET
			author_key = EXCLUDED.author_key,
			content = EXCLUDED.content,
			created_at = EXCLUDED.created_at,
			updated_at = EXCLUDED.updated_at,
			spam_status = EXCLUDED.spam_status,
			spam_reason = EXCLUDED.spam_reason,
			spam_reviewed_at = EXCLUDED.spam_reviewed_at,
			summary_short = EXCLUDED.summary_short,
			summary_long = EXCLUDED.summary_long,
			summary_updated_at = EXCLUDED.summary_updated_at`,
		c.name, p.ID, p.AuthorKey, p.Content, nullTime(p.CreatedAt), nullTime(p.UpdatedAt),
		string(p.SpamStatus), string(p.SpamReason), nullTime(p.SpamReviewedAt),
		p.SummaryShort, p.SummaryLong, nullTime(p.SummaryUpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save %s/%s: %w", c.name, p.ID, err)
	}
	return nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}
