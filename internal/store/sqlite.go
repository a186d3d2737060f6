package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ibeckermayer/boardjanitor/internal/types"
)

// SQLite stores every collection in one posts table keyed by
// (collection, id). Timestamps are nullable unix milliseconds.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (and migrates) the database at dbPath.
func NewSQLite(dbPath string) (*SQLite, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *SQLite) Close() error {
	return s.db.Close()
}

// migrate creates the database schema
func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS posts (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		author_key TEXT,
		content TEXT,
		created_at INTEGER,
		updated_at INTEGER,
		spam_status TEXT,
		spam_reason TEXT,
		spam_reviewed_at INTEGER,
		summary_short TEXT,
		summary_long TEXT,
		summary_updated_at INTEGER,
		PRIMARY KEY (collection, id)
	);

	CREATE INDEX IF NOT EXISTS idx_posts_author ON posts(collection, author_key, created_at);
	CREATE INDEX IF NOT EXISTS idx_posts_spam_status ON posts(collection, spam_status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Collection returns the named collection.
func (s *SQLite) Collection(name string) Collection {
	return &sqliteCollection{db: s.db, name: name}
}

type sqliteCollection struct {
	db   *sql.DB
	name string
}

// FetchAll returns every post in the collection in insertion order.
func (c *sqliteCollection) FetchAll(ctx context.Context) ([]types.Post, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, COALESCE(author_key, ''), COALESCE(content, ''),
			created_at, updated_at,
			COALESCE(spam_status, ''), COALESCE(spam_reason, ''), spam_reviewed_at,
			COALESCE(summary_short, ''), COALESCE(summary_long, ''), summary_updated_at
		FROM posts
		WHERE collection = ?
		ORDER BY rowid
	`, c.name)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", c.name, err)
	}
	defer rows.Close()

	var posts []types.Post
	for rows.Next() {
		var p types.Post
		var status, reason string
		var createdAt, updatedAt, reviewedAt, summarizedAt sql.NullInt64

		err := rows.Scan(
			&p.ID, &p.AuthorKey, &p.Content,
			&createdAt, &updatedAt,
			&status, &reason, &reviewedAt,
			&p.SummaryShort, &p.SummaryLong, &summarizedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", c.name, err)
		}

		p.SpamStatus = types.SpamStatus(status)
		p.SpamReason = types.SpamReason(reason)
		p.CreatedAt = fromMillis(createdAt)
		p.UpdatedAt = fromMillis(updatedAt)
		p.SpamReviewedAt = fromMillis(reviewedAt)
		p.SummaryUpdatedAt = fromMillis(summarizedAt)
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// UpdatePost merges patch into the stored post.
func (c *sqliteCollection) UpdatePost(ctx context.Context, id string, patch types.PostPatch) error {
	cols := patchColumns(patch, func(t time.Time) any { return t.UnixMilli() })
	if len(cols) == 0 {
		return nil
	}

	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+2)
	for i, col := range cols {
		sets[i] = col.name + " = ?"
		args = append(args, col.value)
	}
	args = append(args, c.name, id)

	res, err := c.db.ExecContext(ctx,
		"UPDATE posts SET "+strings.Join(sets, ", ")+" WHERE collection = ? AND id = ?", args...)
	if err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", c.name, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s/%s: %w", c.name, id, ErrNotFound)
	}
	return nil
}

// SavePost inserts or replaces a post
func (c *sqliteCollection) SavePost(ctx context.Context, p types.Post) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO posts (collection, id, author_key, content, created_at, updated_at,
			spam_status, spam_reason, spam_reviewed_at,
			summary_short, summary_long, summary_updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			author_key = excluded.author_key,
			content = excluded.content,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			spam_status = excluded.spam_status,
			spam_reason = excluded.spam_reason,
			spam_reviewed_at = excluded.spam_reviewed_at,
			summary_short = excluded.summary_short,
			summary_long = excluded.summary_long,
			summary_updated_at = excluded.summary_updated_at
	`, c.name, p.ID, p.AuthorKey, p.Content, toMillis(p.CreatedAt), toMillis(p.UpdatedAt),
		string(p.SpamStatus), string(p.SpamReason), toMillis(p.SpamReviewedAt),
		p.SummaryShort, p.SummaryLong, toMillis(p.SummaryUpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to save %s/%s: %w", c.name, p.ID, err)
	}
	return nil
}

func toMillis(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}

func fromMillis(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.UnixMilli(v.Int64).UTC()
}
