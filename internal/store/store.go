package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ibeckermayer/boardjanitor/internal/config"
	"github.com/ibeckermayer/boardjanitor/internal/types"
)

// ErrNotFound is returned when an update targets an unknown post.
var ErrNotFound = errors.New("post not found")

// Repository is the record store the driver works against: fetch the whole
// batch, then write partial updates back by ID.
type Repository interface {
	FetchAll(ctx context.Context) ([]types.Post, error)
	UpdatePost(ctx context.Context, id string, patch types.PostPatch) error
}

// Collection is a Repository that can also upsert whole records. Import and
// export use it; the moderation and summary jobs only need Repository.
type Collection interface {
	Repository
	SavePost(ctx context.Context, p types.Post) error
}

// Backend groups named collections over one underlying client.
type Backend interface {
	Collection(name string) Collection
	Close() error
}

// Open builds the backend selected by cfg.Driver. The caller owns the
// returned backend and must Close it.
func Open(ctx context.Context, cfg config.StoreConfig) (Backend, error) {
	var (
		b   Backend
		err error
	)
	switch cfg.Driver {
	case config.DriverSQLite:
		b, err = NewSQLite(cfg.SQLitePath)
	case config.DriverPostgres:
		b, err = NewPostgres(ctx, cfg.PostgresURL)
	case config.DriverJSONFile:
		b, err = NewJSONFile(cfg.JSONDir)
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// column is one SET assignment of a partial update.
type column struct {
	name  string
	value any
}

// patchColumns lists the columns a patch touches. encodeTime converts
// timestamps into the driver's column representation.
func patchColumns(p types.PostPatch, encodeTime func(time.Time) any) []column {
	var cols []column
	if p.SpamStatus != nil {
		cols = append(cols, column{"spam_status", string(*p.SpamStatus)})
	}
	if p.SpamReason != nil {
		cols = append(cols, column{"spam_reason", string(*p.SpamReason)})
	}
	if p.SpamReviewedAt != nil {
		cols = append(cols, column{"spam_reviewed_at", encodeTime(*p.SpamReviewedAt)})
	}
	if p.SummaryShort != nil {
		cols = append(cols, column{"summary_short", *p.SummaryShort})
	}
	if p.SummaryLong != nil {
		cols = append(cols, column{"summary_long", *p.SummaryLong})
	}
	if p.SummaryUpdatedAt != nil {
		cols = append(cols, column{"summary_updated_at", encodeTime(*p.SummaryUpdatedAt)})
	}
	return cols
}
