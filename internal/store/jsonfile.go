package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/araddon/dateparse"

	"github.com/ibeckermayer/boardjanitor/internal/types"
)

// JSONFile keeps each collection as a JSON array of documents in
// <dir>/<collection>.json, the shape of a document-store export. Fields the
// janitor does not know about are preserved across updates.
type JSONFile struct {
	dir string
	mu  sync.Mutex
}

// NewJSONFile uses dir as the collection directory, creating it if needed.
func NewJSONFile(dir string) (*JSONFile, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return &JSONFile{dir: dir}, nil
}

func (s *JSONFile) Close() error { return nil }

func (s *JSONFile) Collection(name string) Collection {
	return &jsonCollection{store: s, path: filepath.Join(s.dir, name+".json")}
}

type jsonCollection struct {
	store *JSONFile
	path  string
}

// document is one raw record. Keys use the external camelCase field names.
type document map[string]any

func (c *jsonCollection) FetchAll(ctx context.Context) ([]types.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	docs, err := c.read()
	if err != nil {
		return nil, err
	}
	posts := make([]types.Post, 0, len(docs))
	for _, d := range docs {
		posts = append(posts, d.post())
	}
	return posts, nil
}

func (c *jsonCollection) UpdatePost(ctx context.Context, id string, patch types.PostPatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if patch.IsEmpty() {
		return nil
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	docs, err := c.read()
	if err != nil {
		return err
	}
	for _, d := range docs {
		if d.str("id") != id {
			continue
		}
		d.merge(patch)
		return c.write(docs)
	}
	return fmt.Errorf("%s: %w", id, ErrNotFound)
}

func (c *jsonCollection) SavePost(ctx context.Context, p types.Post) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	docs, err := c.read()
	if err != nil {
		return err
	}
	fresh := fromPost(p)
	for i, d := range docs {
		if d.str("id") == p.ID {
			docs[i] = fresh
			return c.write(docs)
		}
	}
	return c.write(append(docs, fresh))
}

func (c *jsonCollection) read() ([]document, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read collection: %w", err)
	}
	docs, err := decodeDocuments(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(c.path), err)
	}
	return docs, nil
}

// decodeDocuments keeps numbers as json.Number so ids and keys stored as
// numbers stringify exactly. null entries are dropped.
func decodeDocuments(r io.Reader) ([]document, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var raw []document
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	docs := raw[:0]
	for _, d := range raw {
		if d != nil {
			docs = append(docs, d)
		}
	}
	return docs, nil
}

// write replaces the file atomically via a temp file and rename.
func (c *jsonCollection) write(docs []document) error {
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal collection: %w", err)
	}
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write collection: %w", err)
	}
	return os.Rename(tmp, c.path)
}

// str reads a scalar field as a string. Numbers and booleans are
// formatted; missing, null and nested values read as "".
func (d document) str(key string) string {
	switch v := d[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	}
	return 0, false
}

// timestamp decodes a loosely typed time field. Strings go through
// dateparse, numbers are unix seconds (or milliseconds when large). Anything
// unparseable is treated as absent.
func (d document) timestamp(key string) time.Time {
	switch v := d[key].(type) {
	case string:
		if v == "" {
			return time.Time{}
		}
		t, err := dateparse.ParseIn(v, time.UTC)
		if err != nil {
			return time.Time{}
		}
		return t.UTC()
	case map[string]any:
		// Firestore-style {"_seconds": n, "_nanoseconds": n}
		sec, ok := number(v["_seconds"])
		if !ok {
			return time.Time{}
		}
		nsec, _ := number(v["_nanoseconds"])
		return time.Unix(int64(sec), int64(nsec)).UTC()
	}
	if n, ok := number(d[key]); ok {
		if n > 1e12 {
			return time.UnixMilli(int64(n)).UTC()
		}
		return time.Unix(int64(n), 0).UTC()
	}
	return time.Time{}
}

func (d document) post() types.Post {
	return types.Post{
		ID:               d.str("id"),
		AuthorKey:        d.str("authorKey"),
		Content:          d.str("content"),
		CreatedAt:        d.timestamp("createdAt"),
		UpdatedAt:        d.timestamp("updatedAt"),
		SpamStatus:       types.SpamStatus(d.str("spamStatus")),
		SpamReason:       types.SpamReason(d.str("spamReason")),
		SpamReviewedAt:   d.timestamp("spamReviewedAt"),
		SummaryShort:     d.str("summaryShort"),
		SummaryLong:      d.str("summaryLong"),
		SummaryUpdatedAt: d.timestamp("summaryUpdatedAt"),
	}
}

func (d document) merge(p types.PostPatch) {
	if p.SpamStatus != nil {
		d["spamStatus"] = string(*p.SpamStatus)
	}
	if p.SpamReason != nil {
		d["spamReason"] = string(*p.SpamReason)
	}
	if p.SpamReviewedAt != nil {
		d["spamReviewedAt"] = formatTime(*p.SpamReviewedAt)
	}
	if p.SummaryShort != nil {
		d["summaryShort"] = *p.SummaryShort
	}
	if p.SummaryLong != nil {
		d["summaryLong"] = *p.SummaryLong
	}
	if p.SummaryUpdatedAt != nil {
		d["summaryUpdatedAt"] = formatTime(*p.SummaryUpdatedAt)
	}
}

func fromPost(p types.Post) document {
	d := document{
		"id":        p.ID,
		"authorKey": p.AuthorKey,
		"content":   p.Content,
	}
	setTime := func(key string, t time.Time) {
		if !t.IsZero() {
			d[key] = formatTime(t)
		}
	}
	setString := func(key, v string) {
		if v != "" {
			d[key] = v
		}
	}
	setTime("createdAt", p.CreatedAt)
	setTime("updatedAt", p.UpdatedAt)
	setString("spamStatus", string(p.SpamStatus))
	setString("spamReason", string(p.SpamReason))
	setTime("spamReviewedAt", p.SpamReviewedAt)
	setString("summaryShort", p.SummaryShort)
	setString("summaryLong", p.SummaryLong)
	setTime("summaryUpdatedAt", p.SummaryUpdatedAt)
	return d
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// DecodePosts reads a JSON array of documents using the external field
// names, with the same lenient timestamp handling as the JSON-file backend.
func DecodePosts(r io.Reader) ([]types.Post, error) {
	docs, err := decodeDocuments(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode posts: %w", err)
	}
	posts := make([]types.Post, len(docs))
	for i, d := range docs {
		posts[i] = d.post()
	}
	return posts, nil
}

// EncodePosts writes posts as an indented JSON array of documents.
func EncodePosts(w io.Writer, posts []types.Post) error {
	docs := make([]document, len(posts))
	for i, p := range posts {
		docs[i] = fromPost(p)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(docs)
}
