package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/bytelense/internal/common"
)

// Document is one stored JSON body.
type Document struct {
	Key       string
	Body      []byte
	UpdatedAt time.Time
}

// DocumentStore is a key/value document store partitioned by collection.
type DocumentStore interface {
	Get(ctx context.Context, collection, key string) (Document, error)
	Put(ctx context.Context, collection, key string, body []byte) error
	// Range returns documents whose keys fall in [from, to], ordered by key.
	Range(ctx context.Context, collection, from, to string) ([]Document, error)
}

type sqlDocumentStore struct {
	db     *DB
	logger *slog.Logger
}

// NewDocumentStore returns a DocumentStore backed by the documents table.
func NewDocumentStore(db *DB, logger *slog.Logger) DocumentStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &sqlDocumentStore{db: db, logger: logger}
}

func (s *sqlDocumentStore) Get(ctx context.Context, collection, key string) (Document, error) {
	query, args := entsql.Dialect(s.db.Dialect).
		Select("doc_key", "body", "updated_at").
		From(entsql.Table("documents")).
		Where(entsql.And(
			entsql.EQ("collection", collection),
			entsql.EQ("doc_key", key),
		)).
		Query()

	docs, err := s.query(ctx, query, args)
	if err != nil {
		s.logger.Error("documents.get.failed", "collection", collection, "key", key, "err", err)
		return Document{}, err
	}
	if len(docs) == 0 {
		return Document{}, fmt.Errorf("%s/%s: %w", collection, key, common.ErrNotFound)
	}
	return docs[0], nil
}

func (s *sqlDocumentStore) Put(ctx context.Context, collection, key string, body []byte) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	query, args := entsql.Dialect(s.db.Dialect).
		Insert("documents").
		Columns("collection", "doc_key", "body", "updated_at").
		Values(collection, key, string(body), now).
		OnConflict(
			entsql.ConflictColumns("collection", "doc_key"),
			entsql.ResolveWithNewValues(),
		).
		Query()

	if err := s.db.Driver.Exec(ctx, query, args, nil); err != nil {
		s.logger.Error("documents.put.failed", "collection", collection, "key", key, "err", err)
		return fmt.Errorf("put %s/%s: %w: %v", collection, key, common.ErrDatabase, err)
	}
	return nil
}

func (s *sqlDocumentStore) Range(ctx context.Context, collection, from, to string) ([]Document, error) {
	query, args := entsql.Dialect(s.db.Dialect).
		Select("doc_key", "body", "updated_at").
		From(entsql.Table("documents")).
		Where(entsql.And(
			entsql.EQ("collection", collection),
			entsql.GTE("doc_key", from),
			entsql.LTE("doc_key", to),
		)).
		OrderBy("doc_key").
		Query()

	docs, err := s.query(ctx, query, args)
	if err != nil {
		s.logger.Error("documents.range.failed", "collection", collection, "from", from, "to", to, "err", err)
		return nil, err
	}
	return docs, nil
}

func (s *sqlDocumentStore) query(ctx context.Context, query string, args []any) ([]Document, error) {
	rows := &entsql.Rows{}
	if err := s.db.Driver.Query(ctx, query, args, rows); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	defer func() { _ = rows.Close() }()

	var out []Document
	for rows.Next() {
		var (
			key, body, updated string
		)
		if err := rows.Scan(&key, &body, &updated); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", common.ErrDatabase, err)
		}
		ts, _ := time.Parse(time.RFC3339Nano, updated)
		out = append(out, Document{Key: key, Body: []byte(body), UpdatedAt: ts})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	return out, nil
}
