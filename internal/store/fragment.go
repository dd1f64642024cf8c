package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/Aman-CERP/fttf/internal/errors"
)

// FragmentStore reads and writes document_fragment. The full-text table
// follows every write through triggers.
type FragmentStore struct {
	db  DBTX
	now func() time.Time
}

// NewFragmentStore returns a store over db, which may be a pool or a transaction.
func NewFragmentStore(db DBTX) *FragmentStore {
	return &FragmentStore{db: db, now: time.Now}
}

// WithTx returns a copy of the store bound to tx.
func (s *FragmentStore) WithTx(tx DBTX) *FragmentStore {
	return &FragmentStore{db: tx, now: s.now}
}

// Upsert writes the fragments of one document in a single transaction and
// returns how many rows were new. Title, excerpt and url sit at order 0;
// content fragments are numbered from 0 after blank ones are dropped.
// Fragments already present are left untouched.
func (s *FragmentStore) Upsert(ctx context.Context, documentID int64, in FragmentInput) (int, error) {
	type triple struct {
		attr  Attribute
		value string
		order int
	}
	var triples []triple
	if in.Title != "" {
		triples = append(triples, triple{AttributeTitle, in.Title, 0})
	}
	if in.Excerpt != "" {
		triples = append(triples, triple{AttributeExcerpt, in.Excerpt, 0})
	}
	if in.URL != "" {
		triples = append(triples, triple{AttributeURL, in.URL, 0})
	}
	order := 0
	for _, c := range in.Content {
		if strings.TrimSpace(c) == "" {
			continue
		}
		triples = append(triples, triple{AttributeContent, c, order})
		order++
	}
	if len(triples) == 0 {
		return 0, nil
	}

	created := s.now().UnixMilli()
	inserted := 0
	err := InTx(ctx, s.db, func(tx DBTX) error {
		for _, t := range triples {
			res, err := tx.ExecContext(ctx, `
				INSERT INTO document_fragment (entity_id, attribute, value, fragment_order, created_at)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT (entity_id, attribute, value, fragment_order) DO NOTHING`,
				documentID, string(t.attr), t.value, t.order, created)
			if err != nil {
				return fmt.Errorf("failed to insert %s fragment: %w", t.attr, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// Get returns the fragment with id, including its vector, or nil.
func (s *FragmentStore) Get(ctx context.Context, id int64) (*Fragment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, entity_id, attribute, value, fragment_order, created_at, content_vector
		FROM document_fragment WHERE id = ?`, id)
	f, err := scanFragment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fragment %d: %w", id, err)
	}
	return f, nil
}

// ListByDocument returns a document's fragments by attribute and order.
func (s *FragmentStore) ListByDocument(ctx context.Context, documentID int64) ([]Fragment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_id, attribute, value, fragment_order, created_at, content_vector
		FROM document_fragment WHERE entity_id = ?
		ORDER BY CASE attribute WHEN 'title' THEN 0 WHEN 'excerpt' THEN 1 WHEN 'url' THEN 2 ELSE 3 END,
			fragment_order, id`, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list fragments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Fragment
	for rows.Next() {
		f, err := scanFragment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fragment: %w", err)
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// MissingVectors returns ids of fragments without an embedding, lowest first.
// A limit of 0 or less returns all of them.
func (s *FragmentStore) MissingVectors(ctx context.Context, limit int) ([]int64, error) {
	query := `SELECT id FROM document_fragment WHERE content_vector IS NULL ORDER BY id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return queryIDs(ctx, s.db, query, args...)
}

// MissingVectorsForDocument returns ids of a document's fragments without an embedding.
func (s *FragmentStore) MissingVectorsForDocument(ctx context.Context, documentID int64) ([]int64, error) {
	return queryIDs(ctx, s.db,
		`SELECT id FROM document_fragment WHERE entity_id = ? AND content_vector IS NULL ORDER BY id`,
		documentID)
}

func queryIDs(ctx context.Context, db DBTX, query string, args ...any) ([]int64, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ids: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetVector stores the embedding of fragment id.
func (s *FragmentStore) SetVector(ctx context.Context, id int64, vec []float32) error {
	if len(vec) != EmbeddingDimensions {
		return apperrors.New(apperrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("embedding has %d dimensions, want %d", len(vec), EmbeddingDimensions), nil)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE document_fragment SET content_vector = ? WHERE id = ?`, EncodeVector(vec), id)
	if err != nil {
		return fmt.Errorf("failed to store vector for fragment %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.NotFoundError("fragment", fmt.Sprint(id))
	}
	return nil
}

// Vectors calls fn for every stored embedding in id order. Iteration stops
// at the first error fn returns.
func (s *FragmentStore) Vectors(ctx context.Context, fn func(id int64, vec []float32) error) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content_vector FROM document_fragment WHERE content_vector IS NOT NULL ORDER BY id`)
	if err != nil {
		return fmt.Errorf("failed to read vectors: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var id int64
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return err
		}
		vec, err := DecodeVector(blob)
		if err != nil {
			return fmt.Errorf("fragment %d: %w", id, err)
		}
		if err := fn(id, vec); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Count returns the number of fragments.
func (s *FragmentStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM document_fragment`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count fragments: %w", err)
	}
	return n, nil
}

// CountWithVectors returns the number of embedded fragments.
func (s *FragmentStore) CountWithVectors(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM document_fragment WHERE content_vector IS NOT NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count vectors: %w", err)
	}
	return n, nil
}

// RebuildFullText regenerates document_fragment_fts from the fragment table.
func (s *FragmentStore) RebuildFullText(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO document_fragment_fts(document_fragment_fts) VALUES ('rebuild')`); err != nil {
		return fmt.Errorf("failed to rebuild full-text index: %w", err)
	}
	return nil
}

func scanFragment(row rowScanner) (*Fragment, error) {
	var f Fragment
	var attr string
	var blob []byte
	if err := row.Scan(&f.ID, &f.EntityID, &attr, &f.Value, &f.Order, &f.CreatedAt, &blob); err != nil {
		return nil, err
	}
	f.Attribute = Attribute(attr)
	vec, err := DecodeVector(blob)
	if err != nil {
		return nil, err
	}
	f.Vector = vec
	return &f, nil
}
