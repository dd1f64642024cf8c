package store

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

const documentColumns = `id, title, url, excerpt, md_content, md_content_hash, publication_date,
	hostname, last_visit, last_visit_date, extractor, created_at, updated_at`

// DocumentStore reads and writes the document table.
type DocumentStore struct {
	db  DBTX
	now func() time.Time
}

// NewDocumentStore returns a store over db, which may be a pool or a transaction.
func NewDocumentStore(db DBTX) *DocumentStore {
	return &DocumentStore{db: db, now: time.Now}
}

// WithTx returns a copy of the store bound to tx.
func (s *DocumentStore) WithTx(tx DBTX) *DocumentStore {
	return &DocumentStore{db: tx, now: s.now}
}

// SetClock overrides the clock used for updated_at and visit bookkeeping.
func (s *DocumentStore) SetClock(now func() time.Time) {
	s.now = now
}

// ContentHash returns the MD5 hex digest of markdown, or "" for empty input.
// Equal hashes do not imply equal documents; the hash is not unique.
func ContentHash(markdown string) string {
	if markdown == "" {
		return ""
	}
	sum := md5.Sum([]byte(markdown))
	return hex.EncodeToString(sum[:])
}

// VisitDate formats t as the YYYY-MM-DD value stored in last_visit_date.
func VisitDate(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// FindByURL returns the document stored under url, or nil.
func (s *DocumentStore) FindByURL(ctx context.Context, url string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM document WHERE url = ? LIMIT 1`, url)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find document: %w", err)
	}
	return doc, nil
}

// Get returns the document with id, or nil.
func (s *DocumentStore) Get(ctx context.Context, id int64) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM document WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %d: %w", id, err)
	}
	return doc, nil
}

// Touch records a visit to url without changing content. It reports whether
// a document was found.
func (s *DocumentStore) Touch(ctx context.Context, url string, at time.Time) (bool, error) {
	ms := at.UnixMilli()
	res, err := s.db.ExecContext(ctx, `
		UPDATE document SET
			updated_at = MAX(COALESCE(updated_at, 0), ?1),
			last_visit_date = CASE WHEN ?1 >= COALESCE(last_visit, 0) THEN ?2 ELSE last_visit_date END,
			last_visit = MAX(COALESCE(last_visit, 0), ?1)
		WHERE url = ?3`,
		ms, VisitDate(at), url)
	if err != nil {
		return false, fmt.Errorf("failed to touch document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Upsert stores doc keyed on its URL.
//
// An existing row keeps its title and creation time; excerpt and content are
// only replaced by non-empty values, and the timestamps only move forward.
// Upsert then returns nil. A new URL is inserted and the stored row returned.
// The content hash is derived from MdContent.
func (s *DocumentStore) Upsert(ctx context.Context, doc Document) (*Document, error) {
	if doc.URL == "" {
		return nil, fmt.Errorf("document url is required")
	}
	now := s.now()
	if doc.MdContent != "" {
		doc.MdContentHash = ContentHash(doc.MdContent)
	}
	if doc.LastVisit == 0 {
		doc.LastVisit = now.UnixMilli()
		doc.LastVisitDate = VisitDate(now)
	}
	if doc.UpdatedAt == 0 {
		doc.UpdatedAt = now.UnixMilli()
	}
	if doc.CreatedAt == 0 {
		doc.CreatedAt = now.UnixMilli()
	}

	var inserted *Document
	err := InTx(ctx, s.db, func(tx DBTX) error {
		var id int64
		err := tx.QueryRowContext(ctx, `SELECT id FROM document WHERE url = ?`, doc.URL).Scan(&id)
		switch {
		case err == nil:
			return updateDocument(ctx, tx, id, doc)
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("failed to look up document: %w", err)
		}

		row := tx.QueryRowContext(ctx, `
			INSERT INTO document (title, url, excerpt, md_content, md_content_hash, publication_date,
				hostname, last_visit, last_visit_date, extractor, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING `+documentColumns,
			nullString(doc.Title), doc.URL, nullString(doc.Excerpt), nullString(doc.MdContent),
			nullString(doc.MdContentHash), nullInt(doc.PublicationDate), nullString(doc.Hostname),
			doc.LastVisit, nullString(doc.LastVisitDate), nullString(doc.Extractor),
			doc.CreatedAt, doc.UpdatedAt)
		inserted, err = scanDocument(row)
		if err != nil {
			return fmt.Errorf("failed to insert document: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

func updateDocument(ctx context.Context, tx DBTX, id int64, doc Document) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE document SET
			excerpt = COALESCE(?1, excerpt),
			md_content = COALESCE(?2, md_content),
			md_content_hash = COALESCE(?3, md_content_hash),
			updated_at = MAX(COALESCE(updated_at, 0), ?4),
			last_visit_date = CASE WHEN ?5 >= COALESCE(last_visit, 0) THEN COALESCE(?6, last_visit_date) ELSE last_visit_date END,
			last_visit = MAX(COALESCE(last_visit, 0), ?5)
		WHERE id = ?7`,
		nullString(doc.Excerpt), nullString(doc.MdContent), nullString(doc.MdContentHash),
		doc.UpdatedAt, doc.LastVisit, nullString(doc.LastVisitDate), id)
	if err != nil {
		return fmt.Errorf("failed to update document %d: %w", id, err)
	}
	return nil
}

// Count returns the number of documents.
func (s *DocumentStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM document`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

// MissingFragments returns ids of documents with content but without any
// content fragment.
func (s *DocumentStore) MissingFragments(ctx context.Context) ([]int64, error) {
	return queryIDs(ctx, s.db, `
		SELECT d.id FROM document d
		WHERE d.md_content IS NOT NULL
		  AND NOT EXISTS (
			SELECT 1 FROM document_fragment f
			WHERE f.entity_id = d.id AND f.attribute = 'content')
		ORDER BY d.id`)
}

// Delete removes a document and, by cascade, its fragments.
func (s *DocumentStore) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM document WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete document %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var d Document
	var title, excerpt, content, hash, host, date, extractor sql.NullString
	var publication, lastVisit, updated sql.NullInt64
	if err := row.Scan(&d.ID, &title, &d.URL, &excerpt, &content, &hash, &publication,
		&host, &lastVisit, &date, &extractor, &d.CreatedAt, &updated); err != nil {
		return nil, err
	}
	d.Title = title.String
	d.Excerpt = excerpt.String
	d.MdContent = content.String
	d.MdContentHash = hash.String
	d.PublicationDate = publication.Int64
	d.Hostname = host.String
	d.LastVisit = lastVisit.Int64
	d.LastVisitDate = date.String
	d.Extractor = extractor.String
	d.UpdatedAt = updated.Int64
	return &d, nil
}
