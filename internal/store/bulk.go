package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	apperrors "github.com/Aman-CERP/fttf/internal/errors"
)

// exportBatchSize is the number of rows per exported line.
const exportBatchSize = 500

// ExportBatch is one line of an export stream. Exactly one field is set.
type ExportBatch struct {
	Documents []Document       `json:"documents,omitempty"`
	Fragments []ExportFragment `json:"fragments,omitempty"`
}

// ExportFragment is a fragment detached from its row id. It points at its
// document by URL so the stream can be imported into another database.
type ExportFragment struct {
	DocumentURL string    `json:"document_url"`
	Attribute   Attribute `json:"attribute"`
	Value       string    `json:"value"`
	Order       int       `json:"fragment_order"`
	CreatedAt   int64     `json:"created_at"`
	Vector      []byte    `json:"vector,omitempty"`
}

// BulkSummary counts rows moved by Export or Import.
type BulkSummary struct {
	Documents int `json:"documents"`
	Fragments int `json:"fragments"`
	Skipped   int `json:"skipped"`
}

// Export writes all documents, then all fragments, as JSON lines.
func Export(ctx context.Context, db DBTX, w io.Writer) (BulkSummary, error) {
	var sum BulkSummary
	enc := json.NewEncoder(w)

	rows, err := db.QueryContext(ctx, `SELECT `+documentColumns+` FROM document ORDER BY id`)
	if err != nil {
		return sum, exportError(err)
	}
	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			_ = rows.Close()
			return sum, exportError(err)
		}
		docs = append(docs, *d)
		if len(docs) == exportBatchSize {
			if err := enc.Encode(ExportBatch{Documents: docs}); err != nil {
				_ = rows.Close()
				return sum, exportError(err)
			}
			sum.Documents += len(docs)
			docs = docs[:0]
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return sum, exportError(err)
	}
	_ = rows.Close()
	if len(docs) > 0 {
		if err := enc.Encode(ExportBatch{Documents: docs}); err != nil {
			return sum, exportError(err)
		}
		sum.Documents += len(docs)
	}

	rows, err = db.QueryContext(ctx, `
		SELECT d.url, f.attribute, f.value, f.fragment_order, f.created_at, f.content_vector
		FROM document_fragment f JOIN document d ON d.id = f.entity_id
		ORDER BY f.id`)
	if err != nil {
		return sum, exportError(err)
	}
	defer func() { _ = rows.Close() }()

	var frags []ExportFragment
	for rows.Next() {
		var f ExportFragment
		var attr string
		if err := rows.Scan(&f.DocumentURL, &attr, &f.Value, &f.Order, &f.CreatedAt, &f.Vector); err != nil {
			return sum, exportError(err)
		}
		f.Attribute = Attribute(attr)
		frags = append(frags, f)
		if len(frags) == exportBatchSize {
			if err := enc.Encode(ExportBatch{Fragments: frags}); err != nil {
				return sum, exportError(err)
			}
			sum.Fragments += len(frags)
			frags = frags[:0]
		}
	}
	if err := rows.Err(); err != nil {
		return sum, exportError(err)
	}
	if len(frags) > 0 {
		if err := enc.Encode(ExportBatch{Fragments: frags}); err != nil {
			return sum, exportError(err)
		}
		sum.Fragments += len(frags)
	}
	return sum, nil
}

// Import reads an Export stream in one transaction. Rows whose URL or
// fragment key already exist are skipped, so importing twice is harmless.
// Fragments whose document is unknown are skipped.
func Import(ctx context.Context, db DBTX, r io.Reader) (BulkSummary, error) {
	var sum BulkSummary
	dec := json.NewDecoder(r)

	err := InTx(ctx, db, func(tx DBTX) error {
		ids := make(map[string]int64)
		for {
			var batch ExportBatch
			err := dec.Decode(&batch)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("invalid export line: %w", err)
			}
			for _, d := range batch.Documents {
				ok, err := importDocument(ctx, tx, d)
				if err != nil {
					return err
				}
				if ok {
					sum.Documents++
				} else {
					sum.Skipped++
				}
			}
			for _, f := range batch.Fragments {
				ok, err := importFragment(ctx, tx, ids, f)
				if err != nil {
					return err
				}
				if ok {
					sum.Fragments++
				} else {
					sum.Skipped++
				}
			}
		}
	})
	if err != nil {
		return BulkSummary{}, apperrors.New(apperrors.ErrCodeImportFailed, "import failed", err)
	}
	return sum, nil
}

func importDocument(ctx context.Context, tx DBTX, d Document) (bool, error) {
	if d.URL == "" {
		return false, nil
	}
	if d.MdContent != "" && d.MdContentHash == "" {
		d.MdContentHash = ContentHash(d.MdContent)
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO document (title, url, excerpt, md_content, md_content_hash, publication_date,
			hostname, last_visit, last_visit_date, extractor, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (url) DO NOTHING`,
		nullString(d.Title), d.URL, nullString(d.Excerpt), nullString(d.MdContent),
		nullString(d.MdContentHash), nullInt(d.PublicationDate), nullString(d.Hostname),
		nullInt(d.LastVisit), nullString(d.LastVisitDate), nullString(d.Extractor),
		d.CreatedAt, nullInt(d.UpdatedAt))
	if err != nil {
		return false, fmt.Errorf("failed to import document %s: %w", d.URL, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func importFragment(ctx context.Context, tx DBTX, ids map[string]int64, f ExportFragment) (bool, error) {
	if !f.Attribute.Valid() || f.Value == "" {
		return false, nil
	}
	id, ok := ids[f.DocumentURL]
	if !ok {
		err := tx.QueryRowContext(ctx, `SELECT id FROM document WHERE url = ?`, f.DocumentURL).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		if err != nil {
			return false, fmt.Errorf("failed to resolve %s: %w", f.DocumentURL, err)
		}
		ids[f.DocumentURL] = id
	}
	var vec any
	if len(f.Vector) > 0 {
		if len(f.Vector) != EmbeddingDimensions*4 {
			return false, nil
		}
		vec = f.Vector
	}
	res, err := tx.ExecContext(ctx, `
		INSERT INTO document_fragment (entity_id, attribute, value, fragment_order, created_at, content_vector)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (entity_id, attribute, value, fragment_order) DO NOTHING`,
		id, string(f.Attribute), f.Value, f.Order, f.CreatedAt, vec)
	if err != nil {
		return false, fmt.Errorf("failed to import fragment: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func exportError(err error) error {
	return apperrors.New(apperrors.ErrCodeExportFailed, "export failed", err)
}
