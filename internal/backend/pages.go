package backend

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/Aman-CERP/fttf/internal/blacklist"
	apperrors "github.com/Aman-CERP/fttf/internal/errors"
	"github.com/Aman-CERP/fttf/internal/queue"
	"github.com/Aman-CERP/fttf/internal/store"
	"github.com/Aman-CERP/fttf/internal/tasks"
)

// PageStatus tells the extractor whether a page is worth extracting.
type PageStatus struct {
	ShouldIndex   bool                 `json:"shouldIndex"`
	IndexLevel    blacklist.IndexLevel `json:"indexLevel,omitempty"`
	NormalizedURL string               `json:"normalizedUrl,omitempty"`
	DocumentID    int64                `json:"documentId,omitempty"`
	Error         string               `json:"error,omitempty"`
}

// PagePayload is a page capture produced by the content extractor.
type PagePayload struct {
	URL             string `json:"url"`
	Title           string `json:"title,omitempty"`
	Excerpt         string `json:"excerpt,omitempty"`
	MdContent       string `json:"mdContent,omitempty"`
	TextContent     string `json:"textContent,omitempty"`
	PublicationDate string `json:"publicationDate,omitempty"`
	SiteName        string `json:"siteName,omitempty"`
	Extractor       string `json:"extractor,omitempty"`
}

// IndexResult reports what IndexPage stored.
type IndexResult struct {
	DocumentID int64                `json:"documentId,omitempty"`
	Inserted   bool                 `json:"inserted"`
	Level      blacklist.IndexLevel `json:"level"`
	Queued     bool                 `json:"queued"`
	Message    string               `json:"message"`
}

var publicationLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// parsePublicationDate returns epoch milliseconds, or 0 when s is empty or
// in no known layout.
func parsePublicationDate(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	for _, layout := range publicationLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli()
		}
	}
	return 0
}

// GetPageStatus normalizes and classifies rawURL and records the visit if
// the page is already stored. A page should be indexed when its level
// allows storage and no content has been stored for it yet.
//
// An unparseable URL is reported in PageStatus.Error rather than as an error.
func (b *Backend) GetPageStatus(ctx context.Context, rawURL string) (PageStatus, error) {
	return b.pageStatus(ctx, rawURL, true)
}

// PeekPageStatus is GetPageStatus without recording a visit.
func (b *Backend) PeekPageStatus(ctx context.Context, rawURL string) (PageStatus, error) {
	return b.pageStatus(ctx, rawURL, false)
}

func (b *Backend) pageStatus(ctx context.Context, rawURL string, touch bool) (PageStatus, error) {
	if err := b.ready(); err != nil {
		return PageStatus{}, err
	}

	normalized, err := blacklist.NormalizeURL(rawURL)
	if err != nil {
		return PageStatus{ShouldIndex: false, Error: err.Error()}, nil
	}
	level, err := b.rules.Classify(ctx, normalized)
	if err != nil {
		return PageStatus{}, err
	}

	status := PageStatus{IndexLevel: level, NormalizedURL: normalized}
	doc, err := b.docs.FindByURL(ctx, normalized)
	if err != nil {
		return PageStatus{}, err
	}
	if doc != nil {
		status.DocumentID = doc.ID
	}
	if doc != nil && touch {
		if _, err := b.docs.Touch(ctx, normalized, b.now()); err != nil {
			return PageStatus{}, err
		}
	}
	status.ShouldIndex = level.Indexable() && !doc.HasContent()

	b.logger.Debug("page_status",
		slog.String("url", normalized),
		slog.Bool("touched", touch && doc != nil),
		slog.String("level", string(level)),
		slog.Bool("should_index", status.ShouldIndex))
	return status, nil
}

// IndexPage stores a page capture. Content fields are kept only at level
// full; url_only pages keep their metadata. A newly stored page with
// content, or an existing page receiving content for the first time, gets a
// generate_fragments task and the queue is woken.
func (b *Backend) IndexPage(ctx context.Context, p PagePayload) (IndexResult, error) {
	if err := b.ready(); err != nil {
		return IndexResult{}, err
	}

	res, err := b.indexPage(ctx, p)
	if err != nil {
		b.logger.Error("index_page_failed",
			append(apperrors.LogAttrs(err), slog.String("url", p.URL))...)
		return IndexResult{}, err
	}
	b.logger.Info("page_indexed",
		slog.String("url", p.URL),
		slog.Int64("document_id", res.DocumentID),
		slog.String("level", string(res.Level)),
		slog.Bool("inserted", res.Inserted),
		slog.Bool("queued", res.Queued))
	if res.Queued {
		b.queue.Wake()
	}
	return res, nil
}

func (b *Backend) indexPage(ctx context.Context, p PagePayload) (IndexResult, error) {
	normalized, err := blacklist.NormalizeURL(p.URL)
	if err != nil {
		return IndexResult{}, err
	}
	level, err := b.rules.Classify(ctx, normalized)
	if err != nil {
		return IndexResult{}, err
	}
	if !level.Indexable() {
		return IndexResult{Level: level, Message: "page is blacklisted"}, nil
	}

	doc := store.Document{
		URL:       normalized,
		Title:     strings.TrimSpace(p.Title),
		Extractor: p.Extractor,
	}
	if u, err := url.Parse(normalized); err == nil {
		doc.Hostname = u.Hostname()
	}
	if level.StoresContent() {
		doc.Excerpt = strings.TrimSpace(p.Excerpt)
		doc.MdContent = p.MdContent
		doc.PublicationDate = parsePublicationDate(p.PublicationDate)
	}

	res := IndexResult{Level: level}
	err = store.InTx(ctx, b.db, func(tx store.DBTX) error {
		docs := b.docs.WithTx(tx)
		existing, err := docs.FindByURL(ctx, normalized)
		if err != nil {
			return err
		}

		inserted, err := docs.Upsert(ctx, doc)
		if err != nil {
			return err
		}

		var needsFragments bool
		switch {
		case inserted != nil:
			res.DocumentID = inserted.ID
			res.Inserted = true
			needsFragments = inserted.HasContent()
		case existing != nil:
			res.DocumentID = existing.ID
			needsFragments = !existing.HasContent() && doc.MdContent != ""
		}
		if !needsFragments {
			return nil
		}

		_, queued, err := b.queue.EnqueueTx(ctx, tx, queue.TypeGenerateFragments,
			tasks.GenerateFragmentsParams{DocumentID: res.DocumentID})
		if err != nil {
			return err
		}
		res.Queued = queued
		return nil
	})
	if err != nil {
		return IndexResult{}, err
	}

	switch {
	case res.Inserted && level == blacklist.LevelURLOnly:
		res.Message = "stored url only"
	case res.Inserted:
		res.Message = "stored"
	case res.Queued:
		res.Message = "updated with content"
	default:
		res.Message = "updated"
	}
	return res, nil
}

// NothingToIndex records a visit to a page the extractor had nothing to
// offer for. It reports whether the page was already stored.
func (b *Backend) NothingToIndex(ctx context.Context, rawURL string) (bool, error) {
	if err := b.ready(); err != nil {
		return false, err
	}
	normalized, err := blacklist.NormalizeURL(rawURL)
	if err != nil {
		return false, err
	}
	found, err := b.docs.Touch(ctx, normalized, b.now())
	if err != nil {
		return false, fmt.Errorf("failed to record visit: %w", err)
	}
	return found, nil
}
