package blacklist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/Aman-CERP/fttf/internal/errors"
	"github.com/Aman-CERP/fttf/internal/store"
)

// Rule is a row of blacklist_rule.
type Rule struct {
	ID        int64      `json:"id"`
	Pattern   string     `json:"pattern"`
	Level     IndexLevel `json:"level"`
	CreatedAt int64      `json:"created_at"`
}

// Classifier maps URLs to index levels using the stored rules.
type Classifier struct {
	db     store.DBTX
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithClock overrides the clock used for rule creation times.
func WithClock(now func() time.Time) Option {
	return func(c *Classifier) { c.now = now }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(c *Classifier) { c.logger = l }
}

// New returns a classifier over db.
func New(db store.DBTX, opts ...Option) *Classifier {
	c := &Classifier{db: db, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithTx returns a copy of the classifier bound to tx.
func (c *Classifier) WithTx(tx store.DBTX) *Classifier {
	cp := *c
	cp.db = tx
	return &cp
}

// Classify returns the level for an already normalized URL. A root URL also
// matches patterns written without the trailing slash.
func (c *Classifier) Classify(ctx context.Context, normalizedURL string) (IndexLevel, error) {
	u, err := url.Parse(normalizedURL)
	if err != nil {
		return "", invalidURL(normalizedURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return LevelNoIndex, nil
	}

	alt := strings.TrimSuffix(normalizedURL, "/")
	var level string
	err = c.db.QueryRowContext(ctx, `
		SELECT level FROM blacklist_rule
		WHERE ?1 LIKE pattern OR ?2 LIKE pattern
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, normalizedURL, alt).Scan(&level)
	switch {
	case err == nil:
		return IndexLevel(level), nil
	case !errors.Is(err, sql.ErrNoRows):
		return "", fmt.Errorf("failed to match blacklist rules: %w", err)
	}

	host := u.Hostname()
	if host == "localhost" || strings.HasSuffix(host, ".local") {
		return LevelNoIndex, nil
	}
	return LevelFull, nil
}

// AddRule creates a rule, or updates the level of an existing rule with the
// same pattern. Either way the rule becomes the newest and wins ties.
func (c *Classifier) AddRule(ctx context.Context, pattern string, level IndexLevel) (Rule, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return Rule{}, apperrors.ValidationError("rule pattern is required", nil)
	}
	if _, err := RuleLevel(string(level)); err != nil {
		return Rule{}, err
	}

	var r Rule
	var lvl string
	err := c.db.QueryRowContext(ctx, `
		INSERT INTO blacklist_rule (pattern, level, created_at)
		VALUES (?1, ?2, MAX(?3, COALESCE((SELECT MAX(created_at) + 1 FROM blacklist_rule), 0)))
		ON CONFLICT (pattern) DO UPDATE SET level = excluded.level, created_at = excluded.created_at
		RETURNING id, pattern, level, created_at`,
		pattern, string(level), c.now().UnixMilli()).Scan(&r.ID, &r.Pattern, &lvl, &r.CreatedAt)
	if err != nil {
		return Rule{}, fmt.Errorf("failed to add rule: %w", err)
	}
	r.Level = IndexLevel(lvl)
	c.logger.Info("blacklist_rule_added",
		slog.String("pattern", r.Pattern),
		slog.String("level", lvl))
	return r, nil
}

// RemoveRule deletes a rule and reports whether it existed.
func (c *Classifier) RemoveRule(ctx context.Context, id int64) (int64, bool, error) {
	var removed int64
	err := c.db.QueryRowContext(ctx, `DELETE FROM blacklist_rule WHERE id = ? RETURNING id`, id).Scan(&removed)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to remove rule %d: %w", id, err)
	}
	return removed, true, nil
}

// ListRules returns all rules, newest first.
func (c *Classifier) ListRules(ctx context.Context) ([]Rule, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, pattern, level, created_at FROM blacklist_rule ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []Rule
	for rows.Next() {
		var r Rule
		var lvl string
		if err := rows.Scan(&r.ID, &r.Pattern, &lvl, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Level = IndexLevel(lvl)
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// SeedDefaults installs DefaultRules when the table is empty and returns
// how many rules were inserted.
func (c *Classifier) SeedDefaults(ctx context.Context) (int, error) {
	inserted := 0
	err := store.InTx(ctx, c.db, func(tx store.DBTX) error {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM blacklist_rule`).Scan(&n); err != nil {
			return fmt.Errorf("failed to count rules: %w", err)
		}
		if n > 0 {
			return nil
		}
		created := c.now().UnixMilli()
		for _, r := range DefaultRules {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO blacklist_rule (pattern, level, created_at) VALUES (?, ?, ?)
				 ON CONFLICT (pattern) DO NOTHING`,
				r.Pattern, string(r.Level), created); err != nil {
				return fmt.Errorf("failed to seed rule %s: %w", r.Pattern, err)
			}
			inserted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if inserted > 0 {
		c.logger.Info("blacklist_seeded", slog.Int("rules", inserted))
	}
	return inserted, nil
}
