// Package migrate applies versioned, forward-only schema migrations.
//
// Applied versions are recorded in a migrations table. Each pending migration
// runs in its own transaction together with its record, so a failure leaves
// every earlier migration applied and every later one pending.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"time"

	apperrors "github.com/Aman-CERP/fttf/internal/errors"
)

// Migration is one schema change.
type Migration struct {
	Version     int
	Name        string
	Description string
	SQL         string
}

// Record is a row of the migrations table.
type Record struct {
	Version     int
	Name        string
	Description string
	AppliedAt   time.Time
}

// Status describes the schema after Apply or Status.
type Status struct {
	OK               bool
	CurrentVersion   int
	AvailableVersion int
	PendingCount     int
	Err              error
}

// Manager tracks registered migrations for one database.
type Manager struct {
	db         *sql.DB
	migrations []Migration
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithClock overrides the clock used for applied_at.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a manager with no registered migrations.
func NewManager(db *sql.DB, opts ...Option) *Manager {
	m := &Manager{
		db:     db,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register adds a migration, keeping the set ordered by version.
func (m *Manager) Register(mig Migration) error {
	if mig.Version <= 0 {
		return apperrors.New(apperrors.ErrCodeInvalidMigration, fmt.Sprintf("migration version must be positive, got %d", mig.Version), nil).
			WithDetail("name", mig.Name)
	}
	for _, existing := range m.migrations {
		if existing.Version == mig.Version {
			return apperrors.New(apperrors.ErrCodeInvalidMigration, fmt.Sprintf("duplicate migration version %d", mig.Version), nil).
				WithDetail("name", mig.Name).
				WithDetail("existing", existing.Name)
		}
	}
	m.migrations = append(m.migrations, mig)
	sort.Slice(m.migrations, func(i, j int) bool {
		return m.migrations[i].Version < m.migrations[j].Version
	})
	return nil
}

// RegisterAll registers each migration, stopping at the first error.
func (m *Manager) RegisterAll(migs ...Migration) error {
	for _, mig := range migs {
		if err := m.Register(mig); err != nil {
			return err
		}
	}
	return nil
}

// AvailableVersion is the highest registered version, 0 when none.
func (m *Manager) AvailableVersion() int {
	if len(m.migrations) == 0 {
		return 0
	}
	return m.migrations[len(m.migrations)-1].Version
}

// Apply runs every migration newer than the recorded version, in order.
// Calling it again with nothing pending executes no migration SQL.
func (m *Manager) Apply(ctx context.Context) (Status, error) {
	status := Status{AvailableVersion: m.AvailableVersion()}

	if err := m.ensureTable(ctx); err != nil {
		return m.fail(status, 0, err)
	}

	current, err := m.currentVersion(ctx)
	if err != nil {
		return m.fail(status, 0, err)
	}
	status.CurrentVersion = current

	pending := m.pending(current)
	m.logger.Debug("migrations_pending",
		slog.Int("current_version", current),
		slog.Int("available_version", status.AvailableVersion),
		slog.Int("pending", len(pending)))

	for i, mig := range pending {
		start := time.Now()
		if err := m.applyOne(ctx, mig); err != nil {
			status.PendingCount = len(pending) - i
			m.logger.Error("migration_failed",
				slog.Int("version", mig.Version),
				slog.String("name", mig.Name),
				slog.String("error", err.Error()))
			return m.fail(status, status.PendingCount, apperrors.MigrationError(mig.Version, err))
		}
		status.CurrentVersion = mig.Version
		m.logger.Info("migration_applied",
			slog.Int("version", mig.Version),
			slog.String("name", mig.Name),
			slog.Duration("duration", time.Since(start)))
	}

	status.OK = true
	return status, nil
}

// Status reports the schema version without applying anything.
func (m *Manager) Status(ctx context.Context) (Status, error) {
	status := Status{AvailableVersion: m.AvailableVersion()}

	exists, err := m.tableExists(ctx)
	if err != nil {
		return m.fail(status, len(m.migrations), err)
	}
	if exists {
		status.CurrentVersion, err = m.currentVersion(ctx)
		if err != nil {
			return m.fail(status, len(m.migrations), err)
		}
	}
	status.PendingCount = len(m.pending(status.CurrentVersion))
	status.OK = status.PendingCount == 0
	return status, nil
}

// Applied lists the recorded migrations, oldest first.
func (m *Manager) Applied(ctx context.Context) ([]Record, error) {
	exists, err := m.tableExists(ctx)
	if err != nil || !exists {
		return nil, err
	}

	rows, err := m.db.QueryContext(ctx,
		`SELECT version, name, COALESCE(description, ''), applied_at FROM migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		var r Record
		var appliedAt int64
		if err := rows.Scan(&r.Version, &r.Name, &r.Description, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration: %w", err)
		}
		r.AppliedAt = time.UnixMilli(appliedAt)
		records = append(records, r)
	}
	return records, rows.Err()
}

func (m *Manager) fail(status Status, pending int, err error) (Status, error) {
	status.OK = false
	status.PendingCount = pending
	if pending == 0 {
		status.PendingCount = len(m.pending(status.CurrentVersion))
	}
	status.Err = err
	return status, err
}

func (m *Manager) pending(current int) []Migration {
	var out []Migration
	for _, mig := range m.migrations {
		if mig.Version > current {
			out = append(out, mig)
		}
	}
	return out
}

func (m *Manager) applyOne(ctx context.Context, mig Migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, mig.SQL); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO migrations (version, name, description, applied_at) VALUES (?, ?, ?, ?)`,
		mig.Version, mig.Name, mig.Description, m.now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}

func (m *Manager) tableExists(ctx context.Context) (bool, error) {
	var n int
	err := m.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'migrations'`).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check migrations table: %w", err)
	}
	return n > 0, nil
}

// ensureTable creates the migrations table, or adds the name and description
// columns to a table created by an older schema that only tracked versions.
func (m *Manager) ensureTable(ctx context.Context) error {
	if _, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS migrations (
			id INTEGER PRIMARY KEY,
			version INTEGER UNIQUE NOT NULL,
			name TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			applied_at INTEGER NOT NULL
		)`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	cols, err := m.columns(ctx)
	if err != nil {
		return err
	}
	upgrades := []struct{ column, ddl string }{
		{"name", `ALTER TABLE migrations ADD COLUMN name TEXT NOT NULL DEFAULT 'legacy_migration'`},
		{"description", `ALTER TABLE migrations ADD COLUMN description TEXT`},
	}
	for _, u := range upgrades {
		if cols[u.column] {
			continue
		}
		m.logger.Warn("migrations_table_upgrade", slog.String("column", u.column))
		if _, err := m.db.ExecContext(ctx, u.ddl); err != nil {
			return fmt.Errorf("failed to upgrade migrations table: %w", err)
		}
	}
	return nil
}

func (m *Manager) columns(ctx context.Context) (map[string]bool, error) {
	rows, err := m.db.QueryContext(ctx, `SELECT name FROM pragma_table_info('migrations')`)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect migrations table: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cols := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

func (m *Manager) currentVersion(ctx context.Context) (int, error) {
	var v int
	if err := m.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(version), 0) FROM migrations`).Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read migration version: %w", err)
	}
	return v, nil
}
