// ABOUTME: Persisted catalog of published metadata descriptors
// ABOUTME: SQLite or PostgreSQL storage with goose-managed schema

package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/nainya/searchmeta/internal/metrics"
	"github.com/nainya/searchmeta/pkg/catalog/migrations"
	"github.com/nainya/searchmeta/pkg/metadata"
)

// ErrNotFound is returned when no snapshot has been published yet
var ErrNotFound = errors.New("catalog: snapshot not found")

// Dialect selects the SQL flavour of the catalog database
type Dialect string

const (
	SQLite   Dialect = "sqlite3"
	Postgres Dialect = "postgres"
)

// Publish results recorded in metrics
const (
	ResultChanged   = "changed"
	ResultUnchanged = "unchanged"
	ResultError     = "error"
)

// DialectForDriver maps a database/sql driver name to its dialect
func DialectForDriver(driver string) (Dialect, error) {
	switch driver {
	case "sqlite":
		return SQLite, nil
	case "pgx", "postgres":
		return Postgres, nil
	default:
		return "", fmt.Errorf("catalog: unsupported driver %q", driver)
	}
}

// Snapshot is one published version of a descriptor
type Snapshot struct {
	ID           string
	Entity       string
	IndexManager string
	Seq          int64
	Checksum     string
	Descriptor   metadata.Descriptor
	PublishedAt  time.Time
}

// Catalog stores descriptor snapshots keyed by entity and index manager
type Catalog struct {
	db      *sql.DB
	dialect Dialect
	log     zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Catalog
type Option func(*Catalog)

// WithLogger sets the catalog logger
func WithLogger(log zerolog.Logger) Option {
	return func(c *Catalog) { c.log = log }
}

// WithMetrics records publishes
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Catalog) { c.metrics = m }
}

// WithClock overrides the publish timestamp source
func WithClock(now func() time.Time) Option {
	return func(c *Catalog) { c.now = now }
}

// Open connects to the catalog database and migrates its schema. driver is
// "sqlite" or "pgx".
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Catalog, error) {
	dialect, err := DialectForDriver(driver)
	if err != nil {
		return nil, err
	}
	if driver == "postgres" {
		driver = "pgx"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	if dialect == SQLite {
		// one connection keeps in-memory databases alive and serializes writers
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping catalog: %w", err)
	}

	c, err := New(ctx, db, dialect, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

// New wraps an open database and migrates its schema
func New(ctx context.Context, db *sql.DB, dialect Dialect, opts ...Option) (*Catalog, error) {
	c := newCatalog(db, dialect, opts...)
	if err := c.migrate(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func newCatalog(db *sql.DB, dialect Dialect, opts ...Option) *Catalog {
	c := &Catalog{
		db:      db,
		dialect: dialect,
		log:     zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// goose keeps its base FS, dialect and logger in package state
var gooseMu sync.Mutex

// gooseUp is a seam for tests
var gooseUp = func(ctx context.Context, db *sql.DB, dir string) error {
	return goose.UpContext(ctx, db, dir)
}

func (c *Catalog) migrate(ctx context.Context) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(gooseLogger{log: c.log})
	if err := goose.SetDialect(string(c.dialect)); err != nil {
		return fmt.Errorf("catalog dialect: %w", err)
	}
	if err := gooseUp(ctx, c.db, "."); err != nil {
		return fmt.Errorf("migrate catalog: %w", err)
	}
	return nil
}

// gooseLogger routes goose output through zerolog
type gooseLogger struct {
	log zerolog.Logger
}

func (l gooseLogger) Printf(format string, v ...interface{}) {
	l.log.Debug().Str("component", "migrations").Msgf(format, v...)
}

func (l gooseLogger) Fatalf(format string, v ...interface{}) {
	l.log.Fatal().Str("component", "migrations").Msgf(format, v...)
}

const selectSnapshot = `SELECT id, entity, index_manager, seq, checksum, descriptor, published_at
FROM metadata_snapshots
WHERE entity = ? AND index_manager = ?
ORDER BY seq DESC`

// Publish stores d unless it matches the latest snapshot of the same entity
// and index manager. changed reports whether a new snapshot was written.
func (c *Catalog) Publish(ctx context.Context, d metadata.Descriptor) (snap Snapshot, changed bool, err error) {
	defer func() {
		switch {
		case err != nil:
			c.metrics.RecordPublish(ResultError)
		case changed:
			c.metrics.RecordPublish(ResultChanged)
		default:
			c.metrics.RecordPublish(ResultUnchanged)
		}
	}()

	checksum, err := d.Checksum()
	if err != nil {
		return Snapshot{}, false, err
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return Snapshot{}, false, fmt.Errorf("encode descriptor %s: %w", d.Entity, err)
	}

	err = withTx(ctx, c.db, func(ctx context.Context, tx dbtx) error {
		latest, err := c.scanOne(tx.QueryRowContext(ctx, rebind(c.dialect, selectSnapshot+" LIMIT 1"), d.Entity, d.IndexManager))
		switch {
		case errors.Is(err, ErrNotFound):
		case err != nil:
			return err
		case latest.Checksum == checksum:
			snap = latest
			return nil
		}

		snap = Snapshot{
			ID:           uuid.NewString(),
			Entity:       d.Entity,
			IndexManager: d.IndexManager,
			Seq:          latest.Seq + 1,
			Checksum:     checksum,
			Descriptor:   d,
			PublishedAt:  c.now().UTC().Truncate(time.Millisecond),
		}
		_, err = tx.ExecContext(ctx, rebind(c.dialect, `INSERT INTO metadata_snapshots
			(id, entity, index_manager, seq, checksum, descriptor, published_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`),
			snap.ID, snap.Entity, snap.IndexManager, snap.Seq, snap.Checksum, string(raw), snap.PublishedAt.UnixMilli())
		if err != nil {
			return fmt.Errorf("insert snapshot %s: %w", d.Entity, err)
		}
		changed = true
		return nil
	})
	if err != nil {
		c.log.Error().Err(err).Str("entity", d.Entity).Msg("Failed to publish metadata snapshot")
		return Snapshot{}, false, err
	}

	c.log.Info().
		Str("entity", snap.Entity).
		Str("index_manager", snap.IndexManager).
		Int64("seq", snap.Seq).
		Str("checksum", snap.Checksum).
		Bool("changed", changed).
		Msg("Published metadata snapshot")
	return snap, changed, nil
}

// Latest returns the newest snapshot of entity for indexManager
func (c *Catalog) Latest(ctx context.Context, entity, indexManager string) (Snapshot, error) {
	return c.scanOne(c.db.QueryRowContext(ctx, rebind(c.dialect, selectSnapshot+" LIMIT 1"), entity, indexManager))
}

// History returns snapshots newest first. A limit <= 0 returns all of them.
func (c *Catalog) History(ctx context.Context, entity, indexManager string, limit int) ([]Snapshot, error) {
	query := selectSnapshot
	args := []any{entity, indexManager}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := c.db.QueryContext(ctx, rebind(c.dialect, query), args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots of %s: %w", entity, err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		s, err := c.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots of %s: %w", entity, err)
	}
	return out, nil
}

// Close closes the database
func (c *Catalog) Close() error {
	return c.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func (c *Catalog) scanOne(row *sql.Row) (Snapshot, error) {
	s, err := c.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, ErrNotFound
	}
	return s, err
}

func (c *Catalog) scan(row scanner) (Snapshot, error) {
	var (
		s           Snapshot
		raw         string
		publishedAt int64
	)
	if err := row.Scan(&s.ID, &s.Entity, &s.IndexManager, &s.Seq, &s.Checksum, &raw, &publishedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Snapshot{}, err
		}
		return Snapshot{}, fmt.Errorf("scan snapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &s.Descriptor); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot %s: %w", s.ID, err)
	}
	s.PublishedAt = time.UnixMilli(publishedAt).UTC()
	return s, nil
}
