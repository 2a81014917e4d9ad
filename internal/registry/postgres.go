package registry

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"

	// Postgres driver
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// PostgresStore persists worker definitions in Postgres.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore connects and runs pending migrations.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect worker store: %w", err)
	}
	store := &PostgresStore{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewPostgresStoreFromDB wraps an existing connection without migrating.
func NewPostgresStoreFromDB(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) migrate() error {
	source, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	driver, err := postgres.WithInstance(s.db.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

type workerRow struct {
	ID       string `db:"id"`
	Name     string `db:"name"`
	CodeCID  string `db:"code_cid"`
	Metadata []byte `db:"metadata"`
	Active   bool   `db:"active"`
}

func (r workerRow) definition() *WorkerDefinition {
	def := &WorkerDefinition{ID: r.ID, Name: r.Name, CodeCID: r.CodeCID, Active: r.Active}
	if len(r.Metadata) > 0 {
		_ = json.Unmarshal(r.Metadata, &def.Metadata)
	}
	return def
}

// Get returns the definition by id.
func (s *PostgresStore) Get(ctx context.Context, id string) (*WorkerDefinition, error) {
	var row workerRow
	err := s.db.GetContext(ctx, &row,
		`SELECT id, name, code_cid, metadata, active FROM workers WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWorkerNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.definition(), nil
}

// GetByCID returns the definition by code content id.
func (s *PostgresStore) GetByCID(ctx context.Context, cid string) (*WorkerDefinition, error) {
	var row workerRow
	err := s.db.GetContext(ctx, &row,
		`SELECT id, name, code_cid, metadata, active FROM workers WHERE code_cid = $1`, cid)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWorkerNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.definition(), nil
}

// ListActive returns every active definition.
func (s *PostgresStore) ListActive(ctx context.Context) ([]*WorkerDefinition, error) {
	var rows []workerRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT id, name, code_cid, metadata, active FROM workers WHERE active ORDER BY id`); err != nil {
		return nil, err
	}
	defs := make([]*WorkerDefinition, 0, len(rows))
	for _, r := range rows {
		defs = append(defs, r.definition())
	}
	return defs, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
