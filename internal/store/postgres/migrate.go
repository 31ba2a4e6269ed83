package postgres

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq" // database/sql driver used by golang-migrate
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrator applies the embedded schema migrations.
type Migrator struct {
	migrate *migrate.Migrate
}

// NewMigrator opens a database/sql connection for dsn and prepares the
// embedded migration source.
func NewMigrator(dsn string) (*Migrator, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres.NewMigrator: open: %w", err)
	}

	m, err := newMigrate(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Migrator{migrate: m}, nil
}

func newMigrate(db *sql.DB) (*migrate.Migrate, error) {
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return nil, fmt.Errorf("postgres.NewMigrator: driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("postgres.NewMigrator: source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("postgres.NewMigrator: %w", err)
	}
	return m, nil
}

// Up runs all pending migrations.
func (m *Migrator) Up() error {
	err := m.migrate.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		log.Info().Str("component", "migrate").Msg("no migrations to apply")
		return nil
	}
	if err != nil {
		return fmt.Errorf("postgres.Migrator.Up: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	log.Info().Str("component", "migrate").Uint("version", version).Bool("dirty", dirty).Msg("migrations applied")
	return nil
}

// Down rolls back every migration.
func (m *Migrator) Down() error {
	err := m.migrate.Down()
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("postgres.Migrator.Down: %w", err)
	}
	log.Info().Str("component", "migrate").Msg("all migrations rolled back")
	return nil
}

// Steps applies n migrations (positive = up, negative = down).
func (m *Migrator) Steps(n int) error {
	err := m.migrate.Steps(n)
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("postgres.Migrator.Steps(%d): %w", n, err)
	}
	return nil
}

// Version returns the current schema version; 0 when nothing was applied yet.
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("postgres.Migrator.Version: %w", err)
	}
	return version, dirty, nil
}

// Force sets the version without running migrations, to recover from a dirty state.
func (m *Migrator) Force(version int) error {
	log.Warn().Str("component", "migrate").Int("version", version).Msg("forcing migration version")
	if err := m.migrate.Force(version); err != nil {
		return fmt.Errorf("postgres.Migrator.Force(%d): %w", version, err)
	}
	return nil
}

func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	if sourceErr != nil {
		return fmt.Errorf("postgres.Migrator.Close: source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("postgres.Migrator.Close: database: %w", dbErr)
	}
	return nil
}
