package sqlstore

import (
	"database/sql"
	"embed"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/btc-vision/opnet-node-sub009/internal/core/errs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applies every pending up migration against db, the
// golang-migrate/migrate/v4 counterpart of kasparov's db migration
// bootstrapping (SPEC_FULL §A: schema management belongs to a real
// migration tool, not ad-hoc CREATE TABLE IF NOT EXISTS calls).
func Migrate(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return errs.New(errs.KindStore, err)
	}
	driver, err := mysql.WithInstance(db, &mysql.Config{})
	if err != nil {
		return errs.New(errs.KindStore, err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "mysql", driver)
	if err != nil {
		return errs.New(errs.KindStore, err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return errs.New(errs.KindStore, err)
	}
	return nil
}
