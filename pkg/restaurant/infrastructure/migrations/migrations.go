package migrations

import (
	"embed"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

//go:embed mysql/*.sql postgres/*.sql
var files embed.FS

// Source returns the embedded migration files for the given database driver name.
func Source(driverName string) (source.Driver, error) {
	dir, err := dirFor(driverName)
	if err != nil {
		return nil, err
	}
	return iofs.New(files, dir)
}

func Up(db *sqlx.DB) error {
	m, err := newMigrate(db)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "apply migrations")
	}
	logVersion(m)
	return nil
}

func Down(db *sqlx.DB) error {
	m, err := newMigrate(db)
	if err != nil {
		return err
	}
	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "revert migrations")
	}
	logVersion(m)
	return nil
}

func newMigrate(db *sqlx.DB) (*migrate.Migrate, error) {
	src, err := Source(db.DriverName())
	if err != nil {
		return nil, err
	}

	var driver database.Driver
	switch db.DriverName() {
	case "mysql":
		driver, err = migratemysql.WithInstance(db.DB, &migratemysql.Config{})
	default:
		driver, err = migratepgx.WithInstance(db.DB, &migratepgx.Config{})
	}
	if err != nil {
		return nil, errors.Wrap(err, "create migration driver")
	}

	m, err := migrate.NewWithInstance("iofs", src, db.DriverName(), driver)
	if err != nil {
		return nil, errors.Wrap(err, "create migrator")
	}
	return m, nil
}

func dirFor(driverName string) (string, error) {
	switch driverName {
	case "mysql":
		return "mysql", nil
	case "pgx", "postgres":
		return "postgres", nil
	default:
		return "", errors.Errorf("no migrations for driver %q", driverName)
	}
}

func logVersion(m *migrate.Migrate) {
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		log.WithError(err).Warn("could not read schema version")
		return
	}
	log.WithFields(log.Fields{"version": version, "dirty": dirty}).Info("schema migrated")
}
