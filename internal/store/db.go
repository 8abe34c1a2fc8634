package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// DB wraps sqlx.DB for one of the supported drivers: pgx, sqlite3 or mysql.
// Queries are written with ? placeholders and rebound for the driver.
type DB struct {
	X *sqlx.DB
}

// Open connects with sane pool defaults and pings once.
// mysql DSNs need parseTime=true so timestamps scan into time.Time.
func Open(ctx context.Context, driver, dsn string) (*DB, error) {
	x, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", driver)
	}
	if driver == "sqlite3" {
		// one writer; also keeps shared in-memory databases alive
		x.SetMaxOpenConns(1)
		x.SetMaxIdleConns(1)
		x.SetConnMaxLifetime(0)
	} else {
		x.SetMaxOpenConns(10)
		x.SetMaxIdleConns(5)
		x.SetConnMaxLifetime(time.Hour)
	}
	d := &DB{X: x}
	if err := x.PingContext(ctx); err != nil {
		_ = x.Close()
		return nil, errors.Wrapf(err, "ping %s", driver)
	}
	return d, nil
}

// OpenMemory opens a private in-memory sqlite database with the schema applied.
// Used by tests and the local development profile.
func OpenMemory(ctx context.Context) (*DB, error) {
	dsn := fmt.Sprintf("file:mem-%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	d, err := Open(ctx, "sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	if err := Bootstrap(ctx, d); err != nil {
		_ = d.Close()
		return nil, err
	}
	return d, nil
}

// Driver returns the database/sql driver name.
func (d *DB) Driver() string { return d.X.DriverName() }

// Healthy verifies database connectivity.
func (d *DB) Healthy(ctx context.Context) bool {
	if d == nil || d.X == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return d.X.PingContext(ctx) == nil
}

// Close closes the underlying connection pool.
func (d *DB) Close() error {
	if d == nil || d.X == nil {
		return nil
	}
	return d.X.Close()
}
