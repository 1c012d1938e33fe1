// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

/*
Package sqlite provides a cache.Accessor that keeps the serialized token cache in a sqlite
database, so several processes on a host can share one cache.

Each Accessor reads and writes one named row. The partition key passed to Load and Save is
not used, because the serialized cache always holds every account.
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AzureAD/msal-iwa-go/apps/cache"
	"github.com/AzureAD/msal-iwa-go/apps/cache/sqlite/migrations"
	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "modernc.org/sqlite"
)

// DefaultName is the row used when no name is given.
const DefaultName = "default"

// Accessor stores the cache in a sqlite database.
type Accessor struct {
	db   *sql.DB
	name string
}

// Option is an optional argument to Open.
type Option func(a *Accessor)

// WithName selects the row the cache is kept in, letting applications share a database.
func WithName(name string) Option {
	return func(a *Accessor) {
		if name != "" {
			a.name = name
		}
	}
}

// Open opens the database at dsn and applies any pending migrations.
func Open(ctx context.Context, dsn string, options ...Option) (*Accessor, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// sqlite allows one writer; a single connection also keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := applyMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrating token cache database: %w", err)
	}

	a := &Accessor{db: db, name: DefaultName}
	for _, o := range options {
		o(a)
	}
	return a, nil
}

func applyMigrations(db *sql.DB) error {
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return err
	}
	source, err := iofs.New(migrations.Migrations, ".")
	if err != nil {
		return err
	}
	instance, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return err
	}
	if err := instance.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

// Close closes the database.
func (a *Accessor) Close() error { return a.db.Close() }

// Load implements cache.Accessor. A missing row leaves the cache untouched.
func (a *Accessor) Load(ctx context.Context, c cache.Unmarshaler, key string) error {
	var data []byte
	err := a.db.QueryRowContext(ctx, `SELECT data FROM token_cache WHERE name = ?`, a.name).Scan(&data)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil
	case err != nil:
		return err
	}
	return c.Unmarshal(data)
}

// Save implements cache.Accessor.
func (a *Accessor) Save(ctx context.Context, c cache.Marshaler, key string) error {
	data, err := c.Marshal()
	if err != nil {
		return err
	}
	_, err = a.db.ExecContext(ctx,
		`INSERT INTO token_cache (name, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		a.name, data, time.Now().UTC(),
	)
	return err
}
