// Package store persists snapshots and comparison runs in SQLite.
package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/hazyhaar/migverify/dbopen"
	"github.com/hazyhaar/migverify/idgen"
)

// ErrNotFound is returned when a snapshot or run does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the apidiff database handle.
type Store struct {
	DB *sql.DB

	newID idgen.Generator
	now   func() time.Time
}

// New wraps an open database. The schema must already be applied; Open does
// that, tests use dbopen.OpenMemory(t, dbopen.WithSchema(Schema)).
func New(db *sql.DB) *Store {
	return &Store{
		DB:    db,
		newID: idgen.Prefixed("snap_", idgen.UUIDv7()),
		now:   time.Now,
	}
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	all := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)
	db, err := dbopen.Open(path, all...)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}
