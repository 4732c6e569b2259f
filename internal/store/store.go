// Package store provides the data access layer for the slidemine pipeline.
//
// All durable state lives here: crawled posts, the normalized format corpus,
// post↔format matches, per-account format scores, generated drafts, and the
// export audit trail. Each component of the pipeline is the sole writer of
// its own tables; everything reads through the same Store.
package store

import "database/sql"

// Store wraps the pipeline database.
type Store struct {
	DB *sql.DB
}

// NewStore creates a Store from an already-opened database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}
