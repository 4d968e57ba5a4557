package repository

import "github.com/jackc/pgx/v5"

// ErrNotFound is returned when a record does not exist. Aliased to
// pgx.ErrNoRows so callers can match either.
var ErrNotFound = pgx.ErrNoRows
