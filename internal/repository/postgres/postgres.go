// Package postgres implements the service repository contracts against
// PostgreSQL with database/sql and lib/pq. One file per aggregate.
package postgres

import (
	"errors"

	"github.com/lib/pq"
)

// uniqueViolation is the postgres error code for a broken unique
// constraint. Repos translate it into the owning service's sentinel so
// callers can regenerate-and-retry.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
