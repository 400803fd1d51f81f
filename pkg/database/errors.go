package database

import (
	"database/sql"
	"errors"
)

// isNoRows reports whether err is the no-rows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// IsNoRows is the exported form for repositories.
func IsNoRows(err error) bool {
	return isNoRows(err)
}
