package repository

import (
	"database/sql"
	"fmt"
)

// requireAffected turns a zero-row update into sql.ErrNoRows so services can map it to
// NOT_FOUND like a failed lookup.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
