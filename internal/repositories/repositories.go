package repositories

import (
	"database/sql"
	"fmt"

	"github.com/desertthunder/cloudplay/internal/shared"
)

// affectedOne checks that an Exec touched at least one row, returning [shared.ErrNotFound] otherwise.
func affectedOne(result sql.Result, what string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrNotFound, what)
	}
	return nil
}
