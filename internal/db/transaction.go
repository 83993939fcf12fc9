package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// WithTransaction runs fn with a DB bound to a transaction. The transaction
// commits when fn returns nil and rolls back on error or panic.
func (db *DB) WithTransaction(ctx context.Context, fn func(tx *DB) error) error {
	return db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := fn(&DB{DB: tx}); err != nil {
			return fmt.Errorf("transaction error: %w", err)
		}
		return nil
	})
}
