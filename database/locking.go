package database

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InTx runs fn inside a transaction bound to ctx. Returning an error from fn
// rolls back every write made through tx.
func InTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return db.WithContext(ctx).Transaction(fn)
}

// ForUpdate makes the next query on tx take row locks (SELECT ... FOR UPDATE).
func ForUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// LockByID loads the row with the given primary key into dest while holding
// its row lock until tx ends. Callers must re-validate whatever they read
// before the lock was taken.
func LockByID(tx *gorm.DB, dest any, id uuid.UUID) error {
	return ForUpdate(tx).First(dest, "id = ?", id).Error
}

// UpdateColumns writes the named columns of model, including zero values, to
// the row it was loaded from.
func UpdateColumns(tx *gorm.DB, model interface{}, columns ...string) error {
	return tx.Model(model).Select(columns).Updates(model).Error
}
