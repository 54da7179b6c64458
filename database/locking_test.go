package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/anjiri1684/studio_booking/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), Options())
	require.NoError(t, err)
	return db, mock
}

func TestLockByIDSelectsForUpdate(t *testing.T) {
	db, mock := newMockDB(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "availability_slots" WHERE id = \$1 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "is_active", "is_blocked"}).AddRow(id.String(), true, false))
	mock.ExpectCommit()

	var slot models.AvailabilitySlot
	err := InTx(context.Background(), db, func(tx *gorm.DB) error {
		return LockByID(tx, &slot, id)
	})

	require.NoError(t, err)
	assert.Equal(t, id, slot.ID)
	assert.True(t, slot.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTxRollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "subscriptions" WHERE id = \$1 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	var sub models.Subscription
	err := InTx(context.Background(), db, func(tx *gorm.DB) error {
		return LockByID(tx, &sub, id)
	})

	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}
