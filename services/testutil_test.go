package services

import (
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"foodbank-server/database"
	"foodbank-server/models"
	"foodbank-server/utils"
)

var testDBSeq int64

// openTestDB returns an isolated in-memory database. The pool is
// capped at one connection so concurrent transactions serialize the
// way they would against a contended shared store, and so the
// in-memory database survives for the whole test.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:svc_test_%d?mode=memory&cache=shared", atomic.AddInt64(&testDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func newTestClient(t *testing.T, db *gorm.DB, name string) *models.Client {
	t.Helper()
	client := &models.Client{Name: name}
	require.NoError(t, db.Create(client).Error)
	return client
}

func newTestSlot(t *testing.T, db *gorm.DB, capacity int) *models.Slot {
	t.Helper()
	slot := &models.Slot{StartTime: "09:00", EndTime: "10:00", MaxCapacity: capacity}
	require.NoError(t, db.Create(slot).Error)
	return slot
}

func staffCaller() Caller {
	return Caller{UserID: 1, Role: models.RoleStaff}
}

func shopperCaller(clientID uint) Caller {
	return Caller{UserID: 100 + clientID, Role: models.RoleShopper, ClientID: &clientID}
}

func todayStr() string {
	return utils.TodayString()
}

func newService(db *gorm.DB) *BookingService {
	return NewBookingService(db, NewNotifier(db, nil))
}
