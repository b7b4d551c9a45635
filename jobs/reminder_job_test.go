package jobs

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"foodbank-server/database"
	"foodbank-server/models"
	"foodbank-server/services"
	"foodbank-server/utils"
)

var jobDBSeq int64

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:job_test_%d?mode=memory&cache=shared", atomic.AddInt64(&jobDBSeq, 1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func seedApproved(t *testing.T, db *gorm.DB, date string) *models.Booking {
	t.Helper()
	slot := &models.Slot{StartTime: "09:00", EndTime: "10:00", MaxCapacity: 8}
	require.NoError(t, db.Create(slot).Error)
	client := &models.Client{Name: "Ada"}
	require.NoError(t, db.Create(client).Error)
	b := &models.Booking{
		ClientID:        &client.ID,
		SlotID:          &slot.ID,
		Date:            date,
		Status:          models.BookingStatusApproved,
		RescheduleToken: uuid.NewString(),
	}
	require.NoError(t, db.Create(b).Error)
	return b
}

func TestSweepSendsReminderOnceForTomorrow(t *testing.T) {
	db := openTestDB(t)
	job := NewReminderJob(db, services.NewNotifier(db, nil), 9)

	tomorrow := utils.Today().AddDate(0, 0, 1).Format(utils.DateLayout)
	b := seedApproved(t, db, tomorrow)

	job.Sweep()

	var stored models.Booking
	require.NoError(t, db.First(&stored, b.ID).Error)
	assert.True(t, stored.ReminderSent)

	var reminders int64
	require.NoError(t, db.Model(&models.Notification{}).
		Where("type = ?", services.EventBookingReminder).Count(&reminders).Error)
	assert.Equal(t, int64(1), reminders)

	// A second sweep is a no-op thanks to the flag.
	job.Sweep()
	require.NoError(t, db.Model(&models.Notification{}).
		Where("type = ?", services.EventBookingReminder).Count(&reminders).Error)
	assert.Equal(t, int64(1), reminders)
}

func TestDueOnlyAtConfiguredHour(t *testing.T) {
	db := openTestDB(t)
	job := NewReminderJob(db, services.NewNotifier(db, nil), 9)

	zone := utils.PantryZone()
	assert.True(t, job.due(time.Date(2030, 6, 10, 9, 30, 0, 0, zone)))
	assert.False(t, job.due(time.Date(2030, 6, 10, 10, 0, 0, 0, zone)))
	assert.False(t, job.due(time.Date(2030, 6, 10, 8, 59, 0, 0, zone)))

	// Instants are converted into the pantry zone before comparing.
	assert.True(t, job.due(time.Date(2030, 6, 10, 9, 30, 0, 0, zone).In(time.UTC)))
}

func TestSweepIgnoresOtherDatesAndStatuses(t *testing.T) {
	db := openTestDB(t)
	job := NewReminderJob(db, services.NewNotifier(db, nil), 9)

	today := utils.Today()
	seedApproved(t, db, today.Format(utils.DateLayout))
	seedApproved(t, db, today.AddDate(0, 0, 3).Format(utils.DateLayout))

	tomorrow := today.AddDate(0, 0, 1).Format(utils.DateLayout)
	cancelled := seedApproved(t, db, tomorrow)
	require.NoError(t, db.Model(cancelled).Update("status", models.BookingStatusCancelled).Error)

	job.Sweep()

	var reminders int64
	require.NoError(t, db.Model(&models.Notification{}).
		Where("type = ?", services.EventBookingReminder).Count(&reminders).Error)
	assert.Equal(t, int64(0), reminders)
}
