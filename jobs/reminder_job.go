package jobs

import (
	"log"
	"time"

	"gorm.io/gorm"

	"foodbank-server/models"
	"foodbank-server/services"
	"foodbank-server/utils"
)

// ReminderJob sends day-before reminders for approved bookings that
// have not been reminded yet.
type ReminderJob struct {
	db       *gorm.DB
	notifier *services.Notifier
	hour     int
	stopChan chan bool
}

// NewReminderJob creates a new reminder job. hour is the local pantry
// hour at which the daily sweep runs.
func NewReminderJob(db *gorm.DB, notifier *services.Notifier, hour int) *ReminderJob {
	return &ReminderJob{
		db:       db,
		notifier: notifier,
		hour:     hour,
		stopChan: make(chan bool),
	}
}

// Start begins the reminder job
func (j *ReminderJob) Start() {
	go j.run()
	log.Println("🚀 Reminder job started")
}

// Stop stops the reminder job
func (j *ReminderJob) Stop() {
	j.stopChan <- true
	log.Println("🛑 Reminder job stopped")
}

func (j *ReminderJob) run() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if j.due(time.Now()) {
				j.Sweep()
			}
		case <-j.stopChan:
			return
		}
	}
}

// due reports whether a tick at now falls inside the configured sweep
// hour, evaluated in the pantry zone. The hourly ticker lands in each
// hour exactly once, so the sweep runs once per day.
func (j *ReminderJob) due(now time.Time) bool {
	return now.In(utils.PantryZone()).Hour() == j.hour
}

// Sweep finds tomorrow's approved, un-reminded bookings, enqueues a
// reminder for each and flips the flag. The flag makes the sweep
// idempotent across ticks and restarts.
func (j *ReminderJob) Sweep() {
	tomorrow := utils.Today().AddDate(0, 0, 1).Format(utils.DateLayout)

	var due []models.Booking
	err := j.db.Where("status = ? AND date = ? AND reminder_sent = ?",
		models.BookingStatusApproved, tomorrow, false).Find(&due).Error
	if err != nil {
		log.Printf("❌ Error finding bookings due a reminder: %v", err)
		return
	}

	if len(due) == 0 {
		return
	}
	log.Printf("⏰ Sending %d booking reminders for %s", len(due), tomorrow)

	for i := range due {
		booking := due[i]
		j.notifier.BookingEvent(services.EventBookingReminder, &booking)

		sent := true
		if err := services.UpdateBooking(j.db, booking.ID, services.BookingUpdate{ReminderSent: &sent}); err != nil {
			log.Printf("❌ Failed to mark reminder sent for booking %d: %v", booking.ID, err)
		}
	}
}
