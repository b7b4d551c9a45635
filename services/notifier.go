package services

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"foodbank-server/models"
	ws "foodbank-server/websocket"
)

// Booking lifecycle events consumed by the mailer queue and the staff
// ops feed.
const (
	EventBookingCreated     = "booking_created"
	EventBookingApproved    = "booking_approved"
	EventBookingRejected    = "booking_rejected"
	EventBookingCancelled   = "booking_cancelled"
	EventBookingRescheduled = "booking_rescheduled"
	EventBookingReminder    = "booking_reminder"
)

// Notifier enqueues outbound notifications for booking lifecycle
// events. Dispatch is strictly fire-and-forget: a booking mutation
// that committed must never turn into an error response because a
// notification could not be written or pushed.
type Notifier struct {
	db  *gorm.DB
	hub *ws.Hub
}

func NewNotifier(db *gorm.DB, hub *ws.Hub) *Notifier {
	return &Notifier{db: db, hub: hub}
}

// BookingEvent records the event for the mailer and pushes it to the
// ops feed. All failures are caught and logged here.
func (n *Notifier) BookingEvent(event string, b *models.Booking) {
	if n == nil || b == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ Notification dispatch panicked for %s: %v", event, r)
		}
	}()

	params := map[string]interface{}{
		"booking_id": b.ID,
		"date":       b.Date,
		"status":     b.Status,
	}
	if b.ClientID != nil {
		params["client_id"] = *b.ClientID
	}
	if b.SlotID != nil {
		params["slot_id"] = *b.SlotID
	}
	data, _ := json.Marshal(params)

	if n.db != nil {
		notification := models.Notification{
			UserID: nil,
			Title:  titleFor(event),
			Body:   bodyFor(event, b),
			Type:   event,
			Data:   string(data),
		}
		if err := n.db.Create(&notification).Error; err != nil {
			log.Printf("❌ Failed to enqueue %s notification for booking %d: %v", event, b.ID, err)
		}
	}

	if n.hub != nil {
		n.hub.Publish(&ws.Message{
			Type:      event,
			Timestamp: time.Now(),
			Data:      params,
		})
	}
}

func titleFor(event string) string {
	switch event {
	case EventBookingCreated:
		return "Booking received"
	case EventBookingApproved:
		return "Booking approved"
	case EventBookingRejected:
		return "Booking not approved"
	case EventBookingCancelled:
		return "Booking cancelled"
	case EventBookingRescheduled:
		return "Booking rescheduled"
	case EventBookingReminder:
		return "Booking reminder"
	}
	return "Booking update"
}

func bodyFor(event string, b *models.Booking) string {
	switch event {
	case EventBookingRejected:
		if b.Reason != "" {
			return b.Reason
		}
	case EventBookingReminder:
		return fmt.Sprintf("Reminder: your pantry appointment is on %s.", b.Date)
	}
	return fmt.Sprintf("Your pantry booking for %s is now %s.", b.Date, b.Status)
}
