package services

import (
	"log"

	"gorm.io/gorm"

	"foodbank-server/models"
	"foodbank-server/utils"
)

// Monthly quota policy. The limit and the rejection message are the
// single source of truth for every call site.
const (
	// MonthlyVisitLimit caps approved bookings plus recorded visits
	// per client per calendar month.
	MonthlyVisitLimit = 2

	// MsgQuotaExceeded is shown to the client on an auto-rejection.
	MsgQuotaExceeded = "You have already visited the pantry twice this month. Please choose a date in a valid month."
)

// UsageForMonth counts the quota already consumed by the client in the
// calendar month containing date: approved bookings plus recorded
// non-anonymous visits. Month boundaries follow the pantry zone, not
// UTC.
func UsageForMonth(dbh *gorm.DB, clientID uint, date string) (int, error) {
	day, err := utils.ParseDate(date)
	if err != nil {
		return 0, &ValidationError{Msg: err.Error()}
	}
	first, last := utils.MonthBounds(day)

	var approved int64
	if err := dbh.Model(&models.Booking{}).
		Where("client_id = ? AND status = ? AND date BETWEEN ? AND ?",
			clientID, models.BookingStatusApproved, first, last).
		Count(&approved).Error; err != nil {
		return 0, translateDBError(err, "")
	}

	var visits int64
	if err := dbh.Model(&models.Visit{}).
		Where("client_id = ? AND anonymous = ? AND date BETWEEN ? AND ?",
			clientID, false, first, last).
		Count(&visits).Error; err != nil {
		return 0, translateDBError(err, "")
	}

	return int(approved + visits), nil
}

// RefreshMonthlyCount recomputes the client's denormalized monthly
// count for the current month. The cache is advisory only — readers
// that care about correctness call UsageForMonth — so a refresh
// failure is logged, never surfaced.
func RefreshMonthlyCount(dbh *gorm.DB, clientID uint) {
	today := utils.Today()
	usage, err := UsageForMonth(dbh, clientID, today.Format(utils.DateLayout))
	if err != nil {
		log.Printf("⚠️ Failed to recompute monthly count for client %d: %v", clientID, err)
		return
	}
	if err := dbh.Model(&models.Client{}).
		Where("id = ?", clientID).
		Updates(map[string]interface{}{
			"monthly_visit_count": usage,
			"count_month":         utils.MonthKey(today),
		}).Error; err != nil {
		log.Printf("⚠️ Failed to store monthly count for client %d: %v", clientID, err)
	}
}
