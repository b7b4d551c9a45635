package services

import (
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"foodbank-server/models"
	"foodbank-server/utils"
)

// The booking store is the persistence boundary for bookings. Every
// operation takes a *gorm.DB handle which may be either the root
// connection or an in-flight transaction, so callers decide atomicity.

// BookingUpdate names every mutable booking column. Only non-nil
// fields are written; a column that is not listed here cannot be
// touched through the store at all.
type BookingUpdate struct {
	Status       *models.BookingStatus
	SlotID       *uint
	ClearSlot    bool
	Date         *string
	Reason       *string
	StaffNote    *string
	Token        *string
	ReminderSent *bool
}

func (u BookingUpdate) columns() map[string]interface{} {
	cols := map[string]interface{}{}
	if u.Status != nil {
		cols["status"] = *u.Status
	}
	if u.ClearSlot {
		cols["slot_id"] = nil
	} else if u.SlotID != nil {
		cols["slot_id"] = *u.SlotID
	}
	if u.Date != nil {
		cols["date"] = *u.Date
	}
	if u.Reason != nil {
		cols["reason"] = *u.Reason
	}
	if u.StaffNote != nil {
		cols["staff_note"] = *u.StaffNote
	}
	if u.Token != nil {
		cols["reschedule_token"] = *u.Token
	}
	if u.ReminderSent != nil {
		cols["reminder_sent"] = *u.ReminderSent
	}
	return cols
}

// InsertBooking persists a new booking row and backfills its id.
func InsertBooking(dbh *gorm.DB, b *models.Booking) error {
	if err := dbh.Create(b).Error; err != nil {
		return translateDBError(err, "")
	}
	return nil
}

// BookingByID fetches one booking with its slot and client.
func BookingByID(dbh *gorm.DB, id uint) (*models.Booking, error) {
	var b models.Booking
	if err := dbh.Preload("Slot").Preload("Client").First(&b, id).Error; err != nil {
		return nil, translateDBError(err, "booking not found")
	}
	return &b, nil
}

// BookingByToken resolves the live booking bound to a reschedule
// token. Possession of the token is treated as ownership. With
// forUpdate the row is locked (dbh must then be a transaction); the
// lock degrades like every other guarded read.
func BookingByToken(dbh *gorm.DB, token string, forUpdate bool) (*models.Booking, error) {
	var b models.Booking
	if !forUpdate {
		if err := dbh.Preload("Slot").Preload("Client").
			Where("reschedule_token = ?", token).First(&b).Error; err != nil {
			return nil, translateDBError(err, "booking not found")
		}
		return &b, nil
	}

	_, err := lockedReadWithFallback(dbh, "sp_booking_token", func(locked bool) error {
		q := dbh.Where("reschedule_token = ?", token)
		if locked {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		return q.First(&b).Error
	})
	if err != nil {
		return nil, translateDBError(err, "booking not found")
	}
	return &b, nil
}

// UpdateBooking writes the named fields of one booking.
func UpdateBooking(dbh *gorm.DB, id uint, upd BookingUpdate) error {
	cols := upd.columns()
	if len(cols) == 0 {
		return nil
	}
	res := dbh.Model(&models.Booking{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return translateDBError(res.Error, "")
	}
	if res.RowsAffected == 0 {
		return &NotFoundError{Msg: "booking not found"}
	}
	return nil
}

// BookingFilter narrows ListBookings. Nil fields match everything.
type BookingFilter struct {
	Status    *models.BookingStatus
	Date      *string
	ClientIDs []uint
}

// ListBookings returns bookings matching the filter, newest date
// first.
func ListBookings(dbh *gorm.DB, f BookingFilter) ([]models.Booking, error) {
	q := dbh.Model(&models.Booking{}).Preload("Slot").Preload("Client")
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.Date != nil {
		q = q.Where("date = ?", *f.Date)
	}
	if len(f.ClientIDs) > 0 {
		q = q.Where("client_id IN ?", f.ClientIDs)
	}
	var bookings []models.Booking
	if err := q.Order("date DESC, id DESC").Find(&bookings).Error; err != nil {
		return nil, translateDBError(err, "")
	}
	return bookings, nil
}

// HistoryOptions controls BookingHistory.
type HistoryOptions struct {
	IncludePast   bool
	Status        *models.BookingStatus
	IncludeVisits bool
	Limit         int
	Offset        int
}

// BookingHistory returns the booking history for a set of clients.
// With IncludeVisits it merges in synthetic visited rows for walk-in
// visits that never had a booking (id 0, no slot). Synthetic rows are
// always visited, so a status filter for anything else skips the
// merge. The order is a fixed two-phase sort: the single nearest
// upcoming approved booking first, then everything else by date
// descending.
func BookingHistory(dbh *gorm.DB, clientIDs []uint, opts HistoryOptions) ([]models.Booking, error) {
	if len(clientIDs) == 0 {
		return []models.Booking{}, nil
	}

	today := utils.TodayString()

	q := dbh.Model(&models.Booking{}).Preload("Slot").Preload("Client").
		Where("client_id IN ?", clientIDs)
	if !opts.IncludePast {
		q = q.Where("date >= ?", today)
	}
	if opts.Status != nil {
		q = q.Where("status = ?", *opts.Status)
	}
	var entries []models.Booking
	if err := q.Find(&entries).Error; err != nil {
		return nil, translateDBError(err, "")
	}

	if opts.IncludeVisits && (opts.Status == nil || *opts.Status == models.BookingStatusVisited) {
		synthetic, err := syntheticVisitRows(dbh, clientIDs, opts.IncludePast, today)
		if err != nil {
			return nil, err
		}
		entries = append(entries, synthetic...)
	}

	entries = sortHistory(entries, today)

	if opts.Offset > 0 {
		if opts.Offset >= len(entries) {
			return []models.Booking{}, nil
		}
		entries = entries[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(entries) {
		entries = entries[:opts.Limit]
	}
	return entries, nil
}

// syntheticVisitRows builds visited pseudo-bookings for walk-in visits
// with no matching booking row (e.g. a visit recorded with no prior
// reservation).
func syntheticVisitRows(dbh *gorm.DB, clientIDs []uint, includePast bool, today string) ([]models.Booking, error) {
	vq := dbh.Model(&models.Visit{}).
		Where("client_id IN ? AND anonymous = ?", clientIDs, false)
	if !includePast {
		vq = vq.Where("date >= ?", today)
	}
	var visits []models.Visit
	if err := vq.Find(&visits).Error; err != nil {
		return nil, translateDBError(err, "")
	}
	if len(visits) == 0 {
		return nil, nil
	}

	// One pass over visited bookings to detect which visits already
	// have a row of their own.
	var visited []models.Booking
	if err := dbh.Model(&models.Booking{}).
		Select("client_id", "date").
		Where("client_id IN ? AND status = ?", clientIDs, models.BookingStatusVisited).
		Find(&visited).Error; err != nil {
		return nil, translateDBError(err, "")
	}
	covered := make(map[uint]map[string]bool, len(visited))
	for _, b := range visited {
		if b.ClientID == nil {
			continue
		}
		if covered[*b.ClientID] == nil {
			covered[*b.ClientID] = map[string]bool{}
		}
		covered[*b.ClientID][b.Date] = true
	}

	var synthetic []models.Booking
	for _, v := range visits {
		if v.ClientID == nil || covered[*v.ClientID][v.Date] {
			continue
		}
		synthetic = append(synthetic, models.Booking{
			ClientID:  v.ClientID,
			Date:      v.Date,
			Status:    models.BookingStatusVisited,
			Reason:    "Walk-in visit",
			CreatedAt: v.CreatedAt,
		})
	}
	return synthetic, nil
}

// sortHistory applies the documented two-phase order: partition out
// the nearest upcoming approved booking, then sort the rest by date
// descending (newest id first on equal dates).
func sortHistory(entries []models.Booking, today string) []models.Booking {
	nearest := -1
	for i, b := range entries {
		if b.Status != models.BookingStatusApproved || b.Date < today {
			continue
		}
		if nearest == -1 || b.Date < entries[nearest].Date {
			nearest = i
		}
	}

	sorted := make([]models.Booking, 0, len(entries))
	if nearest >= 0 {
		sorted = append(sorted, entries[nearest])
	}
	rest := make([]models.Booking, 0, len(entries))
	for i, b := range entries {
		if i != nearest {
			rest = append(rest, b)
		}
	}
	sort.Slice(rest, func(i, j int) bool {
		if rest[i].Date != rest[j].Date {
			return rest[i].Date > rest[j].Date
		}
		return rest[i].ID > rest[j].ID
	})
	return append(sorted, rest...)
}

// upcomingBookingExists reports whether any non-terminal booking
// exists for the client on or after today.
func upcomingBookingExists(dbh *gorm.DB, clientID uint, today string) (bool, error) {
	var count int64
	err := dbh.Model(&models.Booking{}).
		Where("client_id = ? AND date >= ? AND status IN ?",
			clientID, today,
			[]models.BookingStatus{models.BookingStatusSubmitted, models.BookingStatusApproved}).
		Count(&count).Error
	if err != nil {
		return false, translateDBError(err, "")
	}
	return count > 0, nil
}
