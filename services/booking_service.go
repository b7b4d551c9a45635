package services

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"foodbank-server/models"
	"foodbank-server/utils"
)

// Stable user-facing messages for lifecycle rejections.
const (
	MsgInvalidDate   = "Please choose a valid date."
	MsgAlreadyBooked = "You already have an upcoming booking. Cancel or reschedule it before booking again."

	// SystemCancelReason is recorded when a client cancels their own
	// booking; only staff may supply a free-text reason.
	SystemCancelReason = "Cancelled by client"
)

// Caller is the resolved identity attached by the auth gate. The
// engine never inspects credentials, only role and linkage.
type Caller struct {
	UserID   uint
	Role     string
	ClientID *uint
}

func (c Caller) IsStaff() bool {
	return c.Role == models.RoleStaff
}

// BookingService orchestrates the booking state machine: one
// transaction per operation, row locks where ordering matters, and
// notifications fired only after commit.
type BookingService struct {
	db       *gorm.DB
	notifier *Notifier
}

func NewBookingService(db *gorm.DB, notifier *Notifier) *BookingService {
	return &BookingService{db: db, notifier: notifier}
}

// mapTxError folds commit-time serialization failures into the single
// retryable error. Expected under contention, so never logged as an
// application error.
func mapTxError(err error) error {
	if err != nil && isRetryableTxError(err) {
		return ErrTxAborted
	}
	return err
}

// CreateParams carries one booking request. Either ClientID or
// NewClientName is set; walk-in bookings (name only) are reserved to
// staff.
type CreateParams struct {
	ClientID      *uint
	NewClientName string
	SlotID        uint
	Date          string
	Note          string
}

// Create books a pantry slot. Self-service callers book for their own
// client record; agency callers for clients linked to them; staff for
// anyone, on any date. The client row is locked first so two
// simultaneous requests from the same client are totally ordered and
// cannot both observe quota 1.
func (s *BookingService) Create(p CreateParams, caller Caller) (*models.Booking, error) {
	target, err := utils.ParseDate(p.Date)
	if err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}

	switch caller.Role {
	case models.RoleStaff:
		// Staff book for any client, walk-ins included.
	case models.RoleAgency:
		if p.ClientID == nil {
			return nil, &ValidationError{Msg: "client_id is required"}
		}
		linked, err := isAgencyClient(s.db, caller.UserID, *p.ClientID)
		if err != nil {
			return nil, mapTxError(err)
		}
		if !linked {
			return nil, &ForbiddenError{Msg: "client is not linked to your agency"}
		}
	case models.RoleShopper, models.RoleDelivery:
		if caller.ClientID == nil {
			return nil, &ForbiddenError{Msg: "no client record linked to your account"}
		}
		if p.ClientID == nil {
			p.ClientID = caller.ClientID
		} else if *p.ClientID != *caller.ClientID {
			return nil, &ForbiddenError{Msg: "you can only book for yourself"}
		}
	default:
		return nil, &ForbiddenError{Msg: "your role cannot create bookings"}
	}

	if p.ClientID == nil && p.NewClientName == "" {
		return nil, &ValidationError{Msg: "client_id or new_client_name is required"}
	}

	// Staff may book any date; everyone else is held to the bookable
	// window.
	if !caller.IsStaff() && !utils.IsWithinBookableWindow(target, utils.Today()) {
		return nil, &ValidationError{Msg: MsgInvalidDate}
	}

	isStaffBooking := caller.Role == models.RoleStaff || caller.Role == models.RoleAgency

	var booking *models.Booking
	err = s.db.Transaction(func(tx *gorm.DB) error {
		status := models.BookingStatusApproved
		reason := p.Note

		if p.ClientID != nil {
			var client models.Client
			_, err := lockedReadWithFallback(tx, "sp_client", func(locked bool) error {
				q := tx.Where("id = ?", *p.ClientID)
				if locked {
					q = q.Clauses(clause.Locking{Strength: "UPDATE"})
				}
				return q.First(&client).Error
			})
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return &ValidationError{Msg: "unknown client"}
				}
				return translateDBError(err, "client not found")
			}

			// Re-checked under the client lock: the one-upcoming rule
			// and the quota, in that order.
			exists, err := upcomingBookingExists(tx, *p.ClientID, utils.TodayString())
			if err != nil {
				return err
			}
			if exists {
				return &ConflictError{Msg: MsgAlreadyBooked}
			}

			usage, err := UsageForMonth(tx, *p.ClientID, p.Date)
			if err != nil {
				return err
			}
			if usage >= MonthlyVisitLimit {
				status = models.BookingStatusRejected
				reason = MsgQuotaExceeded
			}
		}

		if status == models.BookingStatusApproved {
			if err := CheckSlotCapacity(tx, p.SlotID, p.Date); err != nil {
				return err
			}
		}

		slotID := p.SlotID
		b := &models.Booking{
			ClientID:        p.ClientID,
			NewClientName:   p.NewClientName,
			SlotID:          &slotID,
			Date:            p.Date,
			Status:          status,
			Reason:          reason,
			IsStaffBooking:  isStaffBooking,
			RescheduleToken: uuid.NewString(),
		}
		if err := InsertBooking(tx, b); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, mapTxError(err)
	}

	s.notifier.BookingEvent(EventBookingCreated, booking)
	switch booking.Status {
	case models.BookingStatusApproved:
		s.notifier.BookingEvent(EventBookingApproved, booking)
	case models.BookingStatusRejected:
		s.notifier.BookingEvent(EventBookingRejected, booking)
	}
	return booking, nil
}

// Decide approves or rejects a pending booking. The bookable window,
// quota and capacity are all re-evaluated at decision time — the
// figures observed at submission are stale by now.
func (s *BookingService) Decide(id uint, approve bool, reason string, caller Caller) (*models.Booking, error) {
	if !caller.IsStaff() {
		return nil, &ForbiddenError{Msg: "only staff can decide bookings"}
	}

	var booking *models.Booking
	err := s.db.Transaction(func(tx *gorm.DB) error {
		b, err := BookingByID(tx, id)
		if err != nil {
			return err
		}
		if b.Status != models.BookingStatusSubmitted {
			return &ConflictError{Msg: "booking has already been decided"}
		}

		status := models.BookingStatusRejected
		finalReason := reason

		if approve {
			target, err := utils.ParseDate(b.Date)
			if err != nil {
				return &ValidationError{Msg: err.Error()}
			}
			if !b.IsStaffBooking && !utils.IsWithinBookableWindow(target, utils.Today()) {
				return &ValidationError{Msg: MsgInvalidDate}
			}
			if b.SlotID == nil {
				return &ValidationError{Msg: "booking has no slot"}
			}

			status = models.BookingStatusApproved
			if b.ClientID != nil {
				usage, err := UsageForMonth(tx, *b.ClientID, b.Date)
				if err != nil {
					return err
				}
				if usage >= MonthlyVisitLimit {
					status = models.BookingStatusRejected
					finalReason = MsgQuotaExceeded
				}
			}
			if status == models.BookingStatusApproved {
				if err := CheckSlotCapacity(tx, *b.SlotID, b.Date); err != nil {
					return err
				}
			}
		}

		upd := BookingUpdate{Status: &status}
		if finalReason != "" {
			upd.Reason = &finalReason
		}
		if err := UpdateBooking(tx, b.ID, upd); err != nil {
			return err
		}
		b.Status = status
		if finalReason != "" {
			b.Reason = finalReason
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, mapTxError(err)
	}

	if booking.Status == models.BookingStatusApproved {
		s.notifier.BookingEvent(EventBookingApproved, booking)
	} else {
		s.notifier.BookingEvent(EventBookingRejected, booking)
	}
	return booking, nil
}

// Cancel moves a submitted or approved booking to cancelled. Staff may
// cancel anyone's booking with a reason; other callers only their own
// (or agency-linked) booking, with the fixed system reason.
func (s *BookingService) Cancel(id uint, reason string, caller Caller) (*models.Booking, error) {
	var booking *models.Booking
	err := s.db.Transaction(func(tx *gorm.DB) error {
		b, err := BookingByID(tx, id)
		if err != nil {
			return err
		}
		if !caller.IsStaff() {
			owned := b.ClientID != nil && caller.ClientID != nil && *b.ClientID == *caller.ClientID
			if !owned && caller.Role == models.RoleAgency && b.ClientID != nil {
				owned, err = isAgencyClient(tx, caller.UserID, *b.ClientID)
				if err != nil {
					return err
				}
			}
			if !owned {
				return &ForbiddenError{Msg: "you can only cancel your own booking"}
			}
			reason = SystemCancelReason
		}
		cancelled, err := cancelRow(tx, b, reason)
		if err != nil {
			return err
		}
		booking = cancelled
		return nil
	})
	if err != nil {
		return nil, mapTxError(err)
	}
	s.notifier.BookingEvent(EventBookingCancelled, booking)
	return booking, nil
}

// CancelByToken cancels the booking bound to a reschedule token.
// Possession of the token is ownership; the reason is always the
// system string.
func (s *BookingService) CancelByToken(token string) (*models.Booking, error) {
	var booking *models.Booking
	err := s.db.Transaction(func(tx *gorm.DB) error {
		b, err := BookingByToken(tx, token, true)
		if err != nil {
			return err
		}
		cancelled, err := cancelRow(tx, b, SystemCancelReason)
		if err != nil {
			return err
		}
		booking = cancelled
		return nil
	})
	if err != nil {
		return nil, mapTxError(err)
	}
	s.notifier.BookingEvent(EventBookingCancelled, booking)
	return booking, nil
}

func cancelRow(tx *gorm.DB, b *models.Booking, reason string) (*models.Booking, error) {
	if b.Status != models.BookingStatusSubmitted && b.Status != models.BookingStatusApproved {
		return nil, &ConflictError{Msg: "only submitted or approved bookings can be cancelled"}
	}
	if b.Date < utils.TodayString() {
		return nil, &ValidationError{Msg: "past bookings cannot be cancelled"}
	}
	status := models.BookingStatusCancelled
	if err := UpdateBooking(tx, b.ID, BookingUpdate{Status: &status, Reason: &reason}); err != nil {
		return nil, err
	}
	b.Status = status
	b.Reason = reason
	return b, nil
}

// RescheduleByToken moves the booking bound to token to a new slot and
// date, re-running the capacity gate and the quota for the target
// month. The moved booking is subtracted from its own usage when it
// was already approved in that month, so it is not double-counted. A
// new token is minted on success; the old one stops resolving.
func (s *BookingService) RescheduleByToken(token string, slotID uint, date string) (*models.Booking, error) {
	target, err := utils.ParseDate(date)
	if err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}

	var booking *models.Booking
	err = s.db.Transaction(func(tx *gorm.DB) error {
		b, err := BookingByToken(tx, token, true)
		if err != nil {
			return err
		}
		if b.Status != models.BookingStatusSubmitted && b.Status != models.BookingStatusApproved {
			return &ConflictError{Msg: "this booking can no longer be rescheduled"}
		}
		if !utils.IsWithinBookableWindow(target, utils.Today()) {
			return &ValidationError{Msg: MsgInvalidDate}
		}
		if err := CheckSlotCapacity(tx, slotID, date); err != nil {
			return err
		}

		newStatus := b.Status
		if b.ClientID != nil {
			usage, err := UsageForMonth(tx, *b.ClientID, date)
			if err != nil {
				return err
			}
			if b.Status == models.BookingStatusApproved {
				if old, err := utils.ParseDate(b.Date); err == nil && utils.SameMonth(old, target) {
					usage-- // the booking being moved already counts here
				}
			}
			if !b.IsStaffBooking && usage >= MonthlyVisitLimit {
				// Too much usage for the target month: staff get to
				// re-decide instead of silently keeping the approval.
				newStatus = models.BookingStatusSubmitted
			}
		}

		newToken := uuid.NewString()
		upd := BookingUpdate{
			Status: &newStatus,
			SlotID: &slotID,
			Date:   &date,
			Token:  &newToken,
		}
		if err := UpdateBooking(tx, b.ID, upd); err != nil {
			return err
		}
		b.Status = newStatus
		b.SlotID = &slotID
		b.Date = date
		b.RescheduleToken = newToken
		booking = b
		return nil
	})
	if err != nil {
		return nil, mapTxError(err)
	}
	s.notifier.BookingEvent(EventBookingRescheduled, booking)
	return booking, nil
}

// MarkVisited records that the client showed up for their booking.
func (s *BookingService) MarkVisited(id uint, note string, caller Caller) (*models.Booking, error) {
	return s.mark(id, models.BookingStatusVisited, note, caller)
}

// MarkNoShow records that the client missed their booking.
func (s *BookingService) MarkNoShow(id uint, note string, caller Caller) (*models.Booking, error) {
	return s.mark(id, models.BookingStatusNoShow, note, caller)
}

func (s *BookingService) mark(id uint, status models.BookingStatus, note string, caller Caller) (*models.Booking, error) {
	if !caller.IsStaff() {
		return nil, &ForbiddenError{Msg: "only staff can mark bookings"}
	}
	var booking *models.Booking
	err := s.db.Transaction(func(tx *gorm.DB) error {
		b, err := BookingByID(tx, id)
		if err != nil {
			return err
		}
		if b.Status.Terminal() {
			return &ConflictError{Msg: "booking is already closed"}
		}
		upd := BookingUpdate{Status: &status}
		if note != "" {
			upd.StaffNote = &note
		}
		if err := UpdateBooking(tx, b.ID, upd); err != nil {
			return err
		}
		b.Status = status
		if note != "" {
			b.StaffNote = note
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, mapTxError(err)
	}
	return booking, nil
}

// Get fetches a booking with ownership checks; staff notes are
// redacted for non-staff callers.
func (s *BookingService) Get(id uint, caller Caller) (*models.Booking, error) {
	b, err := BookingByID(s.db, id)
	if err != nil {
		return nil, mapTxError(err)
	}
	if !caller.IsStaff() {
		owned := b.ClientID != nil && caller.ClientID != nil && *b.ClientID == *caller.ClientID
		if !owned && caller.Role == models.RoleAgency && b.ClientID != nil {
			owned, err = isAgencyClient(s.db, caller.UserID, *b.ClientID)
			if err != nil {
				return nil, mapTxError(err)
			}
		}
		if !owned {
			return nil, &ForbiddenError{Msg: "you cannot view this booking"}
		}
		b.StaffNote = ""
	}
	return b, nil
}

// GetByToken resolves a booking from its reschedule token. No other
// authorization applies: the token is the credential.
func (s *BookingService) GetByToken(token string) (*models.Booking, error) {
	b, err := BookingByToken(s.db, token, false)
	if err != nil {
		return nil, mapTxError(err)
	}
	b.StaffNote = ""
	return b, nil
}

// List returns bookings matching the filter. Staff only.
func (s *BookingService) List(f BookingFilter, caller Caller) ([]models.Booking, error) {
	if !caller.IsStaff() {
		return nil, &ForbiddenError{Msg: "only staff can list bookings"}
	}
	bookings, err := ListBookings(s.db, f)
	return bookings, mapTxError(err)
}

// History returns booking history, restricted to the caller's own (or
// agency-linked) clients unless the caller is staff. Staff notes are
// redacted for non-staff callers.
func (s *BookingService) History(clientIDs []uint, opts HistoryOptions, caller Caller) ([]models.Booking, error) {
	if !caller.IsStaff() {
		allowed, err := s.allowedClientIDs(caller)
		if err != nil {
			return nil, err
		}
		if len(allowed) == 0 {
			return nil, &ForbiddenError{Msg: "no clients linked to your account"}
		}
		if len(clientIDs) == 0 {
			clientIDs = allowed
		} else {
			permitted := make(map[uint]bool, len(allowed))
			for _, id := range allowed {
				permitted[id] = true
			}
			for _, id := range clientIDs {
				if !permitted[id] {
					return nil, &ForbiddenError{Msg: "client is not linked to your account"}
				}
			}
		}
	} else if len(clientIDs) == 0 {
		return nil, &ValidationError{Msg: "client_ids is required"}
	}

	entries, err := BookingHistory(s.db, clientIDs, opts)
	if err != nil {
		return nil, mapTxError(err)
	}
	if !caller.IsStaff() {
		for i := range entries {
			entries[i].StaffNote = ""
		}
	}
	return entries, nil
}

func (s *BookingService) allowedClientIDs(caller Caller) ([]uint, error) {
	switch caller.Role {
	case models.RoleShopper, models.RoleDelivery:
		if caller.ClientID == nil {
			return nil, nil
		}
		return []uint{*caller.ClientID}, nil
	case models.RoleAgency:
		var links []models.AgencyLink
		if err := s.db.Where("agency_user_id = ?", caller.UserID).Find(&links).Error; err != nil {
			return nil, translateDBError(err, "")
		}
		ids := make([]uint, 0, len(links))
		for _, l := range links {
			ids = append(ids, l.ClientID)
		}
		return ids, nil
	}
	return nil, nil
}

// isAgencyClient reports whether the client is linked to the calling
// agency user.
func isAgencyClient(dbh *gorm.DB, agencyUserID, clientID uint) (bool, error) {
	var count int64
	if err := dbh.Model(&models.AgencyLink{}).
		Where("agency_user_id = ? AND client_id = ?", agencyUserID, clientID).
		Count(&count).Error; err != nil {
		return false, translateDBError(err, "")
	}
	return count > 0, nil
}

// ApplyVisit resolves booking state after an actual pantry visit on
// visitDate:
//   - an approved booking for that exact date becomes visited;
//   - otherwise any other approved booking in the same month becomes
//     visited (date still upcoming: the reservation was consumed
//     early, so its slot is cleared and its date moves to the visit
//     date) or no_show (date already passed).
//
// Runs inside the visit recorder's transaction.
func ApplyVisit(tx *gorm.DB, clientID uint, visitDate string) error {
	var exact models.Booking
	err := tx.Where("client_id = ? AND date = ? AND status = ?",
		clientID, visitDate, models.BookingStatusApproved).
		First(&exact).Error
	switch {
	case err == nil:
		status := models.BookingStatusVisited
		return UpdateBooking(tx, exact.ID, BookingUpdate{Status: &status})
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return translateDBError(err, "")
	}

	day, err2 := utils.ParseDate(visitDate)
	if err2 != nil {
		return &ValidationError{Msg: err2.Error()}
	}
	first, last := utils.MonthBounds(day)

	var others []models.Booking
	if err := tx.Where("client_id = ? AND status = ? AND date BETWEEN ? AND ?",
		clientID, models.BookingStatusApproved, first, last).
		Find(&others).Error; err != nil {
		return translateDBError(err, "")
	}

	for _, b := range others {
		if b.Date >= visitDate {
			// The client came in early; fold the reservation into
			// this visit.
			status := models.BookingStatusVisited
			date := visitDate
			if err := UpdateBooking(tx, b.ID, BookingUpdate{
				Status:    &status,
				ClearSlot: true,
				Date:      &date,
			}); err != nil {
				return err
			}
		} else {
			status := models.BookingStatusNoShow
			if err := UpdateBooking(tx, b.ID, BookingUpdate{Status: &status}); err != nil {
				return err
			}
		}
	}
	return nil
}
