package services

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"foodbank-server/models"
)

// MsgSlotFull is the stable, user-facing reason attached to capacity
// rejections.
const MsgSlotFull = "This time slot is already full on that day. Please choose another slot."

// CheckSlotCapacity admits or rejects one more approved booking for
// (slotID, date). It locks the slot row so concurrent approvals of the
// last open seat are totally ordered; when the driver cannot lock in
// this query shape, the read degrades per lockedReadWithFallback.
//
// Success has no side effect: the seat is consumed by the booking
// insert that follows inside the same transaction, which is what makes
// the held lock effective.
func CheckSlotCapacity(tx *gorm.DB, slotID uint, date string) error {
	var slot models.Slot
	_, err := lockedReadWithFallback(tx, "sp_capacity", func(locked bool) error {
		q := tx.Where("id = ?", slotID)
		if locked {
			q = q.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		return q.First(&slot).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &ValidationError{Msg: "invalid slot"}
		}
		return translateDBError(err, "slot not found")
	}

	var approved int64
	if err := tx.Model(&models.Booking{}).
		Where("slot_id = ? AND date = ? AND status = ?", slotID, date, models.BookingStatusApproved).
		Count(&approved).Error; err != nil {
		return translateDBError(err, "")
	}

	if approved >= int64(slot.MaxCapacity) {
		return &ConflictError{Msg: MsgSlotFull}
	}
	return nil
}
