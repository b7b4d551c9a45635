package services

import (
	"gorm.io/gorm"

	"foodbank-server/models"
	"foodbank-server/utils"
)

// VisitService records actual pantry visits and applies their booking
// side effects in the same transaction, so a recorded visit can never
// leave a stale reservation behind.
type VisitService struct {
	db *gorm.DB
}

func NewVisitService(db *gorm.DB) *VisitService {
	return &VisitService{db: db}
}

// VisitParams describes one visit to record.
type VisitParams struct {
	ClientID  *uint
	Anonymous bool
	Date      string
	Note      string
}

// Record logs a visit. A second visit for the same client on the same
// date is a conflict. After commit the client's monthly-count cache is
// refreshed; anonymous visits carry no client and never touch quota or
// bookings.
func (s *VisitService) Record(p VisitParams, caller Caller) (*models.Visit, error) {
	if caller.Role != models.RoleStaff && caller.Role != models.RoleVolunteer {
		return nil, &ForbiddenError{Msg: "only staff and volunteers can record visits"}
	}
	if _, err := utils.ParseDate(p.Date); err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}
	if p.Anonymous {
		p.ClientID = nil
	} else if p.ClientID == nil {
		return nil, &ValidationError{Msg: "client_id is required for a non-anonymous visit"}
	}

	var visit *models.Visit
	err := s.db.Transaction(func(tx *gorm.DB) error {
		v := &models.Visit{
			ClientID:  p.ClientID,
			Anonymous: p.Anonymous,
			Date:      p.Date,
			Note:      p.Note,
		}
		if err := tx.Create(v).Error; err != nil {
			if isDuplicateKey(err) {
				return &ConflictError{Msg: "a visit is already recorded for this client on that date"}
			}
			return translateDBError(err, "")
		}
		if v.ClientID != nil {
			if err := ApplyVisit(tx, *v.ClientID, v.Date); err != nil {
				return err
			}
		}
		visit = v
		return nil
	})
	if err != nil {
		return nil, mapTxError(err)
	}

	if visit.ClientID != nil {
		RefreshMonthlyCount(s.db, *visit.ClientID)
	}
	return visit, nil
}

// List returns visits, optionally for a single date. Staff only.
func (s *VisitService) List(date *string, caller Caller) ([]models.Visit, error) {
	if !caller.IsStaff() {
		return nil, &ForbiddenError{Msg: "only staff can list visits"}
	}
	q := s.db.Model(&models.Visit{}).Preload("Client")
	if date != nil {
		q = q.Where("date = ?", *date)
	}
	var visits []models.Visit
	if err := q.Order("date DESC, id DESC").Find(&visits).Error; err != nil {
		return nil, translateDBError(err, "")
	}
	return visits, nil
}
