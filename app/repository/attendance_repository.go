package repository

import (
	"context"

	"github.com/alumup/athletesapp-sub001/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type attendanceRepository struct {
	db *gorm.DB
}

func NewAttendanceRepository(db *gorm.DB) AttendanceRepository {
	return &attendanceRepository{db: db}
}

func (r *attendanceRepository) GetByID(ctx context.Context, id uint) (*models.Attendance, error) {
	var attendance models.Attendance
	if err := r.db.WithContext(ctx).First(&attendance, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &attendance, nil
}

// GetOrCreate returns the attendance for the triple, inserting an "undecided"
// row when none exists. Concurrent callers converge on the same row.
func (r *attendanceRepository) GetOrCreate(ctx context.Context, eventID, personID, profileID uint) (*models.Attendance, bool, error) {
	row := &models.Attendance{
		EventsID:  eventID,
		PersonID:  personID,
		ProfileID: profileID,
		Status:    models.AttendanceStatusUndecided,
	}
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "events_id"},
			{Name: "person_id"},
			{Name: "profile_id"},
		},
		DoNothing: true,
	}).Create(row)
	if tx.Error != nil {
		return nil, false, tx.Error
	}

	created := tx.RowsAffected > 0
	stored, err := r.FindByEventPersonProfile(ctx, eventID, personID, profileID)
	if err != nil {
		return nil, false, err
	}
	return stored, created, nil
}

func (r *attendanceRepository) FindByEventPersonProfile(ctx context.Context, eventID, personID, profileID uint) (*models.Attendance, error) {
	var attendance models.Attendance
	err := r.db.WithContext(ctx).
		Where("events_id = ? AND person_id = ? AND profile_id = ?", eventID, personID, profileID).
		First(&attendance).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &attendance, nil
}

func (r *attendanceRepository) SetPaymentID(ctx context.Context, ids []uint, paymentID uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Attendance{}).
		Where("id IN ?", ids).
		Update("payments_id", paymentID).Error
}

// MarkPaid moves the given attendances to "paid". Re-applying is a no-op.
func (r *attendanceRepository) MarkPaid(ctx context.Context, ids []uint) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx := r.db.WithContext(ctx).Model(&models.Attendance{}).
		Where("id IN ? AND status <> ?", ids, models.AttendanceStatusPaid).
		Update("status", models.AttendanceStatusPaid)
	return tx.RowsAffected, tx.Error
}

// UpdateStatus never touches a paid attendance.
func (r *attendanceRepository) UpdateStatus(ctx context.Context, id uint, status string) error {
	tx := r.db.WithContext(ctx).Model(&models.Attendance{}).
		Where("id = ? AND status <> ?", id, models.AttendanceStatusPaid).
		Update("status", status)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
