package repository

import (
	"context"
	"errors"
	"time"

	"github.com/alumup/athletesapp-sub001/app/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type paymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

func (r *paymentRepository) GetByID(ctx context.Context, id uint) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).First(&payment, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &payment, nil
}

func (r *paymentRepository) GetByIntentID(ctx context.Context, intentID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).Where("payment_intent_id = ?", intentID).First(&payment).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &payment, nil
}

// FindOpen returns the newest open payment for the obligation, or
// ErrNotFound.
func (r *paymentRepository) FindOpen(ctx context.Context, o Obligation) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND fee_id = ? AND person_id = ? AND profile_id = ? AND rsvp_id = ?",
			o.AccountID, o.FeeID, o.PersonID, o.ProfileID, o.RsvpID).
		Where("status NOT IN ?", models.PaymentClosedStatuses).
		Order("id DESC").
		First(&payment).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &payment, nil
}

func (r *paymentRepository) FindOpenByIDs(ctx context.Context, ids []uint) (*models.Payment, error) {
	if len(ids) == 0 {
		return nil, ErrNotFound
	}
	var payment models.Payment
	err := r.db.WithContext(ctx).
		Where("id IN ? AND status NOT IN ?", ids, models.PaymentClosedStatuses).
		Order("id DESC").
		First(&payment).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &payment, nil
}

// InsertOrFetch reserves a payment under its obligation key. When another
// writer already holds the key, payment is overwritten with the stored row and
// created is false.
func (r *paymentRepository) InsertOrFetch(ctx context.Context, payment *models.Payment) (bool, error) {
	if payment.ObligationKey == nil || *payment.ObligationKey == "" {
		return false, errors.New("payment reservation requires an obligation key")
	}
	key := *payment.ObligationKey

	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "obligation_key"}},
		DoNothing: true,
	}).Create(payment)
	if tx.Error != nil {
		return false, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.Payment
	if err := r.db.WithContext(ctx).Where("obligation_key = ?", key).First(&stored).Error; err != nil {
		return false, notFound(err)
	}
	*payment = stored
	return created, nil
}

func (r *paymentRepository) SetIntentID(ctx context.Context, id uint, intentID string) error {
	return r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND (payment_intent_id = '' OR payment_intent_id = ?)", id, intentID).
		Update("payment_intent_id", intentID).Error
}

// MarkCanceled closes an open payment whose intent can no longer be
// confirmed.
func (r *paymentRepository) MarkCanceled(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status NOT IN ?", id, models.PaymentClosedStatuses).
		Updates(map[string]interface{}{
			"status":         models.PaymentStatusCanceled,
			"obligation_key": gorm.Expr("NULL"),
		}).Error
}

// DeleteReservation removes a reservation that never got an intent attached.
func (r *paymentRepository) DeleteReservation(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Where("id = ? AND payment_intent_id = ''", id).
		Delete(&models.Payment{}).Error
}

func (r *paymentRepository) ApplyIntentEvent(ctx context.Context, intentID, status string, payload []byte, at time.Time) (int64, error) {
	tx := r.db.WithContext(ctx).Model(&models.Payment{}).Where("payment_intent_id = ?", intentID)
	tx = applicableEvent(tx, status, at).Updates(paymentEventUpdates(status, payload, at))
	return tx.RowsAffected, tx.Error
}

func (r *paymentRepository) ApplyObligationEvent(ctx context.Context, feeID, personID uint, status string, payload []byte, at time.Time) (int64, error) {
	tx := r.db.WithContext(ctx).Model(&models.Payment{}).Where("fee_id = ? AND person_id = ?", feeID, personID)
	tx = applicableEvent(tx, status, at).Updates(paymentEventUpdates(status, payload, at))
	return tx.RowsAffected, tx.Error
}

// applicableEvent restricts an update to payments the event may still move:
// closed payments stay closed, older events never overwrite newer ones, and
// events sharing a timestamp cannot step backwards.
func applicableEvent(tx *gorm.DB, status string, at time.Time) *gorm.DB {
	return tx.
		Where("status NOT IN ?", models.PaymentClosedStatuses).
		Where("(last_event_at IS NULL OR last_event_at < ? OR (last_event_at = ? AND status IN ?))",
			at, at, models.PaymentStatusesUpTo(status))
}

func paymentEventUpdates(status string, payload []byte, at time.Time) map[string]interface{} {
	updates := map[string]interface{}{
		"status":        status,
		"last_event_at": at,
	}
	if len(payload) > 0 {
		updates["data"] = datatypes.JSON(payload)
	}
	if models.IsPaymentClosed(status) {
		updates["obligation_key"] = gorm.Expr("NULL")
	}
	return updates
}
