package repository

import (
	"context"
	"time"

	"github.com/alumup/athletesapp-sub001/app/models"
	"gorm.io/gorm"
)

type invoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) Create(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

func (r *invoiceRepository) GetByID(ctx context.Context, id uint) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).First(&invoice, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &invoice, nil
}

func (r *invoiceRepository) GetByGatewayInvoiceID(ctx context.Context, gatewayInvoiceID string) (*models.Invoice, error) {
	var invoice models.Invoice
	err := r.db.WithContext(ctx).Where("gateway_invoice_id = ?", gatewayInvoiceID).First(&invoice).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &invoice, nil
}

func (r *invoiceRepository) SetGatewayInvoiceID(ctx context.Context, id uint, gatewayInvoiceID string) error {
	return r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("id = ?", id).
		Update("gateway_invoice_id", gatewayInvoiceID).Error
}

func (r *invoiceRepository) MarkSent(ctx context.Context, id uint, number string, meta models.InvoiceMetadata) (int64, error) {
	return r.transition(ctx, id, models.InvoiceStatusSent, map[string]interface{}{
		"invoice_number":     number,
		"gateway_invoice_id": meta.GatewayInvoiceID,
		"metadata":           meta.JSON(),
	})
}

func (r *invoiceRepository) MarkFailed(ctx context.Context, id uint, meta models.InvoiceMetadata) (int64, error) {
	return r.transition(ctx, id, models.InvoiceStatusFailed, map[string]interface{}{
		"metadata": meta.JSON(),
	})
}

// MarkSendFailed parks an invoice whose gateway copy exists but was never
// confirmed sent. Webhooks may still settle it.
func (r *invoiceRepository) MarkSendFailed(ctx context.Context, id uint, meta models.InvoiceMetadata) (int64, error) {
	return r.transition(ctx, id, models.InvoiceStatusSendFailed, map[string]interface{}{
		"gateway_invoice_id": meta.GatewayInvoiceID,
		"metadata":           meta.JSON(),
	})
}

// ApplyEvent moves the invoice to status unless that would regress it or the
// event is older than the last one applied.
func (r *invoiceRepository) ApplyEvent(ctx context.Context, id uint, status string, at time.Time) (int64, error) {
	tx := r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("id = ? AND status IN ?", id, models.InvoiceSourceStatuses(status)).
		Where("(last_event_at IS NULL OR last_event_at <= ?)", at).
		Updates(map[string]interface{}{
			"status":        status,
			"last_event_at": at,
		})
	return tx.RowsAffected, tx.Error
}

// FailStaleDrafts fails drafts stuck since before createdBefore. Drafts that
// already have a gateway invoice are left for webhooks to settle.
func (r *invoiceRepository) FailStaleDrafts(ctx context.Context, createdBefore time.Time) (int64, error) {
	tx := r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("status = ? AND created_at < ?", models.InvoiceStatusDraft, createdBefore).
		Where("(gateway_invoice_id IS NULL OR gateway_invoice_id = '')").
		Update("status", models.InvoiceStatusFailed)
	return tx.RowsAffected, tx.Error
}

func (r *invoiceRepository) transition(ctx context.Context, id uint, status string, updates map[string]interface{}) (int64, error) {
	updates["status"] = status
	tx := r.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("id = ? AND status IN ?", id, models.InvoiceSourceStatuses(status)).
		Updates(updates)
	return tx.RowsAffected, tx.Error
}
