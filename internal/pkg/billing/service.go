package billing

import (
	"time"

	"github.com/alumup/athletesapp-sub001/app/repository"
	"github.com/alumup/athletesapp-sub001/internal/pkg/gateway"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DefaultInvoiceFeeRate is the platform cut on ad hoc invoices. It is
// independent of the per-account checkout rate.
var DefaultInvoiceFeeRate = decimal.RequireFromString("0.03")

// Service runs checkout, invoicing and webhook reconciliation against the
// ledger and the payment gateway.
type Service struct {
	repos          *repository.Repositories
	gateway        gateway.Client
	locker         Locker
	invoiceFeeRate decimal.Decimal
	now            func() time.Time
}

type Option func(*Service)

func WithLocker(l Locker) Option {
	return func(s *Service) { s.locker = l }
}

func WithInvoiceFeeRate(rate decimal.Decimal) Option {
	return func(s *Service) { s.invoiceFeeRate = rate }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a billing service from injected repositories.
func NewService(repos *repository.Repositories, gw gateway.Client, opts ...Option) *Service {
	s := &Service{
		repos:          repos,
		gateway:        gw,
		locker:         NewLocalLocker(),
		invoiceFeeRate: DefaultInvoiceFeeRate,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, gw gateway.Client, opts ...Option) *Service {
	return NewService(repository.NewRepositories(db), gw, opts...)
}
