package repository

import (
	"context"
	"errors"
	"time"

	"github.com/alumup/athletesapp-sub001/app/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned by lookups that match no row.
var ErrNotFound = errors.New("record not found")

// AccountRepository reads tenant accounts.
type AccountRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Account, error)
}

// PersonRepository reads persons and caches their gateway customer id along
// with the connected account it was created on.
type PersonRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Person, error)
	SetGatewayCustomer(ctx context.Context, id uint, connectedAccount, customerID string) error
}

type ProfileRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Profile, error)
}

type FeeRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Fee, error)
}

type EventRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Event, error)
}

type RosterRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Roster, error)
}

// AttendanceRepository manages RSVPs. Rows are unique per
// (event, person, profile).
type AttendanceRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Attendance, error)
	GetOrCreate(ctx context.Context, eventID, personID, profileID uint) (*models.Attendance, bool, error)
	FindByEventPersonProfile(ctx context.Context, eventID, personID, profileID uint) (*models.Attendance, error)
	SetPaymentID(ctx context.Context, ids []uint, paymentID uint) error
	MarkPaid(ctx context.Context, ids []uint) (int64, error)
	UpdateStatus(ctx context.Context, id uint, status string) error
}

// Obligation identifies the single-participant charge a payment settles.
type Obligation struct {
	AccountID uint
	FeeID     uint
	PersonID  uint
	ProfileID uint
	RsvpID    uint
}

// PaymentRepository is the payment half of the ledger.
type PaymentRepository interface {
	GetByID(ctx context.Context, id uint) (*models.Payment, error)
	GetByIntentID(ctx context.Context, intentID string) (*models.Payment, error)
	FindOpen(ctx context.Context, o Obligation) (*models.Payment, error)
	FindOpenByIDs(ctx context.Context, ids []uint) (*models.Payment, error)
	InsertOrFetch(ctx context.Context, payment *models.Payment) (bool, error)
	SetIntentID(ctx context.Context, id uint, intentID string) error
	MarkCanceled(ctx context.Context, id uint) error
	DeleteReservation(ctx context.Context, id uint) error
	ApplyIntentEvent(ctx context.Context, intentID, status string, payload []byte, at time.Time) (int64, error)
	ApplyObligationEvent(ctx context.Context, feeID, personID uint, status string, payload []byte, at time.Time) (int64, error)
}

// InvoiceRepository is the invoice half of the ledger.
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *models.Invoice) error
	GetByID(ctx context.Context, id uint) (*models.Invoice, error)
	GetByGatewayInvoiceID(ctx context.Context, gatewayInvoiceID string) (*models.Invoice, error)
	SetGatewayInvoiceID(ctx context.Context, id uint, gatewayInvoiceID string) error
	MarkSent(ctx context.Context, id uint, number string, meta models.InvoiceMetadata) (int64, error)
	MarkFailed(ctx context.Context, id uint, meta models.InvoiceMetadata) (int64, error)
	MarkSendFailed(ctx context.Context, id uint, meta models.InvoiceMetadata) (int64, error)
	ApplyEvent(ctx context.Context, id uint, status string, at time.Time) (int64, error)
	FailStaleDrafts(ctx context.Context, createdBefore time.Time) (int64, error)
}

// WebhookEventRepository records gateway notifications for deduplication.
type WebhookEventRepository interface {
	CreateIfNotExists(ctx context.Context, event *models.GatewayWebhookEvent) (bool, *models.GatewayWebhookEvent, error)
	MarkProcessed(ctx context.Context, id uint, processingError string) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	Account      AccountRepository
	Person       PersonRepository
	Profile      ProfileRepository
	Fee          FeeRepository
	Event        EventRepository
	Roster       RosterRepository
	Attendance   AttendanceRepository
	Payment      PaymentRepository
	Invoice      InvoiceRepository
	WebhookEvent WebhookEventRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Account:      NewAccountRepository(db),
		Person:       NewPersonRepository(db),
		Profile:      NewProfileRepository(db),
		Fee:          NewFeeRepository(db),
		Event:        NewEventRepository(db),
		Roster:       NewRosterRepository(db),
		Attendance:   NewAttendanceRepository(db),
		Payment:      NewPaymentRepository(db),
		Invoice:      NewInvoiceRepository(db),
		WebhookEvent: NewWebhookEventRepository(db),
	}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
