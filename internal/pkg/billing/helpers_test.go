package billing

import (
	"context"
	"testing"
	"time"

	"github.com/alumup/athletesapp-sub001/app/models"
	"github.com/alumup/athletesapp-sub001/app/repository"
	"github.com/alumup/athletesapp-sub001/internal/pkg/gateway"
	"github.com/alumup/athletesapp-sub001/internal/pkg/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type harness struct {
	svc *Service
	db  *gorm.DB
	fx  *testutil.Fixture
	gw  *testutil.FakeGateway
}

func newHarness(t *testing.T, opts ...Option) *harness {
	t.Helper()
	db := testutil.NewDB(t)
	gw := testutil.NewFakeGateway()
	return &harness{
		svc: NewService(repository.NewRepositories(db), gw, opts...),
		db:  db,
		fx:  testutil.Seed(t, db),
		gw:  gw,
	}
}

func (h *harness) checkoutRequest() CheckoutRequest {
	return CheckoutRequest{
		AccountID: h.fx.Account.ID,
		PersonID:  h.fx.Person.ID,
		ProfileID: h.fx.Profile.ID,
		FeeID:     h.fx.Fee.ID,
		RsvpID:    h.fx.Attendance.ID,
	}
}

func (h *harness) payments(t *testing.T) []models.Payment {
	t.Helper()
	var out []models.Payment
	require.NoError(t, h.db.Order("id").Find(&out).Error)
	return out
}

func (h *harness) attendance(t *testing.T, id uint) models.Attendance {
	t.Helper()
	var a models.Attendance
	require.NoError(t, h.db.First(&a, id).Error)
	return a
}

func (h *harness) invoice(t *testing.T, id uint) models.Invoice {
	t.Helper()
	var inv models.Invoice
	require.NoError(t, h.db.First(&inv, id).Error)
	return inv
}

func intentEvent(id, eventType, intentID, status string, at time.Time, meta gateway.Metadata) *gateway.Event {
	return &gateway.Event{
		ID:      id,
		Type:    eventType,
		Created: at.UTC().Truncate(time.Second),
		Object: gateway.EventObject{
			ID:       intentID,
			Object:   "payment_intent",
			Status:   status,
			Metadata: meta,
		},
		Payload: []byte(`{"id":"` + id + `"}`),
	}
}

func invoiceEvent(id, eventType, invoiceID string, at time.Time, meta gateway.Metadata) *gateway.Event {
	return &gateway.Event{
		ID:      id,
		Type:    eventType,
		Created: at.UTC().Truncate(time.Second),
		Object: gateway.EventObject{
			ID:       invoiceID,
			Object:   "invoice",
			Metadata: meta,
		},
		Payload: []byte(`{"id":"` + id + `"}`),
	}
}

// noopLocker leaves concurrency control to the unique obligation key.
type noopLocker struct{}

func (noopLocker) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}
