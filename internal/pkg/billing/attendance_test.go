package billing

import (
	"context"
	"testing"

	"github.com/alumup/athletesapp-sub001/app/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateAttendance(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	p, _ := h.fx.AddPerson(t, h.db, "Riley")
	other := models.Event{AccountID: h.fx.Account.ID, Name: "Scrimmage"}
	require.NoError(t, h.db.Create(&other).Error)

	first, err := h.svc.GetOrCreateAttendance(ctx, other.ID, p.ID, h.fx.Profile.ID)
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusUndecided, first.Status)

	second, err := h.svc.GetOrCreateAttendance(ctx, other.ID, p.ID, h.fx.Profile.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	existing, err := h.svc.GetOrCreateAttendance(ctx, h.fx.Event.ID, h.fx.Person.ID, h.fx.Profile.ID)
	require.NoError(t, err)
	assert.Equal(t, h.fx.Attendance.ID, existing.ID)
	assert.Equal(t, models.AttendanceStatusGoing, existing.Status)

	_, err = h.svc.GetOrCreateAttendance(ctx, 9999, p.ID, h.fx.Profile.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = h.svc.GetOrCreateAttendance(ctx, other.ID, 0, h.fx.Profile.ID)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestConfirmFreeRSVP(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	free := models.Event{AccountID: h.fx.Account.ID, Name: "Team Photo"}
	require.NoError(t, h.db.Create(&free).Error)
	a, err := h.svc.GetOrCreateAttendance(ctx, free.ID, h.fx.Person.ID, h.fx.Profile.ID)
	require.NoError(t, err)

	updated, err := h.svc.ConfirmFreeRSVP(ctx, a.ID, "Going")
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusGoing, updated.Status)

	_, err = h.svc.ConfirmFreeRSVP(ctx, a.ID, models.AttendanceStatusPaid)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = h.svc.ConfirmFreeRSVP(ctx, h.fx.Attendance.ID, models.AttendanceStatusGoing)
	assert.ErrorIs(t, err, ErrValidation, "events with a fee require checkout")

	require.NoError(t, h.db.Model(&models.Attendance{}).Where("id = ?", a.ID).Update("status", models.AttendanceStatusPaid).Error)
	_, err = h.svc.ConfirmFreeRSVP(ctx, a.ID, models.AttendanceStatusUndecided)
	assert.ErrorIs(t, err, ErrAlreadyPaid)
}

func TestConfirmFreeRSVPAllowsZeroFeeEvents(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	zero := models.Fee{AccountID: h.fx.Account.ID, Name: "Waived", Amount: decimal.Zero, IsActive: true}
	require.NoError(t, h.db.Create(&zero).Error)
	event := models.Event{AccountID: h.fx.Account.ID, Name: "Open Gym", FeeID: &zero.ID}
	require.NoError(t, h.db.Create(&event).Error)

	a, err := h.svc.GetOrCreateAttendance(ctx, event.ID, h.fx.Person.ID, h.fx.Profile.ID)
	require.NoError(t, err)
	updated, err := h.svc.ConfirmFreeRSVP(ctx, a.ID, models.AttendanceStatusGoing)
	require.NoError(t, err)
	assert.Equal(t, models.AttendanceStatusGoing, updated.Status)
}
