// Package testutil holds helpers shared by package tests. It is never
// imported by production code.
package testutil

import (
	"testing"

	"github.com/alumup/athletesapp-sub001/app/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a private in-memory SQLite database with the ledger schema.
// A single connection serialises writers the way row locks would in MySQL.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(models.LedgerModels()...))
	return db
}

// Fixture is a connected tenant with one member, one payer and an event fee.
type Fixture struct {
	Account    models.Account
	Person     models.Person
	Profile    models.Profile
	Fee        models.Fee
	Event      models.Event
	Attendance models.Attendance
}

// Seed inserts a Fixture: a $50.00 fee on an account taking a 3% cut.
func Seed(t *testing.T, db *gorm.DB) *Fixture {
	t.Helper()

	connected := "acct_test123"
	f := &Fixture{}
	f.Account = models.Account{
		Name:               "Northside Athletics",
		GatewayAccountID:   &connected,
		ApplicationFeeRate: decimal.NewNullDecimal(decimal.RequireFromString("0.03")),
		WebhookSecret:      "whsec_account",
	}
	require.NoError(t, db.Create(&f.Account).Error)

	f.Person = models.Person{AccountID: f.Account.ID, Name: "Jamie Doe", Email: "jamie@example.com"}
	require.NoError(t, db.Create(&f.Person).Error)

	f.Profile = models.Profile{Name: "Pat Doe", Email: "pat@example.com", Phone: "555-0100"}
	require.NoError(t, db.Create(&f.Profile).Error)

	f.Fee = models.Fee{AccountID: f.Account.ID, Name: "Tournament Fee", Amount: decimal.RequireFromString("50.00"), IsActive: true}
	require.NoError(t, db.Create(&f.Fee).Error)

	f.Event = models.Event{AccountID: f.Account.ID, Name: "Spring Invitational", FeeID: &f.Fee.ID}
	require.NoError(t, db.Create(&f.Event).Error)

	f.Attendance = models.Attendance{
		EventsID:  f.Event.ID,
		PersonID:  f.Person.ID,
		ProfileID: f.Profile.ID,
		Status:    models.AttendanceStatusGoing,
	}
	require.NoError(t, db.Create(&f.Attendance).Error)
	return f
}

// AddPerson inserts another member going to the fixture's event on behalf of
// the same profile.
func (f *Fixture) AddPerson(t *testing.T, db *gorm.DB, name string) (models.Person, models.Attendance) {
	t.Helper()

	p := models.Person{AccountID: f.Account.ID, Name: name}
	require.NoError(t, db.Create(&p).Error)
	a := models.Attendance{EventsID: f.Event.ID, PersonID: p.ID, ProfileID: f.Profile.ID, Status: models.AttendanceStatusGoing}
	require.NoError(t, db.Create(&a).Error)
	return p, a
}
