package repository

import (
	"context"

	"github.com/alumup/athletesapp-sub001/app/models"
	"gorm.io/gorm"
)

// The read-mostly tables (accounts, persons, profiles, fees, events, rosters)
// are owned by the wider application; this service only looks them up and
// caches person gateway customer ids.

type accountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

func (r *accountRepository) GetByID(ctx context.Context, id uint) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).First(&account, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &account, nil
}

type personRepository struct {
	db *gorm.DB
}

func NewPersonRepository(db *gorm.DB) PersonRepository {
	return &personRepository{db: db}
}

func (r *personRepository) GetByID(ctx context.Context, id uint) (*models.Person, error) {
	var person models.Person
	if err := r.db.WithContext(ctx).First(&person, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &person, nil
}

func (r *personRepository) SetGatewayCustomer(ctx context.Context, id uint, connectedAccount, customerID string) error {
	return r.db.WithContext(ctx).Model(&models.Person{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"gateway_customer_id":      customerID,
			"gateway_customer_account": connectedAccount,
		}).Error
}

type profileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) GetByID(ctx context.Context, id uint) (*models.Profile, error) {
	var profile models.Profile
	if err := r.db.WithContext(ctx).First(&profile, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &profile, nil
}

type feeRepository struct {
	db *gorm.DB
}

func NewFeeRepository(db *gorm.DB) FeeRepository {
	return &feeRepository{db: db}
}

func (r *feeRepository) GetByID(ctx context.Context, id uint) (*models.Fee, error) {
	var fee models.Fee
	if err := r.db.WithContext(ctx).First(&fee, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &fee, nil
}

type eventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

func (r *eventRepository) GetByID(ctx context.Context, id uint) (*models.Event, error) {
	var event models.Event
	if err := r.db.WithContext(ctx).First(&event, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &event, nil
}

type rosterRepository struct {
	db *gorm.DB
}

func NewRosterRepository(db *gorm.DB) RosterRepository {
	return &rosterRepository{db: db}
}

func (r *rosterRepository) GetByID(ctx context.Context, id uint) (*models.Roster, error) {
	var roster models.Roster
	if err := r.db.WithContext(ctx).First(&roster, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &roster, nil
}
