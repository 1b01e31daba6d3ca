package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alumup/athletesapp-sub001/app/models"
	"github.com/alumup/athletesapp-sub001/app/repository"
	"github.com/alumup/athletesapp-sub001/internal/pkg/gateway"
	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"
)

const intentStatusCanceled = "canceled"

// charge is a resolved checkout: everything is loaded and validated, and the
// only remaining steps touch the ledger reservation and the gateway.
type charge struct {
	account     *models.Account
	customerID  string
	description string
	template    models.Payment
	existing    *models.Payment
	metadata    gateway.Metadata
	rsvpIDs     []uint
}

// CreateCharge returns a client secret for one person's fee, reusing the open
// payment for the same obligation when one exists.
func (s *Service) CreateCharge(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	account, err := s.repos.Account.GetByID(ctx, req.AccountID)
	if err != nil {
		return nil, lookupErr("account", req.AccountID, err)
	}
	fee, err := s.loadFee(ctx, account, req.FeeID)
	if err != nil {
		return nil, err
	}
	person, err := s.repos.Person.GetByID(ctx, req.PersonID)
	if err != nil {
		return nil, lookupErr("person", req.PersonID, err)
	}
	if person.AccountID != account.ID {
		return nil, invalid("person", "does not belong to account")
	}
	profile, err := s.repos.Profile.GetByID(ctx, req.ProfileID)
	if err != nil {
		return nil, lookupErr("profile", req.ProfileID, err)
	}

	attendance, err := s.repos.Attendance.GetByID(ctx, req.RsvpID)
	if err != nil {
		return nil, lookupErr("attendance", req.RsvpID, err)
	}
	if attendance.PersonID != person.ID || attendance.ProfileID != profile.ID {
		return nil, invalid("rsvp", "does not match person and profile")
	}
	if attendance.IsPaid() {
		return nil, fmt.Errorf("%w: attendance %d", ErrAlreadyPaid, attendance.ID)
	}

	connected := account.ConnectedAccountID()
	customerID, err := s.personCustomer(ctx, connected, person)
	if err != nil {
		log.Errorf("[Checkout] customer for person %d failed: %v", person.ID, err)
		return nil, fmt.Errorf("%w: %w", ErrCheckoutFailed, err)
	}

	key := singleObligationKey(account.ID, fee.ID, person.ID, profile.ID, attendance.ID)
	unlock, err := s.locker.Lock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := s.repos.Payment.FindOpen(ctx, repository.Obligation{
		AccountID: account.ID,
		FeeID:     fee.ID,
		PersonID:  person.ID,
		ProfileID: profile.ID,
		RsvpID:    attendance.ID,
	})
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("find open payment: %w", err)
	}

	meta := gateway.Metadata{}
	meta.SetUint(gateway.MetaFeeID, fee.ID)
	meta.SetUint(gateway.MetaRsvpID, attendance.ID)
	meta.SetUint(gateway.MetaProfileID, profile.ID)
	meta.SetUint(gateway.MetaPersonID, person.ID)

	personID, rsvpID := person.ID, attendance.ID
	return s.settleCharge(ctx, charge{
		account:     account,
		customerID:  customerID,
		description: fee.Name,
		existing:    existing,
		metadata:    meta,
		rsvpIDs:     []uint{attendance.ID},
		template: models.Payment{
			AccountID:     account.ID,
			PersonID:      &personID,
			ProfileID:     profile.ID,
			FeeID:         fee.ID,
			RsvpID:        &rsvpID,
			Amount:        fee.Amount,
			Status:        models.PaymentStatusPending,
			ObligationKey: &key,
		},
	})
}

// CreateMultiCharge returns one client secret covering the fee for every
// listed person's attendance at the event.
func (s *Service) CreateMultiCharge(ctx context.Context, req MultiCheckoutRequest) (*CheckoutResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	account, err := s.repos.Account.GetByID(ctx, req.AccountID)
	if err != nil {
		return nil, lookupErr("account", req.AccountID, err)
	}
	fee, err := s.loadFee(ctx, account, req.FeeID)
	if err != nil {
		return nil, err
	}
	profile, err := s.repos.Profile.GetByID(ctx, req.ProfileID)
	if err != nil {
		return nil, lookupErr("profile", req.ProfileID, err)
	}
	event, err := s.repos.Event.GetByID(ctx, req.EventID)
	if err != nil {
		return nil, lookupErr("event", req.EventID, err)
	}
	if event.AccountID != account.ID {
		return nil, invalid("event", "does not belong to account")
	}

	personIDs := gateway.SortedIDs(req.PersonIDs)
	rsvpIDs := make([]uint, 0, len(personIDs))
	paymentIDs := make([]uint, 0, len(personIDs))
	for _, personID := range personIDs {
		attendance, err := s.repos.Attendance.FindByEventPersonProfile(ctx, event.ID, personID, profile.ID)
		if err != nil {
			return nil, lookupErr("attendance for person", personID, err)
		}
		if attendance.IsPaid() {
			return nil, fmt.Errorf("%w: attendance %d", ErrAlreadyPaid, attendance.ID)
		}
		rsvpIDs = append(rsvpIDs, attendance.ID)
		if attendance.PaymentsID != nil {
			paymentIDs = append(paymentIDs, *attendance.PaymentsID)
		}
	}
	rsvpIDs = gateway.SortedIDs(rsvpIDs)

	meta := gateway.Metadata{}
	meta.SetUint(gateway.MetaFeeID, fee.ID)
	meta.SetUint(gateway.MetaProfileID, profile.ID)
	meta.SetUint(gateway.MetaEventID, event.ID)
	if err := meta.SetIDs(gateway.MetaRsvpIDs, rsvpIDs); err != nil {
		return nil, invalid("persons", "too many participants for a single charge")
	}
	if err := meta.SetIDs(gateway.MetaPersonIDs, personIDs); err != nil {
		return nil, invalid("persons", "too many participants for a single charge")
	}

	connected := account.ConnectedAccountID()
	customer, err := s.gateway.FindOrCreateCustomer(ctx, connected, gateway.CustomerInput{
		Email: profile.Email,
		Name:  profile.Name,
		Phone: profile.Phone,
	})
	if err != nil {
		log.Errorf("[Checkout] customer for profile %d failed: %v", profile.ID, err)
		return nil, fmt.Errorf("%w: %w", ErrCheckoutFailed, err)
	}

	key := multiObligationKey(account.ID, fee.ID, profile.ID, event.ID, rsvpIDs)
	unlock, err := s.locker.Lock(ctx, key)
	if err != nil {
		return nil, err
	}
	defer unlock()

	existing, err := s.repos.Payment.FindOpenByIDs(ctx, paymentIDs)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("find open payment: %w", err)
	}
	// A linked payment for a different participant set (or a single-person
	// charge) does not cover this checkout.
	if existing != nil && (existing.ObligationKey == nil || *existing.ObligationKey != key) {
		log.Infof("[Checkout] open payment %d covers other participants, reserving a new one", existing.ID)
		existing = nil
	}

	return s.settleCharge(ctx, charge{
		account:     account,
		customerID:  customer.ID,
		description: fmt.Sprintf("%s (%d participants)", fee.Name, len(personIDs)),
		existing:    existing,
		metadata:    meta,
		rsvpIDs:     rsvpIDs,
		template: models.Payment{
			AccountID:     account.ID,
			ProfileID:     profile.ID,
			FeeID:         fee.ID,
			Amount:        fee.Amount.Mul(decimal.NewFromInt(int64(len(personIDs)))),
			Status:        models.PaymentStatusPending,
			ObligationKey: &key,
		},
	})
}

// settleCharge runs under the obligation lock. An open payment with a live
// intent is reused; otherwise a reservation is inserted (or fetched when a
// concurrent writer won) and its intent created.
func (s *Service) settleCharge(ctx context.Context, c charge) (*CheckoutResult, error) {
	connected := c.account.ConnectedAccountID()

	for attempt := 0; attempt < 2; attempt++ {
		payment, created, err := s.reservePayment(ctx, &c)
		if err != nil {
			return nil, err
		}
		if payment.PaymentIntentID == "" {
			return s.createIntent(ctx, c, payment, created)
		}

		result, reused, err := s.reuseIntent(ctx, connected, payment)
		if err != nil {
			return nil, err
		}
		if reused {
			if err := s.repos.Attendance.SetPaymentID(ctx, c.rsvpIDs, payment.ID); err != nil {
				return nil, fmt.Errorf("link attendances to payment %d: %w", payment.ID, err)
			}
			return result, nil
		}
	}
	return nil, fmt.Errorf("%w: payment intent canceled during checkout", ErrCheckoutFailed)
}

func (s *Service) reservePayment(ctx context.Context, c *charge) (*models.Payment, bool, error) {
	if c.existing != nil {
		p := c.existing
		c.existing = nil
		return p, false, nil
	}

	payment := c.template
	created, err := s.repos.Payment.InsertOrFetch(ctx, &payment)
	if err != nil {
		return nil, false, fmt.Errorf("reserve payment: %w", err)
	}
	return &payment, created, nil
}

// reuseIntent returns the client secret of the payment's intent. A canceled
// intent closes the payment and reports reused=false so a new one is made.
func (s *Service) reuseIntent(ctx context.Context, connected string, payment *models.Payment) (*CheckoutResult, bool, error) {
	intent, err := s.gateway.RetrievePaymentIntent(ctx, connected, payment.PaymentIntentID)
	if err != nil {
		log.Errorf("[Checkout] retrieve intent %s failed: %v", payment.PaymentIntentID, err)
		return nil, false, fmt.Errorf("%w: %w", ErrCheckoutFailed, err)
	}
	if intent.Status == intentStatusCanceled {
		log.Infof("[Checkout] intent %s was canceled, closing payment %d", intent.ID, payment.ID)
		if err := s.repos.Payment.MarkCanceled(ctx, payment.ID); err != nil {
			return nil, false, fmt.Errorf("close canceled payment: %w", err)
		}
		return nil, false, nil
	}

	log.Infof("[Checkout] reusing intent %s for payment %d", intent.ID, payment.ID)
	return &CheckoutResult{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		PaymentID:       payment.ID,
		Amount:          payment.Amount,
		Reused:          true,
	}, true, nil
}

func (s *Service) createIntent(ctx context.Context, c charge, payment *models.Payment, created bool) (*CheckoutResult, error) {
	meta := gateway.Metadata{}
	for k, v := range c.metadata {
		meta[k] = v
	}
	meta.SetUint(gateway.MetaPaymentID, payment.ID)

	in := gateway.PaymentIntentInput{
		Customer:       c.customerID,
		Amount:         payment.Amount,
		Description:    c.description,
		Metadata:       meta,
		IdempotencyKey: paymentIdempotencyKey(payment.ID),
	}
	if cut, ok := c.account.ApplicationFeeFor(payment.Amount); ok {
		in.ApplicationFee = &cut
	}

	intent, err := s.gateway.CreatePaymentIntent(ctx, c.account.ConnectedAccountID(), in)
	if err != nil {
		log.Errorf("[Checkout] create intent for payment %d failed: %v", payment.ID, err)
		if created {
			if derr := s.repos.Payment.DeleteReservation(ctx, payment.ID); derr != nil {
				log.Warnf("[Checkout] failed to drop reservation %d: %v", payment.ID, derr)
			}
		}
		return nil, fmt.Errorf("%w: %w", ErrCheckoutFailed, err)
	}

	if err := s.repos.Payment.SetIntentID(ctx, payment.ID, intent.ID); err != nil {
		return nil, fmt.Errorf("store intent %s on payment %d: %w", intent.ID, payment.ID, err)
	}
	if err := s.repos.Attendance.SetPaymentID(ctx, c.rsvpIDs, payment.ID); err != nil {
		return nil, fmt.Errorf("link attendances to payment %d: %w", payment.ID, err)
	}

	log.Infof("[Checkout] created intent %s for payment %d (%s)", intent.ID, payment.ID, payment.Amount.StringFixed(2))
	return &CheckoutResult{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		PaymentID:       payment.ID,
		Amount:          payment.Amount,
	}, nil
}

func (s *Service) loadFee(ctx context.Context, account *models.Account, feeID uint) (*models.Fee, error) {
	fee, err := s.repos.Fee.GetByID(ctx, feeID)
	if err != nil {
		return nil, lookupErr("fee", feeID, err)
	}
	if fee.AccountID != account.ID {
		return nil, invalid("fee", "does not belong to account")
	}
	if !fee.IsActive {
		return nil, invalid("fee", "is not active")
	}
	if !fee.Amount.IsPositive() {
		return nil, invalid("fee", "has no payable amount")
	}
	return fee, nil
}

// personCustomer resolves the person's gateway customer on the connected
// account. Persons with an email are looked up every time so mutable fields
// stay fresh; the cached id is only trusted for email-less persons and only
// on the account it was created on.
func (s *Service) personCustomer(ctx context.Context, connected string, person *models.Person) (string, error) {
	cached, ok := person.CustomerOn(connected)
	if ok && strings.TrimSpace(person.Email) == "" {
		return cached, nil
	}

	customer, err := s.gateway.FindOrCreateCustomer(ctx, connected, gateway.CustomerInput{
		Email: person.Email,
		Name:  person.Name,
		Phone: person.Phone,
	})
	if err != nil {
		return "", err
	}
	if cached != customer.ID {
		if err := s.repos.Person.SetGatewayCustomer(ctx, person.ID, connected, customer.ID); err != nil {
			log.Warnf("[Checkout] failed to cache customer %s on person %d: %v", customer.ID, person.ID, err)
		}
	}
	return customer.ID, nil
}
