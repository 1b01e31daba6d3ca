package controllers

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/shopspring/decimal"

	"github.com/alumup/athletesapp-sub001/app/repository"
	"github.com/alumup/athletesapp-sub001/internal/pkg/billing"
)

const (
	requestTimeout = 30 * time.Second
	webhookTimeout = 15 * time.Second
)

// BillingController exposes checkout, invoicing and the gateway webhook.
type BillingController struct {
	svc            *billing.Service
	accounts       repository.AccountRepository
	platformSecret string
}

func NewBillingController(svc *billing.Service, accounts repository.AccountRepository, platformSecret string) *BillingController {
	return &BillingController{svc: svc, accounts: accounts, platformSecret: platformSecret}
}

type checkoutPayload struct {
	Rsvp    uint `json:"rsvp" validate:"required"`
	Profile uint `json:"profile" validate:"required"`
	Person  uint `json:"person" validate:"required"`
	Fee     uint `json:"fee" validate:"required"`
	Account uint `json:"account" validate:"required"`
}

type multiCheckoutPayload struct {
	Profile uint   `json:"profile" validate:"required"`
	Persons []uint `json:"persons" validate:"required,min=1,dive,required"`
	Fee     uint   `json:"fee" validate:"required"`
	Account uint   `json:"account" validate:"required"`
	Event   uint   `json:"event" validate:"required"`
}

type invoicePayload struct {
	CustomerID      string          `json:"customerId"`
	RosterID        *uint           `json:"rosterId"`
	AthleteName     string          `json:"athleteName"`
	TeamName        string          `json:"teamName"`
	Amount          decimal.Decimal `json:"amount"`
	AccountID       uint            `json:"accountId" validate:"required"`
	StripeAccountID string          `json:"stripeAccountId"`
	PersonID        uint            `json:"person_id" validate:"required"`
	Description     string          `json:"description"`
	IsCustomInvoice bool            `json:"isCustomInvoice"`
}

// HandleCheckout creates or reuses the payment intent for one RSVP.
func (bc *BillingController) HandleCheckout(c *fiber.Ctx) error {
	var p checkoutPayload
	if err := parseBody(c, &p); err != nil {
		return writeError(c, "Checkout", err)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	res, err := bc.svc.CreateCharge(ctx, billing.CheckoutRequest{
		AccountID: p.Account,
		PersonID:  p.Person,
		ProfileID: p.Profile,
		FeeID:     p.Fee,
		RsvpID:    p.Rsvp,
	})
	if err != nil {
		return writeError(c, "Checkout", err)
	}
	return c.JSON(res)
}

// HandleMultiCheckout charges one fee for several persons in one intent.
func (bc *BillingController) HandleMultiCheckout(c *fiber.Ctx) error {
	var p multiCheckoutPayload
	if err := parseBody(c, &p); err != nil {
		return writeError(c, "Checkout", err)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	res, err := bc.svc.CreateMultiCharge(ctx, billing.MultiCheckoutRequest{
		AccountID: p.Account,
		ProfileID: p.Profile,
		FeeID:     p.Fee,
		EventID:   p.Event,
		PersonIDs: p.Persons,
	})
	if err != nil {
		return writeError(c, "Checkout", err)
	}
	return c.JSON(res)
}

func (bc *BillingController) HandleCreateInvoice(c *fiber.Ctx) error {
	var p invoicePayload
	if err := parseBody(c, &p); err != nil {
		return writeError(c, "Invoice", err)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	res, err := bc.svc.CreateInvoice(ctx, billing.InvoiceRequest{
		AccountID:       p.AccountID,
		PersonID:        p.PersonID,
		RosterID:        p.RosterID,
		CustomerID:      p.CustomerID,
		StripeAccountID: p.StripeAccountID,
		AthleteName:     p.AthleteName,
		TeamName:        p.TeamName,
		Amount:          p.Amount,
		Description:     p.Description,
		IsCustomInvoice: p.IsCustomInvoice,
	})
	if err != nil {
		return writeError(c, "Invoice", err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

// HandleStripeWebhook verifies and reconciles a gateway notification. With
// an :account_id the account's own signing secret is used.
func (bc *BillingController) HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := strings.TrimSpace(c.Get("Stripe-Signature"))

	ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
	defer cancel()

	secret, err := bc.webhookSecret(ctx, c.Params("account_id"))
	if err != nil {
		return writeError(c, "Webhook", err)
	}

	res, err := bc.svc.HandleWebhook(ctx, rawBody, signature, secret)
	if err != nil {
		return writeError(c, "Webhook", err)
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"received": true, "duplicate": res.Duplicate})
}

func (bc *BillingController) webhookSecret(ctx context.Context, accountParam string) (string, error) {
	if accountParam == "" {
		return bc.platformSecret, nil
	}
	id, err := strconv.ParseUint(accountParam, 10, 64)
	if err != nil || id == 0 {
		return "", &billing.ValidationError{Field: "account_id", Message: "must be a positive integer"}
	}
	account, err := bc.accounts.GetByID(ctx, uint(id))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", billing.ErrNotFound
		}
		return "", err
	}
	if account.WebhookSecret == "" {
		log.Warnf("[Webhook] account %d has no webhook secret, using platform secret", account.ID)
		return bc.platformSecret, nil
	}
	return account.WebhookSecret, nil
}
