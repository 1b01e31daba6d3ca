package controllers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/alumup/athletesapp-sub001/internal/pkg/billing"
)

type attendancePayload struct {
	PersonID  uint `json:"person_id" validate:"required"`
	ProfileID uint `json:"profile_id" validate:"required"`
}

type rsvpPayload struct {
	Status string `json:"status" validate:"required"`
}

// HandleGetOrCreateAttendance returns the RSVP for a person at an event,
// creating an undecided one on first access.
func (bc *BillingController) HandleGetOrCreateAttendance(c *fiber.Ctx) error {
	eventID, err := c.ParamsInt("event_id")
	if err != nil || eventID <= 0 {
		return writeError(c, "Attendance", &billing.ValidationError{Field: "event_id", Message: "must be a positive integer"})
	}
	var p attendancePayload
	if err := parseBody(c, &p); err != nil {
		return writeError(c, "Attendance", err)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	attendance, err := bc.svc.GetOrCreateAttendance(ctx, uint(eventID), p.PersonID, p.ProfileID)
	if err != nil {
		return writeError(c, "Attendance", err)
	}
	return c.JSON(attendance)
}

// HandleConfirmRSVP sets the RSVP status on an event without a fee.
func (bc *BillingController) HandleConfirmRSVP(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return writeError(c, "Attendance", &billing.ValidationError{Field: "id", Message: "must be a positive integer"})
	}
	var p rsvpPayload
	if err := parseBody(c, &p); err != nil {
		return writeError(c, "Attendance", err)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	attendance, err := bc.svc.ConfirmFreeRSVP(ctx, uint(id), p.Status)
	if err != nil {
		return writeError(c, "Attendance", err)
	}
	return c.JSON(attendance)
}
