package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alumup/athletesapp-sub001/app/models"
	"github.com/alumup/athletesapp-sub001/app/repository"
	"github.com/gofiber/fiber/v2/log"
)

// GetOrCreateAttendance returns the person's RSVP for the event, creating an
// undecided one on first access.
func (s *Service) GetOrCreateAttendance(ctx context.Context, eventID, personID, profileID uint) (*models.Attendance, error) {
	switch {
	case eventID == 0:
		return nil, invalid("event_id", "is required")
	case personID == 0:
		return nil, invalid("person_id", "is required")
	case profileID == 0:
		return nil, invalid("profile_id", "is required")
	}

	event, err := s.repos.Event.GetByID(ctx, eventID)
	if err != nil {
		return nil, lookupErr("event", eventID, err)
	}
	person, err := s.repos.Person.GetByID(ctx, personID)
	if err != nil {
		return nil, lookupErr("person", personID, err)
	}
	if person.AccountID != event.AccountID {
		return nil, invalid("person_id", "does not belong to the event's account")
	}
	if _, err := s.repos.Profile.GetByID(ctx, profileID); err != nil {
		return nil, lookupErr("profile", profileID, err)
	}

	attendance, created, err := s.repos.Attendance.GetOrCreate(ctx, eventID, personID, profileID)
	if err != nil {
		return nil, fmt.Errorf("get or create attendance: %w", err)
	}
	if created {
		log.Infof("[Attendance] created attendance %d for event %d person %d", attendance.ID, eventID, personID)
	}
	return attendance, nil
}

// ConfirmFreeRSVP sets an RSVP status on an event without a payable fee.
// Paid attendances cannot be changed.
func (s *Service) ConfirmFreeRSVP(ctx context.Context, attendanceID uint, status string) (*models.Attendance, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !models.IsRSVPStatus(status) {
		return nil, invalid("status", "must be undecided or going")
	}

	attendance, err := s.repos.Attendance.GetByID(ctx, attendanceID)
	if err != nil {
		return nil, lookupErr("attendance", attendanceID, err)
	}
	if attendance.IsPaid() {
		return nil, fmt.Errorf("%w: attendance %d", ErrAlreadyPaid, attendance.ID)
	}

	event, err := s.repos.Event.GetByID(ctx, attendance.EventsID)
	if err != nil {
		return nil, lookupErr("event", attendance.EventsID, err)
	}
	if event.FeeID != nil {
		fee, err := s.repos.Fee.GetByID(ctx, *event.FeeID)
		switch {
		case err == nil && fee.IsActive && fee.Amount.IsPositive():
			return nil, invalid("status", "event requires payment")
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return nil, lookupErr("fee", *event.FeeID, err)
		}
	}

	if err := s.repos.Attendance.UpdateStatus(ctx, attendance.ID, status); err != nil {
		return nil, lookupErr("attendance", attendance.ID, err)
	}
	return s.repos.Attendance.GetByID(ctx, attendance.ID)
}
