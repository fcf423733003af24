package services

import (
	"errors"
	"fmt"
	"math"
	"time"

	"rentdesk/internal/models"
)

var ErrInvalidTransition = errors.New("invalid subscription status transition")

var transitions = map[models.SubscriptionStatus][]models.SubscriptionStatus{
	models.StatusTrial:     {models.StatusActive, models.StatusOverdue, models.StatusSuspended},
	models.StatusActive:    {models.StatusOverdue, models.StatusSuspended, models.StatusCancelled},
	models.StatusOverdue:   {models.StatusActive, models.StatusSuspended},
	models.StatusSuspended: {models.StatusActive, models.StatusTrial},
	models.StatusCancelled: nil,
}

func CanTransition(from, to models.SubscriptionStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Transition moves org to status to, keeping the suspension bookkeeping in step.
// org is left untouched when the move is not allowed. Leaving a suspension for
// trial is only possible when the organization was suspended during its trial.
func Transition(org *models.Organization, to models.SubscriptionStatus, now time.Time) error {
	from := org.SubscriptionStatus
	if !CanTransition(from, to) || (from == models.StatusSuspended && to == models.StatusTrial && !suspendedFromTrial(org)) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}

	switch {
	case to == models.StatusSuspended:
		prev := from
		org.StatusBeforeSuspension = &prev
	case from == models.StatusSuspended:
		org.StatusBeforeSuspension = nil
	}

	org.SubscriptionStatus = to
	org.StatusChangedAt = now
	return nil
}

func suspendedFromTrial(org *models.Organization) bool {
	return org.StatusBeforeSuspension != nil && *org.StatusBeforeSuspension == models.StatusTrial
}

// ReactivationTarget is where lifting a suspension lands: back on trial when the
// suspension interrupted one, active otherwise.
func ReactivationTarget(org *models.Organization) models.SubscriptionStatus {
	if suspendedFromTrial(org) {
		return models.StatusTrial
	}
	return models.StatusActive
}

// NextRenewal is one billing period after from.
func NextRenewal(from time.Time, cycle models.BillingCycle) time.Time {
	if cycle == models.CycleAnnual {
		return from.AddDate(1, 0, 0)
	}
	return from.AddDate(0, 1, 0)
}

// DaysUntilRenewal is nil when the organization has no renewal date yet.
func DaysUntilRenewal(org *models.Organization, now time.Time) *int {
	if org.NextRenewalDate == nil {
		return nil
	}
	days := ceilDays(org.NextRenewalDate.Sub(now))
	if days < 0 {
		days = 0
	}
	return &days
}

// TrialDaysLeft is only set while the organization is on trial.
func TrialDaysLeft(org *models.Organization, now time.Time) *int {
	if org.SubscriptionStatus != models.StatusTrial || org.TrialEndDate == nil {
		return nil
	}
	days := ceilDays(org.TrialEndDate.Sub(now))
	if days < 0 {
		days = 0
	}
	return &days
}

// DaysOverdue counts whole days since payment fell due. Zero unless overdue.
func DaysOverdue(org *models.Organization, now time.Time) int {
	if org.SubscriptionStatus != models.StatusOverdue {
		return 0
	}
	due := dueDate(org)
	if due == nil || !now.After(*due) {
		return 0
	}
	return int(now.Sub(*due).Hours() / 24)
}

// dueDate is the renewal date, or the trial end for organizations that never paid.
func dueDate(org *models.Organization) *time.Time {
	if org.NextRenewalDate != nil {
		return org.NextRenewalDate
	}
	return org.TrialEndDate
}

func ceilDays(d time.Duration) int {
	return int(math.Ceil(d.Hours() / 24))
}

// Clock returns the current time. Services take one so tests can pin "now".
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}
