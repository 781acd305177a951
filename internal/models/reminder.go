package models

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

var (
	ErrEmailRequired = errors.New("email is required")
	ErrEmailInvalid  = errors.New("email address is not valid")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

const (
	PaymentStatusNotPaid = "NOT PAID"
	ReminderDateLayout   = "2006-01-02"
)

type ReminderRequest struct {
	Email        string `json:"email" binding:"reminder_email"`
	Name         string `json:"name,omitempty"`
	BusinessName string `json:"businessName,omitempty"`
	Address      string `json:"address,omitempty"`
	ReminderTime string `json:"reminderTime,omitempty"`
}

type ResolvedReminder struct {
	ReminderDate  string `json:"reminder_date"`
	PaymentStatus string `json:"payment_status"`
}

// ValidateEmail is the only field check applied to a reminder submission.
func ValidateEmail(email string) error {
	trimmed := strings.TrimSpace(email)
	if trimmed == "" {
		return ErrEmailRequired
	}
	if !emailPattern.MatchString(trimmed) {
		return ErrEmailInvalid
	}
	return nil
}

// EmailErrorMessage is the user-facing text for an email validation failure.
func EmailErrorMessage(err error) string {
	if errors.Is(err, ErrEmailInvalid) {
		return "Please enter a valid email address"
	}
	return "Email is required"
}

func (r *ReminderRequest) Validate() error {
	return ValidateEmail(r.Email)
}

func (r *ReminderRequest) Resolve(now time.Time) ResolvedReminder {
	days := ReminderOffsetDays(r.ReminderTime)
	return ResolvedReminder{
		ReminderDate:  now.UTC().AddDate(0, 0, days).Format(ReminderDateLayout),
		PaymentStatus: PaymentStatusNotPaid,
	}
}
