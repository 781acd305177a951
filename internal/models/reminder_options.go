package models

import (
	"strings"
	"unicode"
)

const (
	ReminderTomorrow    = "tomorrow"
	ReminderThreeDays   = "3days"
	ReminderOneWeek     = "1week"
	ReminderTwoWeeks    = "2weeks"
	ReminderOneMonth    = "1month"
	DefaultReminderDays = 1
)

// DefaultReminderOption is what clients preselect on the reminder form.
const DefaultReminderOption = ReminderThreeDays

type ReminderOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Days  int    `json:"days"`
}

var reminderOptions = []ReminderOption{
	{Value: ReminderTomorrow, Label: "Tomorrow", Days: 1},
	{Value: ReminderThreeDays, Label: "In 3 Days", Days: 3},
	{Value: ReminderOneWeek, Label: "In a Week", Days: 7},
	{Value: ReminderTwoWeeks, Label: "In 2 Weeks", Days: 14},
	{Value: ReminderOneMonth, Label: "In a Month", Days: 30},
}

func ReminderOptions() []ReminderOption {
	out := make([]ReminderOption, len(reminderOptions))
	copy(out, reminderOptions)
	return out
}

// NormalizeReminderTime folds "3 Days" and "3days" onto the same token.
func NormalizeReminderTime(token string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, token)
}

// ReminderOffsetDays falls back to a single day for anything unrecognised.
func ReminderOffsetDays(token string) int {
	normalized := NormalizeReminderTime(token)
	for _, opt := range reminderOptions {
		if opt.Value == normalized {
			return opt.Days
		}
	}
	return DefaultReminderDays
}
