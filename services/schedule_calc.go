package services

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"phoenixd-dashboard-server/models"
)

// NextRunAt computes the next execution instant for a cadence rule from the
// given anchor. All arithmetic is in UTC. The result is strictly after the
// anchor for the calendar frequencies; the fixed-interval frequencies add a
// constant duration, so a sub-minute anchor drift can only ever move the
// result forward.
func NextRunAt(frequency, timeOfDay string, dayOfWeek, dayOfMonth int, anchor time.Time) time.Time {
	anchor = anchor.UTC()
	hour, minute := parseTimeOfDay(timeOfDay)

	switch frequency {
	case models.FreqEveryMinute:
		return anchor.Add(time.Minute)
	case models.Freq5Minutes:
		return anchor.Add(5 * time.Minute)
	case models.Freq15Minutes:
		return anchor.Add(15 * time.Minute)
	case models.Freq30Minutes:
		return anchor.Add(30 * time.Minute)
	case models.FreqHourly:
		return anchor.Add(time.Hour)

	case models.FreqDaily:
		next := time.Date(anchor.Year(), anchor.Month(), anchor.Day(), hour, minute, 0, 0, time.UTC)
		if !next.After(anchor) {
			next = next.AddDate(0, 0, 1)
		}
		return next

	case models.FreqWeekly:
		target := time.Weekday(dayOfWeek)
		daysAhead := (int(target) - int(anchor.Weekday()) + 7) % 7
		next := time.Date(anchor.Year(), anchor.Month(), anchor.Day(), hour, minute, 0, 0, time.UTC)
		next = next.AddDate(0, 0, daysAhead)
		if !next.After(anchor) {
			next = next.AddDate(0, 0, 7)
		}
		return next

	case models.FreqMonthly:
		next := monthlyOccurrence(anchor.Year(), anchor.Month(), dayOfMonth, hour, minute)
		if !next.After(anchor) {
			next = monthlyOccurrence(anchor.Year(), anchor.Month()+1, dayOfMonth, hour, minute)
		}
		return next
	}

	// Unknown frequencies are rejected at creation time; fall back to a
	// daily cadence rather than returning a stale instant.
	return anchor.Add(24 * time.Hour)
}

// monthlyOccurrence returns day-of-month at hour:minute in the given month,
// clamping to the month's last day when the target day does not exist
// (e.g. day 30 in February).
func monthlyOccurrence(year int, month time.Month, day, hour, minute int) time.Time {
	last := daysInMonth(year, month)
	if day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}

// daysInMonth returns the number of days in the given month. The month may
// be out of the 1-12 range; time.Date normalizes it.
func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// parseTimeOfDay parses an "HH:MM" string, defaulting to midnight on any
// malformed input. Validation happens at schedule creation.
func parseTimeOfDay(timeOfDay string) (hour, minute int) {
	h, m, ok := strings.Cut(timeOfDay, ":")
	if !ok {
		return 0, 0
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0
	}
	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return hour, 0
	}
	return hour, minute
}

// ValidateCadence checks a cadence rule the way the create/update endpoints
// require it: a known frequency, a parseable time of day for the calendar
// frequencies, and day parameters in range.
func ValidateCadence(frequency, timeOfDay string, dayOfWeek, dayOfMonth int) error {
	switch frequency {
	case models.FreqEveryMinute, models.Freq5Minutes, models.Freq15Minutes,
		models.Freq30Minutes, models.FreqHourly:
		return nil
	case models.FreqDaily, models.FreqWeekly, models.FreqMonthly:
	default:
		return fmt.Errorf("unknown frequency: %s", frequency)
	}

	if _, _, ok := strings.Cut(timeOfDay, ":"); !ok {
		return fmt.Errorf("invalid time_of_day %q, expected HH:MM", timeOfDay)
	}
	if frequency == models.FreqWeekly && (dayOfWeek < 0 || dayOfWeek > 6) {
		return fmt.Errorf("day_of_week must be 0-6, got %d", dayOfWeek)
	}
	if frequency == models.FreqMonthly && (dayOfMonth < 1 || dayOfMonth > 31) {
		return fmt.Errorf("day_of_month must be 1-31, got %d", dayOfMonth)
	}
	return nil
}
