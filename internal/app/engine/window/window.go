// internal/app/engine/window/window.go

// Package window decides whether a game's trigger window is open at a given
// instant. Everything here is pure: callers inject now.
package window

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"time"

	"github.com/dalemusser/whosthat/internal/app/system/timezones"
	"github.com/dalemusser/whosthat/internal/domain/models"
)

var (
	ErrUnknownTimezone = errors.New("unknown timezone")
	ErrInvalidSchedule = errors.New("invalid schedule")
)

var hhmm = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// IsDue reports whether now falls in the game's trigger window. A game with
// an unknown timezone is never due.
func IsDue(g models.Game, now time.Time) bool {
	due, err := Evaluate(g, now)
	return err == nil && due
}

// Evaluate is IsDue with the timezone error surfaced.
//
// Without a frequency the window is the single minute ScheduledTime on a
// target day. With a frequency every minute from ScheduledTime to midnight
// is a candidate; spacing between rounds is the ledger's job.
func Evaluate(g models.Game, now time.Time) (bool, error) {
	loc, err := timezones.Location(g.Location())
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnknownTimezone, err)
	}
	local := now.In(loc)

	if !isTargetDay(g, local) {
		return false, nil
	}

	current := local.Format(timeLayout)
	if _, ok := g.Frequency(); ok {
		// HH:mm compares correctly as a string.
		return current >= g.ScheduledTime, nil
	}
	return current == g.ScheduledTime, nil
}

func isTargetDay(g models.Game, local time.Time) bool {
	switch g.ScheduleType {
	case models.ScheduleWeekly:
		return slices.Contains(g.ScheduledDays, int(local.Weekday()))
	case models.ScheduleMonthly:
		return slices.Contains(g.ScheduledDays, local.Day())
	default:
		return false
	}
}

// DateKey is the YYYY-MM-DD calendar date of now in the game's timezone.
func DateKey(g models.Game, now time.Time) (string, error) {
	loc, err := timezones.Location(g.Location())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnknownTimezone, err)
	}
	return now.In(loc).Format(dateLayout), nil
}

// Validate checks a game's schedule fields.
func Validate(g models.Game) error {
	if len(g.ScheduledDays) == 0 {
		return fmt.Errorf("%w: no scheduled days", ErrInvalidSchedule)
	}
	lo, hi := 0, 6
	switch g.ScheduleType {
	case models.ScheduleWeekly:
	case models.ScheduleMonthly:
		lo, hi = 1, 31
	default:
		return fmt.Errorf("%w: schedule type %q", ErrInvalidSchedule, g.ScheduleType)
	}
	for _, d := range g.ScheduledDays {
		if d < lo || d > hi {
			return fmt.Errorf("%w: day %d out of range %d-%d for %s", ErrInvalidSchedule, d, lo, hi, g.ScheduleType)
		}
	}
	if !hhmm.MatchString(g.ScheduledTime) {
		return fmt.Errorf("%w: scheduled time %q is not HH:mm", ErrInvalidSchedule, g.ScheduledTime)
	}
	if g.FrequencyMinutes != nil && *g.FrequencyMinutes <= 0 {
		return fmt.Errorf("%w: frequency must be positive", ErrInvalidSchedule)
	}
	if !timezones.Valid(g.Location()) {
		return fmt.Errorf("%w: %q", ErrUnknownTimezone, g.Timezone)
	}
	return nil
}
