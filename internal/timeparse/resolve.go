// Package timeparse converts user-supplied local date/times into absolute UTC
// instants.
package timeparse

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Input layout: "DD-MM-YYYY HH:MM", 24-hour clock.
const layout = "02-01-2006 15:04"

var (
	// ErrInvalidFormat reports a date/time string that does not parse.
	ErrInvalidFormat = errors.New("invalid date/time format")
	// ErrUnknownTimezone reports an unrecognized IANA zone name.
	ErrUnknownTimezone = errors.New("unknown timezone")
	// ErrPastInstant reports a resolved instant that is not strictly in the
	// future.
	ErrPastInstant = errors.New("time is in the past")
)

// Resolve interprets dateStr ("DD-MM-YYYY") and timeStr ("HH:MM") as a wall
// clock time in the named IANA zone and returns the corresponding UTC instant.
//
// The zone's DST rules for that specific date apply, not a fixed offset. The
// instant must be strictly after now; the comparison happens on absolute
// instants, which is equivalent to comparing wall clocks in the same zone.
//
// Resolve is pure: no side effects beyond reading the zone database.
func Resolve(dateStr, timeStr, tzName string, now time.Time) (time.Time, error) {
	loc, err := time.LoadLocation(strings.TrimSpace(tzName))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownTimezone, tzName)
	}

	combined := strings.TrimSpace(dateStr) + " " + strings.TrimSpace(timeStr)
	local, err := time.ParseInLocation(layout, combined, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q (want DD-MM-YYYY HH:MM)", ErrInvalidFormat, combined)
	}

	if !local.After(now) {
		return time.Time{}, ErrPastInstant
	}
	return local.UTC(), nil
}

// ValidateZone reports whether tzName is a recognized IANA zone.
func ValidateZone(tzName string) error {
	if _, err := time.LoadLocation(strings.TrimSpace(tzName)); err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownTimezone, tzName)
	}
	return nil
}
