package timeparse

import (
	"errors"
	"testing"
	"time"
)

func TestResolveVariants(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		date string
		tod  string
		tz   string
		want time.Time
	}{
		{
			name: "utc",
			date: "01-01-2030", tod: "10:00", tz: "UTC",
			want: time.Date(2030, 1, 1, 10, 0, 0, 0, time.UTC),
		},
		{
			name: "kolkata offset",
			date: "15-08-2030", tod: "09:00", tz: "Asia/Kolkata",
			want: time.Date(2030, 8, 15, 3, 30, 0, 0, time.UTC),
		},
		{
			name: "new york dst",
			date: "01-07-2030", tod: "12:00", tz: "America/New_York",
			want: time.Date(2030, 7, 1, 16, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.date, tt.tod, tt.tz, now)
			if err != nil {
				t.Fatalf("Resolve error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Fatalf("Resolve = %v, want %v", got, tt.want)
			}
			if got.Location() != time.UTC {
				t.Fatalf("Resolve returned non-UTC instant: %v", got.Location())
			}
		})
	}
}

func TestResolveErrors(t *testing.T) {
	t.Parallel()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		date string
		tod  string
		tz   string
		want error
	}{
		{name: "bad date", date: "2030-01-01", tod: "10:00", tz: "UTC", want: ErrInvalidFormat},
		{name: "bad time", date: "01-01-2030", tod: "9pm", tz: "UTC", want: ErrInvalidFormat},
		{name: "unknown tz", date: "01-01-2030", tod: "10:00", tz: "Mars/Olympus", want: ErrUnknownTimezone},
		{name: "past", date: "01-01-2020", tod: "10:00", tz: "UTC", want: ErrPastInstant},
		{name: "exactly now", date: "01-06-2025", tod: "12:00", tz: "UTC", want: ErrPastInstant},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.date, tt.tod, tt.tz, now)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Resolve error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidateZone(t *testing.T) {
	t.Parallel()
	if err := ValidateZone("Europe/Berlin"); err != nil {
		t.Fatalf("ValidateZone(Europe/Berlin) error: %v", err)
	}
	if err := ValidateZone("Nowhere/Nothing"); !errors.Is(err, ErrUnknownTimezone) {
		t.Fatalf("ValidateZone error = %v, want ErrUnknownTimezone", err)
	}
}
