package model

import (
	"fmt"
	"strings"
	"time"
)

var showDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
}

// ParseShowDate parses a showtime date as sent by clients: a plain day or
// a timestamp. The result is in UTC.
func ParseShowDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range showDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// DayOf truncates t to midnight UTC of its calendar day.
func DayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// NormalizeTimeLabel trims a showtime label. Labels are otherwise compared
// exactly ("7:00 PM" and "19:00" are different showtimes).
func NormalizeTimeLabel(s string) string {
	return strings.TrimSpace(s)
}
