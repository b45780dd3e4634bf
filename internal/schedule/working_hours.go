package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var clockPattern = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]$`)

// ValidClock reports whether s is an HH:MM time of day.
func ValidClock(s string) bool {
	return clockPattern.MatchString(s)
}

// WorkingHours is a daily window expressed as HH:MM times of day.
type WorkingHours struct {
	Start string `json:"start" validate:"required,clock"`
	End   string `json:"end" validate:"required,clock"`
}

// parseHM splits an HH:MM string into hour and minute.
func parseHM(s string) (int, int, error) {
	if !ValidClock(s) {
		return 0, 0, fmt.Errorf("invalid time of day %q, expected HH:MM", s)
	}
	parts := strings.SplitN(s, ":", 2)
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	return h, m, nil
}

// Validate checks both endpoints and that the window is non-empty.
func (w WorkingHours) Validate() error {
	sh, sm, err := parseHM(w.Start)
	if err != nil {
		return err
	}
	eh, em, err := parseHM(w.End)
	if err != nil {
		return err
	}
	if sh*60+sm >= eh*60+em {
		return fmt.Errorf("working hours start %s must be before end %s", w.Start, w.End)
	}
	return nil
}

// On anchors the window onto the calendar date of day, in day's location.
func (w WorkingHours) On(day time.Time) (Interval, error) {
	sh, sm, err := parseHM(w.Start)
	if err != nil {
		return Interval{}, err
	}
	eh, em, err := parseHM(w.End)
	if err != nil {
		return Interval{}, err
	}

	y, mo, d := day.Date()
	loc := day.Location()
	return Interval{
		Start: time.Date(y, mo, d, sh, sm, 0, 0, loc),
		End:   time.Date(y, mo, d, eh, em, 0, 0, loc),
	}, nil
}
