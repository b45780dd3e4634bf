package schedule

import "time"

// SlotLayout is the wire format of a slot start.
const SlotLayout = "2006-01-02T15:04:05.000-07:00"

// DefaultSlot is the slot length used when none is configured.
const DefaultSlot = 30 * time.Minute

// AvailableSlots walks the working window of day in steps of slot and returns
// the start of every slot that overlaps no booked interval. Only slots lying
// entirely inside the window are produced. An empty or inverted window
// yields an empty result.
func AvailableSlots(hours WorkingHours, day time.Time, slot time.Duration, booked []Interval) ([]time.Time, error) {
	if slot <= 0 {
		slot = DefaultSlot
	}

	window, err := hours.On(day)
	if err != nil {
		return nil, err
	}

	slots := make([]time.Time, 0)
	if window.Empty() {
		return slots, nil
	}

	for cursor := window.Start; !cursor.Add(slot).After(window.End); cursor = cursor.Add(slot) {
		if NewInterval(cursor, slot).OverlapsAny(booked) {
			continue
		}
		slots = append(slots, cursor)
	}

	return slots, nil
}

// FormatSlots renders slot starts in SlotLayout.
func FormatSlots(slots []time.Time) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.Format(SlotLayout)
	}
	return out
}
