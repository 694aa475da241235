package treatment

import "fmt"

// DefaultDayStartHour anchors the first dose of the day when no
// clinic-level override is configured.
const DefaultDayStartHour = 8

// Slot is one dosing time within a treatment course, expressed as an
// offset from the course's first day plus a wall-clock time.
type Slot struct {
	DayOffset int    `json:"day_offset"`
	Time      string `json:"time"`
}

// GenerateSlots spreads frequencyPerDay doses over each of days days.
// Doses are interval hours apart starting at dayStartHour, where
// interval is 24 divided by the frequency, rounded down. Times past
// midnight wrap around the clock but stay on the same day offset, so
// the result always holds exactly frequencyPerDay times days slots.
// A frequency of zero means the order carries no scheduled doses, as
// with "take as needed" instructions, and yields an empty slot list.
func GenerateSlots(frequencyPerDay, days, dayStartHour int) ([]Slot, error) {
	if frequencyPerDay < 0 || frequencyPerDay > 24 {
		return nil, fmt.Errorf("frequency per day must be between 0 and 24, got %d", frequencyPerDay)
	}
	if days < 1 || days > 90 {
		return nil, fmt.Errorf("duration must be between 1 and 90 days, got %d", days)
	}
	if dayStartHour < 0 || dayStartHour > 23 {
		return nil, fmt.Errorf("day start hour must be between 0 and 23, got %d", dayStartHour)
	}
	if frequencyPerDay == 0 {
		return []Slot{}, nil
	}

	interval := 24 / frequencyPerDay
	slots := make([]Slot, 0, frequencyPerDay*days)
	for d := 0; d < days; d++ {
		for i := 0; i < frequencyPerDay; i++ {
			hour := (dayStartHour + i*interval) % 24
			slots = append(slots, Slot{DayOffset: d, Time: fmt.Sprintf("%02d:00", hour)})
		}
	}
	return slots, nil
}
