package treatment

import (
	"fmt"
	"testing"
)

func TestGenerateSlots_FourTimesDaily(t *testing.T) {
	slots, err := GenerateSlots(4, 1, 8)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	want := []string{"08:00", "14:00", "20:00", "02:00"}
	if len(slots) != len(want) {
		t.Fatalf("got %d slots, want %d", len(slots), len(want))
	}
	for i, s := range slots {
		if s.Time != want[i] {
			t.Errorf("slot %d: time = %s, want %s", i, s.Time, want[i])
		}
		if s.DayOffset != 0 {
			t.Errorf("slot %d: day offset = %d, want 0", i, s.DayOffset)
		}
	}
}

func TestGenerateSlots_MidnightWrapStaysOnSameDay(t *testing.T) {
	// Fifth dose of a 5x schedule from 20:00 lands at 12:00 on the
	// clock after wrapping midnight but keeps day offset 0.
	slots, err := GenerateSlots(5, 1, 20)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	last := slots[len(slots)-1]
	if last.Time != "12:00" || last.DayOffset != 0 {
		t.Errorf("last slot = %+v", last)
	}
}

func TestGenerateSlots_TotalCount(t *testing.T) {
	for freq := 1; freq <= 10; freq++ {
		for _, days := range []int{1, 3, 7, 30} {
			t.Run(fmt.Sprintf("%dx_%dd", freq, days), func(t *testing.T) {
				slots, err := GenerateSlots(freq, days, 8)
				if err != nil {
					t.Fatalf("generate: %v", err)
				}
				if len(slots) != freq*days {
					t.Errorf("got %d slots, want %d", len(slots), freq*days)
				}
			})
		}
	}
}

func TestGenerateSlots_OnceDaily(t *testing.T) {
	slots, err := GenerateSlots(1, 3, 8)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	for i, s := range slots {
		if s.Time != "08:00" {
			t.Errorf("slot %d: time = %s", i, s.Time)
		}
		if s.DayOffset != i {
			t.Errorf("slot %d: day offset = %d", i, s.DayOffset)
		}
	}
}

func TestGenerateSlots_IntervalFloors(t *testing.T) {
	// 24/7 floors to 3 hours.
	slots, err := GenerateSlots(7, 1, 8)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	want := []string{"08:00", "11:00", "14:00", "17:00", "20:00", "23:00", "02:00"}
	for i, s := range slots {
		if s.Time != want[i] {
			t.Errorf("slot %d: time = %s, want %s", i, s.Time, want[i])
		}
	}
}

func TestGenerateSlots_ZeroFrequencyIsEmpty(t *testing.T) {
	// An as-needed order has no fixed dosing times.
	slots, err := GenerateSlots(0, 5, 8)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("got %d slots, want none", len(slots))
	}
}

func TestGenerateSlots_Validation(t *testing.T) {
	cases := []struct {
		name              string
		freq, days, start int
	}{
		{"negative frequency", -1, 1, 8},
		{"frequency above 24", 25, 1, 8},
		{"zero days", 4, 0, 8},
		{"days above 90", 4, 91, 8},
		{"negative start hour", 4, 1, -1},
		{"start hour 24", 4, 1, 24},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := GenerateSlots(tc.freq, tc.days, tc.start); err == nil {
				t.Error("expected error")
			}
		})
	}
}
