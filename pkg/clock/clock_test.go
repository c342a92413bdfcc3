package clock

import (
	"testing"
	"time"
)

// ============================================================================
// TimeOfDay Parsing Tests
// ============================================================================

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		input   string
		want    TimeOfDay
		wantErr bool
	}{
		{"00:00", TimeOfDay{0, 0}, false},
		{"06:00", TimeOfDay{6, 0}, false},
		{"23:59", TimeOfDay{23, 59}, false},
		{" 12:30 ", TimeOfDay{12, 30}, false},
		{"24:00", TimeOfDay{}, true},
		{"12:60", TimeOfDay{}, true},
		{"-1:00", TimeOfDay{}, true},
		{"12", TimeOfDay{}, true},
		{"12:00:00", TimeOfDay{}, true},
		{"ab:cd", TimeOfDay{}, true},
		{"", TimeOfDay{}, true},
	}

	for _, tt := range tests {
		got, err := ParseTimeOfDay(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseTimeOfDay(%q): expected error, got %v", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTimeOfDay(%q): unexpected error: %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseTimeOfDay(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestTimeOfDay_String(t *testing.T) {
	if got := (TimeOfDay{6, 5}).String(); got != "06:05" {
		t.Errorf("String() = %q, want %q", got, "06:05")
	}
}

// ============================================================================
// Logical Day Tests
// ============================================================================

func TestLogicalDay_MidnightReset(t *testing.T) {
	ts := time.Date(2025, 3, 15, 23, 59, 0, 0, time.UTC)
	if got := LogicalDay(ts, Midnight); got != "2025-03-15" {
		t.Errorf("LogicalDay = %q, want 2025-03-15", got)
	}

	ts = time.Date(2025, 3, 16, 0, 0, 0, 0, time.UTC)
	if got := LogicalDay(ts, Midnight); got != "2025-03-16" {
		t.Errorf("LogicalDay = %q, want 2025-03-16", got)
	}
}

func TestLogicalDay_CustomReset(t *testing.T) {
	reset := TimeOfDay{Hour: 6}

	// 05:59 belongs to the previous logical day.
	before := time.Date(2025, 3, 16, 5, 59, 0, 0, time.UTC)
	if got := LogicalDay(before, reset); got != "2025-03-15" {
		t.Errorf("LogicalDay(05:59) = %q, want 2025-03-15", got)
	}

	// 06:01 belongs to the new logical day.
	after := time.Date(2025, 3, 16, 6, 1, 0, 0, time.UTC)
	if got := LogicalDay(after, reset); got != "2025-03-16" {
		t.Errorf("LogicalDay(06:01) = %q, want 2025-03-16", got)
	}

	// Exactly at the boundary the new day begins.
	at := time.Date(2025, 3, 16, 6, 0, 0, 0, time.UTC)
	if got := LogicalDay(at, reset); got != "2025-03-16" {
		t.Errorf("LogicalDay(06:00) = %q, want 2025-03-16", got)
	}
}

func TestNextBoundary(t *testing.T) {
	reset := TimeOfDay{Hour: 6}

	// Before the boundary: same calendar day.
	ts := time.Date(2025, 3, 16, 5, 0, 0, 0, time.UTC)
	want := time.Date(2025, 3, 16, 6, 0, 0, 0, time.UTC)
	if got := NextBoundary(ts, reset); !got.Equal(want) {
		t.Errorf("NextBoundary = %v, want %v", got, want)
	}

	// After the boundary: next calendar day.
	ts = time.Date(2025, 3, 16, 7, 0, 0, 0, time.UTC)
	want = time.Date(2025, 3, 17, 6, 0, 0, 0, time.UTC)
	if got := NextBoundary(ts, reset); !got.Equal(want) {
		t.Errorf("NextBoundary = %v, want %v", got, want)
	}

	// Exactly at the boundary: strictly after, so next day.
	ts = time.Date(2025, 3, 16, 6, 0, 0, 0, time.UTC)
	want = time.Date(2025, 3, 17, 6, 0, 0, 0, time.UTC)
	if got := NextBoundary(ts, reset); !got.Equal(want) {
		t.Errorf("NextBoundary(at boundary) = %v, want %v", got, want)
	}
}

func TestUntilBoundary_AlwaysPositive(t *testing.T) {
	reset := TimeOfDay{Hour: 6}
	for hour := 0; hour < 24; hour++ {
		ts := time.Date(2025, 3, 16, hour, 30, 0, 0, time.UTC)
		if d := UntilBoundary(ts, reset); d <= 0 || d > 24*time.Hour {
			t.Errorf("UntilBoundary at hour %d = %v, want (0, 24h]", hour, d)
		}
	}
}

// ============================================================================
// Window Tests
// ============================================================================

func TestWindow_Contains(t *testing.T) {
	at := func(hour, minute int) time.Time {
		return time.Date(2025, 3, 16, hour, minute, 0, 0, time.UTC)
	}

	tests := []struct {
		name   string
		window Window
		ts     time.Time
		want   bool
	}{
		{"inside plain window", Window{TimeOfDay{9, 0}, TimeOfDay{17, 0}}, at(12, 0), true},
		{"at start inclusive", Window{TimeOfDay{9, 0}, TimeOfDay{17, 0}}, at(9, 0), true},
		{"at end exclusive", Window{TimeOfDay{9, 0}, TimeOfDay{17, 0}}, at(17, 0), false},
		{"before plain window", Window{TimeOfDay{9, 0}, TimeOfDay{17, 0}}, at(8, 59), false},
		{"wrap: late evening", Window{TimeOfDay{22, 0}, TimeOfDay{2, 0}}, at(23, 30), true},
		{"wrap: early morning", Window{TimeOfDay{22, 0}, TimeOfDay{2, 0}}, at(1, 59), true},
		{"wrap: midday outside", Window{TimeOfDay{22, 0}, TimeOfDay{2, 0}}, at(12, 0), false},
		{"wrap: at wrapped end exclusive", Window{TimeOfDay{22, 0}, TimeOfDay{2, 0}}, at(2, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.window.Contains(tt.ts); got != tt.want {
				t.Errorf("%v.Contains(%v) = %v, want %v", tt.window, tt.ts, got, tt.want)
			}
		})
	}
}

func TestParseWindow(t *testing.T) {
	w, err := ParseWindow("22:00", "02:00")
	if err != nil {
		t.Fatalf("ParseWindow: %v", err)
	}
	if w.String() != "22:00-02:00" {
		t.Errorf("String() = %q", w.String())
	}

	if _, err := ParseWindow("25:00", "02:00"); err == nil {
		t.Error("expected error for invalid start")
	}
	if _, err := ParseWindow("22:00", "0200"); err == nil {
		t.Error("expected error for invalid end")
	}
}
