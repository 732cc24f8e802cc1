package timex

import (
	"testing"
	"time"
)

func kolkata(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func TestUntilBeforeTarget(t *testing.T) {
	loc := kolkata(t)
	now := time.Date(2024, 9, 12, 4, 0, 0, 0, loc)

	got := Until(now, loc, 5, 0)
	if got != time.Hour {
		t.Fatalf("expected 1h, got %s", got)
	}
}

func TestUntilAfterTarget(t *testing.T) {
	loc := kolkata(t)
	now := time.Date(2024, 9, 12, 6, 0, 0, 0, loc)

	got := Until(now, loc, 5, 0)
	if got != 23*time.Hour {
		t.Fatalf("expected 23h, got %s", got)
	}
}

func TestUntilExactBoundaryIsFullDay(t *testing.T) {
	loc := kolkata(t)
	now := time.Date(2024, 9, 12, 5, 0, 0, 0, loc)

	got := Until(now, loc, 5, 0)
	if got != 24*time.Hour {
		t.Fatalf("expected 24h at exact boundary, got %s", got)
	}
}

func TestUntilNeverZeroOrNegative(t *testing.T) {
	loc := kolkata(t)
	base := time.Date(2024, 9, 12, 0, 0, 0, 0, loc)

	for h := 0; h < 24; h++ {
		for _, m := range []int{0, 1, 30, 59} {
			for _, offset := range []time.Duration{0, time.Second, 12 * time.Hour, 23*time.Hour + 59*time.Minute} {
				now := base.Add(offset)
				got := Until(now, loc, h, m)
				if got <= 0 {
					t.Fatalf("Until(%s, %02d:%02d) = %s, want > 0", now, h, m, got)
				}
				if got > 24*time.Hour {
					t.Fatalf("Until(%s, %02d:%02d) = %s, want <= 24h", now, h, m, got)
				}
			}
		}
	}
}

func TestUntilIgnoresHostTimezone(t *testing.T) {
	loc := kolkata(t)
	// Same instant expressed in UTC; 10:30 UTC == 16:00 IST.
	now := time.Date(2024, 9, 12, 10, 30, 0, 0, time.UTC)

	got := Until(now, loc, 18, 0)
	if got != 2*time.Hour {
		t.Fatalf("expected 2h, got %s", got)
	}
}

func TestUntilIdempotentForFixedNow(t *testing.T) {
	loc := kolkata(t)
	now := time.Date(2024, 9, 12, 11, 17, 42, 0, loc)

	first := Until(now, loc, 5, 0)
	for i := 0; i < 10; i++ {
		if got := Until(now, loc, 5, 0); got != first {
			t.Fatalf("call %d returned %s, first call returned %s", i, got, first)
		}
	}
}

func TestLastOccurrenceEarlierToday(t *testing.T) {
	loc := kolkata(t)
	now := time.Date(2024, 9, 12, 21, 0, 0, 0, loc)

	got := LastOccurrence(now, loc, 20, 0)
	want := time.Date(2024, 9, 12, 20, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestLastOccurrenceCrossesMidnight(t *testing.T) {
	loc := kolkata(t)
	now := time.Date(2024, 9, 12, 4, 0, 0, 0, loc)

	got := LastOccurrence(now, loc, 20, 0)
	want := time.Date(2024, 9, 11, 20, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestLastOccurrenceAtExactInstant(t *testing.T) {
	loc := kolkata(t)
	now := time.Date(2024, 9, 12, 17, 45, 0, 0, loc)

	got := LastOccurrence(now, loc, 17, 45)
	if !got.Equal(now) {
		t.Fatalf("expected %s, got %s", now, got)
	}
	if got.After(now) {
		t.Fatalf("LastOccurrence returned a future instant %s", got)
	}
}
