package domain

import (
	"testing"
	"time"
)

func TestTimeLeft(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		endsAt time.Time
		want   int
	}{
		{"WholeSeconds", now.Add(5 * time.Second), 5},
		{"RoundsUp", now.Add(4*time.Second + time.Millisecond), 5},
		{"LastFraction", now.Add(10 * time.Millisecond), 1},
		{"Expired", now, 0},
		{"LongExpired", now.Add(-time.Minute), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &Game{EndsAt: tt.endsAt}
			if got := g.TimeLeft(now); got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestActionMethodValid(t *testing.T) {
	for _, m := range ActionMethods {
		if !m.Valid() {
			t.Errorf("Expected %s to be valid", m)
		}
	}

	for _, m := range []ActionMethod{"", "recursive", "CHAINOFTHOUGHTEXPLOSION"} {
		if m.Valid() {
			t.Errorf("Expected %q to be invalid", m)
		}
	}

	if len(ActionMethods) != 4 {
		t.Errorf("Expected 4 action methods, got %d", len(ActionMethods))
	}
}
