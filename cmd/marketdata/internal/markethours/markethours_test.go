package markethours_test

import (
	"testing"
	"time"

	"github.com/shubham-shewale/market-data-relay/cmd/marketdata/internal/markethours"
)

func newNSE(t *testing.T) *markethours.Oracle {
	t.Helper()
	o, err := markethours.New("Asia/Kolkata", "09:15", "15:30")
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return o
}

func TestOracle_IsOpen(t *testing.T) {
	o := newNSE(t)
	ist := o.Location()

	// 2024-01-15 is a Monday.
	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before open", time.Date(2024, 1, 15, 9, 14, 59, 0, ist), false},
		{"at open", time.Date(2024, 1, 15, 9, 15, 0, 0, ist), true},
		{"midday", time.Date(2024, 1, 15, 12, 0, 0, 0, ist), true},
		{"at close", time.Date(2024, 1, 15, 15, 30, 0, 0, ist), true},
		{"just after close", time.Date(2024, 1, 15, 15, 30, 0, 1, ist), false},
		{"evening", time.Date(2024, 1, 15, 20, 0, 0, 0, ist), false},
		{"friday midday", time.Date(2024, 1, 19, 11, 0, 0, 0, ist), true},
		{"saturday midday", time.Date(2024, 1, 20, 11, 0, 0, 0, ist), false},
		{"sunday midday", time.Date(2024, 1, 21, 11, 0, 0, 0, ist), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := o.IsOpen(tt.at); got != tt.want {
				t.Errorf("IsOpen(%s) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestOracle_ConvertsToSessionTimezone(t *testing.T) {
	o := newNSE(t)

	// 04:00 UTC on a Monday is 09:30 IST.
	if !o.IsOpen(time.Date(2024, 1, 15, 4, 0, 0, 0, time.UTC)) {
		t.Error("Expected 04:00 UTC Monday to be inside the IST session")
	}
	// 22:00 UTC Friday is 03:30 IST Saturday.
	if o.IsOpen(time.Date(2024, 1, 19, 22, 0, 0, 0, time.UTC)) {
		t.Error("Expected Saturday IST to be closed")
	}
}

func TestNew_Errors(t *testing.T) {
	if _, err := markethours.New("Mars/Olympus", "09:15", "15:30"); err == nil {
		t.Error("Expected error for unknown timezone")
	}
	if _, err := markethours.New("Asia/Kolkata", "9am", "15:30"); err == nil {
		t.Error("Expected error for malformed open")
	}
	if _, err := markethours.New("Asia/Kolkata", "15:30", "09:15"); err == nil {
		t.Error("Expected error for inverted window")
	}
}
