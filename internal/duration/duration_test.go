package duration

import (
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"12h", 12 * time.Hour, false},
		{"30d", 30 * 24 * time.Hour, false},
		{"2w", 14 * 24 * time.Hour, false},
		{"6mo", 180 * 24 * time.Hour, false},
		{"1y", 365 * 24 * time.Hour, false},
		{"0d", 0, false},
		{"", 0, true},
		{"abc", 0, true},
		{"10parsecs", 0, true},
		{"-3d", 0, true},
	}

	for _, tt := range tests {
		got, err := Parse(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Parse(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("Parse(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestMonths(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"6mo", 6},
		{"90d", 3},
		{"45d", 2},
		{"1d", 1},
		{"0d", 0},
		{"1y", 12},
	}

	for _, tt := range tests {
		got, err := Months(tt.in)
		if err != nil {
			t.Errorf("Months(%q) error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Months(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}

	if _, err := Months("nope"); err == nil {
		t.Error("Months(nope) expected error")
	}
}
