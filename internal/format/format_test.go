package format

import (
	"testing"
	"time"
)

func TestDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{30 * time.Second, "<1m"},
		{5 * time.Minute, "5m"},
		{90 * time.Minute, "1h"},
		{36 * time.Hour, "36h"},
		{3 * 24 * time.Hour, "3d"},
		{3 * 7 * 24 * time.Hour, "3w"},
		{95 * 24 * time.Hour, "3mo"},
	}

	for _, tt := range tests {
		if got := Duration(tt.in); got != tt.want {
			t.Errorf("Duration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPercent(t *testing.T) {
	if got := Percent(0.5); got != "50%" {
		t.Errorf("Percent(0.5) = %q", got)
	}
	if got := Percent(0); got != "0%" {
		t.Errorf("Percent(0) = %q", got)
	}
	if got := Percent(1); got != "100%" {
		t.Errorf("Percent(1) = %q", got)
	}
}

func TestSizeOf(t *testing.T) {
	th := DefaultPRSizeThresholds()
	tests := []struct {
		total int
		want  PRSize
	}{
		{5, PRSizeXS},
		{10, PRSizeXS},
		{50, PRSizeS},
		{120, PRSizeM},
		{500, PRSizeL},
		{501, PRSizeXL},
	}

	for _, tt := range tests {
		if got := SizeOf(tt.total, th); got != tt.want {
			t.Errorf("SizeOf(%d) = %s, want %s", tt.total, got, tt.want)
		}
	}
}

func TestSizeLabel(t *testing.T) {
	if got := SizeLabel(120); got != "120 (M)" {
		t.Errorf("SizeLabel(120) = %q", got)
	}
}
