// Package format provides small display helpers for report rendering.
package format

import (
	"fmt"
	"time"
)

// Duration formats a duration as a compact human-readable string.
// Uses compact format: "<1m", "5m", "2h", "3d", "2w", "3mo".
func Duration(d time.Duration) string {
	if d < time.Minute {
		return "<1m"
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 48*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	days := int(d.Hours() / 24)
	if days < 14 {
		return fmt.Sprintf("%dd", days)
	}
	if days < 60 {
		weeks := days / 7
		return fmt.Sprintf("%dw", weeks)
	}
	months := days / 30
	return fmt.Sprintf("%dmo", months)
}

// Hours renders a duration as fractional hours for machine-readable output.
func Hours(d time.Duration) float64 {
	return d.Hours()
}

// Percent renders a [0,1] rate as "NN%".
func Percent(rate float64) string {
	return fmt.Sprintf("%.0f%%", rate*100)
}
