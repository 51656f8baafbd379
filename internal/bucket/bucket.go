// Package bucket assigns timestamps to contiguous, non-overlapping time
// buckets under a configurable bucketing mode.
package bucket

import (
	"fmt"
	"time"

	"github.com/hal/prflow/internal/model"
)

// Mode selects how bucket boundaries are computed.
type Mode string

const (
	ModeDaily   Mode = "daily"
	ModeWeekly  Mode = "weekly"  // weeks start on Monday, UTC
	ModeMonthly Mode = "monthly" // calendar months
	ModeNDays   Mode = "n_days"  // fixed spans anchored at the earliest record
)

// Config is the bucketing configuration. Days is only consulted for ModeNDays.
type Config struct {
	Mode Mode `yaml:"mode"`
	Days int  `yaml:"days,omitempty"`
}

// Validate reports configuration errors. Invalid configurations are fatal at
// startup, before any network activity.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeDaily, ModeWeekly, ModeMonthly:
		return nil
	case ModeNDays:
		if c.Days < 1 {
			return fmt.Errorf("bucket mode %q requires days >= 1, got %d", c.Mode, c.Days)
		}
		return nil
	case "":
		return fmt.Errorf("bucket mode is required (daily, weekly, monthly or n_days)")
	default:
		return fmt.Errorf("unknown bucket mode %q", c.Mode)
	}
}

// Bucketer computes bucket keys for timestamps. For n_days mode the span
// grid is anchored at the earliest observed timestamp, truncated to its UTC
// day.
type Bucketer struct {
	cfg    Config
	origin time.Time
}

// New creates a Bucketer. earliest is only consulted for n_days mode and is
// the earliest created-at observed across the run's records.
func New(cfg Config, earliest time.Time) (*Bucketer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &Bucketer{cfg: cfg}
	if cfg.Mode == ModeNDays {
		if earliest.IsZero() {
			return nil, fmt.Errorf("bucket mode %q requires at least one timestamped record", cfg.Mode)
		}
		b.origin = dayFloor(earliest)
	}
	return b, nil
}

// Assign returns the bucket containing t. Buckets for one Bucketer are
// contiguous and non-overlapping, so every timestamp lands in exactly one.
func (b *Bucketer) Assign(t time.Time) model.BucketKey {
	t = t.UTC()

	var start, end time.Time
	switch b.cfg.Mode {
	case ModeDaily:
		start = dayFloor(t)
		end = start.AddDate(0, 0, 1)
	case ModeWeekly:
		start = weekFloor(t)
		end = start.AddDate(0, 0, 7)
	case ModeMonthly:
		start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		end = start.AddDate(0, 1, 0)
		return model.BucketKey{Label: start.Format("2006-01"), Start: start, End: end}
	case ModeNDays:
		day := dayFloor(t)
		offset := int(day.Sub(b.origin).Hours() / 24)
		if offset < 0 {
			// t precedes the anchor; snap to the first span.
			offset = 0
		}
		start = b.origin.AddDate(0, 0, (offset/b.cfg.Days)*b.cfg.Days)
		end = start.AddDate(0, 0, b.cfg.Days)
	}

	return model.BucketKey{Label: start.Format("2006-01-02"), Start: start, End: end}
}

// dayFloor truncates t to UTC midnight.
func dayFloor(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// weekFloor returns the most recent Monday at or before t, UTC midnight.
func weekFloor(t time.Time) time.Time {
	day := dayFloor(t)
	back := (int(day.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
	return day.AddDate(0, 0, -back)
}
