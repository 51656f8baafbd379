package metrics

import (
	"fmt"
	"time"

	"github.com/hal/prflow/internal/model"
)

// StatusSets names the workflow statuses treated as "work started" and "work
// finished". Matching is case-insensitive and ignores spacing, so "In
// Progress" covers "INPROGRESS" and "in-progress".
type StatusSets struct {
	InProgress []string
	Resolved   []string
}

// Validate reports configuration errors.
func (s StatusSets) Validate() error {
	if len(s.InProgress) == 0 {
		return fmt.Errorf("in-progress status set must not be empty")
	}
	if len(s.Resolved) == 0 {
		return fmt.Errorf("resolved status set must not be empty")
	}
	return nil
}

// CorrelateWorkflow joins one issue's status-transition history with one
// linked pull request's lifecycle timestamps. Each of the three durations is
// computed independently: a missing endpoint or out-of-order pair nulls that
// duration only, never the whole record, and no duration is ever negative.
func CorrelateWorkflow(issue *model.IssueRecord, pr *model.PRMetrics, sets StatusSets) model.WorkflowTiming {
	wt := model.WorkflowTiming{
		IssueKey: issue.Key,
		PR:       pr.Key(),
	}

	inProgress := issue.FirstTransitionTo(sets.InProgress)
	resolved := issue.FirstTransitionTo(sets.Resolved)

	if inProgress != nil && !pr.CreatedAt.IsZero() {
		wt.InProgressToPRCreated = orderedSpan(*inProgress, pr.CreatedAt)
	}
	if inProgress != nil && pr.MergedAt != nil {
		wt.InProgressToPRMerged = orderedSpan(*inProgress, *pr.MergedAt)
	}
	if pr.MergedAt != nil && resolved != nil {
		wt.PRMergedToResolved = orderedSpan(*pr.MergedAt, *resolved)
	}

	return wt
}

// orderedSpan returns later-earlier, or nil when the events are out of
// chronological order.
func orderedSpan(earlier, later time.Time) *time.Duration {
	if later.Before(earlier) {
		return nil
	}
	d := later.Sub(earlier)
	return &d
}
