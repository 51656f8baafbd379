// Package metrics derives normalized per-pull-request metrics from raw
// detail records and correlates them with issue workflow transitions.
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hal/prflow/internal/log"
	"github.com/hal/prflow/internal/model"
)

// NegativePolicy decides what happens to a computed duration that comes out
// negative (clock skew between systems). Either way the result is never
// negative and the record carries an anomaly flag.
type NegativePolicy string

const (
	// NegativeClamp drops the measurement (null).
	NegativeClamp NegativePolicy = "clamp"
	// NegativeZero floors the measurement at zero.
	NegativeZero NegativePolicy = "zero"
)

// DeriveConfig configures metric derivation.
type DeriveConfig struct {
	// ApprovalKeywords are matched case-insensitively against review and
	// comment bodies.
	ApprovalKeywords []string
	NegativePolicy   NegativePolicy
}

// Validate reports configuration errors.
func (c DeriveConfig) Validate() error {
	switch c.NegativePolicy {
	case NegativeClamp, NegativeZero:
	default:
		return fmt.Errorf("unknown negative-duration policy %q (use clamp or zero)", c.NegativePolicy)
	}
	if len(c.ApprovalKeywords) == 0 {
		return fmt.Errorf("approval keyword set must not be empty")
	}
	return nil
}

// Derive converts one raw pull-request detail into a PRMetrics record.
// A PR with no reviews yields review count 0 and a null time-to-first-review;
// that is data, not an error. Bucket assignment happens later, once the
// bucketing origin is known.
func Derive(d *model.PRDetail, issueKey string, cfg DeriveConfig) model.PRMetrics {
	m := model.PRMetrics{
		Owner:     d.Owner,
		Repo:      d.Repo,
		Number:    d.Number,
		Author:    d.Author,
		IssueKey:  issueKey,
		CreatedAt: d.CreatedAt,
		MergedAt:  d.MergedAt,
		Size:      d.Additions + d.Deletions,
	}

	m.ReviewCount = len(d.Reviews)
	m.CommentCount = len(d.Comments)

	reviewers := make(map[string]bool)
	var firstReview *time.Time
	for i := range d.Reviews {
		r := &d.Reviews[i]
		if r.Reviewer != "" {
			reviewers[r.Reviewer] = true
		}
		if r.SubmittedAt.IsZero() {
			continue
		}
		if firstReview == nil || r.SubmittedAt.Before(*firstReview) {
			at := r.SubmittedAt
			firstReview = &at
		}
	}
	m.Reviewers = sortedKeys(reviewers)
	m.ReviewerCount = len(m.Reviewers)

	if firstReview != nil && !d.CreatedAt.IsZero() {
		m.TimeToFirstReview = boundedDuration(&m, "time_to_first_review", d.CreatedAt, *firstReview, cfg.NegativePolicy)
	}
	if d.MergedAt != nil && !d.CreatedAt.IsZero() {
		m.TimeToMerge = boundedDuration(&m, "time_to_merge", d.CreatedAt, *d.MergedAt, cfg.NegativePolicy)
	}
	if firstReview != nil && d.MergedAt != nil {
		m.TimeFirstReviewToMerge = boundedDuration(&m, "time_first_review_to_merge", *firstReview, *d.MergedAt, cfg.NegativePolicy)
	}

	m.ApprovalMentions, m.Approvers = countApprovals(d, cfg.ApprovalKeywords)

	return m
}

// boundedDuration computes later-earlier, applying the configured policy when
// the result would be negative. A clamped measurement is flagged on the
// record so the report can surface it.
func boundedDuration(m *model.PRMetrics, field string, earlier, later time.Time, policy NegativePolicy) *time.Duration {
	d := later.Sub(earlier)
	if d >= 0 {
		return &d
	}

	m.Anomalies = append(m.Anomalies, model.Anomaly{
		PR:     m.Key(),
		Field:  field,
		Detail: fmt.Sprintf("computed %s, likely clock skew", d),
	})
	log.Debug("negative duration", "pr", m.Key().String(), "field", field, "value", d)

	if policy == NegativeZero {
		zero := time.Duration(0)
		return &zero
	}
	return nil
}

// countApprovals tallies review and comment bodies containing an approval
// keyword, and the distinct users behind them.
func countApprovals(d *model.PRDetail, keywords []string) (int, []string) {
	mentions := 0
	users := make(map[string]bool)

	match := func(body, user string) {
		lower := strings.ToLower(body)
		for _, kw := range keywords {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				mentions++
				if user != "" {
					users[user] = true
				}
				return
			}
		}
	}

	for i := range d.Reviews {
		match(d.Reviews[i].Body, d.Reviews[i].Reviewer)
	}
	for i := range d.Comments {
		match(d.Comments[i].Body, d.Comments[i].Author)
	}

	return mentions, sortedKeys(users)
}

func sortedKeys(set map[string]bool) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
