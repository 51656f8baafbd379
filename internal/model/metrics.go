package model

import "time"

// BucketKey is a half-open time interval [Start, End) with a stable label.
// For a given bucketing configuration, bucket boundaries are contiguous and
// non-overlapping.
type BucketKey struct {
	Label string    `json:"label"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the bucket's interval.
func (b BucketKey) Contains(t time.Time) bool {
	return !t.Before(b.Start) && t.Before(b.End)
}

// Anomaly flags a data-shape oddity found while deriving metrics, such as a
// negative computed duration from clock skew. Anomalies are data for the
// report, never errors.
type Anomaly struct {
	PR     RefKey `json:"pr"`
	Field  string `json:"field"`
	Detail string `json:"detail"`
}

// PRMetrics is the normalized per-pull-request metrics record derived from
// one PRDetail. Nullable measurements are pointers: nil means the measurement
// is undefined for this record, and it must not contribute to any mean.
type PRMetrics struct {
	Owner    string `json:"owner"`
	Repo     string `json:"repo"`
	Number   int    `json:"number"`
	Author   string `json:"author"`
	IssueKey string `json:"issueKey"`

	CreatedAt time.Time  `json:"createdAt"`
	MergedAt  *time.Time `json:"mergedAt,omitempty"`

	// Size is additions + deletions.
	Size int `json:"size"`

	TimeToFirstReview      *time.Duration `json:"timeToFirstReview,omitempty"`
	TimeToMerge            *time.Duration `json:"timeToMerge,omitempty"`
	TimeFirstReviewToMerge *time.Duration `json:"timeFirstReviewToMerge,omitempty"`

	ReviewCount   int `json:"reviewCount"`
	ReviewerCount int `json:"reviewerCount"`
	CommentCount  int `json:"commentCount"`

	// Reviewers holds the distinct reviewer logins, for the
	// review-distribution summary.
	Reviewers []string `json:"reviewers,omitempty"`

	// ApprovalMentions counts review/comment bodies matching the approval
	// keyword set; Approvers is the distinct set of users behind them.
	ApprovalMentions int      `json:"approvalMentions"`
	Approvers        []string `json:"approvers,omitempty"`

	// Bucket is assigned during aggregation once the bucketing origin is
	// known. Nil when the record has no usable created-at.
	Bucket *BucketKey `json:"bucket,omitempty"`

	Anomalies []Anomaly `json:"anomalies,omitempty"`
}

// Key returns the pull request identity for this record.
func (m *PRMetrics) Key() RefKey {
	return RefKey{Owner: m.Owner, Repo: m.Repo, Number: m.Number}
}

// Merged reports whether the pull request was merged.
func (m *PRMetrics) Merged() bool {
	return m.MergedAt != nil
}

// WorkflowTiming correlates one issue's workflow transitions with one linked
// pull request's lifecycle. Each duration is nil unless both endpoints exist
// and the later one is not before the earlier one; durations are never
// negative.
type WorkflowTiming struct {
	IssueKey string `json:"issueKey"`
	PR       RefKey `json:"pr"`

	InProgressToPRCreated *time.Duration `json:"inProgressToPrCreated,omitempty"`
	InProgressToPRMerged  *time.Duration `json:"inProgressToPrMerged,omitempty"`
	PRMergedToResolved    *time.Duration `json:"prMergedToResolved,omitempty"`
}
