package model

import (
	"fmt"
	"time"
)

// RefSource identifies which issue field a pull-request reference came from.
// Sources are ordered by extraction priority; provenance is informational and
// never feeds into metric computation.
type RefSource string

const (
	SourcePRField     RefSource = "pr_field"
	SourceDescription RefSource = "description"
	SourceComment     RefSource = "comment"
	SourceCustomField RefSource = "custom_field"
)

// RefKey uniquely identifies a pull request across repositories.
type RefKey struct {
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Number int    `json:"number"`
}

// String returns the canonical owner/repo#number form.
func (k RefKey) String() string {
	return fmt.Sprintf("%s/%s#%d", k.Owner, k.Repo, k.Number)
}

// RepoFullName returns "owner/repo".
func (k RefKey) RepoFullName() string {
	return k.Owner + "/" + k.Repo
}

// PullRequestRef is one pull-request reference extracted from an issue.
type PullRequestRef struct {
	Owner    string    `json:"owner"`
	Repo     string    `json:"repo"`
	Number   int       `json:"number"`
	IssueKey string    `json:"issueKey"`
	Source   RefSource `json:"source"`
}

// Key returns the deduplication key for this reference.
func (r PullRequestRef) Key() RefKey {
	return RefKey{Owner: r.Owner, Repo: r.Repo, Number: r.Number}
}

// ReviewEvent is one review submitted on a pull request.
type ReviewEvent struct {
	Reviewer    string    `json:"reviewer"`
	State       string    `json:"state,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
	Body        string    `json:"body,omitempty"`
}

// CommentEvent is one conversation or review-thread comment on a pull request.
type CommentEvent struct {
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
	Body      string    `json:"body,omitempty"`
}

// PRDetail is the raw pull-request detail produced by the fetch phase.
// It is owned by the orchestrator's output map and read-only downstream.
type PRDetail struct {
	Owner     string         `json:"owner"`
	Repo      string         `json:"repo"`
	Number    int            `json:"number"`
	Title     string         `json:"title,omitempty"`
	Author    string         `json:"author"`
	CreatedAt time.Time      `json:"createdAt"`
	MergedAt  *time.Time     `json:"mergedAt,omitempty"`
	Additions int            `json:"additions"`
	Deletions int            `json:"deletions"`
	Reviews   []ReviewEvent  `json:"reviews,omitempty"`
	Comments  []CommentEvent `json:"comments,omitempty"`
}

// Key returns the identity of the pull request this detail describes.
func (d *PRDetail) Key() RefKey {
	return RefKey{Owner: d.Owner, Repo: d.Repo, Number: d.Number}
}
