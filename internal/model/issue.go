// Package model contains domain types for the prflow pipeline.
// These types are independent of the Jira and GitHub transports.
package model

import (
	"strings"
	"time"
)

// StatusTransition records one workflow status change on an issue.
type StatusTransition struct {
	ToStatus string    `json:"toStatus"`
	At       time.Time `json:"at"`
}

// IssueRecord is one issue returned by the tracker query, flattened to the
// fields the pipeline inspects. It is immutable once fetched: extraction and
// correlation read it but never write it.
type IssueRecord struct {
	Key         string   `json:"key"`
	Summary     string   `json:"summary,omitempty"`
	Description string   `json:"description,omitempty"`
	Comments    []string `json:"comments,omitempty"`

	// CustomFields maps custom field IDs to their flattened text values.
	// Non-text field values (lists, option objects) are flattened by the
	// query phase before they land here.
	CustomFields map[string]string `json:"customFields,omitempty"`

	// Transitions is the issue's status-change history, ordered by time.
	Transitions []StatusTransition `json:"transitions,omitempty"`
}

// FirstTransitionTo returns the earliest transition whose target status
// matches any of the given names, or nil if none matched.
func (i *IssueRecord) FirstTransitionTo(names []string) *time.Time {
	var earliest *time.Time
	for idx := range i.Transitions {
		tr := &i.Transitions[idx]
		if !statusMatches(tr.ToStatus, names) {
			continue
		}
		if earliest == nil || tr.At.Before(*earliest) {
			at := tr.At
			earliest = &at
		}
	}
	return earliest
}

// statusMatches reports whether status matches any of the configured names.
// Matching is a case-insensitive substring check on normalized text so that
// "In Progress", "INPROGRESS" and "in-progress" all compare equal.
func statusMatches(status string, names []string) bool {
	s := normalizeStatus(status)
	for _, name := range names {
		n := normalizeStatus(name)
		if n != "" && strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func normalizeStatus(s string) string {
	s = strings.ToLower(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '-', '_':
			return -1
		}
		return r
	}, s)
}
