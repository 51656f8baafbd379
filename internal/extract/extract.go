// Package extract scans issue records for GitHub pull-request references.
package extract

import (
	"regexp"
	"sort"
	"strconv"

	"github.com/hal/prflow/internal/log"
	"github.com/hal/prflow/internal/model"
)

// prURLPattern matches GitHub pull-request URLs in free-form text. Owner and
// repo are restricted to GitHub's name alphabet so junk from surrounding text
// never reaches query construction.
var prURLPattern = regexp.MustCompile(`(?i)https://github\.com/([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+)/pull/(\d+)`)

// Extractor finds pull-request references in issue fields, applying a fixed
// source-priority order: the designated PR custom field first, then the
// description, then comment bodies, then all remaining custom fields.
type Extractor struct {
	prFieldID       string
	firstSourceOnly bool
}

// New creates an Extractor. prFieldID names the custom field that carries PR
// links; it may be empty if the tracker has no such field. When
// firstSourceOnly is set, extraction stops at the first source that yields
// any match instead of unioning all sources.
func New(prFieldID string, firstSourceOnly bool) *Extractor {
	return &Extractor{prFieldID: prFieldID, firstSourceOnly: firstSourceOnly}
}

// candidateSource is one prioritized accessor over an issue's fields.
type candidateSource struct {
	source model.RefSource
	texts  func(*model.IssueRecord) []string
}

func (e *Extractor) sources() []candidateSource {
	return []candidateSource{
		{model.SourcePRField, func(i *model.IssueRecord) []string {
			if e.prFieldID == "" {
				return nil
			}
			if v, ok := i.CustomFields[e.prFieldID]; ok {
				return []string{v}
			}
			return nil
		}},
		{model.SourceDescription, func(i *model.IssueRecord) []string {
			return []string{i.Description}
		}},
		{model.SourceComment, func(i *model.IssueRecord) []string {
			return i.Comments
		}},
		{model.SourceCustomField, func(i *model.IssueRecord) []string {
			// Deterministic order over the remaining custom fields.
			ids := make([]string, 0, len(i.CustomFields))
			for id := range i.CustomFields {
				if id != e.prFieldID {
					ids = append(ids, id)
				}
			}
			sort.Strings(ids)
			texts := make([]string, 0, len(ids))
			for _, id := range ids {
				texts = append(texts, i.CustomFields[id])
			}
			return texts
		}},
	}
}

// Extract returns the pull-request references found in one issue,
// deduplicated by (owner, repo, number) with the highest-priority source
// retained as provenance. Malformed URLs are skipped silently: issue text is
// free-form, so a bad link is data, not an error.
func (e *Extractor) Extract(issue *model.IssueRecord) []model.PullRequestRef {
	seen := make(map[model.RefKey]bool)
	var refs []model.PullRequestRef

	for _, src := range e.sources() {
		for _, text := range src.texts(issue) {
			for _, ref := range parseRefs(text, issue.Key, src.source) {
				if seen[ref.Key()] {
					continue
				}
				seen[ref.Key()] = true
				refs = append(refs, ref)
			}
		}
		if e.firstSourceOnly && len(refs) > 0 {
			break
		}
	}

	return refs
}

// parseRefs finds every PR URL in text. Matches with a non-numeric or
// overflowing number are dropped.
func parseRefs(text, issueKey string, source model.RefSource) []model.PullRequestRef {
	if text == "" {
		return nil
	}

	var refs []model.PullRequestRef
	for _, m := range prURLPattern.FindAllStringSubmatch(text, -1) {
		number, err := strconv.Atoi(m[3])
		if err != nil || number <= 0 {
			log.Debug("skipping malformed PR reference", "issue", issueKey, "url", m[0])
			continue
		}
		refs = append(refs, model.PullRequestRef{
			Owner:    m[1],
			Repo:     m[2],
			Number:   number,
			IssueKey: issueKey,
			Source:   source,
		})
	}
	return refs
}

// Dedupe collapses references from multiple issues to one reference per
// (owner, repo, number), keeping the first occurrence. Extraction order makes
// "first" the highest-priority provenance for each issue.
func Dedupe(refs []model.PullRequestRef) []model.PullRequestRef {
	seen := make(map[model.RefKey]bool, len(refs))
	out := refs[:0:0]
	for _, r := range refs {
		if seen[r.Key()] {
			continue
		}
		seen[r.Key()] = true
		out = append(out, r)
	}
	return out
}
