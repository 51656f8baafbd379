package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/hal/prflow/internal/aggregate"
	"github.com/hal/prflow/internal/bucket"
	"github.com/hal/prflow/internal/extract"
	"github.com/hal/prflow/internal/ghclient"
	"github.com/hal/prflow/internal/metrics"
	"github.com/hal/prflow/internal/model"
)

type fakeIssues struct {
	issues []model.IssueRecord
	err    error
}

func (f *fakeIssues) SearchIssues(context.Context, string) ([]model.IssueRecord, error) {
	return f.issues, f.err
}

type fakeFetcher struct {
	details map[model.RefKey]*model.PRDetail
	refs    []model.PullRequestRef
}

func (f *fakeFetcher) Fetch(_ context.Context, refs []model.PullRequestRef, onProgress func(int, int)) (map[model.RefKey]*model.PRDetail, *ghclient.FetchStats) {
	f.refs = refs
	stats := &ghclient.FetchStats{Requested: len(refs)}
	out := make(map[model.RefKey]*model.PRDetail)
	for i, ref := range refs {
		if d, ok := f.details[ref.Key()]; ok {
			out[ref.Key()] = d
			stats.Fetched++
		} else {
			stats.Failed++
			stats.Failures = append(stats.Failures, ghclient.FetchFailure{Ref: ref.Key(), Reason: "not found"})
		}
		if onProgress != nil {
			onProgress(i+1, len(refs))
		}
	}
	return out, stats
}

func testConfig() Config {
	return Config{
		Derive: metrics.DeriveConfig{
			ApprovalKeywords: []string{"lgtm"},
			NegativePolicy:   metrics.NegativeClamp,
		},
		Statuses: metrics.StatusSets{
			InProgress: []string{"In Progress"},
			Resolved:   []string{"Resolved"},
		},
		Aggregate: aggregate.Config{Bucket: bucket.Config{Mode: bucket.ModeWeekly}},
	}
}

func mergedDetail(owner, repo string, number int, author string, created, merged time.Time) *model.PRDetail {
	return &model.PRDetail{
		Owner:     owner,
		Repo:      repo,
		Number:    number,
		Author:    author,
		CreatedAt: created,
		MergedAt:  &merged,
		Additions: 10,
		Deletions: 5,
	}
}

func TestRunPipeline(t *testing.T) {
	t0 := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	issues := &fakeIssues{issues: []model.IssueRecord{
		{
			Key:          "PROJ-1",
			CustomFields: map[string]string{"customfield_12310220": "https://github.com/acme/widget/pull/1"},
			Transitions: []model.StatusTransition{
				{ToStatus: "In Progress", At: t0},
				{ToStatus: "Resolved", At: t0.Add(48 * time.Hour)},
			},
		},
		{
			Key:         "PROJ-2",
			Description: "fixed by https://github.com/acme/widget/pull/2 and https://github.com/acme/widget/pull/1",
		},
	}}
	fetcher := &fakeFetcher{details: map[model.RefKey]*model.PRDetail{
		{Owner: "acme", Repo: "widget", Number: 1}: mergedDetail("acme", "widget", 1, "alice", t0.Add(5*time.Hour), t0.Add(30*time.Hour)),
		{Owner: "acme", Repo: "widget", Number: 2}: mergedDetail("acme", "widget", 2, "bob", t0.Add(2*time.Hour), t0.Add(20*time.Hour)),
	}}

	a, err := New(issues, fetcher, extract.New("customfield_12310220", false), testConfig())
	if err != nil {
		t.Fatal(err)
	}

	var progressCalls int
	a.cfg.OnProgress = func(phase string, completed, total int) {
		if phase != "fetch" {
			t.Errorf("phase = %q", phase)
		}
		progressCalls++
	}

	res, err := a.Run(context.Background(), "project = PROJ")
	if err != nil {
		t.Fatal(err)
	}

	if res.IssuesScanned != 2 {
		t.Errorf("issuesScanned = %d, want 2", res.IssuesScanned)
	}
	// PR #1 referenced by both issues collapses to one fetch.
	if res.RefsFound != 2 {
		t.Errorf("refsFound = %d, want 2 after dedup", res.RefsFound)
	}
	if len(fetcher.refs) != 2 {
		t.Errorf("fetch requests = %d, want 2", len(fetcher.refs))
	}
	if res.Report.Overall.TotalPRs != 2 || res.Report.Overall.MergedPRs != 2 {
		t.Errorf("overall = %+v", res.Report.Overall)
	}
	if progressCalls != 2 {
		t.Errorf("progress calls = %d, want 2", progressCalls)
	}

	// PROJ-1's transitions correlate with PR #1: 5h to created, 30h to
	// merged, 18h merged-to-resolved.
	got := res.Report.Overall.InProgressToPRCreated
	if got.Count != 1 || got.Mean != 5*time.Hour {
		t.Errorf("inProgressToPRCreated = %+v", got)
	}
	if got := res.Report.Overall.PRMergedToResolved; got.Count != 1 || got.Mean != 18*time.Hour {
		t.Errorf("prMergedToResolved = %+v", got)
	}
}

func TestRunIssueQueryFailureIsFatal(t *testing.T) {
	a, err := New(
		&fakeIssues{err: fmt.Errorf("jira down")},
		&fakeFetcher{},
		extract.New("customfield_12310220", false),
		testConfig(),
	)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := a.Run(context.Background(), "project = PROJ"); err == nil {
		t.Error("expected fatal error when issue query fails")
	}
}

func TestRunEmptyIssuesProducesEmptyReport(t *testing.T) {
	a, err := New(&fakeIssues{}, &fakeFetcher{}, extract.New("customfield_12310220", false), testConfig())
	if err != nil {
		t.Fatal(err)
	}

	res, err := a.Run(context.Background(), "project = EMPTY")
	if err != nil {
		t.Fatalf("empty result must not be an error: %v", err)
	}
	if res.Report == nil || res.Report.Overall.TotalPRs != 0 {
		t.Errorf("report = %+v, want empty", res.Report)
	}
	if res.Fetch.Requested != 0 {
		t.Errorf("requested = %d, want 0", res.Fetch.Requested)
	}
}

func TestRunPartialFetchStillReports(t *testing.T) {
	issues := &fakeIssues{issues: []model.IssueRecord{{
		Key:         "PROJ-9",
		Description: "https://github.com/acme/widget/pull/5 https://github.com/acme/widget/pull/6",
	}}}
	fetcher := &fakeFetcher{details: map[model.RefKey]*model.PRDetail{
		{Owner: "acme", Repo: "widget", Number: 5}: mergedDetail("acme", "widget", 5, "alice",
			time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)),
	}}

	a, err := New(issues, fetcher, extract.New("customfield_12310220", false), testConfig())
	if err != nil {
		t.Fatal(err)
	}

	res, err := a.Run(context.Background(), "project = PROJ")
	if err != nil {
		t.Fatalf("partial fetch must not abort the run: %v", err)
	}
	if res.Fetch.Failed != 1 || res.Fetch.Fetched != 1 {
		t.Errorf("fetch stats = %+v", res.Fetch)
	}
	if res.Report.Overall.TotalPRs != 1 {
		t.Errorf("totalPRs = %d, want 1", res.Report.Overall.TotalPRs)
	}
}

func TestNewValidatesConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Derive.NegativePolicy = "bogus"
	if _, err := New(&fakeIssues{}, &fakeFetcher{}, extract.New("f", false), cfg); err == nil {
		t.Error("expected config validation error")
	}

	if _, err := New(nil, &fakeFetcher{}, extract.New("f", false), testConfig()); err == nil {
		t.Error("expected error for nil issue source")
	}
}
