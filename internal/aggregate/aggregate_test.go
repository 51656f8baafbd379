package aggregate

import (
	"testing"
	"time"

	"github.com/hal/prflow/internal/bucket"
	"github.com/hal/prflow/internal/model"
)

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func dp(d time.Duration) *time.Duration { return &d }

func weeklyCfg() Config {
	return Config{Bucket: bucket.Config{Mode: bucket.ModeWeekly}}
}

func pr(author string, created string, merged string, size int) model.PRMetrics {
	m := model.PRMetrics{
		Owner:  "acme",
		Repo:   "widget",
		Author: author,
		Size:   size,
	}
	if created != "" {
		m.CreatedAt = ts(created)
	}
	if merged != "" {
		at := ts(merged)
		m.MergedAt = &at
	}
	return m
}

func TestBuildBucketsAndOverall(t *testing.T) {
	// Two PRs in the week of Mon 2024-01-01, one in the week of Mon 2024-01-08.
	a := pr("alice", "2024-01-02T10:00:00Z", "2024-01-03T10:00:00Z", 100)
	a.Number = 1
	a.TimeToMerge = dp(24 * time.Hour)
	a.TimeToFirstReview = dp(6 * time.Hour)
	a.TimeFirstReviewToMerge = dp(18 * time.Hour)
	b := pr("bob", "2024-01-04T00:00:00Z", "", 50)
	b.Number = 2
	c := pr("alice", "2024-01-09T00:00:00Z", "2024-01-10T00:00:00Z", 10)
	c.Number = 3
	c.TimeToMerge = dp(48 * time.Hour)

	rep, err := Build([]model.PRMetrics{a, b, c}, nil, weeklyCfg(), ts("2024-02-01T00:00:00Z"))
	if err != nil {
		t.Fatal(err)
	}

	if len(rep.Buckets) != 2 {
		t.Fatalf("buckets = %d, want 2", len(rep.Buckets))
	}
	if rep.Buckets[0].Label != "2024-01-01" || rep.Buckets[1].Label != "2024-01-08" {
		t.Errorf("bucket labels = %s, %s", rep.Buckets[0].Label, rep.Buckets[1].Label)
	}
	if !rep.Buckets[0].Bucket.Start.Before(rep.Buckets[1].Bucket.Start) {
		t.Error("buckets not in chronological order")
	}

	wk1 := rep.Buckets[0]
	if wk1.TotalPRs != 2 || wk1.MergedPRs != 1 {
		t.Errorf("week1 counts = %d/%d, want 2/1", wk1.TotalPRs, wk1.MergedPRs)
	}
	if wk1.MergeRate != 0.5 {
		t.Errorf("week1 merge rate = %v, want 0.5", wk1.MergeRate)
	}
	if wk1.AvgSize != 75 {
		t.Errorf("week1 avg size = %v, want 75", wk1.AvgSize)
	}
	// Only one record in week 1 carries a time-to-merge; the unmerged PR must
	// not dilute the mean.
	if wk1.TimeToMerge.Count != 1 || wk1.TimeToMerge.Mean != 24*time.Hour {
		t.Errorf("week1 timeToMerge = %+v, want mean 24h over 1", wk1.TimeToMerge)
	}

	if rep.Overall.TotalPRs != 3 || rep.Overall.MergedPRs != 2 || rep.Overall.CarryOverPRs != 1 {
		t.Errorf("overall counts = %+v", rep.Overall)
	}
	if rep.Overall.TimeToMerge.Count != 2 || rep.Overall.TimeToMerge.Mean != 36*time.Hour {
		t.Errorf("overall timeToMerge = %+v, want mean 36h over 2", rep.Overall.TimeToMerge)
	}
	// Only one record carries a first-review-to-merge span.
	if rep.Overall.TimeFirstReviewToMerge.Count != 1 || rep.Overall.TimeFirstReviewToMerge.Mean != 18*time.Hour {
		t.Errorf("overall timeFirstReviewToMerge = %+v, want mean 18h over 1", rep.Overall.TimeFirstReviewToMerge)
	}

	alice := rep.ByAuthor["alice"]
	if alice.TotalPRs != 2 || alice.MergedPRs != 2 {
		t.Errorf("alice = %+v", alice)
	}
	if len(rep.Authors) != 2 || rep.Authors[0] != "alice" || rep.Authors[1] != "bob" {
		t.Errorf("authors = %v", rep.Authors)
	}
}

func TestBuildEmptyInput(t *testing.T) {
	rep, err := Build(nil, nil, weeklyCfg(), ts("2024-02-01T00:00:00Z"))
	if err != nil {
		t.Fatal(err)
	}
	if rep.Overall.TotalPRs != 0 {
		t.Errorf("total = %d, want 0", rep.Overall.TotalPRs)
	}
	if rep.Overall.MergeRate != 0 {
		t.Errorf("merge rate = %v, want 0 for empty input", rep.Overall.MergeRate)
	}
	if len(rep.Buckets) != 0 {
		t.Errorf("buckets = %d, want 0", len(rep.Buckets))
	}
}

func TestBuildCutoffExcludesEverywhere(t *testing.T) {
	old := pr("alice", "2022-01-01T00:00:00Z", "2022-01-02T00:00:00Z", 500)
	old.Number = 1
	recent := pr("alice", "2024-01-20T00:00:00Z", "", 10)
	recent.Number = 2

	cfg := weeklyCfg()
	cfg.CutoffMonths = 3
	rep, err := Build([]model.PRMetrics{old, recent}, nil, cfg, ts("2024-02-01T00:00:00Z"))
	if err != nil {
		t.Fatal(err)
	}

	if rep.CutoffExcluded != 1 {
		t.Errorf("cutoffExcluded = %d, want 1", rep.CutoffExcluded)
	}
	if rep.Overall.TotalPRs != 1 {
		t.Errorf("overall total = %d, want 1 (old record must not appear)", rep.Overall.TotalPRs)
	}
	if rep.ByAuthor["alice"].TotalPRs != 1 {
		t.Errorf("alice total = %d, want 1", rep.ByAuthor["alice"].TotalPRs)
	}
	if len(rep.Buckets) != 1 {
		t.Errorf("buckets = %d, want 1", len(rep.Buckets))
	}
}

func TestBuildNullCreatedAtUnbucketed(t *testing.T) {
	dated := pr("alice", "2024-01-02T00:00:00Z", "", 10)
	dated.Number = 1
	undated := pr("bob", "", "", 20)
	undated.Number = 2

	rep, err := Build([]model.PRMetrics{dated, undated}, nil, weeklyCfg(), ts("2024-02-01T00:00:00Z"))
	if err != nil {
		t.Fatal(err)
	}

	if rep.Unbucketed != 1 {
		t.Errorf("unbucketed = %d, want 1", rep.Unbucketed)
	}
	if rep.Overall.TotalPRs != 2 {
		t.Errorf("overall total = %d, want 2", rep.Overall.TotalPRs)
	}
	if got := rep.Buckets[0].TotalPRs; got != 1 {
		t.Errorf("bucketed total = %d, want 1", got)
	}
	if rep.ByAuthor["bob"].TotalPRs != 1 {
		t.Errorf("bob total = %d, want 1", rep.ByAuthor["bob"].TotalPRs)
	}
}

func TestBuildWorkflowTimingMeans(t *testing.T) {
	a := pr("alice", "2024-01-02T00:00:00Z", "2024-01-03T00:00:00Z", 10)
	a.Number = 1
	b := pr("bob", "2024-01-02T06:00:00Z", "", 10)
	b.Number = 2

	timings := []model.WorkflowTiming{
		{
			IssueKey:              "PROJ-1",
			PR:                    a.Key(),
			InProgressToPRCreated: dp(4 * time.Hour),
			InProgressToPRMerged:  dp(28 * time.Hour),
			PRMergedToResolved:    dp(2 * time.Hour),
		},
		{
			IssueKey:              "PROJ-2",
			PR:                    b.Key(),
			InProgressToPRCreated: dp(8 * time.Hour),
		},
	}

	rep, err := Build([]model.PRMetrics{a, b}, timings, weeklyCfg(), ts("2024-02-01T00:00:00Z"))
	if err != nil {
		t.Fatal(err)
	}

	if got := rep.Overall.InProgressToPRCreated; got.Count != 2 || got.Mean != 6*time.Hour {
		t.Errorf("inProgressToPRCreated = %+v, want mean 6h over 2", got)
	}
	if got := rep.Overall.InProgressToPRMerged; got.Count != 1 || got.Mean != 28*time.Hour {
		t.Errorf("inProgressToPRMerged = %+v, want mean 28h over 1", got)
	}
	if got := rep.Overall.PRMergedToResolved; got.Count != 1 || got.Mean != 2*time.Hour {
		t.Errorf("prMergedToResolved = %+v, want mean 2h over 1", got)
	}
}

func TestBuildDistributions(t *testing.T) {
	a := pr("alice", "2024-01-02T00:00:00Z", "2024-01-03T00:00:00Z", 10)
	a.Number = 1
	a.ReviewCount = 2
	a.Reviewers = []string{"bob", "carol"}
	a.Approvers = []string{"bob", "carol"}
	b := pr("bob", "2024-01-02T06:00:00Z", "2024-01-04T00:00:00Z", 10)
	b.Number = 2
	b.ReviewCount = 1
	b.Reviewers = []string{"carol"}
	b.Approvers = nil
	c := pr("alice", "2024-01-05T00:00:00Z", "", 10)
	c.Number = 3

	rep, err := Build([]model.PRMetrics{a, b, c}, nil, weeklyCfg(), ts("2024-02-01T00:00:00Z"))
	if err != nil {
		t.Fatal(err)
	}

	if rep.ReviewerDistribution["carol"] != 2 || rep.ReviewerDistribution["bob"] != 1 {
		t.Errorf("reviewer distribution = %v", rep.ReviewerDistribution)
	}
	if rep.TotalReviewInstances != 3 {
		t.Errorf("totalReviewInstances = %d, want 3", rep.TotalReviewInstances)
	}
	if rep.PRsWithReviews != 2 {
		t.Errorf("prsWithReviews = %d, want 2", rep.PRsWithReviews)
	}
	if rep.ApproverDistribution[2] != 1 || rep.ApproverDistribution[0] != 1 {
		t.Errorf("approver distribution = %v", rep.ApproverDistribution)
	}
	if rep.MultiApproverShare != 0.5 {
		t.Errorf("multiApproverShare = %v, want 0.5", rep.MultiApproverShare)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := weeklyCfg()
	cfg.CutoffMonths = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for negative cutoff")
	}
	cfg = Config{Bucket: bucket.Config{Mode: "hourly"}}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unknown bucket mode")
	}
}
