// Package aggregate reduces per-pull-request metrics and workflow timings
// into time-bucketed, overall, and per-contributor summaries.
package aggregate

import (
	"fmt"
	"sort"
	"time"

	"github.com/hal/prflow/internal/bucket"
	"github.com/hal/prflow/internal/log"
	"github.com/hal/prflow/internal/model"
)

// Config controls bucketing and the optional history cutoff.
type Config struct {
	Bucket bucket.Config
	// CutoffMonths drops records created more than N*30 days before the run.
	// Zero disables the filter.
	CutoffMonths int
}

// Validate reports configuration errors.
func (c Config) Validate() error {
	if err := c.Bucket.Validate(); err != nil {
		return err
	}
	if c.CutoffMonths < 0 {
		return fmt.Errorf("cutoff months must not be negative, got %d", c.CutoffMonths)
	}
	return nil
}

// DurationStat is the arithmetic mean of a nullable duration metric. Count is
// the number of records that actually carried a value; records where the
// metric is absent do not dilute the mean.
type DurationStat struct {
	Mean  time.Duration `json:"mean"`
	Count int           `json:"count"`
}

func (s DurationStat) Empty() bool { return s.Count == 0 }

// Aggregate is the reduction of one group of pull requests, where a group is
// a time bucket, a single contributor, or the whole run.
type Aggregate struct {
	Label  string           `json:"label"`
	Bucket *model.BucketKey `json:"bucket,omitempty"`

	TotalPRs     int     `json:"totalPRs"`
	MergedPRs    int     `json:"mergedPRs"`
	CarryOverPRs int     `json:"carryOverPRs"`
	MergeRate    float64 `json:"mergeRate"`

	AvgSize float64 `json:"avgSize"`

	TimeToFirstReview      DurationStat `json:"timeToFirstReview"`
	TimeToMerge            DurationStat `json:"timeToMerge"`
	TimeFirstReviewToMerge DurationStat `json:"timeFirstReviewToMerge"`
	InProgressToPRCreated  DurationStat `json:"inProgressToPRCreated"`
	InProgressToPRMerged   DurationStat `json:"inProgressToPRMerged"`
	PRMergedToResolved     DurationStat `json:"prMergedToResolved"`

	ReviewCount      int `json:"reviewCount"`
	CommentCount     int `json:"commentCount"`
	ApprovalMentions int `json:"approvalMentions"`
}

// Report is the full output of one aggregation run.
type Report struct {
	GeneratedAt time.Time `json:"generatedAt"`
	BucketMode  string    `json:"bucketMode"`

	Buckets  []Aggregate          `json:"buckets"`
	Overall  Aggregate            `json:"overall"`
	ByAuthor map[string]Aggregate `json:"byAuthor"`
	// Authors lists ByAuthor keys in sorted order for stable rendering.
	Authors []string `json:"authors"`

	// ReviewerDistribution maps reviewer login to review instances given,
	// across all counted pull requests.
	ReviewerDistribution map[string]int `json:"reviewerDistribution"`
	TotalReviewInstances int            `json:"totalReviewInstances"`
	PRsWithReviews       int            `json:"prsWithReviews"`

	// ApproverDistribution maps distinct-approver count to the number of
	// merged pull requests that had exactly that many approvers.
	ApproverDistribution map[int]int `json:"approverDistribution"`
	// MultiApproverShare is the fraction of merged PRs with at least two
	// distinct approvers.
	MultiApproverShare float64 `json:"multiApproverShare"`

	Anomalies []model.Anomaly `json:"anomalies,omitempty"`

	// CutoffExcluded counts records dropped by the history cutoff.
	// Unbucketed counts records with no created-at, which appear in the
	// overall and per-author sections but in no time bucket.
	CutoffExcluded int `json:"cutoffExcluded"`
	Unbucketed     int `json:"unbucketed"`
}

// Build reduces the run's metrics into a Report. The bucketing origin for
// n-day spans is the earliest created-at among counted records, so bucket
// assignment happens here rather than at derivation time.
func Build(prs []model.PRMetrics, timings []model.WorkflowTiming, cfg Config, now time.Time) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rep := &Report{
		GeneratedAt:          now,
		BucketMode:           string(cfg.Bucket.Mode),
		ByAuthor:             make(map[string]Aggregate),
		ReviewerDistribution: make(map[string]int),
		ApproverDistribution: make(map[int]int),
	}

	counted := applyCutoff(prs, cfg.CutoffMonths, now, rep)
	timingsByPR := indexTimings(timings, counted)

	assignBuckets(counted, cfg.Bucket, rep)

	rep.Overall = reduce("overall", nil, counted, timingsByPR)

	byBucket := make(map[string][]*model.PRMetrics)
	byAuthor := make(map[string][]*model.PRMetrics)
	for _, pr := range counted {
		if pr.Bucket != nil {
			byBucket[pr.Bucket.Label] = append(byBucket[pr.Bucket.Label], pr)
		}
		author := pr.Author
		if author == "" {
			author = "unknown"
		}
		byAuthor[author] = append(byAuthor[author], pr)

		rep.Anomalies = append(rep.Anomalies, pr.Anomalies...)
	}

	for label, group := range byBucket {
		rep.Buckets = append(rep.Buckets, reduce(label, group[0].Bucket, group, timingsByPR))
	}
	sort.Slice(rep.Buckets, func(i, j int) bool {
		return rep.Buckets[i].Bucket.Start.Before(rep.Buckets[j].Bucket.Start)
	})

	for author, group := range byAuthor {
		rep.ByAuthor[author] = reduce(author, nil, group, timingsByPR)
		rep.Authors = append(rep.Authors, author)
	}
	sort.Strings(rep.Authors)

	tallyDistributions(counted, rep)

	return rep, nil
}

// applyCutoff drops records created before now minus cutoffMonths*30 days.
// Records with no created-at always survive the filter.
func applyCutoff(prs []model.PRMetrics, cutoffMonths int, now time.Time, rep *Report) []*model.PRMetrics {
	var cutoff time.Time
	if cutoffMonths > 0 {
		cutoff = now.Add(-time.Duration(cutoffMonths) * 30 * 24 * time.Hour)
	}

	counted := make([]*model.PRMetrics, 0, len(prs))
	for i := range prs {
		pr := &prs[i]
		if !cutoff.IsZero() && !pr.CreatedAt.IsZero() && pr.CreatedAt.Before(cutoff) {
			rep.CutoffExcluded++
			log.Debug("cutoff excluded", "pr", pr.Key().String(), "created", pr.CreatedAt)
			continue
		}
		counted = append(counted, pr)
	}
	return counted
}

// indexTimings keeps only timings whose pull request survived the cutoff.
func indexTimings(timings []model.WorkflowTiming, counted []*model.PRMetrics) map[model.RefKey][]*model.WorkflowTiming {
	keep := make(map[model.RefKey]bool, len(counted))
	for _, pr := range counted {
		keep[pr.Key()] = true
	}

	out := make(map[model.RefKey][]*model.WorkflowTiming)
	for i := range timings {
		wt := &timings[i]
		if keep[wt.PR] {
			out[wt.PR] = append(out[wt.PR], wt)
		}
	}
	return out
}

// assignBuckets computes each record's bucket from its created-at. Records
// with no created-at stay unbucketed.
func assignBuckets(counted []*model.PRMetrics, cfg bucket.Config, rep *Report) {
	var earliest time.Time
	for _, pr := range counted {
		if pr.CreatedAt.IsZero() {
			continue
		}
		if earliest.IsZero() || pr.CreatedAt.Before(earliest) {
			earliest = pr.CreatedAt
		}
	}
	if earliest.IsZero() {
		rep.Unbucketed = len(counted)
		return
	}

	b, err := bucket.New(cfg, earliest)
	if err != nil {
		// Validate ran before Build; only a zero origin can fail here and
		// that case returned above.
		log.Warn("bucketing unavailable", "error", err)
		rep.Unbucketed = len(counted)
		return
	}
	for _, pr := range counted {
		if pr.CreatedAt.IsZero() {
			rep.Unbucketed++
			continue
		}
		bk := b.Assign(pr.CreatedAt)
		pr.Bucket = &bk
	}
}

// reduce folds one group of pull requests into an Aggregate. All duration and
// size means are computed over the records that actually carry the value.
func reduce(label string, bk *model.BucketKey, prs []*model.PRMetrics, timingsByPR map[model.RefKey][]*model.WorkflowTiming) Aggregate {
	agg := Aggregate{Label: label, Bucket: bk, TotalPRs: len(prs)}

	var sizeSum int
	var ttfr, ttm, frtm, ipCreated, ipMerged, mergedResolved []time.Duration

	for _, pr := range prs {
		if pr.Merged() {
			agg.MergedPRs++
		}
		sizeSum += pr.Size
		agg.ReviewCount += pr.ReviewCount
		agg.CommentCount += pr.CommentCount
		agg.ApprovalMentions += pr.ApprovalMentions

		if pr.TimeToFirstReview != nil {
			ttfr = append(ttfr, *pr.TimeToFirstReview)
		}
		if pr.TimeToMerge != nil {
			ttm = append(ttm, *pr.TimeToMerge)
		}
		if pr.TimeFirstReviewToMerge != nil {
			frtm = append(frtm, *pr.TimeFirstReviewToMerge)
		}
		for _, wt := range timingsByPR[pr.Key()] {
			if wt.InProgressToPRCreated != nil {
				ipCreated = append(ipCreated, *wt.InProgressToPRCreated)
			}
			if wt.InProgressToPRMerged != nil {
				ipMerged = append(ipMerged, *wt.InProgressToPRMerged)
			}
			if wt.PRMergedToResolved != nil {
				mergedResolved = append(mergedResolved, *wt.PRMergedToResolved)
			}
		}
	}

	agg.CarryOverPRs = agg.TotalPRs - agg.MergedPRs
	if agg.TotalPRs > 0 {
		agg.MergeRate = float64(agg.MergedPRs) / float64(agg.TotalPRs)
		agg.AvgSize = float64(sizeSum) / float64(agg.TotalPRs)
	}

	agg.TimeToFirstReview = meanOf(ttfr)
	agg.TimeToMerge = meanOf(ttm)
	agg.TimeFirstReviewToMerge = meanOf(frtm)
	agg.InProgressToPRCreated = meanOf(ipCreated)
	agg.InProgressToPRMerged = meanOf(ipMerged)
	agg.PRMergedToResolved = meanOf(mergedResolved)

	return agg
}

func meanOf(ds []time.Duration) DurationStat {
	if len(ds) == 0 {
		return DurationStat{}
	}
	var sum time.Duration
	for _, d := range ds {
		sum += d
	}
	return DurationStat{Mean: sum / time.Duration(len(ds)), Count: len(ds)}
}

// tallyDistributions fills the reviewer and approver distributions used by
// the review-coverage section of the report.
func tallyDistributions(counted []*model.PRMetrics, rep *Report) {
	var mergedWithMulti, merged int

	for _, pr := range counted {
		for _, reviewer := range pr.Reviewers {
			rep.ReviewerDistribution[reviewer]++
			rep.TotalReviewInstances++
		}
		if pr.ReviewCount > 0 {
			rep.PRsWithReviews++
		}
		if pr.Merged() {
			merged++
			rep.ApproverDistribution[len(pr.Approvers)]++
			if len(pr.Approvers) >= 2 {
				mergedWithMulti++
			}
		}
	}

	if merged > 0 {
		rep.MultiApproverShare = float64(mergedWithMulti) / float64(merged)
	}
}
