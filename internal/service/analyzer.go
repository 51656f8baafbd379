// Package service wires the analysis pipeline: issue query, reference
// extraction, detail fetch, metric derivation, workflow correlation, and
// aggregation, executed to completion before any output is produced.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/hal/prflow/internal/aggregate"
	"github.com/hal/prflow/internal/extract"
	"github.com/hal/prflow/internal/ghclient"
	"github.com/hal/prflow/internal/log"
	"github.com/hal/prflow/internal/metrics"
	"github.com/hal/prflow/internal/model"
)

// IssueSource is the issue query collaborator. Implemented by
// jiraclient.Client.
type IssueSource interface {
	SearchIssues(ctx context.Context, query string) ([]model.IssueRecord, error)
}

// Fetcher resolves pull-request references into details. Implemented by
// ghclient.Orchestrator.
type Fetcher interface {
	Fetch(ctx context.Context, refs []model.PullRequestRef, onProgress func(completed, total int)) (map[model.RefKey]*model.PRDetail, *ghclient.FetchStats)
}

// Progress observes a long-running phase. It is a passive callback; phases
// run to completion regardless.
type Progress func(phase string, completed, total int)

// Config bundles the pipeline settings validated at startup.
type Config struct {
	Derive     metrics.DeriveConfig
	Statuses   metrics.StatusSets
	Aggregate  aggregate.Config
	OnProgress Progress
}

// Analyzer runs the full pipeline for one query.
type Analyzer struct {
	issues    IssueSource
	fetcher   Fetcher
	extractor *extract.Extractor
	cfg       Config
}

// Result is the complete output of one run.
type Result struct {
	Report *aggregate.Report `json:"report"`

	IssuesScanned int                  `json:"issuesScanned"`
	RefsFound     int                  `json:"refsFound"`
	Fetch         *ghclient.FetchStats `json:"fetch"`
}

// New validates the configuration before any network activity.
func New(issues IssueSource, fetcher Fetcher, extractor *extract.Extractor, cfg Config) (*Analyzer, error) {
	if issues == nil {
		return nil, fmt.Errorf("issue source is required")
	}
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if err := cfg.Derive.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Statuses.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Aggregate.Validate(); err != nil {
		return nil, err
	}
	return &Analyzer{issues: issues, fetcher: fetcher, extractor: extractor, cfg: cfg}, nil
}

// Run executes the pipeline. An issue-query failure is fatal; everything
// downstream degrades to partial results carried in the report.
func (a *Analyzer) Run(ctx context.Context, query string) (*Result, error) {
	issues, err := a.issues.SearchIssues(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("issue query failed: %w", err)
	}
	log.Info("issues fetched", "count", len(issues))

	res := &Result{IssuesScanned: len(issues)}

	// Extraction pairs every reference with its originating issue; the
	// fetch set is deduplicated so each PR costs one request.
	var allRefs []model.PullRequestRef
	issueByKey := make(map[string]*model.IssueRecord, len(issues))
	for i := range issues {
		issueByKey[issues[i].Key] = &issues[i]
		allRefs = append(allRefs, a.extractor.Extract(&issues[i])...)
	}
	fetchRefs := extract.Dedupe(allRefs)
	res.RefsFound = len(fetchRefs)
	log.Info("references extracted", "refs", len(allRefs), "unique", len(fetchRefs))

	details, stats := a.fetcher.Fetch(ctx, fetchRefs, func(completed, total int) {
		a.progress("fetch", completed, total)
	})
	res.Fetch = stats

	// Derive one metrics record per fetched PR. The issue of first mention
	// owns the record for per-issue attribution.
	prByKey := make(map[model.RefKey]*model.PRMetrics, len(details))
	var prMetrics []model.PRMetrics
	for _, ref := range fetchRefs {
		d, ok := details[ref.Key()]
		if !ok {
			continue
		}
		prMetrics = append(prMetrics, metrics.Derive(d, ref.IssueKey, a.cfg.Derive))
	}
	for i := range prMetrics {
		prByKey[prMetrics[i].Key()] = &prMetrics[i]
	}

	// Correlate one timing per (issue, pull request) pair, over the
	// pre-deduplication pairs so shared PRs contribute to every issue that
	// references them.
	var timings []model.WorkflowTiming
	for _, ref := range allRefs {
		pr, ok := prByKey[ref.Key()]
		if !ok {
			continue
		}
		issue, ok := issueByKey[ref.IssueKey]
		if !ok {
			continue
		}
		timings = append(timings, metrics.CorrelateWorkflow(issue, pr, a.cfg.Statuses))
	}

	report, err := aggregate.Build(prMetrics, timings, a.cfg.Aggregate, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	res.Report = report

	log.Info("analysis complete",
		"issues", res.IssuesScanned,
		"prs", report.Overall.TotalPRs,
		"fetched", stats.Fetched,
		"failed", stats.Failed)
	return res, nil
}

func (a *Analyzer) progress(phase string, completed, total int) {
	if a.cfg.OnProgress != nil {
		a.cfg.OnProgress(phase, completed, total)
	}
}
