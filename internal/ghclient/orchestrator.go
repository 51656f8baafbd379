package ghclient

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/hal/prflow/internal/log"
	"github.com/hal/prflow/internal/model"
	"golang.org/x/sync/errgroup"
)

// FetchFailure records one pull request that could not be fetched after the
// bulk attempt and its individual fallback.
type FetchFailure struct {
	Ref    model.RefKey `json:"ref"`
	Reason string       `json:"reason"`
}

// FetchStats summarizes a fetch run for "N of M fetched" reporting.
type FetchStats struct {
	Requested int            `json:"requested"`
	Fetched   int            `json:"fetched"`
	Failed    int            `json:"failed"`
	Failures  []FetchFailure `json:"failures,omitempty"`
}

// Orchestrator resolves a set of pull-request references into details. Each
// repository's references are chunked into bulk queries; items a bulk query
// omits, or whole batches that fail outright, fall back to one individual
// request per item. A single unreachable pull request never aborts the run.
type Orchestrator struct {
	bulk      BulkFetcher
	single    SingleFetcher
	batchSize int
}

// NewOrchestrator validates the batch size against the bulk protocol limit.
func NewOrchestrator(bulk BulkFetcher, single SingleFetcher, batchSize int) (*Orchestrator, error) {
	if batchSize < 1 || batchSize > MaxBatchSize {
		return nil, fmt.Errorf("batch size must be between 1 and %d, got %d", MaxBatchSize, batchSize)
	}
	return &Orchestrator{bulk: bulk, single: single, batchSize: batchSize}, nil
}

type repoPartition struct {
	owner   string
	repo    string
	numbers []int
}

type repoResult struct {
	details  map[int]*model.PRDetail
	failures []FetchFailure
	owner    string
	repo     string
}

// Fetch resolves the given references, fanning out one worker per repository.
// Requests within a repository run sequentially to respect per-repo rate
// limits; partial results from each worker are merged after all complete.
// onProgress, if non-nil, observes cumulative settled items.
func (o *Orchestrator) Fetch(ctx context.Context, refs []model.PullRequestRef, onProgress func(completed, total int)) (map[model.RefKey]*model.PRDetail, *FetchStats) {
	partitions := partitionByRepo(refs)

	// The total counts deduplicated work items, not incoming refs, so the
	// progress counter can always reach it.
	total := 0
	for _, p := range partitions {
		total += len(p.numbers)
	}
	stats := &FetchStats{Requested: total}

	var completed atomic.Int64
	progress := func() {
		if onProgress != nil {
			onProgress(int(completed.Add(1)), total)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	results := make(chan repoResult, len(partitions))

	for _, part := range partitions {
		p := part
		g.Go(func() error {
			results <- o.fetchRepo(ctx, p, progress)
			return nil
		})
	}

	// Workers never return errors; failures travel inside their results.
	_ = g.Wait()
	close(results)

	details := make(map[model.RefKey]*model.PRDetail, total)
	for res := range results {
		for number, d := range res.details {
			details[model.RefKey{Owner: res.owner, Repo: res.repo, Number: number}] = d
		}
		stats.Failures = append(stats.Failures, res.failures...)
	}

	stats.Fetched = len(details)
	stats.Failed = len(stats.Failures)

	sort.Slice(stats.Failures, func(i, j int) bool {
		return stats.Failures[i].Ref.String() < stats.Failures[j].Ref.String()
	})

	log.Debug("fetch complete", "requested", stats.Requested, "fetched", stats.Fetched, "failed", stats.Failed)
	return details, stats
}

// fetchRepo works through one repository's references in batch-size chunks.
func (o *Orchestrator) fetchRepo(ctx context.Context, p repoPartition, progress func()) repoResult {
	res := repoResult{
		details: make(map[int]*model.PRDetail, len(p.numbers)),
		owner:   p.owner,
		repo:    p.repo,
	}

	for start := 0; start < len(p.numbers); start += o.batchSize {
		end := start + o.batchSize
		if end > len(p.numbers) {
			end = len(p.numbers)
		}
		chunk := p.numbers[start:end]

		batch, err := o.bulk.FetchBatch(ctx, p.owner, p.repo, chunk)
		if err != nil {
			// Whole-batch failure: every member gets one individual attempt.
			log.Warn("bulk fetch failed, falling back to individual requests",
				"repo", p.owner+"/"+p.repo, "batch", len(chunk), "error", err)
			for _, number := range chunk {
				o.fallback(ctx, &res, number, progress)
			}
			continue
		}

		for number, d := range batch.Found {
			res.details[number] = d
			progress()
		}
		// Items the bulk response omitted get one individual attempt each.
		for _, number := range batch.NotFound {
			o.fallback(ctx, &res, number, progress)
		}
	}

	return res
}

func (o *Orchestrator) fallback(ctx context.Context, res *repoResult, number int, progress func()) {
	defer progress()

	d, err := o.single.FetchPR(ctx, res.owner, res.repo, number)
	if err != nil {
		res.failures = append(res.failures, FetchFailure{
			Ref:    model.RefKey{Owner: res.owner, Repo: res.repo, Number: number},
			Reason: err.Error(),
		})
		return
	}
	res.details[number] = d
}

// partitionByRepo groups references by repository, preserving first-seen
// order of both repositories and numbers.
func partitionByRepo(refs []model.PullRequestRef) []repoPartition {
	index := make(map[string]int)
	var partitions []repoPartition
	seen := make(map[model.RefKey]bool, len(refs))

	for _, ref := range refs {
		key := ref.Key()
		if seen[key] {
			continue
		}
		seen[key] = true

		full := key.RepoFullName()
		i, ok := index[full]
		if !ok {
			i = len(partitions)
			index[full] = i
			partitions = append(partitions, repoPartition{owner: ref.Owner, repo: ref.Repo})
		}
		partitions[i].numbers = append(partitions[i].numbers, ref.Number)
	}

	return partitions
}
