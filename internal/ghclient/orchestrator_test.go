package ghclient

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/hal/prflow/internal/model"
)

type fakeBulk struct {
	mu    sync.Mutex
	calls [][]int
	fn    func(owner, repo string, numbers []int) (*BatchResult, error)
}

func (f *fakeBulk) FetchBatch(_ context.Context, owner, repo string, numbers []int) (*BatchResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]int(nil), numbers...))
	f.mu.Unlock()
	return f.fn(owner, repo, numbers)
}

type fakeSingle struct {
	mu    sync.Mutex
	calls []model.RefKey
	fn    func(owner, repo string, number int) (*model.PRDetail, error)
}

func (f *fakeSingle) FetchPR(_ context.Context, owner, repo string, number int) (*model.PRDetail, error) {
	f.mu.Lock()
	f.calls = append(f.calls, model.RefKey{Owner: owner, Repo: repo, Number: number})
	f.mu.Unlock()
	return f.fn(owner, repo, number)
}

func detail(owner, repo string, number int) *model.PRDetail {
	return &model.PRDetail{
		Owner:     owner,
		Repo:      repo,
		Number:    number,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func refs(owner, repo string, numbers ...int) []model.PullRequestRef {
	out := make([]model.PullRequestRef, 0, len(numbers))
	for _, n := range numbers {
		out = append(out, model.PullRequestRef{Owner: owner, Repo: repo, Number: n})
	}
	return out
}

func foundAll(owner, repo string, numbers []int) *BatchResult {
	res := &BatchResult{Found: make(map[int]*model.PRDetail, len(numbers))}
	for _, n := range numbers {
		res.Found[n] = detail(owner, repo, n)
	}
	return res
}

func TestFetchNotFoundFallback(t *testing.T) {
	// A batch of 20 returns 18 found and 2 not-found; one fallback succeeds
	// and one fails, leaving 19 fetched and 1 failure.
	numbers := make([]int, 20)
	for i := range numbers {
		numbers[i] = i + 1
	}

	bulk := &fakeBulk{fn: func(owner, repo string, nums []int) (*BatchResult, error) {
		res := foundAll(owner, repo, nums)
		delete(res.Found, 7)
		delete(res.Found, 13)
		res.NotFound = []int{7, 13}
		return res, nil
	}}
	single := &fakeSingle{fn: func(owner, repo string, number int) (*model.PRDetail, error) {
		if number == 13 {
			return nil, ErrNotFound
		}
		return detail(owner, repo, number), nil
	}}

	o, err := NewOrchestrator(bulk, single, 20)
	if err != nil {
		t.Fatal(err)
	}

	details, stats := o.Fetch(context.Background(), refs("acme", "widget", numbers...), nil)

	if len(bulk.calls) != 1 {
		t.Errorf("bulk calls = %d, want 1", len(bulk.calls))
	}
	if len(single.calls) != 2 {
		t.Errorf("fallback calls = %d, want 2", len(single.calls))
	}
	if stats.Fetched != 19 || stats.Failed != 1 {
		t.Errorf("fetched/failed = %d/%d, want 19/1", stats.Fetched, stats.Failed)
	}
	if len(details) != 19 {
		t.Errorf("details = %d, want 19", len(details))
	}
	if _, ok := details[model.RefKey{Owner: "acme", Repo: "widget", Number: 7}]; !ok {
		t.Error("fallback success for #7 missing from results")
	}
	if stats.Failures[0].Ref.Number != 13 {
		t.Errorf("failure ref = %v, want #13", stats.Failures[0].Ref)
	}
}

func TestFetchWholeBatchFailureFallsBackPerItem(t *testing.T) {
	bulk := &fakeBulk{fn: func(string, string, []int) (*BatchResult, error) {
		return nil, fmt.Errorf("transport: %w", ErrRateLimited)
	}}
	single := &fakeSingle{fn: func(owner, repo string, number int) (*model.PRDetail, error) {
		if number == 2 {
			return nil, fmt.Errorf("boom")
		}
		return detail(owner, repo, number), nil
	}}

	o, err := NewOrchestrator(bulk, single, 10)
	if err != nil {
		t.Fatal(err)
	}

	details, stats := o.Fetch(context.Background(), refs("acme", "widget", 1, 2, 3), nil)

	if len(single.calls) != 3 {
		t.Errorf("fallback calls = %d, want 3 (every batch member)", len(single.calls))
	}
	if stats.Fetched != 2 || stats.Failed != 1 {
		t.Errorf("fetched/failed = %d/%d, want 2/1", stats.Fetched, stats.Failed)
	}
	if len(details) != 2 {
		t.Errorf("details = %d, want 2", len(details))
	}
}

func TestFetchChunksByBatchSize(t *testing.T) {
	bulk := &fakeBulk{fn: func(owner, repo string, nums []int) (*BatchResult, error) {
		return foundAll(owner, repo, nums), nil
	}}
	single := &fakeSingle{fn: func(string, string, int) (*model.PRDetail, error) {
		t.Error("unexpected fallback call")
		return nil, nil
	}}

	o, err := NewOrchestrator(bulk, single, 2)
	if err != nil {
		t.Fatal(err)
	}

	_, stats := o.Fetch(context.Background(), refs("acme", "widget", 1, 2, 3, 4, 5), nil)

	if len(bulk.calls) != 3 {
		t.Fatalf("bulk calls = %d, want 3", len(bulk.calls))
	}
	if got := len(bulk.calls[0]); got != 2 {
		t.Errorf("first chunk size = %d, want 2", got)
	}
	if got := len(bulk.calls[2]); got != 1 {
		t.Errorf("last chunk size = %d, want 1", got)
	}
	if stats.Fetched != 5 || stats.Failed != 0 {
		t.Errorf("fetched/failed = %d/%d, want 5/0", stats.Fetched, stats.Failed)
	}
}

func TestFetchPartitionsByRepo(t *testing.T) {
	bulk := &fakeBulk{fn: func(owner, repo string, nums []int) (*BatchResult, error) {
		return foundAll(owner, repo, nums), nil
	}}
	single := &fakeSingle{fn: func(string, string, int) (*model.PRDetail, error) { return nil, ErrNotFound }}

	o, err := NewOrchestrator(bulk, single, 20)
	if err != nil {
		t.Fatal(err)
	}

	all := append(refs("acme", "widget", 1, 2), refs("acme", "gadget", 9)...)
	details, stats := o.Fetch(context.Background(), all, nil)

	if len(bulk.calls) != 2 {
		t.Errorf("bulk calls = %d, want one per repository", len(bulk.calls))
	}
	if stats.Fetched != 3 {
		t.Errorf("fetched = %d, want 3", stats.Fetched)
	}
	if _, ok := details[model.RefKey{Owner: "acme", Repo: "gadget", Number: 9}]; !ok {
		t.Error("gadget#9 missing from merged results")
	}
}

func TestFetchDeduplicatesRefs(t *testing.T) {
	bulk := &fakeBulk{fn: func(owner, repo string, nums []int) (*BatchResult, error) {
		return foundAll(owner, repo, nums), nil
	}}
	single := &fakeSingle{fn: func(string, string, int) (*model.PRDetail, error) { return nil, ErrNotFound }}

	o, err := NewOrchestrator(bulk, single, 20)
	if err != nil {
		t.Fatal(err)
	}

	dup := []model.PullRequestRef{
		{Owner: "acme", Repo: "widget", Number: 5, IssueKey: "PROJ-1"},
		{Owner: "acme", Repo: "widget", Number: 5, IssueKey: "PROJ-2"},
	}
	_, _ = o.Fetch(context.Background(), dup, nil)

	if len(bulk.calls) != 1 || len(bulk.calls[0]) != 1 {
		t.Errorf("bulk calls = %v, want one call with one number", bulk.calls)
	}
}

func TestFetchDuplicateRefsProgressTotal(t *testing.T) {
	bulk := &fakeBulk{fn: func(owner, repo string, nums []int) (*BatchResult, error) {
		return foundAll(owner, repo, nums), nil
	}}
	single := &fakeSingle{fn: func(string, string, int) (*model.PRDetail, error) { return nil, ErrNotFound }}

	o, err := NewOrchestrator(bulk, single, 20)
	if err != nil {
		t.Fatal(err)
	}

	dup := []model.PullRequestRef{
		{Owner: "acme", Repo: "widget", Number: 5, IssueKey: "PROJ-1"},
		{Owner: "acme", Repo: "widget", Number: 5, IssueKey: "PROJ-2"},
		{Owner: "acme", Repo: "widget", Number: 6, IssueKey: "PROJ-1"},
	}

	var mu sync.Mutex
	var last, seenTotal int
	_, stats := o.Fetch(context.Background(), dup, func(completed, total int) {
		mu.Lock()
		defer mu.Unlock()
		if completed > last {
			last = completed
		}
		seenTotal = total
	})

	if stats.Requested != 2 {
		t.Errorf("requested = %d, want 2 unique PRs", stats.Requested)
	}
	if last != 2 || seenTotal != 2 {
		t.Errorf("progress reached %d/%d, want 2/2", last, seenTotal)
	}
}

func TestFetchProgressReachesTotal(t *testing.T) {
	bulk := &fakeBulk{fn: func(owner, repo string, nums []int) (*BatchResult, error) {
		res := foundAll(owner, repo, nums)
		delete(res.Found, 3)
		res.NotFound = []int{3}
		return res, nil
	}}
	single := &fakeSingle{fn: func(string, string, int) (*model.PRDetail, error) { return nil, ErrNotFound }}

	o, err := NewOrchestrator(bulk, single, 20)
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	var last, seenTotal int
	o.Fetch(context.Background(), refs("acme", "widget", 1, 2, 3), func(completed, total int) {
		mu.Lock()
		defer mu.Unlock()
		if completed > last {
			last = completed
		}
		seenTotal = total
	})

	if last != 3 || seenTotal != 3 {
		t.Errorf("progress reached %d/%d, want 3/3", last, seenTotal)
	}
}

func TestNewOrchestratorValidatesBatchSize(t *testing.T) {
	for _, size := range []int{0, -1, MaxBatchSize + 1} {
		if _, err := NewOrchestrator(nil, nil, size); err == nil {
			t.Errorf("batch size %d accepted, want error", size)
		}
	}
	if _, err := NewOrchestrator(nil, nil, 20); err != nil {
		t.Errorf("valid batch size rejected: %v", err)
	}
}
