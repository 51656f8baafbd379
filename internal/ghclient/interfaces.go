package ghclient

import (
	"context"

	"github.com/hal/prflow/internal/model"
)

// BulkFetcher fetches a batch of pull requests from one repository in a
// single request. Implemented by Client over the GraphQL API.
type BulkFetcher interface {
	FetchBatch(ctx context.Context, owner, repo string, numbers []int) (*BatchResult, error)
}

// SingleFetcher fetches one pull request. Implemented by Client over the
// REST API; the orchestrator uses it as the per-item fallback.
type SingleFetcher interface {
	FetchPR(ctx context.Context, owner, repo string, number int) (*model.PRDetail, error)
}

var (
	_ BulkFetcher   = (*Client)(nil)
	_ SingleFetcher = (*Client)(nil)
)
