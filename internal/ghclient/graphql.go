package ghclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hal/prflow/internal/log"
	"github.com/hal/prflow/internal/model"
)

const graphqlEndpoint = "https://api.github.com/graphql"

// MaxBatchSize is the upper bound on pull requests per GraphQL query.
// Review and comment connections are expensive against GitHub's query
// complexity limits, so batches stay well below the alias ceiling.
const MaxBatchSize = 100

// graphqlRequest represents a GraphQL request payload.
type graphqlRequest struct {
	Query string `json:"query"`
}

// graphqlResponse represents a generic GraphQL response.
type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

type graphqlError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// BatchResult is the outcome of one bulk query: details found, plus the
// numbers the API knew nothing about (deleted or inaccessible pull requests).
// A not-found entry is per-item data, distinct from a whole-batch failure.
type BatchResult struct {
	Found    map[int]*model.PRDetail
	NotFound []int
}

// FetchBatch fetches up to MaxBatchSize pull requests from one repository in
// a single aliased GraphQL query. A transport or protocol error fails the
// whole batch; items the response omits are reported in NotFound.
func (c *Client) FetchBatch(ctx context.Context, owner, repo string, numbers []int) (*BatchResult, error) {
	if len(numbers) == 0 {
		return &BatchResult{Found: map[int]*model.PRDetail{}}, nil
	}
	if len(numbers) > MaxBatchSize {
		return nil, fmt.Errorf("batch of %d exceeds maximum %d", len(numbers), MaxBatchSize)
	}

	if globalRateLimitState.IsLimited() {
		return nil, ErrRateLimited
	}

	query := buildBatchQuery(owner, repo, numbers)
	data, err := c.executeGraphQL(ctx, query)
	if err != nil {
		return nil, err
	}

	return parseBatchResponse(data, owner, repo, numbers)
}

// executeGraphQL executes a GraphQL query against GitHub's API.
func (c *Client) executeGraphQL(ctx context.Context, query string) (json.RawMessage, error) {
	reqBody := graphqlRequest{Query: query}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal GraphQL request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", graphqlEndpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create GraphQL request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GraphQL request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read GraphQL response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GraphQL request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var gqlResp graphqlResponse
	if err := json.Unmarshal(respBody, &gqlResp); err != nil {
		return nil, fmt.Errorf("failed to parse GraphQL response: %w", err)
	}

	if len(gqlResp.Errors) > 0 {
		// NOT_FOUND errors accompany null aliases and are handled by the
		// parser; anything else is logged but doesn't fail valid items.
		for _, e := range gqlResp.Errors {
			log.Debug("GraphQL error", "message", e.Message, "type", e.Type)
		}
	}

	return gqlResp.Data, nil
}

// buildBatchQuery builds a GraphQL query for multiple PRs using aliases.
func buildBatchQuery(owner, repo string, numbers []int) string {
	var sb strings.Builder
	sb.WriteString("query {\n")

	for i, number := range numbers {
		alias := fmt.Sprintf("pr%d", i)
		sb.WriteString(fmt.Sprintf(`  %s: repository(owner: "%s", name: "%s") {
    pullRequest(number: %d) {
      number
      title
      additions
      deletions
      createdAt
      mergedAt
      author { login }
      reviews(first: 100) {
        nodes {
          author { login }
          state
          submittedAt
          body
        }
      }
      comments(first: 100) {
        nodes {
          author { login }
          createdAt
          body
        }
      }
    }
  }
`, alias, owner, repo, number))
	}

	sb.WriteString("}")
	return sb.String()
}

// prGraphQLData represents the PR data from GraphQL response.
type prGraphQLData struct {
	Number    int        `json:"number"`
	Title     string     `json:"title"`
	Additions int        `json:"additions"`
	Deletions int        `json:"deletions"`
	CreatedAt time.Time  `json:"createdAt"`
	MergedAt  *time.Time `json:"mergedAt"`
	Author    *struct {
		Login string `json:"login"`
	} `json:"author"`
	Reviews struct {
		Nodes []struct {
			Author *struct {
				Login string `json:"login"`
			} `json:"author"`
			State       string    `json:"state"`
			SubmittedAt time.Time `json:"submittedAt"`
			Body        string    `json:"body"`
		} `json:"nodes"`
	} `json:"reviews"`
	Comments struct {
		Nodes []struct {
			Author *struct {
				Login string `json:"login"`
			} `json:"author"`
			CreatedAt time.Time `json:"createdAt"`
			Body      string    `json:"body"`
		} `json:"nodes"`
	} `json:"comments"`
}

// parseBatchResponse maps each requested number back to its alias. A missing
// or null alias means the pull request doesn't exist or isn't visible; those
// numbers land in NotFound rather than failing the batch.
func parseBatchResponse(data json.RawMessage, owner, repo string, numbers []int) (*BatchResult, error) {
	var rawData map[string]json.RawMessage
	if err := json.Unmarshal(data, &rawData); err != nil {
		return nil, fmt.Errorf("failed to parse batch response data: %w", err)
	}

	result := &BatchResult{Found: make(map[int]*model.PRDetail, len(numbers))}

	for i, number := range numbers {
		alias := fmt.Sprintf("pr%d", i)
		repoData, ok := rawData[alias]
		if !ok || repoData == nil || string(repoData) == "null" {
			log.Debug("no data for alias", "alias", alias, "repo", owner+"/"+repo, "number", number)
			result.NotFound = append(result.NotFound, number)
			continue
		}

		var wrapper struct {
			PullRequest *prGraphQLData `json:"pullRequest"`
		}
		if err := json.Unmarshal(repoData, &wrapper); err != nil {
			log.Debug("failed to parse PR data", "alias", alias, "error", err)
			result.NotFound = append(result.NotFound, number)
			continue
		}
		if wrapper.PullRequest == nil {
			result.NotFound = append(result.NotFound, number)
			continue
		}

		result.Found[number] = toPRDetail(owner, repo, wrapper.PullRequest)
	}

	return result, nil
}

func toPRDetail(owner, repo string, pr *prGraphQLData) *model.PRDetail {
	detail := &model.PRDetail{
		Owner:     owner,
		Repo:      repo,
		Number:    pr.Number,
		Title:     pr.Title,
		CreatedAt: pr.CreatedAt,
		Additions: pr.Additions,
		Deletions: pr.Deletions,
	}

	if pr.Author != nil {
		detail.Author = pr.Author.Login
	}
	if pr.MergedAt != nil && !pr.MergedAt.IsZero() {
		detail.MergedAt = pr.MergedAt
	}

	for _, r := range pr.Reviews.Nodes {
		review := model.ReviewEvent{
			State:       r.State,
			SubmittedAt: r.SubmittedAt,
			Body:        r.Body,
		}
		if r.Author != nil {
			review.Reviewer = r.Author.Login
		}
		detail.Reviews = append(detail.Reviews, review)
	}

	for _, cm := range pr.Comments.Nodes {
		comment := model.CommentEvent{
			CreatedAt: cm.CreatedAt,
			Body:      cm.Body,
		}
		if cm.Author != nil {
			comment.Author = cm.Author.Login
		}
		detail.Comments = append(detail.Comments, comment)
	}

	return detail
}
