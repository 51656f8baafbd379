package ghclient

import (
	"context"
	"fmt"
	"net/http"

	gh "github.com/google/go-github/v57/github"
	"github.com/hal/prflow/internal/model"
)

// ErrNotFound is returned by FetchPR when the pull request doesn't exist or
// isn't visible to the token.
var ErrNotFound = fmt.Errorf("pull request not found")

// FetchPR fetches one pull request's detail via the REST API. It is the
// fallback path when a bulk query fails or omits an item: one PR costs three
// requests (detail, reviews, comments) against the Core quota.
func (c *Client) FetchPR(ctx context.Context, owner, repo string, number int) (*model.PRDetail, error) {
	pr, resp, err := c.rest.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s/%s#%d: %w", owner, repo, number, err)
	}

	detail := &model.PRDetail{
		Owner:     owner,
		Repo:      repo,
		Number:    number,
		Title:     pr.GetTitle(),
		Author:    pr.GetUser().GetLogin(),
		CreatedAt: pr.GetCreatedAt().Time,
		Additions: pr.GetAdditions(),
		Deletions: pr.GetDeletions(),
	}
	if mergedAt := pr.GetMergedAt(); !mergedAt.IsZero() {
		t := mergedAt.Time
		detail.MergedAt = &t
	}

	reviews, err := c.listReviews(ctx, owner, repo, number)
	if err != nil {
		return nil, err
	}
	detail.Reviews = reviews

	comments, err := c.listComments(ctx, owner, repo, number)
	if err != nil {
		return nil, err
	}
	detail.Comments = comments

	return detail, nil
}

func (c *Client) listReviews(ctx context.Context, owner, repo string, number int) ([]model.ReviewEvent, error) {
	opts := &gh.ListOptions{PerPage: 100}

	var reviews []model.ReviewEvent
	for {
		page, resp, err := c.rest.PullRequests.ListReviews(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list reviews for %s/%s#%d: %w", owner, repo, number, err)
		}

		for _, r := range page {
			reviews = append(reviews, model.ReviewEvent{
				Reviewer:    r.GetUser().GetLogin(),
				State:       r.GetState(),
				SubmittedAt: r.GetSubmittedAt().Time,
				Body:        r.GetBody(),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return reviews, nil
}

// listComments returns the issue-style conversation comments. Pull requests
// share issue numbering, so the Issues endpoint serves PR comments too.
func (c *Client) listComments(ctx context.Context, owner, repo string, number int) ([]model.CommentEvent, error) {
	opts := &gh.IssueListCommentsOptions{
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	var comments []model.CommentEvent
	for {
		page, resp, err := c.rest.Issues.ListComments(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list comments for %s/%s#%d: %w", owner, repo, number, err)
		}

		for _, cm := range page {
			comments = append(comments, model.CommentEvent{
				Author:    cm.GetUser().GetLogin(),
				CreatedAt: cm.GetCreatedAt().Time,
				Body:      cm.GetBody(),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return comments, nil
}
