// Package jiraclient implements the issue query collaborator against the
// Jira REST API, flattening search results with changelog expansion into
// issue records.
package jiraclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/hal/prflow/internal/log"
	"github.com/hal/prflow/internal/model"
)

const (
	searchPath      = "/rest/api/2/search"
	defaultPageSize = 50

	// jiraTimestamp is Jira's changelog timestamp layout.
	jiraTimestamp = "2006-01-02T15:04:05.000-0700"
)

// Config for the Jira client. Token auth (on-premise PAT) and basic auth
// (cloud username/password) are mutually exclusive; token wins when both are
// set.
type Config struct {
	BaseURL  string
	Token    string
	Username string
	Password string
	PageSize int
}

// Client queries Jira over REST.
type Client struct {
	baseURL    string
	httpClient *http.Client
	// credentials are intentionally unexported; see ghclient.Client.
	token    string
	username string
	password string
	pageSize int
}

// NewClient validates credentials and returns a Jira client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("Jira URL not provided")
	}
	if cfg.Token == "" && (cfg.Username == "" || cfg.Password == "") {
		return nil, fmt.Errorf("Jira credentials not provided. Set JIRA_TOKEN, or JIRA_USERNAME and JIRA_PASSWORD")
	}

	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		token:    cfg.Token,
		username: cfg.Username,
		password: cfg.Password,
		pageSize: pageSize,
	}, nil
}

// searchResponse is the paged envelope of /rest/api/2/search.
type searchResponse struct {
	StartAt    int        `json:"startAt"`
	MaxResults int        `json:"maxResults"`
	Total      int        `json:"total"`
	Issues     []rawIssue `json:"issues"`
}

type rawIssue struct {
	Key       string                     `json:"key"`
	Fields    map[string]json.RawMessage `json:"fields"`
	Changelog struct {
		Histories []rawHistory `json:"histories"`
	} `json:"changelog"`
}

type rawHistory struct {
	Created string `json:"created"`
	Items   []struct {
		Field    string `json:"field"`
		ToString string `json:"toString"`
	} `json:"items"`
}

// SearchIssues runs a JQL query with changelog expansion and consumes pages
// until exhaustion. An empty result set is zero issues, not an error.
func (c *Client) SearchIssues(ctx context.Context, query string) ([]model.IssueRecord, error) {
	var issues []model.IssueRecord

	startAt := 0
	for {
		page, err := c.searchPage(ctx, query, startAt)
		if err != nil {
			return nil, err
		}

		for i := range page.Issues {
			issues = append(issues, flattenIssue(&page.Issues[i]))
		}

		startAt += len(page.Issues)
		if startAt >= page.Total || len(page.Issues) == 0 {
			break
		}
	}

	log.Debug("issue search complete", "query", query, "issues", len(issues))
	return issues, nil
}

func (c *Client) searchPage(ctx context.Context, query string, startAt int) (*searchResponse, error) {
	params := url.Values{}
	params.Set("jql", query)
	params.Set("expand", "changelog")
	params.Set("startAt", fmt.Sprintf("%d", startAt))
	params.Set("maxResults", fmt.Sprintf("%d", c.pageSize))

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+searchPath+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	} else {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("issue search failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("issue search failed with status %d: %s", resp.StatusCode, string(body))
	}

	var page searchResponse
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	return &page, nil
}

// flattenIssue converts Jira's dynamic field map into a typed record.
// Unparseable field values are skipped, not errors; issue content is
// free-form.
func flattenIssue(raw *rawIssue) model.IssueRecord {
	rec := model.IssueRecord{
		Key:          raw.Key,
		CustomFields: make(map[string]string),
	}

	for name, value := range raw.Fields {
		if value == nil || string(value) == "null" {
			continue
		}
		switch {
		case name == "summary":
			_ = json.Unmarshal(value, &rec.Summary)
		case name == "description":
			_ = json.Unmarshal(value, &rec.Description)
		case name == "comment":
			rec.Comments = parseComments(value)
		case strings.HasPrefix(name, "customfield_"):
			if s := flattenValue(value); s != "" {
				rec.CustomFields[name] = s
			}
		}
	}

	rec.Transitions = parseTransitions(raw)
	return rec
}

func parseComments(value json.RawMessage) []string {
	var wrapper struct {
		Comments []struct {
			Body string `json:"body"`
		} `json:"comments"`
	}
	if err := json.Unmarshal(value, &wrapper); err != nil {
		return nil
	}

	var bodies []string
	for _, c := range wrapper.Comments {
		if c.Body != "" {
			bodies = append(bodies, c.Body)
		}
	}
	return bodies
}

// flattenValue extracts searchable text from a custom field, which may be a
// string or a list of strings. Other shapes carry no reference text.
func flattenValue(value json.RawMessage) string {
	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return s
	}

	var list []string
	if err := json.Unmarshal(value, &list); err == nil {
		return strings.Join(list, "\n")
	}

	return ""
}

// parseTransitions extracts status changes from the expanded changelog,
// ordered chronologically.
func parseTransitions(raw *rawIssue) []model.StatusTransition {
	var transitions []model.StatusTransition

	for _, history := range raw.Changelog.Histories {
		at, err := parseJiraTime(history.Created)
		if err != nil {
			log.Debug("unparseable changelog timestamp", "issue", raw.Key, "value", history.Created)
			continue
		}
		for _, item := range history.Items {
			if item.Field != "status" || item.ToString == "" {
				continue
			}
			transitions = append(transitions, model.StatusTransition{
				ToStatus: item.ToString,
				At:       at,
			})
		}
	}

	sort.Slice(transitions, func(i, j int) bool {
		return transitions[i].At.Before(transitions[j].At)
	})
	return transitions
}

func parseJiraTime(s string) (time.Time, error) {
	if t, err := time.Parse(jiraTimestamp, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
