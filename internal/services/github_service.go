package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alimgiray/opendev/internal/models"
	"github.com/alimgiray/opendev/pkg/logger"
	"github.com/google/go-github/v57/github"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const (
	// MaxNodesPerRequest is the most ids GitHub accepts in one nodes(ids:) query
	MaxNodesPerRequest = 100
	// DefaultMaxRetries bounds the attempts of a throttled request
	DefaultMaxRetries = 5

	defaultAPIURL = "https://api.github.com/"
)

const profilesQuery = `
query GetMultipleUsers($ids: [ID!]!) {
  nodes(ids: $ids) {
    ... on User {
      id
      login
      name
      company
      location
      url
      email
    }
  }
}`

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphqlError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type graphqlResponse struct {
	Data *struct {
		Nodes []*models.GitHubProfile `json:"nodes"`
	} `json:"data"`
	Errors []graphqlError `json:"errors"`
}

// fetchState is a step of the FetchProfiles retry loop
type fetchState int

const (
	stateAttempting fetchState = iota
	stateWaiting
	stateSucceeded
	stateExhausted
)

// SleepFunc blocks for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// GitHubService talks to the GitHub GraphQL and REST APIs with a personal token
type GitHubService struct {
	httpClient *http.Client
	client     *github.Client
	graphqlURL string

	sleep SleepFunc
	now   func() time.Time
}

// NewGitHubService creates a service authenticated with token. apiURL is the
// REST base URL; the GraphQL endpoint is apiURL + "graphql".
func NewGitHubService(token, apiURL string) (*GitHubService, error) {
	if token == "" {
		return nil, ErrMissingToken
	}
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	if !strings.HasSuffix(apiURL, "/") {
		apiURL += "/"
	}
	baseURL, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid GitHub API URL %q: %w", apiURL, err)
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(context.Background(), ts)

	client := github.NewClient(httpClient)
	client.BaseURL = baseURL

	return &GitHubService{
		httpClient: httpClient,
		client:     client,
		graphqlURL: baseURL.String() + "graphql",
		sleep:      sleepContext,
		now:        time.Now,
	}, nil
}

// sleepContext waits for d, returning early with ctx.Err() on cancellation
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RateLimit returns the current GraphQL budget of the token
func (s *GitHubService) RateLimit(ctx context.Context) (models.RateLimitState, error) {
	limits, _, err := s.client.RateLimit.Get(ctx)
	if err != nil {
		return models.RateLimitState{}, fmt.Errorf("failed to get rate limits: %w", err)
	}
	if limits == nil || limits.GraphQL == nil {
		return models.RateLimitState{}, fmt.Errorf("rate limit response has no graphql resource")
	}

	rate := limits.GraphQL
	return models.RateLimitState{
		Remaining: rate.Remaining,
		ResetAt:   rate.Reset.Unix(),
		Limit:     rate.Limit,
		Used:      rate.Limit - rate.Remaining,
	}, nil
}

// FetchProfiles resolves GitHub node ids to user profiles in one GraphQL call.
//
// The result has one entry per id in request order. Ids GitHub could not
// resolve yield a profile carrying only PrimaryGitHubUserID. More than
// MaxNodesPerRequest ids is rejected without a request: the result is
// MaxNodesPerRequest nil entries and an empty snapshot.
//
// Throttled responses (HTTP 403/429 or a "rate limit" GraphQL error) are
// retried up to maxRetries attempts, waiting until the reported reset plus a
// grace period and never less than a minute. Running out of attempts or any
// other non-200 status returns a *TransportError.
func (s *GitHubService) FetchProfiles(ctx context.Context, ids []string, maxRetries int) ([]*models.GitHubProfile, models.RateLimitState, error) {
	if len(ids) > MaxNodesPerRequest {
		logger.WithField("count", len(ids)).Errorf("Up to %d node ids can be requested at once", MaxNodesPerRequest)
		return make([]*models.GitHubProfile, MaxNodesPerRequest), models.RateLimitState{}, nil
	}
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	body, err := json.Marshal(graphqlRequest{
		Query:     profilesQuery,
		Variables: map[string]any{"ids": ids},
	})
	if err != nil {
		return nil, models.RateLimitState{}, fmt.Errorf("failed to encode GraphQL request: %w", err)
	}

	var (
		state      = stateAttempting
		attempt    int
		snapshot   models.RateLimitState
		lastStatus int
		lastErr    error
		profiles   []*models.GitHubProfile
	)

	throttled := func(status int, cause error) fetchState {
		lastStatus, lastErr = status, cause
		if attempt < maxRetries {
			return stateWaiting
		}
		return stateExhausted
	}

	for {
		switch state {
		case stateAttempting:
			attempt++
			status, resp, rate, err := s.post(ctx, body)
			if err != nil {
				return nil, snapshot, err
			}
			snapshot = rate

			switch {
			case status == http.StatusForbidden || status == http.StatusTooManyRequests:
				state = throttled(status, fmt.Errorf("rate limit exceeded"))
			case status != http.StatusOK:
				return nil, snapshot, &TransportError{
					StatusCode: status,
					Attempts:   attempt,
					Err:        fmt.Errorf("unexpected response status %s", http.StatusText(status)),
				}
			case hasRateLimitError(resp.Errors):
				state = throttled(status, fmt.Errorf("rate limit error in GraphQL response"))
			default:
				if len(resp.Errors) > 0 {
					logger.WithField("errors", resp.Errors).Warnf("GraphQL returned errors, continuing with partial data")
				}
				profiles, err = positionalProfiles(ids, resp)
				if err != nil {
					return nil, snapshot, err
				}
				state = stateSucceeded
			}

		case stateWaiting:
			wait := snapshot.RetryWait(s.now())
			logger.WithFields(logrus.Fields{
				"attempt":   attempt,
				"status":    lastStatus,
				"wait":      wait.String(),
				"remaining": snapshot.Remaining,
			}).Warnf("Rate limit exceeded, waiting before retry")
			if err := s.sleep(ctx, wait); err != nil {
				return nil, snapshot, err
			}
			state = stateAttempting

		case stateSucceeded:
			return profiles, snapshot, nil

		case stateExhausted:
			return nil, snapshot, &TransportError{StatusCode: lastStatus, Attempts: attempt, Err: lastErr}
		}
	}
}

// post sends one GraphQL request. The response body is only decoded on 200.
func (s *GitHubService) post(ctx context.Context, body []byte) (int, *graphqlResponse, models.RateLimitState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.graphqlURL, bytes.NewReader(body))
	if err != nil {
		return 0, nil, models.RateLimitState{}, fmt.Errorf("failed to create GraphQL request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := s.httpClient.Do(req)
	if err != nil {
		return 0, nil, models.RateLimitState{}, fmt.Errorf("GraphQL request failed: %w", err)
	}
	defer res.Body.Close()

	rate := parseRateLimitHeaders(res.Header)
	if res.StatusCode != http.StatusOK {
		io.Copy(io.Discard, res.Body)
		return res.StatusCode, nil, rate, nil
	}

	var decoded graphqlResponse
	if err := json.NewDecoder(res.Body).Decode(&decoded); err != nil {
		return res.StatusCode, nil, rate, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return res.StatusCode, &decoded, rate, nil
}

// parseRateLimitHeaders builds a snapshot from the X-RateLimit-* headers.
// Missing or invalid headers read as remaining 0, reset 0, limit 5000, used 0.
func parseRateLimitHeaders(h http.Header) models.RateLimitState {
	return models.RateLimitState{
		Remaining: headerInt(h, "X-RateLimit-Remaining", 0),
		ResetAt:   int64(headerInt(h, "X-RateLimit-Reset", 0)),
		Limit:     headerInt(h, "X-RateLimit-Limit", models.DefaultRateLimit),
		Used:      headerInt(h, "X-RateLimit-Used", 0),
	}
}

func headerInt(h http.Header, key string, fallback int) int {
	v := h.Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func hasRateLimitError(errs []graphqlError) bool {
	for _, e := range errs {
		if strings.Contains(strings.ToLower(e.Message), "rate limit") {
			return true
		}
	}
	return false
}

// positionalProfiles pairs every returned node with the id requested at the same index
func positionalProfiles(ids []string, resp *graphqlResponse) ([]*models.GitHubProfile, error) {
	if resp == nil || resp.Data == nil || resp.Data.Nodes == nil {
		return nil, fmt.Errorf("%w: missing data.nodes", ErrMalformedResponse)
	}
	if len(resp.Data.Nodes) != len(ids) {
		return nil, fmt.Errorf("%w: got %d nodes for %d ids", ErrMalformedResponse, len(resp.Data.Nodes), len(ids))
	}

	profiles := make([]*models.GitHubProfile, len(ids))
	for i, node := range resp.Data.Nodes {
		if node == nil {
			node = &models.GitHubProfile{}
		}
		node.PrimaryGitHubUserID = ids[i]
		profiles[i] = node
	}
	return profiles, nil
}
