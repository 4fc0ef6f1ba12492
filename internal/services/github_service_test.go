package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Unix(1_700_000_000, 0)

type fakeClock struct {
	waits []time.Duration
}

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	c.waits = append(c.waits, d)
	return ctx.Err()
}

func (c *fakeClock) now() time.Time { return fixedNow }

func newTestGitHubService(t *testing.T, handler http.HandlerFunc) (*GitHubService, *fakeClock) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	gh, err := NewGitHubService("test-token", srv.URL)
	require.NoError(t, err)

	clock := &fakeClock{}
	gh.sleep, gh.now = clock.sleep, clock.now
	return gh, clock
}

type capturedRequest struct {
	Query     string `json:"query"`
	Variables struct {
		IDs []string `json:"ids"`
	} `json:"variables"`
}

func setRateHeaders(w http.ResponseWriter, remaining int, reset int64) {
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset, 10))
	w.Header().Set("X-RateLimit-Limit", "5000")
	w.Header().Set("X-RateLimit-Used", strconv.Itoa(5000-remaining))
}

func TestFetchProfilesPositionalIntegrity(t *testing.T) {
	var captured capturedRequest
	var authHeader string

	gh, _ := newTestGitHubService(t, func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		setRateHeaders(w, 4999, fixedNow.Unix()+3600)
		fmt.Fprint(w, `{"data":{"nodes":[null,{"id":"B","login":"bob","name":"Bob","company":null,"location":"SF","url":"https://github.com/bob","email":""},null]}}`)
	})

	profiles, rate, err := gh.FetchProfiles(context.Background(), []string{"A", "B", "C"}, 5)
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-token", authHeader)
	assert.Equal(t, []string{"A", "B", "C"}, captured.Variables.IDs)
	assert.Contains(t, captured.Query, "nodes(ids: $ids)")

	require.Len(t, profiles, 3)
	assert.Equal(t, "A", profiles[0].PrimaryGitHubUserID)
	assert.False(t, profiles[0].Resolved())
	assert.Nil(t, profiles[0].Login)

	assert.Equal(t, "B", profiles[1].PrimaryGitHubUserID)
	assert.True(t, profiles[1].Resolved())
	assert.Equal(t, "bob", *profiles[1].Login)
	assert.Nil(t, profiles[1].Company)

	assert.Equal(t, "C", profiles[2].PrimaryGitHubUserID)
	assert.False(t, profiles[2].Resolved())

	assert.Equal(t, 4999, rate.Remaining)
	assert.Equal(t, fixedNow.Unix()+3600, rate.ResetAt)
	assert.Equal(t, 5000, rate.Limit)
	assert.Equal(t, 1, rate.Used)
}

func TestFetchProfilesThrottledUntilExhausted(t *testing.T) {
	var calls int32
	gh, clock := newTestGitHubService(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		setRateHeaders(w, 0, fixedNow.Unix()+30)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	profiles, rate, err := gh.FetchProfiles(context.Background(), []string{"A"}, 5)
	assert.Nil(t, profiles)
	require.Error(t, err)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusTooManyRequests, te.StatusCode)
	assert.Equal(t, 5, te.Attempts)
	assert.True(t, IsFatal(err))

	assert.Equal(t, int32(5), atomic.LoadInt32(&calls))
	require.Len(t, clock.waits, 4)
	for _, wait := range clock.waits {
		assert.GreaterOrEqual(t, wait, 35*time.Second)
	}
	assert.Equal(t, 0, rate.Remaining)
}

func TestFetchProfilesWaitsUntilReset(t *testing.T) {
	var calls int32
	gh, clock := newTestGitHubService(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			setRateHeaders(w, 0, fixedNow.Unix()+120)
			w.WriteHeader(http.StatusForbidden)
			return
		}
		setRateHeaders(w, 4999, fixedNow.Unix()+3600)
		fmt.Fprint(w, `{"data":{"nodes":[{"id":"A","login":"alice"}]}}`)
	})

	profiles, _, err := gh.FetchProfiles(context.Background(), []string{"A"}, 5)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "alice", *profiles[0].Login)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, []time.Duration{125 * time.Second}, clock.waits)
}

func TestFetchProfilesGraphQLErrors(t *testing.T) {
	t.Run("Rate limit error is retried", func(t *testing.T) {
		var calls int32
		gh, clock := newTestGitHubService(t, func(w http.ResponseWriter, r *http.Request) {
			n := atomic.AddInt32(&calls, 1)
			setRateHeaders(w, 0, 0)
			if n == 1 {
				fmt.Fprint(w, `{"data":null,"errors":[{"type":"RATE_LIMITED","message":"API rate limit exceeded for user"}]}`)
				return
			}
			fmt.Fprint(w, `{"data":{"nodes":[null]}}`)
		})

		profiles, _, err := gh.FetchProfiles(context.Background(), []string{"A"}, 5)
		require.NoError(t, err)
		require.Len(t, profiles, 1)
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
		assert.Equal(t, []time.Duration{60 * time.Second}, clock.waits)
	})

	t.Run("Other errors keep partial data", func(t *testing.T) {
		gh, clock := newTestGitHubService(t, func(w http.ResponseWriter, r *http.Request) {
			setRateHeaders(w, 4000, 0)
			fmt.Fprint(w, `{"data":{"nodes":[{"id":"A","login":"alice"},null]},"errors":[{"type":"NOT_FOUND","message":"Could not resolve to a node with the global id of 'B'"}]}`)
		})

		profiles, _, err := gh.FetchProfiles(context.Background(), []string{"A", "B"}, 5)
		require.NoError(t, err)
		require.Len(t, profiles, 2)
		assert.True(t, profiles[0].Resolved())
		assert.False(t, profiles[1].Resolved())
		assert.Empty(t, clock.waits)
	})

	t.Run("Missing nodes is malformed", func(t *testing.T) {
		gh, _ := newTestGitHubService(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"data":null,"errors":[{"message":"Something went wrong"}]}`)
		})

		_, _, err := gh.FetchProfiles(context.Background(), []string{"A"}, 5)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMalformedResponse)
		assert.False(t, IsFatal(err))
	})

	t.Run("Short node list is malformed", func(t *testing.T) {
		gh, _ := newTestGitHubService(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"data":{"nodes":[null]}}`)
		})

		_, _, err := gh.FetchProfiles(context.Background(), []string{"A", "B"}, 5)
		assert.ErrorIs(t, err, ErrMalformedResponse)
	})
}

func TestFetchProfilesUnexpectedStatus(t *testing.T) {
	var calls int32
	gh, clock := newTestGitHubService(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, rate, err := gh.FetchProfiles(context.Background(), []string{"A"}, 5)
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, http.StatusBadGateway, te.StatusCode)
	assert.Equal(t, 1, te.Attempts)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Empty(t, clock.waits)

	// Missing headers fall back to their defaults
	assert.Equal(t, 0, rate.Remaining)
	assert.Equal(t, int64(0), rate.ResetAt)
	assert.Equal(t, 5000, rate.Limit)
	assert.Equal(t, 0, rate.Used)
}

func TestFetchProfilesTooManyIDs(t *testing.T) {
	var calls int32
	gh, _ := newTestGitHubService(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})

	ids := make([]string, MaxNodesPerRequest+1)
	for i := range ids {
		ids[i] = fmt.Sprintf("U_%d", i)
	}

	profiles, rate, err := gh.FetchProfiles(context.Background(), ids, 5)
	require.NoError(t, err)
	assert.Len(t, profiles, MaxNodesPerRequest)
	for _, p := range profiles {
		assert.Nil(t, p)
	}
	assert.Zero(t, rate)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestFetchProfilesNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	gh, err := NewGitHubService("test-token", url)
	require.NoError(t, err)

	_, _, err = gh.FetchProfiles(context.Background(), []string{"A"}, 5)
	require.Error(t, err)
	assert.False(t, IsFatal(err))
}

func TestFetchProfilesCancelledWhileWaiting(t *testing.T) {
	gh, _ := newTestGitHubService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	gh.sleep = sleepContext

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, _, err := gh.FetchProfiles(ctx, []string{"A"}, 5)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestGitHubServiceRateLimit(t *testing.T) {
	gh, _ := newTestGitHubService(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rate_limit", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"resources":{"core":{"limit":5000,"remaining":5000,"reset":%d},"graphql":{"limit":5000,"remaining":4321,"reset":%d}}}`,
			fixedNow.Unix(), fixedNow.Unix()+600)
	})

	rate, err := gh.RateLimit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4321, rate.Remaining)
	assert.Equal(t, 5000, rate.Limit)
	assert.Equal(t, 679, rate.Used)
	assert.Equal(t, fixedNow.Unix()+600, rate.ResetAt)
}

func TestNewGitHubServiceRequiresToken(t *testing.T) {
	_, err := NewGitHubService("", "")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestNewGitHubServiceUsesTransportDefaults(t *testing.T) {
	gh, err := NewGitHubService("test-token", "https://ghe.example.com/api/v3")
	require.NoError(t, err)

	// Slow GraphQL responses are left to the transport, no client deadline
	assert.Zero(t, gh.httpClient.Timeout)
	assert.Equal(t, "https://ghe.example.com/api/v3/graphql", gh.graphqlURL)
}
