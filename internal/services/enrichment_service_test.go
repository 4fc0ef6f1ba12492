package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alimgiray/opendev/internal/models"
	"github.com/alimgiray/opendev/internal/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGitHub serves GraphQL nodes(ids:) queries from a fixed set of users.
// Every id starting with "U_" resolves, "GHOST_" ids do not.
type fakeGitHub struct {
	t              *testing.T
	graphqlCalls   int32
	rateLimitCalls int32
	maxIDs         int32
	status         int
	malformedOn    int32
}

func (f *fakeGitHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/rate_limit" {
		atomic.AddInt32(&f.rateLimitCalls, 1)
		fmt.Fprintf(w, `{"resources":{"graphql":{"limit":5000,"remaining":5000,"reset":%d}}}`, fixedNow.Unix()+3600)
		return
	}

	call := atomic.AddInt32(&f.graphqlCalls, 1)
	setRateHeaders(w, 4900, fixedNow.Unix()+3600)
	if f.status != 0 {
		w.WriteHeader(f.status)
		return
	}
	if call == f.malformedOn {
		fmt.Fprint(w, `{"data":null}`)
		return
	}

	var req capturedRequest
	require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
	if n := int32(len(req.Variables.IDs)); n > atomic.LoadInt32(&f.maxIDs) {
		atomic.StoreInt32(&f.maxIDs, n)
	}

	nodes := make([]any, len(req.Variables.IDs))
	for i, id := range req.Variables.IDs {
		if strings.HasPrefix(id, "U_") {
			nodes[i] = map[string]any{"id": id, "login": "login_" + id, "name": "Name " + id}
		}
	}
	require.NoError(f.t, json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"nodes": nodes}}))
}

func newTestEnrichmentService(t *testing.T, db *sql.DB, gh *fakeGitHub) (*EnrichmentService, *fakeClock) {
	t.Helper()

	gh.t = t
	srv := httptest.NewServer(gh)
	t.Cleanup(srv.Close)

	svc := NewEnrichmentService(repositories.NewUserInfoRepository(db), srv.URL)
	clock := &fakeClock{}
	svc.sleep, svc.now = clock.sleep, clock.now
	return svc, clock
}

func insertDevelopers(t *testing.T, db *sql.DB, from, to int, githubID func(int) any) {
	t.Helper()
	for i := from; i < to; i++ {
		_, err := db.Exec(`INSERT INTO canonical_developers (id, primary_github_user_id) VALUES (?, ?)`, i, githubID(i))
		require.NoError(t, err)
	}
}

func countRows(t *testing.T, db *sql.DB, query string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(query).Scan(&n))
	return n
}

func TestEnrichCompletenessAndIdempotence(t *testing.T) {
	db := newTestDB(t)
	insertDevelopers(t, db, 1, 251, func(i int) any {
		switch {
		case i%50 == 0:
			return nil
		case i%7 == 0:
			return fmt.Sprintf("GHOST_%d", i)
		default:
			return fmt.Sprintf("U_%d", i)
		}
	})

	gh := &fakeGitHub{}
	svc, _ := newTestEnrichmentService(t, db, gh)

	var reports []models.EnrichmentProgress
	progress, err := svc.EnrichWithProgress(context.Background(), "test-token", func(p models.EnrichmentProgress) {
		reports = append(reports, p)
	})
	require.NoError(t, err)

	assert.Equal(t, 250, progress.Total)
	assert.Equal(t, 250, progress.Processed)
	assert.Equal(t, 0, progress.Failed)
	assert.Equal(t, 3, progress.TotalBatches)
	assert.Len(t, reports, 3)
	assert.Equal(t, 4900, progress.RateLimit.Remaining)

	assert.Equal(t, int32(3), atomic.LoadInt32(&gh.graphqlCalls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&gh.rateLimitCalls), "budget is read once per run")
	assert.LessOrEqual(t, atomic.LoadInt32(&gh.maxIDs), int32(MaxNodesPerRequest))

	// Every developer has exactly one row
	assert.Equal(t, 250, countRows(t, db, `SELECT count(*) FROM user_info`))
	assert.Equal(t, 250, countRows(t, db, `SELECT count(DISTINCT canonical_developer_id) FROM user_info`))
	assert.Equal(t, 0, countRows(t, db, `SELECT count(*) FROM canonical_developers WHERE id NOT IN (SELECT canonical_developer_id FROM user_info)`))

	var login sql.NullString
	require.NoError(t, db.QueryRow(`SELECT login FROM user_info WHERE canonical_developer_id = 1`).Scan(&login))
	assert.Equal(t, "login_U_1", login.String)

	// Unresolved ids keep the external id with null profile fields
	var ghost sql.NullString
	require.NoError(t, db.QueryRow(`SELECT login, primary_github_user_id FROM user_info WHERE canonical_developer_id = 7`).Scan(&login, &ghost))
	assert.False(t, login.Valid)
	assert.Equal(t, "GHOST_7", ghost.String)

	// A second run finds nothing to do
	progress, err = svc.Enrich(context.Background(), "test-token")
	require.NoError(t, err)
	assert.Equal(t, 0, progress.Total)
	assert.Equal(t, int32(3), atomic.LoadInt32(&gh.graphqlCalls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&gh.rateLimitCalls))
	assert.Equal(t, 250, countRows(t, db, `SELECT count(*) FROM user_info`))
}

func TestEnrichEmptyPendingSet(t *testing.T) {
	db := newTestDB(t)
	gh := &fakeGitHub{}
	svc, clock := newTestEnrichmentService(t, db, gh)

	progress, err := svc.Enrich(context.Background(), "test-token")
	require.NoError(t, err)
	assert.Equal(t, 0, progress.Total)
	assert.Equal(t, int32(0), atomic.LoadInt32(&gh.graphqlCalls))
	assert.Equal(t, int32(0), atomic.LoadInt32(&gh.rateLimitCalls))
	assert.Empty(t, clock.waits)
}

func TestEnrichDeveloperWithoutGitHubID(t *testing.T) {
	db := newTestDB(t)
	insertDevelopers(t, db, 1, 3, func(int) any { return nil })
	// An empty id is not looked up either
	insertDevelopers(t, db, 3, 4, func(int) any { return "" })

	gh := &fakeGitHub{}
	svc, _ := newTestEnrichmentService(t, db, gh)

	progress, err := svc.Enrich(context.Background(), "test-token")
	require.NoError(t, err)
	assert.Equal(t, 3, progress.Processed)
	assert.Equal(t, int32(0), atomic.LoadInt32(&gh.graphqlCalls))
	assert.Equal(t, int32(0), atomic.LoadInt32(&gh.rateLimitCalls))

	assert.Equal(t, 3, countRows(t, db, `
		SELECT count(*) FROM user_info
		WHERE login IS NULL AND name IS NULL AND company IS NULL AND location IS NULL
		  AND url IS NULL AND email IS NULL AND primary_github_user_id IS NULL`))
}

func TestEnrichMissingToken(t *testing.T) {
	db := newTestDB(t)
	insertDevelopers(t, db, 1, 3, func(i int) any { return fmt.Sprintf("U_%d", i) })

	gh := &fakeGitHub{}
	svc, _ := newTestEnrichmentService(t, db, gh)

	_, err := svc.Enrich(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingToken)
	assert.Equal(t, 0, countRows(t, db, `SELECT count(*) FROM user_info`))
}

func TestEnrichAbortsOnTransportError(t *testing.T) {
	db := newTestDB(t)
	insertDevelopers(t, db, 1, 151, func(i int) any { return fmt.Sprintf("U_%d", i) })

	gh := &fakeGitHub{status: http.StatusTooManyRequests}
	svc, clock := newTestEnrichmentService(t, db, gh)

	progress, err := svc.Enrich(context.Background(), "test-token")
	require.Error(t, err)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, DefaultMaxRetries, te.Attempts)
	assert.Equal(t, int32(DefaultMaxRetries), atomic.LoadInt32(&gh.graphqlCalls), "second batch never runs")
	assert.Len(t, clock.waits, DefaultMaxRetries-1)
	assert.Equal(t, 0, progress.Processed)
	assert.Equal(t, 0, countRows(t, db, `SELECT count(*) FROM user_info`))
}

func TestEnrichContinuesAfterBatchError(t *testing.T) {
	db := newTestDB(t)
	insertDevelopers(t, db, 1, 151, func(i int) any { return fmt.Sprintf("U_%d", i) })

	gh := &fakeGitHub{malformedOn: 1}
	svc, clock := newTestEnrichmentService(t, db, gh)

	progress, err := svc.Enrich(context.Background(), "test-token")
	require.NoError(t, err)
	assert.Equal(t, 50, progress.Processed)
	assert.Equal(t, 100, progress.Failed)
	assert.Contains(t, clock.waits, 5*time.Second)

	// The failed batch stays pending for the next run
	assert.Equal(t, 50, countRows(t, db, `SELECT count(*) FROM user_info`))
	pending, err := repositories.NewUserInfoRepository(db).PendingDevelopers()
	require.NoError(t, err)
	require.Len(t, pending, 100)
	assert.Equal(t, int64(1), pending[0].ID)

	progress, err = svc.Enrich(context.Background(), "test-token")
	require.NoError(t, err)
	assert.Equal(t, 100, progress.Processed)
	assert.Equal(t, 150, countRows(t, db, `SELECT count(*) FROM user_info`))
}

func TestEnrichPreflightWaitsWhenBudgetIsLow(t *testing.T) {
	db := newTestDB(t)
	insertDevelopers(t, db, 1, 201, func(i int) any { return fmt.Sprintf("U_%d", i) })

	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/rate_limit" {
			http.NotFound(w, r)
			return
		}
		atomic.AddInt32(&calls, 1)
		var req capturedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		setRateHeaders(w, 50, fixedNow.Unix()+100)
		nodes := make([]any, len(req.Variables.IDs))
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"nodes": nodes}}))
	}))
	defer srv.Close()

	svc := NewEnrichmentService(repositories.NewUserInfoRepository(db), srv.URL)
	clock := &fakeClock{}
	svc.sleep, svc.now = clock.sleep, clock.now

	_, err := svc.Enrich(context.Background(), "test-token")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	// pacing after batch 1, pre-flight before batch 2, pacing after batch 2
	assert.Equal(t, []time.Duration{time.Second, 105 * time.Second, time.Second}, clock.waits)
}
