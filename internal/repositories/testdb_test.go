package repositories

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/alimgiray/opendev/pkg/database"
	"github.com/stretchr/testify/require"
)

// newTestDB opens a migrated database in a temp dir and seeds it with three
// ecosystems, two repos and three ranked developers.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "odd.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	today := time.Now().Format(dateLayout)
	yesterday := time.Now().AddDate(0, 0, -1).Format(dateLayout)

	statements := []struct {
		query string
		args  []any
	}{
		{`INSERT INTO ecosystems (id, name, launch_date, derived_launch_date, is_crypto, is_category, is_chain, is_multichain) VALUES
			(1, 'Bitcoin', '2009-01-03', '2009-01-03', 1, 0, 1, 0),
			(2, 'Ethereum', '2015-07-30', '2015-07-30', 1, 0, 1, 0),
			(3, 'Rust', NULL, '2010-01-01', 0, 1, 0, 0)`, nil},
		{`INSERT INTO ecosystems_child_ecosystems (id, parent_id, child_id) VALUES (1, 1, 2)`, nil},
		{`INSERT INTO repos (id, name, link, num_stars, num_forks, num_issues) VALUES
			(10, 'bitcoin/bitcoin', 'https://github.com/bitcoin/bitcoin', 80000, 40000, 1000),
			(20, 'ethereum/go-ethereum', 'https://github.com/ethereum/go-ethereum', 50000, 20000, 500)`, nil},
		{`INSERT INTO ecosystems_repos (id, ecosystem_id, repo_id) VALUES (1, 1, 10), (2, 2, 20)`, nil},
		{`INSERT INTO ecosystems_repos_recursive (ecosystem_id, repo_id, distance, is_explicit) VALUES
			(1, 10, 1, 1), (1, 20, 2, 0), (2, 20, 1, 1)`, nil},
		{`INSERT INTO eco_mads (ecosystem_id, day, all_devs, exclusive_devs, multichain_devs, num_commits, devs_0_1y, devs_1_2y, devs_2y_plus, one_time_devs, part_time_devs, full_time_devs) VALUES
			(1, ?, 2500, 1300, 100, 140000, 500, 600, 1400, 200, 800, 500),
			(1, ?, 2480, 1280, 98, 138000, 490, 610, 1380, 210, 790, 490)`, []any{today, yesterday}},
		{`INSERT INTO canonical_developers (id, primary_github_user_id) VALUES
			(100, 'U_1'), (101, 'U_2'), (102, 'U_3')`, nil},
		{`INSERT INTO eco_developer_contribution_ranks (ecosystem_id, canonical_developer_id, day, points, points_28d, points_56d, contribution_rank) VALUES
			(1, 100, ?, 4, 4, 4, 'full_time'),
			(1, 101, ?, 4, 4, 4, 'part_time'),
			(1, 102, ?, 1, 1, 1, 'one_time'),
			(1, 100, ?, 3, 3, 3, 'full_time')`, []any{today, today, today, yesterday}},
		{`INSERT INTO user_info (canonical_developer_id, login, name, company, location, url, email, primary_github_user_id) VALUES
			(100, 'alice', 'Alice Dev', 'Acme', 'NYC', 'https://github.com/alice', 'alice@example.com', 'U_1'),
			(101, 'bob', 'Bob Smith', NULL, 'SF', NULL, NULL, 'U_2'),
			(102, 'carol', 'Carol Lee', 'Co', 'LA', 'https://github.com/carol', NULL, 'U_3')`, nil},
		{`INSERT INTO canonical_developer_locations (canonical_developer_id, country, admin_level_1, locality, lat, lng, formatted_address) VALUES
			(100, 'US', 'New York', 'New York City', 40.7, -74.0, 'NYC, NY, US')`, nil},
		{`INSERT INTO eco_developer_activities (ecosystem_id, canonical_developer_id, day, num_commits) VALUES
			(1, 100, ?, 5), (1, 100, ?, 3)`, []any{today, yesterday}},
		{`INSERT INTO eco_developer_tenures (ecosystem_id, canonical_developer_id, day, tenure_days, category) VALUES
			(1, 100, ?, 365, 1)`, []any{today}},
	}

	for _, s := range statements {
		_, err := db.Exec(s.query, s.args...)
		require.NoError(t, err)
	}

	return db
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }
