package services

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/alimgiray/opendev/pkg/database"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(filepath.Join(t.TempDir(), "odd.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// seedAnalytics loads a small ecosystem graph with ranked developers
func seedAnalytics(t *testing.T, db *sql.DB) {
	t.Helper()

	today := time.Now().Format("2006-01-02")
	statements := []string{
		`INSERT INTO ecosystems (id, name, launch_date, is_crypto, is_category, is_chain, is_multichain) VALUES
			(1, 'Bitcoin', '2009-01-03', 1, 0, 1, 0),
			(2, 'Ethereum', '2015-07-30', 1, 0, 1, 0),
			(3, 'Rust', NULL, 0, 1, 0, 0)`,
		`INSERT INTO ecosystems_child_ecosystems (id, parent_id, child_id) VALUES (1, 1, 2)`,
		`INSERT INTO repos (id, name, link, num_stars, num_forks, num_issues) VALUES
			(10, 'bitcoin/bitcoin', 'https://github.com/bitcoin/bitcoin', 80000, 40000, 1000),
			(20, 'ethereum/go-ethereum', 'https://github.com/ethereum/go-ethereum', 50000, 20000, 500),
			(30, 'unstarred/repo', NULL, NULL, NULL, NULL)`,
		`INSERT INTO ecosystems_repos (id, ecosystem_id, repo_id) VALUES (1, 1, 10), (2, 2, 20), (3, 1, 30)`,
		`INSERT INTO ecosystems_repos_recursive (ecosystem_id, repo_id) VALUES (1, 10), (1, 20), (1, 30), (2, 20)`,
		`INSERT INTO eco_mads (ecosystem_id, day, all_devs, num_commits) VALUES (1, '` + today + `', 2500, 140000)`,
		`INSERT INTO canonical_developers (id, primary_github_user_id) VALUES (100, 'U_1'), (101, 'U_2'), (102, 'U_3')`,
		`INSERT INTO eco_developer_contribution_ranks (ecosystem_id, canonical_developer_id, day, points, points_28d, points_56d, contribution_rank) VALUES
			(1, 100, '` + today + `', 4, 4, 4, 'full_time'),
			(1, 101, '` + today + `', 4, 4, 4, 'part_time'),
			(1, 102, '` + today + `', 1, 1, 1, 'one_time')`,
		`INSERT INTO user_info (canonical_developer_id, login, name, company, location, url, email, primary_github_user_id) VALUES
			(100, 'alice', 'Alice Dev', 'Acme', 'NYC', 'https://github.com/alice', 'alice@example.com', 'U_1'),
			(101, 'bob', 'Bob Smith', NULL, 'SF', NULL, NULL, 'U_2'),
			(102, 'carol', 'Carol Lee', 'Co', 'LA', 'https://github.com/carol', NULL, 'U_3')`,
		`INSERT INTO canonical_developer_locations (canonical_developer_id, country, locality) VALUES (100, 'US', 'New York City')`,
		`INSERT INTO eco_developer_activities (ecosystem_id, canonical_developer_id, day, num_commits) VALUES (1, 100, '` + today + `', 5)`,
		`INSERT INTO eco_developer_tenures (ecosystem_id, canonical_developer_id, day, tenure_days, category) VALUES (1, 100, '` + today + `', 365, 1)`,
	}

	for _, s := range statements {
		_, err := db.Exec(s)
		require.NoError(t, err)
	}
}
