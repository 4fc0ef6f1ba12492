package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/alimgiray/opendev/internal/models"
)

const ecosystemColumns = `
	e.id, e.name, e.launch_date, e.derived_launch_date,
	COALESCE(e.is_crypto, 0), COALESCE(e.is_category, 0),
	COALESCE(e.is_chain, 0), COALESCE(e.is_multichain, 0)`

const metricsColumns = `
	day, all_devs, exclusive_devs, multichain_devs, num_commits,
	devs_0_1y, devs_1_2y, devs_2y_plus, one_time_devs, part_time_devs, full_time_devs`

// EcosystemRepository runs the ecosystem, repo and metrics queries
type EcosystemRepository struct {
	db *sql.DB
}

func NewEcosystemRepository(db *sql.DB) *EcosystemRepository {
	return &EcosystemRepository{db: db}
}

func scanEcosystem(scanner interface{ Scan(...any) error }, e *models.Ecosystem, extra ...any) error {
	dest := []any{
		&e.ID, &e.Name, &e.LaunchDate, &e.DerivedLaunchDate,
		&e.IsCrypto, &e.IsCategory, &e.IsChain, &e.IsMultichain,
	}
	return scanner.Scan(append(dest, extra...)...)
}

// List returns ecosystems ordered by name, filtered and paginated
func (r *EcosystemRepository) List(filter models.EcosystemFilter) ([]*models.Ecosystem, error) {
	var where []string
	var args []any

	if filter.NameContains != nil {
		where = append(where, `casefold(e.name) LIKE ? ESCAPE '\'`)
		args = append(args, foldedPattern(*filter.NameContains))
	}
	if filter.IsCrypto != nil {
		where = append(where, "COALESCE(e.is_crypto, 0) = ?")
		args = append(args, boolParam(*filter.IsCrypto))
	}
	if filter.IsChain != nil {
		where = append(where, "COALESCE(e.is_chain, 0) = ?")
		args = append(args, boolParam(*filter.IsChain))
	}

	whereSQL := "1=1"
	if len(where) > 0 {
		whereSQL = strings.Join(where, " AND ")
	}

	var query string
	if filter.IncludeRepoCount {
		query = fmt.Sprintf(`
			SELECT %s, count(er.repo_id) AS repo_count
			FROM ecosystems e
			LEFT JOIN ecosystems_repos er ON er.ecosystem_id = e.id
			WHERE %s
			GROUP BY e.id
			ORDER BY e.name, e.id
			LIMIT ? OFFSET ?
		`, ecosystemColumns, whereSQL)
	} else {
		query = fmt.Sprintf(`
			SELECT %s
			FROM ecosystems e
			WHERE %s
			ORDER BY e.name, e.id
			LIMIT ? OFFSET ?
		`, ecosystemColumns, whereSQL)
	}
	args = append(args, boundLimit(filter.Limit, defaultListLimit), boundOffset(filter.Offset))

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ecosystems := []*models.Ecosystem{}
	for rows.Next() {
		e := &models.Ecosystem{}
		if filter.IncludeRepoCount {
			var count int64
			if err := scanEcosystem(rows, e, &count); err != nil {
				return nil, err
			}
			e.RepoCount = &count
		} else if err := scanEcosystem(rows, e); err != nil {
			return nil, err
		}
		ecosystems = append(ecosystems, e)
	}

	return ecosystems, rows.Err()
}

// GetByID returns the ecosystem or nil when it does not exist
func (r *EcosystemRepository) GetByID(id int64) (*models.Ecosystem, error) {
	query := fmt.Sprintf(`SELECT %s FROM ecosystems e WHERE e.id = ?`, ecosystemColumns)

	e := &models.Ecosystem{}
	err := scanEcosystem(r.db.QueryRow(query, id), e)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return e, nil
}

// Search returns ecosystems whose name contains q, for type-ahead
func (r *EcosystemRepository) Search(q string, limit int) ([]*models.EcosystemSummary, error) {
	query := `
		SELECT id, name, COALESCE(is_crypto, 0), COALESCE(is_chain, 0)
		FROM ecosystems
		WHERE casefold(name) LIKE ? ESCAPE '\'
		ORDER BY name, id
		LIMIT ?
	`

	rows, err := r.db.Query(query, foldedPattern(q), boundLimit(limit, 30))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []*models.EcosystemSummary{}
	for rows.Next() {
		s := &models.EcosystemSummary{}
		if err := rows.Scan(&s.ID, &s.Name, &s.IsCrypto, &s.IsChain); err != nil {
			return nil, err
		}
		results = append(results, s)
	}

	return results, rows.Err()
}

// LatestMetrics returns the most recent eco_mads row or nil
func (r *EcosystemRepository) LatestMetrics(ecosystemID int64) (*models.EcosystemMetrics, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM eco_mads
		WHERE ecosystem_id = ?
		ORDER BY day DESC
		LIMIT 1
	`, metricsColumns)

	m := &models.EcosystemMetrics{}
	err := scanMetrics(r.db.QueryRow(query, ecosystemID), m)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return m, nil
}

// MetricsSeries returns eco_mads rows newest first within the date range
func (r *EcosystemRepository) MetricsSeries(ecosystemID int64, dr models.DateRange) ([]*models.EcosystemMetrics, error) {
	where := "ecosystem_id = ?"
	args := []any{ecosystemID}
	if dr.Start != nil {
		where += " AND date(day) >= date(?)"
		args = append(args, dateParam(*dr.Start))
	}
	if dr.End != nil {
		where += " AND date(day) <= date(?)"
		args = append(args, dateParam(*dr.End))
	}
	args = append(args, boundLimit(dr.Limit, 365))

	query := fmt.Sprintf(`
		SELECT %s
		FROM eco_mads
		WHERE %s
		ORDER BY day DESC
		LIMIT ?
	`, metricsColumns, where)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	series := []*models.EcosystemMetrics{}
	for rows.Next() {
		m := &models.EcosystemMetrics{}
		if err := scanMetrics(rows, m); err != nil {
			return nil, err
		}
		series = append(series, m)
	}

	return series, rows.Err()
}

func scanMetrics(scanner interface{ Scan(...any) error }, m *models.EcosystemMetrics) error {
	return scanner.Scan(
		&m.Day, &m.AllDevs, &m.ExclusiveDevs, &m.MultichainDevs, &m.NumCommits,
		&m.Devs0To1y, &m.Devs1To2y, &m.Devs2yPlus, &m.OneTimeDevs, &m.PartTimeDevs, &m.FullTimeDevs,
	)
}

// Hierarchy returns the direct parents and children of an ecosystem
func (r *EcosystemRepository) Hierarchy(ecosystemID int64) (*models.EcosystemHierarchy, error) {
	h := &models.EcosystemHierarchy{
		EcosystemID: ecosystemID,
		Parents:     []models.ParentEcosystem{},
		Children:    []models.ChildEcosystem{},
	}

	parentRows, err := r.db.Query(`
		SELECT p.id, p.name
		FROM ecosystems_child_ecosystems ece
		JOIN ecosystems p ON p.id = ece.parent_id
		WHERE ece.child_id = ?
		ORDER BY p.name
	`, ecosystemID)
	if err != nil {
		return nil, err
	}
	defer parentRows.Close()

	for parentRows.Next() {
		var p models.ParentEcosystem
		if err := parentRows.Scan(&p.ParentID, &p.ParentName); err != nil {
			return nil, err
		}
		h.Parents = append(h.Parents, p)
	}
	if err := parentRows.Err(); err != nil {
		return nil, err
	}

	childRows, err := r.db.Query(`
		SELECT c.id, c.name
		FROM ecosystems_child_ecosystems ece
		JOIN ecosystems c ON c.id = ece.child_id
		WHERE ece.parent_id = ?
		ORDER BY c.name
	`, ecosystemID)
	if err != nil {
		return nil, err
	}
	defer childRows.Close()

	for childRows.Next() {
		var c models.ChildEcosystem
		if err := childRows.Scan(&c.ChildID, &c.ChildName); err != nil {
			return nil, err
		}
		h.Children = append(h.Children, c)
	}

	return h, childRows.Err()
}

// Repos lists the repos of an ecosystem, directly attached or through the
// recursive closure of child ecosystems
func (r *EcosystemRepository) Repos(ecosystemID int64, filter models.RepoFilter) ([]*models.Repo, error) {
	table := "ecosystems_repos"
	if filter.Recursive {
		table = "ecosystems_repos_recursive"
	}
	order := "r.num_stars DESC NULLS LAST, r.id"
	if filter.SortBy == models.RepoSortByName {
		order = "r.name, r.id"
	}

	query := fmt.Sprintf(`
		SELECT r.id, r.name, r.link, r.num_stars, r.num_forks, r.num_issues
		FROM %s er
		JOIN repos r ON r.id = er.repo_id
		WHERE er.ecosystem_id = ?
		ORDER BY %s
		LIMIT ? OFFSET ?
	`, table, order)

	rows, err := r.db.Query(query, ecosystemID, boundLimit(filter.Limit, defaultListLimit), boundOffset(filter.Offset))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	repos := []*models.Repo{}
	for rows.Next() {
		repo := &models.Repo{}
		if err := rows.Scan(&repo.ID, &repo.Name, &repo.Link, &repo.NumStars, &repo.NumForks, &repo.NumIssues); err != nil {
			return nil, err
		}
		repos = append(repos, repo)
	}

	return repos, rows.Err()
}
