package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alimgiray/opendev/internal/models"
)

// DeveloperRepository runs the developer roster, profile and activity queries
type DeveloperRepository struct {
	db *sql.DB
}

func NewDeveloperRepository(db *sql.DB) *DeveloperRepository {
	return &DeveloperRepository{db: db}
}

// InEcosystem lists the developers ranked in an ecosystem on filter.Day, or
// on the latest recorded day when filter.Day is nil
func (r *DeveloperRepository) InEcosystem(ecosystemID int64, filter models.DeveloperFilter) ([]*models.DeveloperRank, error) {
	where := "ecr.ecosystem_id = ?"
	args := []any{ecosystemID}

	if filter.Day != nil {
		where += " AND date(ecr.day) = date(?)"
		args = append(args, dateParam(*filter.Day))
	} else {
		where += " AND ecr.day = (SELECT max(day) FROM eco_developer_contribution_ranks WHERE ecosystem_id = ?)"
		args = append(args, ecosystemID)
	}
	if filter.ContributionRank != nil {
		where += " AND ecr.contribution_rank = ?"
		args = append(args, *filter.ContributionRank)
	}

	columns := "ecr.canonical_developer_id, ecr.day, ecr.points, ecr.points_28d, ecr.points_56d, ecr.contribution_rank"
	join := ""
	if filter.IncludeUserInfo {
		columns += ", u.login, u.name, u.company, u.location, u.url, u.email"
		join = "LEFT JOIN user_info u ON u.canonical_developer_id = ecr.canonical_developer_id"
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM eco_developer_contribution_ranks ecr
		%s
		WHERE %s
		ORDER BY ecr.points DESC NULLS LAST, ecr.canonical_developer_id
		LIMIT ? OFFSET ?
	`, columns, join, where)
	args = append(args, boundLimit(filter.Limit, defaultListLimit), boundOffset(filter.Offset))

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	developers := []*models.DeveloperRank{}
	for rows.Next() {
		d := &models.DeveloperRank{}
		dest := []any{&d.CanonicalDeveloperID, &d.Day, &d.Points, &d.Points28d, &d.Points56d, &d.ContributionRank}
		if filter.IncludeUserInfo {
			d.ProfileFields = &models.ProfileFields{}
			dest = append(dest, &d.Login, &d.Name, &d.Company, &d.Location, &d.URL, &d.Email)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		developers = append(developers, d)
	}

	return developers, rows.Err()
}

// Search finds developers of an ecosystem whose login or name contains q
func (r *DeveloperRepository) Search(ecosystemID int64, q string, day *time.Time, limit, offset int) ([]*models.DeveloperSearchResult, error) {
	pattern := foldedPattern(q)
	args := []any{ecosystemID, pattern, pattern}

	dayFilter := ""
	if day != nil {
		dayFilter = "AND date(ecr.day) = date(?)"
		args = append(args, dateParam(*day))
	}
	args = append(args, boundLimit(limit, 30), boundOffset(offset))

	query := fmt.Sprintf(`
		SELECT DISTINCT ecr.canonical_developer_id, ecr.day, ecr.points, ecr.contribution_rank, u.login, u.name
		FROM eco_developer_contribution_ranks ecr
		JOIN user_info u ON u.canonical_developer_id = ecr.canonical_developer_id
		WHERE ecr.ecosystem_id = ?
		  AND (casefold(COALESCE(u.login, '')) LIKE ? ESCAPE '\' OR casefold(COALESCE(u.name, '')) LIKE ? ESCAPE '\')
		  %s
		ORDER BY ecr.points DESC NULLS LAST, ecr.canonical_developer_id
		LIMIT ? OFFSET ?
	`, dayFilter)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []*models.DeveloperSearchResult{}
	for rows.Next() {
		d := &models.DeveloperSearchResult{}
		if err := rows.Scan(&d.CanonicalDeveloperID, &d.Day, &d.Points, &d.ContributionRank, &d.Login, &d.Name); err != nil {
			return nil, err
		}
		results = append(results, d)
	}

	return results, rows.Err()
}

// GetProfile returns the user_info row of a developer or nil
func (r *DeveloperRepository) GetProfile(developerID int64) (*models.DeveloperProfile, error) {
	query := `
		SELECT canonical_developer_id, login, name, company, location, url, email, primary_github_user_id
		FROM user_info WHERE canonical_developer_id = ?
	`

	p := &models.DeveloperProfile{}
	err := r.db.QueryRow(query, developerID).Scan(
		&p.CanonicalDeveloperID, &p.Login, &p.Name, &p.Company, &p.Location, &p.URL, &p.Email,
		&p.PrimaryGitHubUserID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return p, nil
}

// Locations returns the geocoded locations of a developer
func (r *DeveloperRepository) Locations(developerID int64) ([]models.DeveloperLocation, error) {
	query := `
		SELECT country, admin_level_1, locality, lat, lng, formatted_address
		FROM canonical_developer_locations WHERE canonical_developer_id = ?
		ORDER BY rowid
	`

	rows, err := r.db.Query(query, developerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	locations := []models.DeveloperLocation{}
	for rows.Next() {
		var l models.DeveloperLocation
		if err := rows.Scan(&l.Country, &l.AdminLevel1, &l.Locality, &l.Lat, &l.Lng, &l.FormattedAddress); err != nil {
			return nil, err
		}
		locations = append(locations, l)
	}

	return locations, rows.Err()
}

// Activity returns the daily commit counts of a developer in an ecosystem, newest first
func (r *DeveloperRepository) Activity(ecosystemID, developerID int64, dr models.DateRange) ([]*models.DeveloperActivity, error) {
	where := "ecosystem_id = ? AND canonical_developer_id = ?"
	args := []any{ecosystemID, developerID}
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
		SELECT day, num_commits
		FROM eco_developer_activities
		WHERE %s
		ORDER BY day DESC
		LIMIT ?
	`, where)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	activity := []*models.DeveloperActivity{}
	for rows.Next() {
		a := &models.DeveloperActivity{}
		if err := rows.Scan(&a.Day, &a.NumCommits); err != nil {
			return nil, err
		}
		activity = append(activity, a)
	}

	return activity, rows.Err()
}

// Tenure returns the last 100 tenure snapshots of a developer in an ecosystem
func (r *DeveloperRepository) Tenure(ecosystemID, developerID int64) ([]*models.DeveloperTenure, error) {
	query := `
		SELECT day, tenure_days, category
		FROM eco_developer_tenures
		WHERE ecosystem_id = ? AND canonical_developer_id = ?
		ORDER BY day DESC
		LIMIT 100
	`

	rows, err := r.db.Query(query, ecosystemID, developerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tenures := []*models.DeveloperTenure{}
	for rows.Next() {
		t := &models.DeveloperTenure{}
		if err := rows.Scan(&t.Day, &t.TenureDays, &t.Category); err != nil {
			return nil, err
		}
		tenures = append(tenures, t)
	}

	return tenures, rows.Err()
}
