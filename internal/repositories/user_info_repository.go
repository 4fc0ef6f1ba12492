package repositories

import (
	"database/sql"
	"fmt"

	"github.com/alimgiray/opendev/internal/models"
)

// UserInfoRepository reads pending developers and writes enrichment records
type UserInfoRepository struct {
	db *sql.DB
}

func NewUserInfoRepository(db *sql.DB) *UserInfoRepository {
	return &UserInfoRepository{db: db}
}

// Count returns the number of user_info rows
func (r *UserInfoRepository) Count() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT count(*) FROM user_info`).Scan(&count)
	return count, err
}

// PendingDevelopers returns canonical developers without a user_info row
func (r *UserInfoRepository) PendingDevelopers() ([]models.Developer, error) {
	query := `
		SELECT id, primary_github_user_id
		FROM canonical_developers
		WHERE id NOT IN (SELECT canonical_developer_id FROM user_info)
		ORDER BY id
	`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var developers []models.Developer
	for rows.Next() {
		var d models.Developer
		if err := rows.Scan(&d.ID, &d.PrimaryGitHubUserID); err != nil {
			return nil, err
		}
		developers = append(developers, d)
	}

	return developers, rows.Err()
}

// Insert writes a record unless one already exists for the developer.
// Returns false when an existing row was kept.
func (r *UserInfoRepository) Insert(record *models.EnrichmentRecord) (bool, error) {
	query := `
		INSERT INTO user_info
			(canonical_developer_id, login, name, company, location, url, email, primary_github_user_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (canonical_developer_id) DO NOTHING
	`

	res, err := r.db.Exec(query,
		record.CanonicalDeveloperID, record.Login, record.Name, record.Company,
		record.Location, record.URL, record.Email, record.PrimaryGitHubUserID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert user_info for developer %d: %w", record.CanonicalDeveloperID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// Reset drops every user_info row so the next run starts from scratch
func (r *UserInfoRepository) Reset() error {
	_, err := r.db.Exec(`DELETE FROM user_info`)
	return err
}
