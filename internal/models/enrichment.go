package models

// Developer is a canonical developer waiting for enrichment
type Developer struct {
	ID                  int64   `json:"id"`
	PrimaryGitHubUserID *string `json:"primary_github_user_id"`
}

// HasGitHubID reports whether the developer can be looked up on GitHub
func (d Developer) HasGitHubID() bool {
	return d.PrimaryGitHubUserID != nil && *d.PrimaryGitHubUserID != ""
}

// GitHubProfile is one node of a GitHub GraphQL nodes(ids:) response.
// PrimaryGitHubUserID is the requested node id, set even when GitHub
// could not resolve it.
type GitHubProfile struct {
	NodeID   *string `json:"id"`
	Login    *string `json:"login"`
	Name     *string `json:"name"`
	Company  *string `json:"company"`
	Location *string `json:"location"`
	URL      *string `json:"url"`
	Email    *string `json:"email"`

	PrimaryGitHubUserID string `json:"primary_github_user_id"`
}

// Resolved reports whether GitHub returned a user for the requested id
func (p *GitHubProfile) Resolved() bool {
	return p != nil && p.NodeID != nil
}

// EnrichmentRecord is a user_info row
type EnrichmentRecord struct {
	CanonicalDeveloperID int64 `json:"canonical_developer_id"`
	ProfileFields
	PrimaryGitHubUserID *string `json:"primary_github_user_id"`
}

// NewEnrichmentRecord builds the user_info row for a developer. A nil profile
// yields a row with every profile field null and the external id preserved.
func NewEnrichmentRecord(dev Developer, profile *GitHubProfile) *EnrichmentRecord {
	record := &EnrichmentRecord{CanonicalDeveloperID: dev.ID}
	if dev.HasGitHubID() {
		id := *dev.PrimaryGitHubUserID
		record.PrimaryGitHubUserID = &id
	}
	if profile == nil {
		return record
	}

	record.Login = profile.Login
	record.Name = profile.Name
	record.Company = profile.Company
	record.Location = profile.Location
	record.URL = profile.URL
	record.Email = profile.Email
	return record
}
