package models

import (
	"time"
)

// ProfileFields are the enrichment columns of user_info
type ProfileFields struct {
	Login    *string `json:"login"`
	Name     *string `json:"name"`
	Company  *string `json:"company"`
	Location *string `json:"location"`
	URL      *string `json:"url"`
	Email    *string `json:"email"`
}

// DeveloperRank is a developer's contribution rank in an ecosystem on a day.
// ProfileFields is nil unless the profile join was requested.
type DeveloperRank struct {
	CanonicalDeveloperID int64     `json:"canonical_developer_id"`
	Day                  time.Time `json:"day"`
	Points               *int64    `json:"points"`
	Points28d            *int64    `json:"points_28d"`
	Points56d            *int64    `json:"points_56d"`
	ContributionRank     *string   `json:"contribution_rank"`
	*ProfileFields
}

// DeveloperFilter holds the options for listing developers of an ecosystem.
// A nil Day means the latest day recorded for the ecosystem.
type DeveloperFilter struct {
	Day              *time.Time
	ContributionRank *string
	IncludeUserInfo  bool
	Limit            int
	Offset           int
}

// DefaultDeveloperFilter returns the roster options used when none are given
func DefaultDeveloperFilter() DeveloperFilter {
	return DeveloperFilter{
		IncludeUserInfo: true,
		Limit:           50,
	}
}

// DeveloperSearchResult is a developer matched by login or name
type DeveloperSearchResult struct {
	CanonicalDeveloperID int64     `json:"canonical_developer_id"`
	Day                  time.Time `json:"day"`
	Points               *int64    `json:"points"`
	ContributionRank     *string   `json:"contribution_rank"`
	Login                *string   `json:"login"`
	Name                 *string   `json:"name"`
}

// DeveloperProfile is a user_info row, optionally with known locations
type DeveloperProfile struct {
	CanonicalDeveloperID int64 `json:"canonical_developer_id"`
	ProfileFields
	PrimaryGitHubUserID *string             `json:"primary_github_user_id"`
	Locations           []DeveloperLocation `json:"locations,omitempty"`
}

// DeveloperLocation is a geocoded location of a developer
type DeveloperLocation struct {
	Country          *string  `json:"country"`
	AdminLevel1      *string  `json:"admin_level_1"`
	Locality         *string  `json:"locality"`
	Lat              *float64 `json:"lat"`
	Lng              *float64 `json:"lng"`
	FormattedAddress *string  `json:"formatted_address"`
}

// DeveloperActivity is the number of commits of a developer on one day
type DeveloperActivity struct {
	Day        time.Time `json:"day"`
	NumCommits *int64    `json:"num_commits"`
}

// DeveloperTenure is a tenure snapshot of a developer in an ecosystem
type DeveloperTenure struct {
	Day        time.Time `json:"day"`
	TenureDays *int64    `json:"tenure_days"`
	Category   *int64    `json:"category"`
}
