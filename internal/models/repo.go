package models

// Repo represents a repository row
type Repo struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Link      *string `json:"link"`
	NumStars  *int64  `json:"num_stars"`
	NumForks  *int64  `json:"num_forks"`
	NumIssues *int64  `json:"num_issues"`
}

const (
	RepoSortByStars = "num_stars"
	RepoSortByName  = "name"
)

// RepoFilter scopes a repository listing. Recursive uses the transitive
// closure of child ecosystems, otherwise only directly attached repos.
type RepoFilter struct {
	Recursive bool
	SortBy    string
	Limit     int
	Offset    int
}

// DefaultRepoFilter returns the filter used when the caller gives no options
func DefaultRepoFilter() RepoFilter {
	return RepoFilter{
		Recursive: true,
		SortBy:    RepoSortByStars,
		Limit:     50,
	}
}
