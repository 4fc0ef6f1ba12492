package models

import (
	"fmt"
	"time"
)

// Ecosystem represents a row of the ecosystems table
type Ecosystem struct {
	ID                int64      `json:"id"`
	Name              string     `json:"name"`
	LaunchDate        *time.Time `json:"launch_date"`
	DerivedLaunchDate *time.Time `json:"derived_launch_date"`
	IsCrypto          bool       `json:"is_crypto"`
	IsCategory        bool       `json:"is_category"`
	IsChain           bool       `json:"is_chain"`
	IsMultichain      bool       `json:"is_multichain"`

	// Only set when requested
	RepoCount     *int64            `json:"repo_count,omitempty"`
	LatestMetrics *EcosystemMetrics `json:"latest_mads,omitempty"`
}

// EcosystemSummary is the narrow row returned by type-ahead search
type EcosystemSummary struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	IsCrypto bool   `json:"is_crypto"`
	IsChain  bool   `json:"is_chain"`
}

// EcosystemFilter holds the optional filters for listing ecosystems
type EcosystemFilter struct {
	NameContains     *string
	IsCrypto         *bool
	IsChain          *bool
	IncludeRepoCount bool
	Limit            int
	Offset           int
}

// EcosystemMetrics is one day of monthly active developer statistics (eco_mads)
type EcosystemMetrics struct {
	Day            time.Time `json:"day"`
	AllDevs        *int64    `json:"all_devs"`
	ExclusiveDevs  *int64    `json:"exclusive_devs"`
	MultichainDevs *int64    `json:"multichain_devs"`
	NumCommits     *int64    `json:"num_commits"`
	Devs0To1y      *int64    `json:"devs_0_1y"`
	Devs1To2y      *int64    `json:"devs_1_2y"`
	Devs2yPlus     *int64    `json:"devs_2y_plus"`
	OneTimeDevs    *int64    `json:"one_time_devs"`
	PartTimeDevs   *int64    `json:"part_time_devs"`
	FullTimeDevs   *int64    `json:"full_time_devs"`
}

// ParentEcosystem is a parent edge of the ecosystem hierarchy
type ParentEcosystem struct {
	ParentID   int64  `json:"parent_id"`
	ParentName string `json:"parent_name"`
}

// ChildEcosystem is a child edge of the ecosystem hierarchy
type ChildEcosystem struct {
	ChildID   int64  `json:"child_id"`
	ChildName string `json:"child_name"`
}

// EcosystemHierarchy lists the direct parents and children of an ecosystem
type EcosystemHierarchy struct {
	EcosystemID int64             `json:"parent_id"`
	Parents     []ParentEcosystem `json:"parents"`
	Children    []ChildEcosystem  `json:"children"`
}

// DateRange bounds a time series query. Nil ends are open.
type DateRange struct {
	Start *time.Time
	End   *time.Time
	Limit int
}

// EcosystemOverview gathers what the dashboard shows for one ecosystem
type EcosystemOverview struct {
	Ecosystem *Ecosystem          `json:"ecosystem"`
	Latest    *EcosystemMetrics   `json:"latest_mads"`
	Series    []*EcosystemMetrics `json:"mads"`
	Hierarchy *EcosystemHierarchy `json:"hierarchy"`
	TopRepos  []*Repo             `json:"top_repos"`
}

// Validate rejects a range whose start is after its end
func (dr DateRange) Validate() error {
	if dr.Start != nil && dr.End != nil && dr.Start.After(*dr.End) {
		return fmt.Errorf("start date %s is after end date %s", dr.Start.Format("2006-01-02"), dr.End.Format("2006-01-02"))
	}
	return nil
}
