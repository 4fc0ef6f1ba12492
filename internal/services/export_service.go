package services

import (
	"fmt"
	"io"

	"github.com/alimgiray/opendev/internal/models"
	"github.com/xuri/excelize/v2"
)

const exportDateLayout = "2006-01-02"

// ExportService renders rosters and repo lists as XLSX workbooks
type ExportService struct {
	ecosystemService *EcosystemService
	developerService *DeveloperService
}

func NewExportService(ecosystemService *EcosystemService, developerService *DeveloperService) *ExportService {
	return &ExportService{
		ecosystemService: ecosystemService,
		developerService: developerService,
	}
}

var developerHeader = []any{
	"Developer ID", "Day", "Points", "Points 28d", "Points 56d", "Rank",
	"Login", "Name", "Company", "Location", "URL", "Email",
}

var repoHeader = []any{"Repo ID", "Name", "Link", "Stars", "Forks", "Issues"}

// WriteDevelopers writes the developer roster of an ecosystem to w
func (s *ExportService) WriteDevelopers(w io.Writer, ecosystemID int64, filter models.DeveloperFilter) error {
	filter.IncludeUserInfo = true
	developers, err := s.developerService.DevelopersInEcosystem(ecosystemID, filter)
	if err != nil {
		return fmt.Errorf("failed to load developers: %w", err)
	}

	rows := make([][]any, 0, len(developers))
	for _, d := range developers {
		row := []any{
			d.CanonicalDeveloperID, d.Day.Format(exportDateLayout),
			intCell(d.Points), intCell(d.Points28d), intCell(d.Points56d), strCell(d.ContributionRank),
		}
		if p := d.ProfileFields; p != nil {
			row = append(row, strCell(p.Login), strCell(p.Name), strCell(p.Company), strCell(p.Location), strCell(p.URL), strCell(p.Email))
		}
		rows = append(rows, row)
	}

	return writeWorkbook(w, "Developers", developerHeader, rows)
}

// WriteRepos writes the repos of an ecosystem to w
func (s *ExportService) WriteRepos(w io.Writer, ecosystemID int64, filter models.RepoFilter) error {
	repos, err := s.ecosystemService.ReposInEcosystem(ecosystemID, filter)
	if err != nil {
		return fmt.Errorf("failed to load repos: %w", err)
	}

	rows := make([][]any, 0, len(repos))
	for _, r := range repos {
		rows = append(rows, []any{
			r.ID, r.Name, strCell(r.Link), intCell(r.NumStars), intCell(r.NumForks), intCell(r.NumIssues),
		})
	}

	return writeWorkbook(w, "Repos", repoHeader, rows)
}

func writeWorkbook(w io.Writer, sheet string, header []any, rows [][]any) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return err
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func strCell(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func intCell(n *int64) any {
	if n == nil {
		return nil
	}
	return *n
}
