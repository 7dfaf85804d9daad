package comicvine

import (
	"strconv"
	"strings"

	"github.com/luccast/runarr/pkg/models"
)

// Wire types for the Comic Vine API. Numeric fields that the API serves as
// strings (start_year, issue_number) stay strings here and are converted
// when mapped into models.

type apiResponse struct {
	StatusCode int    `json:"status_code"`
	Error      string `json:"error"`
}

type namedRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type imageRef struct {
	OriginalURL string `json:"original_url"`
}

type volumeResult struct {
	ID            int      `json:"id"`
	Name          string   `json:"name"`
	StartYear     string   `json:"start_year"`
	CountOfIssues int      `json:"count_of_issues"`
	Description   string   `json:"description"`
	Publisher     namedRef `json:"publisher"`
	Image         imageRef `json:"image"`
	SiteDetailURL string   `json:"site_detail_url"`
	LastIssue     *struct {
		CoverDate string `json:"cover_date"`
	} `json:"last_issue"`
}

type searchResponse struct {
	apiResponse
	Results []volumeResult `json:"results"`
}

type volumeResponse struct {
	apiResponse
	Results volumeResult `json:"results"`
}

type issueSummary struct {
	ID            int    `json:"id"`
	IssueNumber   string `json:"issue_number"`
	Name          string `json:"name"`
	SiteDetailURL string `json:"site_detail_url"`
}

type volumeIssuesResponse struct {
	apiResponse
	Results struct {
		Issues []issueSummary `json:"issues"`
	} `json:"results"`
}

type personCredit struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

type issueResult struct {
	ID               int            `json:"id"`
	Name             string         `json:"name"`
	IssueNumber      string         `json:"issue_number"`
	Description      string         `json:"description"`
	CoverDate        string         `json:"cover_date"`
	ISBN             string         `json:"isbn"`
	SiteDetailURL    string         `json:"site_detail_url"`
	PersonCredits    []personCredit `json:"person_credits"`
	ConceptCredits   []namedRef     `json:"concept_credits"`
	CharacterCredits []namedRef     `json:"character_credits"`
	TeamCredits      []namedRef     `json:"team_credits"`
	LocationCredits  []namedRef     `json:"location_credits"`
	StoryArcCredits  []namedRef     `json:"story_arc_credits"`
	Volume           namedRef       `json:"volume"`
}

type issueResponse struct {
	apiResponse
	Results issueResult `json:"results"`
}

func (v volumeResult) toSeries() *models.CatalogSeries {
	year, _ := strconv.Atoi(strings.TrimSpace(v.StartYear))
	return &models.CatalogSeries{
		ID:          v.ID,
		Name:        v.Name,
		StartYear:   year,
		IssueCount:  v.CountOfIssues,
		Publisher:   v.Publisher.Name,
		Description: v.Description,
		ImageURL:    v.Image.OriginalURL,
		SiteURL:     v.SiteDetailURL,
	}
}

func (iss issueResult) toIssue(seriesID int) *models.CatalogIssue {
	out := &models.CatalogIssue{
		ID:          iss.ID,
		SeriesID:    seriesID,
		Number:      strings.TrimSpace(iss.IssueNumber),
		Title:       iss.Name,
		Description: iss.Description,
		CoverDate:   parseCoverDate(iss.CoverDate),
		GTIN:        strings.TrimSpace(iss.ISBN),
		SiteURL:     iss.SiteDetailURL,
	}

	for _, pc := range iss.PersonCredits {
		out.Credits = append(out.Credits, expandRoles(pc)...)
	}

	out.Tags = appendNames(out.Tags, iss.ConceptCredits)
	out.Tags = appendNames(out.Tags, iss.StoryArcCredits)
	out.Characters = names(iss.CharacterCredits)
	out.Teams = names(iss.TeamCredits)
	out.Locations = names(iss.LocationCredits)

	if iss.SiteDetailURL != "" {
		out.WebLinks = append(out.WebLinks, iss.SiteDetailURL)
	}

	return out
}

// expandRoles maps a Comic Vine credit to canonical roles. The API serves
// roles as a comma-separated list ("penciler, inker"); each recognized token
// becomes its own credit. Unrecognized tokens are kept verbatim so the
// composer can report them before dropping.
func expandRoles(pc personCredit) []models.Credit {
	var credits []models.Credit
	seen := map[string]struct{}{}
	for _, raw := range strings.Split(pc.Role, ",") {
		role := canonicalRole(strings.TrimSpace(strings.ToLower(raw)))
		if role == "" {
			continue
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		credits = append(credits, models.Credit{Name: pc.Name, Role: role})
	}
	return credits
}

func canonicalRole(raw string) string {
	switch {
	case raw == "":
		return ""
	case strings.Contains(raw, "writer"):
		return models.AuthorRoleWriter
	case strings.Contains(raw, "pencil"):
		return models.AuthorRolePenciller
	case strings.Contains(raw, "ink"):
		return models.AuthorRoleInker
	case strings.Contains(raw, "color"), strings.Contains(raw, "colour"):
		return models.AuthorRoleColorist
	case strings.Contains(raw, "letter"):
		return models.AuthorRoleLetterer
	case strings.Contains(raw, "cover"):
		return models.AuthorRoleCoverArtist
	case strings.Contains(raw, "editor"):
		return models.AuthorRoleEditor
	case strings.Contains(raw, "translat"):
		return models.AuthorRoleTranslator
	default:
		return raw
	}
}

func parseCoverDate(s string) models.CoverDate {
	// Dates arrive as "YYYY-MM-DD"; partial dates keep whatever parses.
	parts := strings.SplitN(strings.TrimSpace(s), "-", 3)
	var d models.CoverDate
	if len(parts) > 0 {
		d.Year, _ = strconv.Atoi(parts[0])
	}
	if len(parts) > 1 {
		d.Month, _ = strconv.Atoi(parts[1])
	}
	if len(parts) > 2 {
		d.Day, _ = strconv.Atoi(parts[2])
	}
	return d
}

func names(refs []namedRef) []string {
	return appendNames(nil, refs)
}

func appendNames(dst []string, refs []namedRef) []string {
	for _, r := range refs {
		if r.Name != "" {
			dst = append(dst, r.Name)
		}
	}
	return dst
}
