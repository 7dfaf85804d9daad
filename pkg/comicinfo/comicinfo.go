package comicinfo

import (
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/luccast/runarr/pkg/models"
	"github.com/pkg/errors"
)

// ComicInfo is the metadata document embedded in a cbz as ComicInfo.xml.
type ComicInfo struct {
	XMLName     xml.Name `xml:"ComicInfo"`
	Title       string   `xml:"Title,omitempty"`
	Series      string   `xml:"Series,omitempty"`
	Number      string   `xml:"Number,omitempty"`
	Count       string   `xml:"Count,omitempty"`
	Volume      string   `xml:"Volume,omitempty"`
	Summary     string   `xml:"Summary,omitempty"`
	Year        string   `xml:"Year,omitempty"`
	Month       string   `xml:"Month,omitempty"`
	Day         string   `xml:"Day,omitempty"`
	Writer      string   `xml:"Writer,omitempty"`
	Penciller   string   `xml:"Penciller,omitempty"`
	Inker       string   `xml:"Inker,omitempty"`
	Colorist    string   `xml:"Colorist,omitempty"`
	Letterer    string   `xml:"Letterer,omitempty"`
	CoverArtist string   `xml:"CoverArtist,omitempty"`
	Editor      string   `xml:"Editor,omitempty"`
	Translator  string   `xml:"Translator,omitempty"`
	Publisher   string   `xml:"Publisher,omitempty"`
	Tags        string   `xml:"Tags,omitempty"`
	Characters  string   `xml:"Characters,omitempty"`
	Teams       string   `xml:"Teams,omitempty"`
	Locations   string   `xml:"Locations,omitempty"`
	Web         string   `xml:"Web,omitempty"`
	GTIN        string   `xml:"GTIN,omitempty"`
}

var validate = validator.New()

// Compose builds a ComicInfo document from a resolved match. It never touches
// the filesystem. Credits with unrecognized roles are dropped and reported in
// the returned warnings; web links failing URL validation and GTINs failing
// the ISBN checksum are omitted silently.
func Compose(match *models.ResolvedMatch) (*ComicInfo, []string) {
	series := match.Series
	issue := match.Issue

	info := &ComicInfo{
		Title:      issue.Title,
		Series:     series.Name,
		Number:     issue.Number,
		Summary:    issue.Description,
		Publisher:  series.Publisher,
		Tags:       strings.Join(issue.Tags, ", "),
		Characters: strings.Join(issue.Characters, ", "),
		Teams:      strings.Join(issue.Teams, ", "),
		Locations:  strings.Join(issue.Locations, ", "),
	}
	if series.StartYear != 0 {
		info.Volume = strconv.Itoa(series.StartYear)
	}
	if series.IssueCount != 0 {
		info.Count = strconv.Itoa(series.IssueCount)
	}
	if issue.CoverDate.Year != 0 {
		info.Year = strconv.Itoa(issue.CoverDate.Year)
	}
	if issue.CoverDate.Month != 0 {
		info.Month = strconv.Itoa(issue.CoverDate.Month)
	}
	if issue.CoverDate.Day != 0 {
		info.Day = strconv.Itoa(issue.CoverDate.Day)
	}

	warnings := composeCredits(info, issue.Credits)

	var links []string
	for _, link := range issue.WebLinks {
		if validate.Var(link, "url") == nil {
			links = append(links, link)
		}
	}
	info.Web = strings.Join(links, " ")

	if issue.GTIN != "" && validate.Var(issue.GTIN, "isbn") == nil {
		info.GTIN = issue.GTIN
	}

	return info, warnings
}

// composeCredits fills the per-role credit fields. Names within a credit may
// be comma-combined; they are split, deduplicated per role, and sorted.
func composeCredits(info *ComicInfo, credits []models.Credit) []string {
	fields := map[string]*string{
		models.AuthorRoleWriter:      &info.Writer,
		models.AuthorRolePenciller:   &info.Penciller,
		models.AuthorRoleInker:       &info.Inker,
		models.AuthorRoleColorist:    &info.Colorist,
		models.AuthorRoleLetterer:    &info.Letterer,
		models.AuthorRoleCoverArtist: &info.CoverArtist,
		models.AuthorRoleEditor:      &info.Editor,
		models.AuthorRoleTranslator:  &info.Translator,
	}

	byRole := map[string]map[string]bool{}
	var warnings []string
	for _, credit := range credits {
		if _, ok := models.ValidAuthorRoles[credit.Role]; !ok {
			warnings = append(warnings, fmt.Sprintf("dropping credit %q with unrecognized role %q", credit.Name, credit.Role))
			continue
		}
		if byRole[credit.Role] == nil {
			byRole[credit.Role] = map[string]bool{}
		}
		for _, name := range strings.Split(credit.Name, ",") {
			name = strings.TrimSpace(name)
			if name != "" {
				byRole[credit.Role][name] = true
			}
		}
	}

	for role, names := range byRole {
		sorted := make([]string, 0, len(names))
		for name := range names {
			sorted = append(sorted, name)
		}
		sort.Strings(sorted)
		*fields[role] = strings.Join(sorted, ", ")
	}

	return warnings
}

// Marshal renders the document as indented XML with the standard header.
func (c *ComicInfo) Marshal() ([]byte, error) {
	body, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return append([]byte(xml.Header), append(body, '\n')...), nil
}
