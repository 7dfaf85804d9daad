package organizer

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/luccast/runarr/pkg/models"
)

// FolderName returns the destination folder for a series: "Series (Year)".
func FolderName(series *models.CatalogSeries) string {
	name := sanitizeForFilename(series.Name)
	if name == "" {
		name = "Unknown"
	}
	if series.StartYear != 0 {
		return fmt.Sprintf("%s (%d)", name, series.StartYear)
	}
	return name
}

// FileName returns the destination filename for a resolved issue:
// "Series V<year>[ Annual] #<padded> (<Month Year>).cbz".
func FileName(match *models.ResolvedMatch, padWidth int) string {
	series := match.Series
	issue := match.Issue

	var b strings.Builder
	b.WriteString(sanitizeForFilename(series.Name))
	if series.StartYear != 0 {
		fmt.Fprintf(&b, " V%d", series.StartYear)
	}
	if match.Annual {
		b.WriteString(" Annual")
	}
	fmt.Fprintf(&b, " #%s", padIssueNumber(issue.Number, padWidth))

	if issue.CoverDate.Year != 0 {
		if issue.CoverDate.Month != 0 {
			fmt.Fprintf(&b, " (%s %d)", time.Month(issue.CoverDate.Month), issue.CoverDate.Year)
		} else {
			fmt.Fprintf(&b, " (%d)", issue.CoverDate.Year)
		}
	}

	b.WriteString(".cbz")
	return b.String()
}

// padIssueNumber zero-pads the integer part of an issue number, leaving any
// fractional part intact: "5" → "005", "7.1" → "007.1".
func padIssueNumber(number string, width int) string {
	number = strings.TrimSpace(number)
	intPart, fracPart, hasFrac := strings.Cut(number, ".")
	for len(intPart) < width {
		intPart = "0" + intPart
	}
	if hasFrac {
		return intPart + "." + fracPart
	}
	return intPart
}

var (
	doubleQuoteRE   = regexp.MustCompile("[“”]")
	singleQuoteRE   = regexp.MustCompile("[‘’]")
	invalidCharsRE  = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)
	multiSpaceRE    = regexp.MustCompile(`\s+`)
	maxFilenameBase = 200
)

// sanitizeForFilename strips characters that are unsafe in filenames across
// filesystems and collapses the whitespace left behind.
func sanitizeForFilename(name string) string {
	name = doubleQuoteRE.ReplaceAllString(name, `"`)
	name = singleQuoteRE.ReplaceAllString(name, `'`)
	name = invalidCharsRE.ReplaceAllString(name, "")
	name = multiSpaceRE.ReplaceAllString(name, " ")
	name = strings.Trim(name, " .")

	if len(name) > maxFilenameBase {
		name = strings.Trim(name[:maxFilenameBase], " .")
	}
	return name
}
