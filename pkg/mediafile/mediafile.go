package mediafile

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// SeriesCandidate is the parsed form of a series folder name. Immutable once
// parsed; a folder that doesn't match the convention yields a zero-confidence
// candidate instead of an error.
type SeriesCandidate struct {
	RawName        string
	NormalizedName string
	VolumeTag      string
	Year           int
	Confidence     float64
}

// IssueCandidate is the best-effort issue number parsed from a file name.
type IssueCandidate struct {
	Number string
	Annual bool
}

func (c SeriesCandidate) String() string {
	if c.Year > 0 {
		return fmt.Sprintf("%s (%d)", c.RawName, c.Year)
	}
	return c.RawName
}

var (
	// Series folder convention: "SeriesName [vVersion] (Year)".
	seriesFolderRE = regexp.MustCompile(`^(.*?)\s*(?:\[(v[^\]]+)\]\s*)?\((\d{4})\)\s*$`)

	parentheticalRE = regexp.MustCompile(`\(.*?\)`)
	hashNumberRE    = regexp.MustCompile(`#(\d+)`)
	standaloneNumRE = regexp.MustCompile(`\b\d+\b`)
	whitespaceRE    = regexp.MustCompile(`\s+`)
	annualRE        = regexp.MustCompile(`(?i)\bannual\b`)
)

// ParseSeriesFolder parses a series folder name into a candidate. Folders
// that don't match the convention fail softly: the raw name is kept but
// Confidence is zero and Year is unset, so the caller reports instead of
// processing.
func ParseSeriesFolder(folderName string) SeriesCandidate {
	matches := seriesFolderRE.FindStringSubmatch(folderName)
	if matches == nil || strings.TrimSpace(matches[1]) == "" {
		return SeriesCandidate{
			RawName:        folderName,
			NormalizedName: Normalize(folderName),
		}
	}

	name := strings.TrimSpace(matches[1])
	year, _ := strconv.Atoi(matches[3])

	return SeriesCandidate{
		RawName:        name,
		NormalizedName: Normalize(name),
		VolumeTag:      matches[2],
		Year:           year,
		Confidence:     1,
	}
}

// ParseIssueFile extracts an issue number and annual flag from a file name.
// Parenthesized chunks are stripped first so release years and scan groups
// don't shadow the issue number. Numbers prefixed with '#' win; otherwise the
// last standalone number that isn't a plausible year (or the series year) is
// used.
func ParseIssueFile(filename string, cand SeriesCandidate) (IssueCandidate, bool) {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	annual := annualRE.MatchString(base)

	clean := parentheticalRE.ReplaceAllString(base, "")

	if m := hashNumberRE.FindStringSubmatch(clean); m != nil {
		return IssueCandidate{Number: trimLeadingZeros(m[1]), Annual: annual}, true
	}

	var nonYear []string
	for _, num := range standaloneNumRE.FindAllString(clean, -1) {
		if looksLikeYear(num) {
			continue
		}
		if cand.Year > 0 && num == strconv.Itoa(cand.Year) {
			continue
		}
		nonYear = append(nonYear, num)
	}
	if len(nonYear) == 0 {
		return IssueCandidate{Annual: annual}, false
	}

	return IssueCandidate{Number: trimLeadingZeros(nonYear[len(nonYear)-1]), Annual: annual}, true
}

// Normalize lowercases and collapses whitespace so that cache keys and name
// comparisons are immune to case and spacing variance.
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return whitespaceRE.ReplaceAllString(name, " ")
}

func looksLikeYear(num string) bool {
	return len(num) == 4 && (strings.HasPrefix(num, "19") || strings.HasPrefix(num, "20"))
}

func trimLeadingZeros(num string) string {
	trimmed := strings.TrimLeft(num, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}
