package matcher

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/luccast/runarr/pkg/errcodes"
	"github.com/luccast/runarr/pkg/mediafile"
	"github.com/luccast/runarr/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// Catalog is the cached lookup surface the matcher works against.
// *resolvecache.Service satisfies it.
type Catalog interface {
	SearchSeries(ctx context.Context, name string, year int) ([]*models.CatalogSeries, error)
	Series(ctx context.Context, seriesID int) (*models.CatalogSeries, error)
	SeriesIssues(ctx context.Context, seriesID int) ([]models.CatalogIssue, error)
	Issue(ctx context.Context, seriesID, issueID int, number string, annual bool) (*models.CatalogIssue, error)
}

// Service resolves parsed folder and file names against the catalog in two
// stages: series first, then individual issues within the chosen series.
type Service struct {
	catalog Catalog
}

func NewService(catalog Catalog) *Service {
	return &Service{catalog: catalog}
}

// PendingSelection is the suspension point of series resolution: the matcher
// could not pick a single series on its own, so the caller must choose from
// Candidates (ranked best first) and resume via Choose.
type PendingSelection struct {
	Query      string
	Candidates []*models.CatalogSeries
}

// SeriesResolution is the outcome of ResolveSeries. Exactly one of Series or
// Pending is set.
type SeriesResolution struct {
	Series  *models.CatalogSeries
	Pending *PendingSelection
}

// Resolved reports whether a series was selected.
func (r *SeriesResolution) Resolved() bool {
	return r.Series != nil
}

// Choose resumes a pending resolution with the candidate at index i.
func (r *SeriesResolution) Choose(i int) (*models.CatalogSeries, error) {
	if r.Pending == nil {
		return nil, errors.New("resolution is not pending")
	}
	if i < 0 || i >= len(r.Pending.Candidates) {
		return nil, errors.Errorf("candidate index %d out of range", i)
	}
	r.Series = r.Pending.Candidates[i]
	r.Pending = nil
	return r.Series, nil
}

// ResolveSeries resolves a parsed folder candidate to a catalog series.
// Exactly one strong match auto-selects; a single overall candidate with a
// compatible year auto-selects; anything else suspends with a ranked
// candidate list. Zero candidates is a not_found error and the folder's files
// are treated as unresolved.
func (s *Service) ResolveSeries(ctx context.Context, cand mediafile.SeriesCandidate) (*SeriesResolution, error) {
	log := logger.FromContext(ctx)

	results, err := s.catalog.SearchSeries(ctx, cand.NormalizedName, cand.Year)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, errors.WithStack(errcodes.NotFound("series"))
	}

	strong := strongMatches(cand, results)
	if len(strong) == 1 {
		return s.selected(ctx, strong[0])
	}
	if len(strong) == 0 && len(results) == 1 && yearCompatible(cand.Year, results[0].StartYear) {
		return s.selected(ctx, results[0])
	}

	ranked := rank(cand, results)
	log.Info("series resolution needs selection", logger.Data{
		"query":      cand.RawName,
		"candidates": len(ranked),
		"strong":     len(strong),
	})
	return &SeriesResolution{Pending: &PendingSelection{
		Query:      cand.RawName,
		Candidates: ranked,
	}}, nil
}

// selected fetches the full series record for an auto-selected candidate so
// downstream consumers see the same shape as a user-picked one.
func (s *Service) selected(ctx context.Context, series *models.CatalogSeries) (*SeriesResolution, error) {
	full, err := s.catalog.Series(ctx, series.ID)
	if err != nil {
		return nil, err
	}
	return &SeriesResolution{Series: full}, nil
}

var annualTitleRE = regexp.MustCompile(`(?i)\bannual\b`)

// ResolveIssue resolves a parsed file candidate against the issue list of the
// already-pinned series. Annual and regular issues are separate tracks; an
// annual #5 never matches a regular #5.
func (s *Service) ResolveIssue(ctx context.Context, series *models.CatalogSeries, cand mediafile.IssueCandidate) (*models.CatalogIssue, error) {
	issues, err := s.catalog.SeriesIssues(ctx, series.ID)
	if err != nil {
		return nil, err
	}

	want := normalizeNumber(cand.Number)
	for i := range issues {
		sum := &issues[i]
		if annualTitleRE.MatchString(sum.Title) != cand.Annual {
			continue
		}
		if normalizeNumber(sum.Number) != want {
			continue
		}
		return s.catalog.Issue(ctx, series.ID, sum.ID, cand.Number, cand.Annual)
	}

	return nil, errors.WithStack(errcodes.NotFound("issue"))
}

// strongMatches filters candidates whose normalized name equals the parsed
// name and whose start year equals the folder's year. A folder without a year
// never produces a strong match; those auto-select only when the search comes
// back with a single candidate.
func strongMatches(cand mediafile.SeriesCandidate, results []*models.CatalogSeries) []*models.CatalogSeries {
	if cand.Year == 0 {
		return nil
	}
	var strong []*models.CatalogSeries
	for _, res := range results {
		if mediafile.Normalize(res.Name) != cand.NormalizedName {
			continue
		}
		if res.StartYear != cand.Year {
			continue
		}
		strong = append(strong, res)
	}
	return strong
}

// yearCompatible allows one year of slack for cover-date vs release-date
// disagreements between folder names and the catalog.
func yearCompatible(want, got int) bool {
	if want == 0 || got == 0 {
		return true
	}
	diff := want - got
	return diff >= -1 && diff <= 1
}

// rank orders candidates best first: exact name, then year proximity, then
// issue count as a popularity proxy.
func rank(cand mediafile.SeriesCandidate, results []*models.CatalogSeries) []*models.CatalogSeries {
	ranked := make([]*models.CatalogSeries, len(results))
	copy(ranked, results)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]

		aExact := mediafile.Normalize(a.Name) == cand.NormalizedName
		bExact := mediafile.Normalize(b.Name) == cand.NormalizedName
		if aExact != bExact {
			return aExact
		}

		if cand.Year != 0 {
			aDist := yearDistance(cand.Year, a.StartYear)
			bDist := yearDistance(cand.Year, b.StartYear)
			if aDist != bDist {
				return aDist < bDist
			}
		}

		return a.IssueCount > b.IssueCount
	})
	return ranked
}

func yearDistance(want, got int) int {
	if got == 0 {
		// Unknown years sort after any known one.
		return 1 << 16
	}
	if want > got {
		return want - got
	}
	return got - want
}

// normalizeNumber strips leading zeros so "005" and "5" compare equal while
// preserving fractional numbers like "7.1".
func normalizeNumber(num string) string {
	num = strings.TrimSpace(num)
	trimmed := strings.TrimLeft(num, "0")
	if trimmed == "" || strings.HasPrefix(trimmed, ".") {
		trimmed = "0" + trimmed
	}
	return strings.ToLower(trimmed)
}
