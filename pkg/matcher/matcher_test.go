package matcher

import (
	"context"
	"testing"

	"github.com/luccast/runarr/pkg/errcodes"
	"github.com/luccast/runarr/pkg/mediafile"
	"github.com/luccast/runarr/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	series []*models.CatalogSeries
	issues []models.CatalogIssue
	full   map[int]*models.CatalogIssue
}

func (f *fakeCatalog) SearchSeries(_ context.Context, _ string, _ int) ([]*models.CatalogSeries, error) {
	return f.series, nil
}

func (f *fakeCatalog) Series(_ context.Context, seriesID int) (*models.CatalogSeries, error) {
	for _, s := range f.series {
		if s.ID == seriesID {
			return s, nil
		}
	}
	return nil, errcodes.NotFound("series")
}

func (f *fakeCatalog) SeriesIssues(_ context.Context, _ int) ([]models.CatalogIssue, error) {
	return f.issues, nil
}

func (f *fakeCatalog) Issue(_ context.Context, _, issueID int, _ string, _ bool) (*models.CatalogIssue, error) {
	issue, ok := f.full[issueID]
	if !ok {
		return nil, errcodes.NotFound("issue")
	}
	return issue, nil
}

func sagaCandidate() mediafile.SeriesCandidate {
	return mediafile.SeriesCandidate{
		RawName:        "Saga (2012)",
		NormalizedName: "saga",
		Year:           2012,
		Confidence:     1,
	}
}

func TestResolveSeriesSingleStrongMatch(t *testing.T) {
	svc := NewService(&fakeCatalog{series: []*models.CatalogSeries{
		{ID: 56114, Name: "Saga", StartYear: 2012},
		{ID: 999, Name: "Saga of the Swamp Thing", StartYear: 1982},
	}})

	res, err := svc.ResolveSeries(context.Background(), sagaCandidate())
	require.NoError(t, err)
	require.True(t, res.Resolved())
	assert.Equal(t, 56114, res.Series.ID)
}

func TestResolveSeriesSingleLooseMatch(t *testing.T) {
	// One candidate, name differs, year off by one: still auto-selected.
	svc := NewService(&fakeCatalog{series: []*models.CatalogSeries{
		{ID: 42, Name: "Saga (Image)", StartYear: 2011},
	}})

	res, err := svc.ResolveSeries(context.Background(), sagaCandidate())
	require.NoError(t, err)
	require.True(t, res.Resolved())
	assert.Equal(t, 42, res.Series.ID)
}

func TestResolveSeriesSuspendsOnAmbiguity(t *testing.T) {
	svc := NewService(&fakeCatalog{series: []*models.CatalogSeries{
		{ID: 1, Name: "Saga", StartYear: 2012, IssueCount: 66},
		{ID: 2, Name: "Saga", StartYear: 2012, IssueCount: 3},
	}})

	res, err := svc.ResolveSeries(context.Background(), sagaCandidate())
	require.NoError(t, err)
	require.False(t, res.Resolved())
	require.NotNil(t, res.Pending)
	require.Len(t, res.Pending.Candidates, 2)
	// Ties on name and year rank the bigger series first.
	assert.Equal(t, 1, res.Pending.Candidates[0].ID)

	chosen, err := res.Choose(1)
	require.NoError(t, err)
	assert.Equal(t, 2, chosen.ID)
	assert.True(t, res.Resolved())
}

func TestResolveSeriesRanking(t *testing.T) {
	svc := NewService(&fakeCatalog{series: []*models.CatalogSeries{
		{ID: 1, Name: "Saga of the Swamp Thing", StartYear: 1982},
		{ID: 2, Name: "Saga", StartYear: 2012},
		{ID: 3, Name: "Saga Special", StartYear: 2012},
	}})

	cand := sagaCandidate()
	cand.Year = 0 // no year in the folder name, nothing is strong

	res, err := svc.ResolveSeries(context.Background(), cand)
	require.NoError(t, err)
	require.False(t, res.Resolved())
	require.NotNil(t, res.Pending)
	assert.Equal(t, 2, res.Pending.Candidates[0].ID)
}

func TestResolveSeriesNoYearSingleResult(t *testing.T) {
	// A yearless folder still auto-selects when the search is unambiguous.
	svc := NewService(&fakeCatalog{series: []*models.CatalogSeries{
		{ID: 56114, Name: "Saga", StartYear: 2012},
	}})

	cand := sagaCandidate()
	cand.Year = 0

	res, err := svc.ResolveSeries(context.Background(), cand)
	require.NoError(t, err)
	require.True(t, res.Resolved())
	assert.Equal(t, 56114, res.Series.ID)
}

func TestResolveSeriesNotFound(t *testing.T) {
	svc := NewService(&fakeCatalog{})

	_, err := svc.ResolveSeries(context.Background(), sagaCandidate())
	require.Error(t, err)
	assert.ErrorIs(t, err, errcodes.NotFound(""))
}

func TestResolveSeriesChooseOutOfRange(t *testing.T) {
	svc := NewService(&fakeCatalog{series: []*models.CatalogSeries{
		{ID: 1, Name: "Saga", StartYear: 2012},
		{ID: 2, Name: "Saga", StartYear: 2012},
	}})

	res, err := svc.ResolveSeries(context.Background(), sagaCandidate())
	require.NoError(t, err)
	require.NotNil(t, res.Pending)

	_, err = res.Choose(5)
	require.Error(t, err)
}

func TestResolveIssueTracks(t *testing.T) {
	series := &models.CatalogSeries{ID: 56114, Name: "Saga", StartYear: 2012}
	catalog := &fakeCatalog{
		series: []*models.CatalogSeries{series},
		issues: []models.CatalogIssue{
			{ID: 10, Number: "5", Title: "The Will"},
			{ID: 11, Number: "5", Title: "Annual"},
			{ID: 12, Number: "005", Title: ""},
		},
		full: map[int]*models.CatalogIssue{
			10: {ID: 10, Number: "5", Title: "The Will"},
			11: {ID: 11, Number: "5", Title: "Annual"},
		},
	}
	svc := NewService(catalog)
	ctx := context.Background()

	regular, err := svc.ResolveIssue(ctx, series, mediafile.IssueCandidate{Number: "5"})
	require.NoError(t, err)
	assert.Equal(t, 10, regular.ID)

	annual, err := svc.ResolveIssue(ctx, series, mediafile.IssueCandidate{Number: "5", Annual: true})
	require.NoError(t, err)
	assert.Equal(t, 11, annual.ID)
}

func TestResolveIssuePaddedNumbers(t *testing.T) {
	series := &models.CatalogSeries{ID: 56114, Name: "Saga", StartYear: 2012}
	catalog := &fakeCatalog{
		series: []*models.CatalogSeries{series},
		issues: []models.CatalogIssue{{ID: 10, Number: "5", Title: ""}},
		full:   map[int]*models.CatalogIssue{10: {ID: 10, Number: "5"}},
	}
	svc := NewService(catalog)

	issue, err := svc.ResolveIssue(context.Background(), series, mediafile.IssueCandidate{Number: "005"})
	require.NoError(t, err)
	assert.Equal(t, 10, issue.ID)
}

func TestResolveIssueNotFound(t *testing.T) {
	series := &models.CatalogSeries{ID: 56114, Name: "Saga", StartYear: 2012}
	svc := NewService(&fakeCatalog{series: []*models.CatalogSeries{series}})

	_, err := svc.ResolveIssue(context.Background(), series, mediafile.IssueCandidate{Number: "99"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errcodes.NotFound(""))
}

func TestNormalizeNumber(t *testing.T) {
	assert.Equal(t, "5", normalizeNumber("005"))
	assert.Equal(t, "0", normalizeNumber("0"))
	assert.Equal(t, "0.5", normalizeNumber("0.5"))
	assert.Equal(t, "7.1", normalizeNumber("07.1"))
}
