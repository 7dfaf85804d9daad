package worker

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/luccast/runarr/pkg/archive"
	"github.com/luccast/runarr/pkg/config"
	"github.com/luccast/runarr/pkg/errcodes"
	"github.com/luccast/runarr/pkg/models"
	"github.com/luccast/runarr/pkg/resolvecache"
	"github.com/luccast/runarr/pkg/selection"
	"github.com/luccast/runarr/pkg/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCatalog serves a single well-known series. Setting name simulates the
// catalog record changing between runs.
type fakeCatalog struct {
	unavailable bool
	name        string
}

func (f *fakeCatalog) seriesName() string {
	if f.name != "" {
		return f.name
	}
	return "Saga"
}

func (f *fakeCatalog) SearchSeries(_ context.Context, _ string) ([]*models.CatalogSeries, error) {
	if f.unavailable {
		return nil, errcodes.CatalogUnavailable("api down")
	}
	return []*models.CatalogSeries{{ID: 56114, Name: f.seriesName(), StartYear: 2012}}, nil
}

func (f *fakeCatalog) FetchSeries(_ context.Context, seriesID int) (*models.CatalogSeries, error) {
	if f.unavailable {
		return nil, errcodes.CatalogUnavailable("api down")
	}
	return &models.CatalogSeries{
		ID:          seriesID,
		Name:        f.seriesName(),
		StartYear:   2012,
		IssueCount:  66,
		Publisher:   "Image",
		Description: "<p>A space opera.</p>",
	}, nil
}

func (f *fakeCatalog) FetchSeriesIssues(_ context.Context, seriesID int) ([]models.CatalogIssue, error) {
	return []models.CatalogIssue{
		{ID: 10, SeriesID: seriesID, Number: "5", Title: "The Will"},
		{ID: 11, SeriesID: seriesID, Number: "6", Title: ""},
	}, nil
}

func (f *fakeCatalog) FetchIssue(_ context.Context, seriesID, issueID int) (*models.CatalogIssue, error) {
	return &models.CatalogIssue{
		ID:        issueID,
		SeriesID:  seriesID,
		Number:    map[int]string{10: "5", 11: "6"}[issueID],
		CoverDate: models.CoverDate{Year: 2012, Month: 8},
		Credits:   []models.Credit{{Name: "Brian K. Vaughan", Role: models.AuthorRoleWriter}},
	}, nil
}

func writeTestCBZ(t *testing.T, path string, entries map[string][]byte) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func newTestOrganizer(t *testing.T, catalog resolvecache.Catalog) *Organizer {
	t.Helper()

	cfg := &config.Config{FolderWorkers: 2, IssuePadWidth: 3}
	cache := resolvecache.NewService(testutils.NewTestDB(t), catalog)
	return New(cfg, cache, &selection.AutoSelector{})
}

func TestRunOrganizesFolder(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()

	src := filepath.Join(in, "Saga (2012)", "Saga 005.cbz")
	writeTestCBZ(t, src, map[string][]byte{"page001.jpg": []byte("page")})

	org := newTestOrganizer(t, &fakeCatalog{})
	summary, err := org.Run(context.Background(), Options{InputDir: in, OutputDir: out})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Organized)
	assert.Empty(t, summary.Failures)

	dest := filepath.Join(out, "Saga (2012)", "Saga V2012 #005 (August 2012).cbz")
	assert.FileExists(t, dest)
	assert.NoFileExists(t, src)

	// Metadata was embedded into the moved file.
	info, err := archive.ParseComicInfo(dest)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "Saga", info.Series)
	assert.Equal(t, "5", info.Number)
	assert.Equal(t, "Brian K. Vaughan", info.Writer)

	// The sidecar pins the series for future runs.
	assert.FileExists(t, filepath.Join(out, "Saga (2012)", "series.json"))
}

func TestRunDryRun(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()

	src := filepath.Join(in, "Saga (2012)", "Saga 005.cbz")
	writeTestCBZ(t, src, map[string][]byte{"page001.jpg": []byte("page")})

	org := newTestOrganizer(t, &fakeCatalog{})
	summary, err := org.Run(context.Background(), Options{InputDir: in, OutputDir: out, DryRun: true})
	require.NoError(t, err)

	// The plan is reported but nothing on disk changed.
	assert.Equal(t, 1, summary.Organized)
	assert.FileExists(t, src)
	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunRoutesUnmatchedToExtras(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()

	matched := filepath.Join(in, "Saga (2012)", "Saga 005.cbz")
	writeTestCBZ(t, matched, map[string][]byte{"page001.jpg": []byte("page")})
	sketchbook := filepath.Join(in, "Saga (2012)", "Saga Sketchbook.cbz")
	writeTestCBZ(t, sketchbook, map[string][]byte{"art001.jpg": []byte("art")})

	org := newTestOrganizer(t, &fakeCatalog{})
	summary, err := org.Run(context.Background(), Options{InputDir: in, OutputDir: out})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Organized)
	assert.Equal(t, 1, summary.Extras)
	assert.FileExists(t, filepath.Join(out, "Saga (2012)", "Extras", "Saga Sketchbook.cbz"))
}

func TestRunSkipsTaggedFiles(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()

	src := filepath.Join(in, "Saga (2012)", "Saga 005.cbz")
	writeTestCBZ(t, src, map[string][]byte{
		"page001.jpg":   []byte("page"),
		"ComicInfo.xml": []byte("<ComicInfo><Series>Saga</Series><Number>5</Number></ComicInfo>"),
	})

	org := newTestOrganizer(t, &fakeCatalog{})
	summary, err := org.Run(context.Background(), Options{InputDir: in, OutputDir: out})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.Organized)
	assert.FileExists(t, src)
}

func TestRunOverwriteReprocessesTaggedFiles(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()

	src := filepath.Join(in, "Saga (2012)", "Saga 005.cbz")
	writeTestCBZ(t, src, map[string][]byte{
		"page001.jpg":   []byte("page"),
		"ComicInfo.xml": []byte("<ComicInfo><Series>Old</Series><Number>99</Number></ComicInfo>"),
	})

	org := newTestOrganizer(t, &fakeCatalog{})
	summary, err := org.Run(context.Background(), Options{InputDir: in, OutputDir: out, Overwrite: true})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Organized)
	assert.Zero(t, summary.Skipped)

	dest := filepath.Join(out, "Saga (2012)", "Saga V2012 #005 (August 2012).cbz")
	info, err := archive.ParseComicInfo(dest)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "Saga", info.Series)
}

func TestRunOverwriteRewritesOrganizedFile(t *testing.T) {
	dir := t.TempDir()

	// Already at its destination but carrying stale metadata.
	path := filepath.Join(dir, "Saga (2012)", "Saga V2012 #005 (August 2012).cbz")
	writeTestCBZ(t, path, map[string][]byte{
		"page001.jpg":   []byte("page"),
		"ComicInfo.xml": []byte("<ComicInfo><Series>Stale</Series><Number>99</Number></ComicInfo>"),
	})

	org := newTestOrganizer(t, &fakeCatalog{})
	summary, err := org.Run(context.Background(), Options{InputDir: dir, OutputDir: dir, Overwrite: true})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Organized)
	assert.Empty(t, summary.Failures)
	assert.FileExists(t, path)

	info, err := archive.ParseComicInfo(path)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "Saga", info.Series)
	assert.Equal(t, "5", info.Number)
}

func TestRunForceRefreshDropsStaleSeries(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()

	catalog := &fakeCatalog{}
	cfg := &config.Config{FolderWorkers: 2, IssuePadWidth: 3}
	cache := resolvecache.NewService(testutils.NewTestDB(t), catalog)
	org := New(cfg, cache, &selection.AutoSelector{})

	// First run warms the cache under the original series name.
	writeTestCBZ(t, filepath.Join(in, "Saga (2012)", "Saga 005.cbz"), map[string][]byte{"p.jpg": []byte("x")})
	_, err := org.Run(context.Background(), Options{InputDir: in, OutputDir: out})
	require.NoError(t, err)

	// The catalog renames the series; force-refresh must pick that up instead
	// of organizing under the cached name.
	catalog.name = "Saga Deluxe"
	writeTestCBZ(t, filepath.Join(in, "Saga (2012)", "Saga 006.cbz"), map[string][]byte{"p.jpg": []byte("x")})
	summary, err := org.Run(context.Background(), Options{InputDir: in, OutputDir: out, ForceRefresh: true})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Organized)
	assert.FileExists(t, filepath.Join(out, "Saga Deluxe (2012)", "Saga Deluxe V2012 #006 (August 2012).cbz"))
}

func TestRunCatalogOutageAbortsQueue(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()

	writeTestCBZ(t, filepath.Join(in, "Saga (2012)", "Saga 005.cbz"), map[string][]byte{"p.jpg": []byte("x")})

	org := newTestOrganizer(t, &fakeCatalog{unavailable: true})
	summary, err := org.Run(context.Background(), Options{InputDir: in, OutputDir: out})
	require.NoError(t, err)

	require.NotEmpty(t, summary.Failures)
	assert.ErrorIs(t, summary.Failures[0].Err, errcodes.CatalogUnavailable(""))
	assert.Zero(t, summary.Organized)
}

func TestRunSingleFolderMode(t *testing.T) {
	library := t.TempDir()
	in := filepath.Join(library, "Saga (2012)")
	out := t.TempDir()

	src := filepath.Join(in, "Saga 005.cbz")
	writeTestCBZ(t, src, map[string][]byte{"page001.jpg": []byte("page")})

	org := newTestOrganizer(t, &fakeCatalog{})
	summary, err := org.Run(context.Background(), Options{InputDir: in, OutputDir: out, SingleFolder: true})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Organized)
	assert.FileExists(t, filepath.Join(out, "Saga (2012)", "Saga V2012 #005 (August 2012).cbz"))
	assert.NoFileExists(t, src)
}

func TestRunLooseFilesGoToExtras(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()

	loose := filepath.Join(in, "random.cbz")
	writeTestCBZ(t, loose, map[string][]byte{"p.jpg": []byte("x")})

	org := newTestOrganizer(t, &fakeCatalog{})
	summary, err := org.Run(context.Background(), Options{InputDir: in, OutputDir: out})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Extras)
	assert.FileExists(t, filepath.Join(out, "Extras", "random.cbz"))
}
