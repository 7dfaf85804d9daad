package organizer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/luccast/runarr/pkg/errcodes"
	"github.com/luccast/runarr/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sagaSeries() *models.CatalogSeries {
	return &models.CatalogSeries{ID: 56114, Name: "Saga", StartYear: 2012}
}

func sagaMatch(path, number string) *models.ResolvedMatch {
	return &models.ResolvedMatch{
		Path:   path,
		Series: sagaSeries(),
		Issue: &models.CatalogIssue{
			Number:    number,
			CoverDate: models.CoverDate{Year: 2012, Month: 8},
		},
	}
}

func TestFolderName(t *testing.T) {
	assert.Equal(t, "Saga (2012)", FolderName(sagaSeries()))
	assert.Equal(t, "Saga", FolderName(&models.CatalogSeries{Name: "Saga"}))
	assert.Equal(t, "What If (1977)", FolderName(&models.CatalogSeries{Name: "What If?", StartYear: 1977}))
}

func TestFileName(t *testing.T) {
	match := sagaMatch("/in/saga 5.cbz", "5")
	assert.Equal(t, "Saga V2012 #005 (August 2012).cbz", FileName(match, 3))

	match.Annual = true
	assert.Equal(t, "Saga V2012 Annual #005 (August 2012).cbz", FileName(match, 3))

	match.Annual = false
	match.Issue.Number = "7.1"
	assert.Equal(t, "Saga V2012 #007.1 (August 2012).cbz", FileName(match, 3))

	match.Issue.CoverDate = models.CoverDate{Year: 2013}
	assert.Equal(t, "Saga V2012 #007.1 (2013).cbz", FileName(match, 3))

	match.Issue.CoverDate = models.CoverDate{}
	assert.Equal(t, "Saga V2012 #007.1.cbz", FileName(match, 3))
}

func TestFileNameUsesSeriesYearNotCoverYear(t *testing.T) {
	match := sagaMatch("/in/saga 60.cbz", "60")
	match.Issue.CoverDate = models.CoverDate{Year: 2022, Month: 7}
	assert.Equal(t, "Saga V2012 #060 (July 2022).cbz", FileName(match, 3))
}

func TestPlan(t *testing.T) {
	out := t.TempDir()
	ops, errs := Plan(Request{
		OutputDir: out,
		Series:    sagaSeries(),
		Matches: []*models.ResolvedMatch{
			sagaMatch("/in/Saga (2012)/saga 5.cbz", "5"),
			sagaMatch("/in/Saga (2012)/saga 6.cbz", "6"),
		},
		Unresolved: []string{"/in/Saga (2012)/cover scan.jpg"},
	})
	require.Empty(t, errs)
	require.Len(t, ops, 3)

	// Sorted by source path.
	assert.Equal(t, "/in/Saga (2012)/cover scan.jpg", ops[0].Source)
	assert.Equal(t, filepath.Join(out, "Saga (2012)", "Extras", "cover scan.jpg"), ops[0].Dest)
	assert.Equal(t, models.OperationKindExtractExtra, ops[0].Kind)

	assert.Equal(t, filepath.Join(out, "Saga (2012)", "Saga V2012 #005 (August 2012).cbz"), ops[1].Dest)
	assert.Equal(t, models.OperationKindMove, ops[1].Kind)
}

func TestPlanDropsCollisions(t *testing.T) {
	out := t.TempDir()
	ops, errs := Plan(Request{
		OutputDir: out,
		Series:    sagaSeries(),
		Matches: []*models.ResolvedMatch{
			sagaMatch("/in/a/saga 5.cbz", "5"),
			sagaMatch("/in/b/saga 05.cbz", "5"),
			sagaMatch("/in/a/saga 6.cbz", "6"),
		},
	})

	// Both colliding operations are dropped, the clean one survives.
	require.Len(t, errs, 2)
	for _, err := range errs {
		assert.ErrorIs(t, err, errcodes.DestinationConflict(""))
	}
	require.Len(t, ops, 1)
	assert.Equal(t, "/in/a/saga 6.cbz", ops[0].Source)
}

func TestPlanDetectsExistingDestination(t *testing.T) {
	out := t.TempDir()
	destDir := filepath.Join(out, "Saga (2012)")
	require.NoError(t, os.MkdirAll(destDir, 0o755))
	existing := filepath.Join(destDir, "Saga V2012 #005 (August 2012).cbz")
	require.NoError(t, os.WriteFile(existing, []byte("already here"), 0o644))

	ops, errs := Plan(Request{
		OutputDir: out,
		Series:    sagaSeries(),
		Matches:   []*models.ResolvedMatch{sagaMatch("/in/saga 5.cbz", "5")},
	})
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], errcodes.DestinationConflict(""))
	assert.Empty(t, ops)
}

func TestPlanSkipsAlreadyOrganized(t *testing.T) {
	out := t.TempDir()
	match := sagaMatch(filepath.Join(out, "Saga (2012)", "Saga V2012 #005 (August 2012).cbz"), "5")

	ops, errs := Plan(Request{
		OutputDir: out,
		Series:    sagaSeries(),
		Matches:   []*models.ResolvedMatch{match},
	})
	require.Empty(t, errs)
	assert.Empty(t, ops)
}

func TestPlanOverwriteEmitsInPlaceOperation(t *testing.T) {
	out := t.TempDir()
	path := filepath.Join(out, "Saga (2012)", "Saga V2012 #005 (August 2012).cbz")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("pages"), 0o644))

	ops, errs := Plan(Request{
		OutputDir: out,
		Series:    sagaSeries(),
		Matches:   []*models.ResolvedMatch{sagaMatch(path, "5")},
		Overwrite: true,
	})
	require.Empty(t, errs)
	require.Len(t, ops, 1)
	assert.Equal(t, models.OperationKindRename, ops[0].Kind)
	assert.Equal(t, path, ops[0].Source)
	assert.Equal(t, path, ops[0].Dest)

	// Applying the in-place operation touches nothing but marks it applied so
	// metadata gets rewritten.
	execErrs := Execute(context.Background(), ops, false)
	require.Empty(t, execErrs)
	assert.True(t, ops[0].Applied)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "pages", string(content))
}

func TestExecute(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()

	src := filepath.Join(in, "saga 5.cbz")
	require.NoError(t, os.WriteFile(src, []byte("pages"), 0o644))

	dest := filepath.Join(out, "Saga (2012)", "Saga V2012 #005 (August 2012).cbz")
	ops := []*models.FileOperation{{Source: src, Dest: dest, Kind: models.OperationKindMove}}

	errs := Execute(context.Background(), ops, false)
	require.Empty(t, errs)

	assert.True(t, ops[0].Applied)
	assert.NoFileExists(t, src)
	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "pages", string(content))
}

func TestExecuteDryRun(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()

	src := filepath.Join(in, "saga 5.cbz")
	require.NoError(t, os.WriteFile(src, []byte("pages"), 0o644))

	dest := filepath.Join(out, "Saga (2012)", "Saga V2012 #005 (August 2012).cbz")
	ops := []*models.FileOperation{{Source: src, Dest: dest, Kind: models.OperationKindMove}}

	errs := Execute(context.Background(), ops, true)
	require.Empty(t, errs)

	// Nothing moved, nothing created.
	assert.False(t, ops[0].Applied)
	assert.FileExists(t, src)
	assert.NoFileExists(t, dest)
	assert.NoDirExists(t, filepath.Join(out, "Saga (2012)"))
}

func TestExecuteNeverOverwrites(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()

	src := filepath.Join(in, "saga 5.cbz")
	require.NoError(t, os.WriteFile(src, []byte("new"), 0o644))

	dest := filepath.Join(out, "existing.cbz")
	require.NoError(t, os.WriteFile(dest, []byte("old"), 0o644))

	ops := []*models.FileOperation{{Source: src, Dest: dest, Kind: models.OperationKindMove}}
	errs := Execute(context.Background(), ops, false)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], errcodes.DestinationConflict(""))

	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "old", string(content))
	assert.FileExists(t, src)
}

func TestExecuteIdempotent(t *testing.T) {
	out := t.TempDir()

	dest := filepath.Join(out, "Saga V2012 #005.cbz")
	require.NoError(t, os.WriteFile(dest, []byte("pages"), 0o644))

	// Source already moved by a previous run.
	ops := []*models.FileOperation{{
		Source: filepath.Join(out, "gone.cbz"),
		Dest:   dest,
		Kind:   models.OperationKindMove,
	}}
	errs := Execute(context.Background(), ops, false)
	require.Empty(t, errs)
	assert.True(t, ops[0].Applied)
}
