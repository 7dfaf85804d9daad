package worker

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/luccast/runarr/pkg/archive"
	"github.com/luccast/runarr/pkg/comicinfo"
	"github.com/luccast/runarr/pkg/config"
	"github.com/luccast/runarr/pkg/errcodes"
	"github.com/luccast/runarr/pkg/matcher"
	"github.com/luccast/runarr/pkg/mediafile"
	"github.com/luccast/runarr/pkg/models"
	"github.com/luccast/runarr/pkg/organizer"
	"github.com/luccast/runarr/pkg/resolvecache"
	"github.com/luccast/runarr/pkg/selection"
	"github.com/luccast/runarr/pkg/seriesjson"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"golang.org/x/sync/errgroup"
)

// Organizer drives a full run: scan, resolve, plan, execute, embed.
type Organizer struct {
	config   *config.Config
	cache    *resolvecache.Service
	matcher  *matcher.Service
	selector selection.Selector

	// now is swappable in tests.
	now func() time.Time
}

func New(cfg *config.Config, cache *resolvecache.Service, selector selection.Selector) *Organizer {
	return &Organizer{
		config:   cfg,
		cache:    cache,
		matcher:  matcher.NewService(cache),
		selector: selector,
		now:      time.Now,
	}
}

// Options are the per-run knobs from the CLI.
type Options struct {
	InputDir  string
	OutputDir string
	// DryRun plans and reports without touching the filesystem.
	DryRun bool
	// ForceRefresh invalidates cached catalog entries before resolving.
	ForceRefresh bool
	// Overwrite re-resolves files that already carry embedded metadata.
	Overwrite bool
	// SingleFolder treats InputDir itself as one series folder instead of a
	// library root of series folders.
	SingleFolder bool
}

// Run processes every series folder under InputDir. Independent folders run
// in parallel; files within a folder are handled strictly in order. Per-file
// and per-folder errors are recorded in the summary and never abort the run;
// a catalog outage does abort the remaining queue.
func (o *Organizer) Run(ctx context.Context, opts Options) (*Summary, error) {
	log := logger.FromContext(ctx)

	folders, err := o.scan(ctx, opts.InputDir, opts.SingleFolder)
	if err != nil {
		return nil, err
	}
	log.Info("scan complete", logger.Data{"input": opts.InputDir, "folders": len(folders)})

	summary := &Summary{}
	var mu sync.Mutex

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(o.config.FolderWorkers)

	for _, folder := range folders {
		group.Go(func() error {
			result, err := o.processFolder(groupCtx, folder, opts)

			mu.Lock()
			defer mu.Unlock()
			if result != nil {
				summary.merge(result)
			}
			if err != nil {
				if errors.Is(err, errcodes.CatalogUnavailable("")) {
					// Abort the queue: every other folder would fail the
					// same way.
					summary.fail(folder.path, err)
					return err
				}
				summary.fail(folder.path, err)
			}
			return nil
		})
	}

	err = group.Wait()
	if err != nil && !errors.Is(err, errcodes.CatalogUnavailable("")) {
		return summary, err
	}
	return summary, nil
}

// folderGroup is one directory's worth of comic files, in sorted order. A
// group with an empty name holds loose files at the input root.
type folderGroup struct {
	name  string
	path  string
	files []string
}

var comicExtensions = map[string]bool{
	".cbz": true,
	".cbr": true,
}

// scan walks the input directory grouping comic files by their top-level
// series folder. In single-folder mode every file belongs to the input
// directory's own group.
func (o *Organizer) scan(ctx context.Context, inputDir string, singleFolder bool) ([]folderGroup, error) {
	groups := map[string]*folderGroup{}

	if singleFolder {
		group := &folderGroup{name: filepath.Base(inputDir), path: inputDir}
		err := filepath.WalkDir(inputDir, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return errors.WithStack(err)
			}
			if d.IsDir() || !comicExtensions[strings.ToLower(filepath.Ext(path))] {
				return nil
			}
			group.files = append(group.files, path)
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Strings(group.files)
		return []folderGroup{*group}, nil
	}

	err := filepath.WalkDir(inputDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return errors.WithStack(err)
		}
		if d.IsDir() {
			return nil
		}
		if !comicExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		rel, err := filepath.Rel(inputDir, path)
		if err != nil {
			return errors.WithStack(err)
		}

		name := ""
		if dir, _ := filepath.Split(rel); dir != "" {
			name = strings.Split(filepath.ToSlash(dir), "/")[0]
		}

		group, ok := groups[name]
		if !ok {
			group = &folderGroup{name: name, path: filepath.Join(inputDir, name)}
			groups[name] = group
		}
		group.files = append(group.files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	folders := make([]folderGroup, 0, len(groups))
	for _, group := range groups {
		sort.Strings(group.files)
		folders = append(folders, *group)
	}
	sort.Slice(folders, func(i, j int) bool {
		return folders[i].name < folders[j].name
	})
	return folders, nil
}

// processFolder runs the full pipeline for one series folder. The returned
// error is only non-nil for failures that should surface beyond the summary.
func (o *Organizer) processFolder(ctx context.Context, folder folderGroup, opts Options) (*Summary, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	log := logger.FromContext(ctx).ID(id.String()).Root(logger.Data{"folder": folder.name})
	ctx = log.WithContext(ctx)

	result := &Summary{}

	// Loose files at the input root have no series context; they go straight
	// to the extras plan.
	if folder.name == "" {
		o.planAndExecute(ctx, organizer.Request{
			OutputDir:  opts.OutputDir,
			Unresolved: folder.files,
			PadWidth:   o.config.IssuePadWidth,
		}, nil, opts.DryRun, result)
		return result, nil
	}

	series, err := o.resolveSeries(ctx, folder, opts)
	if err != nil {
		return result, err
	}

	matches, unresolved, err := o.resolveFiles(ctx, folder, series, opts, result)
	if err != nil {
		return result, err
	}

	if err := o.writeSidecar(ctx, series, matches, opts); err != nil {
		log.Err(err).Error("series sidecar write failed")
		result.fail(folder.path, err)
	}

	docs := o.composeAll(ctx, matches)

	o.planAndExecute(ctx, organizer.Request{
		OutputDir:  opts.OutputDir,
		Series:     series,
		Matches:    matches,
		Unresolved: unresolved,
		PadWidth:   o.config.IssuePadWidth,
		Overwrite:  opts.Overwrite,
	}, docs, opts.DryRun, result)

	return result, nil
}

// resolveSeries pins the folder's series: a sidecar pin wins, then the
// matcher, then the interactive selector for anything ambiguous.
func (o *Organizer) resolveSeries(ctx context.Context, folder folderGroup, opts Options) (*models.CatalogSeries, error) {
	log := logger.FromContext(ctx)

	// A sidecar from a previous run pins the series without a search.
	if doc, err := seriesjson.Load(folder.path); err == nil && doc != nil && doc.Metadata.ComicID != 0 {
		log.Info("series pinned by sidecar", logger.Data{"series_id": doc.Metadata.ComicID})
		if opts.ForceRefresh {
			if err := o.cache.InvalidateSeries(ctx, doc.Metadata.ComicID); err != nil {
				return nil, err
			}
		}
		return o.cache.Series(ctx, doc.Metadata.ComicID)
	}

	cand := mediafile.ParseSeriesFolder(folder.name)
	if cand.Confidence == 0 {
		return nil, errors.WithStack(errcodes.ParseMismatch(folder.name))
	}

	if opts.ForceRefresh {
		if err := o.cache.InvalidateSearch(ctx, cand.NormalizedName); err != nil {
			return nil, err
		}
	}

	resolution, err := o.matcher.ResolveSeries(ctx, cand)
	if err != nil {
		return nil, err
	}
	if !resolution.Resolved() {
		pending := resolution.Pending
		idx, err := o.selector.Choose(ctx, pending.Query, pending.Candidates)
		if err != nil {
			if errors.Is(err, selection.ErrNoSelection) {
				return nil, errors.WithStack(errcodes.AmbiguousMatch(pending.Query, len(pending.Candidates)))
			}
			return nil, err
		}
		if _, err := resolution.Choose(idx); err != nil {
			return nil, err
		}
	}

	// Force-refresh must drop the cached series scope before the record the
	// run proceeds on is fetched, or stale names and issue lists leak through.
	if opts.ForceRefresh {
		if err := o.cache.InvalidateSeries(ctx, resolution.Series.ID); err != nil {
			return nil, err
		}
	}
	return o.cache.Series(ctx, resolution.Series.ID)
}

// resolveFiles walks the folder's files in order: convert, skip-check,
// resolve. Files that cannot be matched are returned as unresolved for the
// extras plan; a catalog outage propagates as an error.
func (o *Organizer) resolveFiles(ctx context.Context, folder folderGroup, series *models.CatalogSeries, opts Options, result *Summary) ([]*models.ResolvedMatch, []string, error) {
	log := logger.FromContext(ctx)

	cand := mediafile.ParseSeriesFolder(folder.name)

	var matches []*models.ResolvedMatch
	var unresolved []string
	for _, path := range folder.files {
		path, converted, err := o.maybeConvert(ctx, path, opts.DryRun)
		if err != nil {
			result.fail(path, err)
			continue
		}
		if converted {
			result.Converted++
		}

		if !opts.Overwrite && !opts.ForceRefresh && o.alreadyTagged(path) {
			log.Info("skipping file with embedded metadata", logger.Data{"path": path})
			result.Skipped++
			continue
		}

		issueCand, ok := mediafile.ParseIssueFile(filepath.Base(path), cand)
		if !ok {
			log.Warn("no issue number in filename", logger.Data{"path": path})
			unresolved = append(unresolved, path)
			continue
		}

		issue, err := o.matcher.ResolveIssue(ctx, series, issueCand)
		if err != nil {
			if errors.Is(err, errcodes.CatalogUnavailable("")) {
				return nil, nil, err
			}
			if errors.Is(err, errcodes.NotFound("")) {
				log.Warn("issue not in catalog", logger.Data{"path": path, "number": issueCand.Number, "annual": issueCand.Annual})
				unresolved = append(unresolved, path)
				continue
			}
			result.fail(path, err)
			continue
		}

		matches = append(matches, &models.ResolvedMatch{
			Path:   path,
			Series: series,
			Issue:  issue,
			Annual: issueCand.Annual,
		})
	}
	return matches, unresolved, nil
}

// maybeConvert repacks a cbr into a cbz next to it. In dry-run mode the file
// is left alone and downstream planning proceeds against the original path.
func (o *Organizer) maybeConvert(ctx context.Context, path string, dryRun bool) (string, bool, error) {
	if strings.ToLower(filepath.Ext(path)) != ".cbr" {
		return path, false, nil
	}

	log := logger.FromContext(ctx)
	dst := strings.TrimSuffix(path, filepath.Ext(path)) + ".cbz"

	if dryRun {
		log.Info("would convert archive", logger.Data{"source": path, "dest": dst})
		return path, true, nil
	}

	src, err := archive.OpenReader(path)
	if err != nil {
		return path, false, errors.WithStack(errcodes.ConversionFailure(path))
	}
	defer src.Close()

	if err := archive.Convert(ctx, src, path, dst, nil); err != nil {
		return path, false, err
	}
	return dst, true, nil
}

// alreadyTagged reports whether the file carries embedded metadata complete
// enough to treat it as previously organized.
func (o *Organizer) alreadyTagged(path string) bool {
	if strings.ToLower(filepath.Ext(path)) != ".cbz" {
		return false
	}
	info, err := archive.ParseComicInfo(path)
	if err != nil || info == nil {
		return false
	}
	return info.Series != "" && info.Number != ""
}

// writeSidecar generates series.json in the destination series folder.
func (o *Organizer) writeSidecar(ctx context.Context, series *models.CatalogSeries, matches []*models.ResolvedMatch, opts Options) error {
	var lastCover models.CoverDate
	for _, match := range matches {
		if coverAfter(match.Issue.CoverDate, lastCover) {
			lastCover = match.Issue.CoverDate
		}
	}

	doc := seriesjson.Generate(series, lastCover, o.now())
	dir := filepath.Join(opts.OutputDir, organizer.FolderName(series))
	return seriesjson.Write(ctx, dir, doc, opts.DryRun)
}

// composeAll builds the ComicInfo document for every match, keyed by source
// path. Composition warnings are logged, never fatal.
func (o *Organizer) composeAll(ctx context.Context, matches []*models.ResolvedMatch) map[string][]byte {
	log := logger.FromContext(ctx)

	docs := map[string][]byte{}
	for _, match := range matches {
		info, warnings := comicinfo.Compose(match)
		for _, warning := range warnings {
			log.Warn(warning, logger.Data{"path": match.Path})
		}

		doc, err := info.Marshal()
		if err != nil {
			log.Err(err).Error("comicinfo marshal failed", logger.Data{"path": match.Path})
			continue
		}
		docs[match.Path] = doc
	}
	return docs
}

// planAndExecute runs the plan, applies it, and embeds metadata into every
// moved file.
func (o *Organizer) planAndExecute(ctx context.Context, req organizer.Request, docs map[string][]byte, dryRun bool, result *Summary) {
	log := logger.FromContext(ctx)

	ops, planErrs := organizer.Plan(req)
	for _, err := range planErrs {
		if errors.Is(err, errcodes.DestinationConflict("")) {
			result.Conflicts++
		}
		result.fail(req.OutputDir, err)
	}

	execErrs := organizer.Execute(ctx, ops, dryRun)
	for _, err := range execErrs {
		result.fail(req.OutputDir, err)
	}

	for _, op := range ops {
		switch op.Kind {
		case models.OperationKindExtractExtra:
			if op.Applied || dryRun {
				result.Extras++
			}
		default:
			if !op.Applied && !dryRun {
				continue
			}
			result.Organized++

			doc, ok := docs[op.Source]
			if !ok || dryRun || !op.Applied {
				continue
			}
			if err := archive.EmbedComicInfo(op.Dest, doc); err != nil {
				log.Err(err).Error("metadata embed failed", logger.Data{"path": op.Dest})
				result.fail(op.Dest, err)
			}
		}
	}
}

func coverAfter(a, b models.CoverDate) bool {
	if a.Year != b.Year {
		return a.Year > b.Year
	}
	if a.Month != b.Month {
		return a.Month > b.Month
	}
	return a.Day > b.Day
}
