package organizer

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/luccast/runarr/pkg/errcodes"
	"github.com/luccast/runarr/pkg/models"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

const extrasFolder = "Extras"

// Request describes one series folder's worth of planning input.
type Request struct {
	// OutputDir is the library root destination.
	OutputDir string
	// Series is the pinned series, nil when the whole folder failed to
	// resolve.
	Series *models.CatalogSeries
	// Matches are the files that resolved to catalog issues.
	Matches []*models.ResolvedMatch
	// Unresolved are source paths that could not be matched; they are routed
	// to the Extras folder, never deleted.
	Unresolved []string
	// PadWidth is the issue-number zero-pad width for destination filenames.
	PadWidth int
	// Overwrite emits in-place operations for files already at their
	// destination so their embedded metadata gets rewritten.
	Overwrite bool
}

// Plan computes the file operations for a series folder without touching the
// filesystem beyond existence checks. The plan is deterministic: dry-run and
// live produce identical operations for identical inputs. Destination
// collisions drop every colliding operation and report each as a
// destination_conflict error.
func Plan(req Request) ([]*models.FileOperation, []error) {
	padWidth := req.PadWidth
	if padWidth <= 0 {
		padWidth = 3
	}

	var ops []*models.FileOperation
	var errs []error

	baseDir := req.OutputDir
	if req.Series != nil {
		baseDir = filepath.Join(req.OutputDir, FolderName(req.Series))
	}

	for _, match := range req.Matches {
		dest := filepath.Join(baseDir, FileName(match, padWidth))
		if dest == match.Path {
			if req.Overwrite {
				ops = append(ops, &models.FileOperation{
					Source: match.Path,
					Dest:   dest,
					Kind:   models.OperationKindRename,
				})
			}
			continue
		}
		ops = append(ops, &models.FileOperation{
			Source: match.Path,
			Dest:   dest,
			Kind:   models.OperationKindMove,
		})
	}

	for _, src := range req.Unresolved {
		ops = append(ops, &models.FileOperation{
			Source: src,
			Dest:   filepath.Join(baseDir, extrasFolder, filepath.Base(src)),
			Kind:   models.OperationKindExtractExtra,
		})
	}

	ops, errs = dropCollisions(ops)

	sort.Slice(ops, func(i, j int) bool {
		return ops[i].Source < ops[j].Source
	})
	return ops, errs
}

// dropCollisions removes every operation whose destination is claimed by
// another operation or already occupied on disk. All colliding operations are
// dropped, none wins.
func dropCollisions(ops []*models.FileOperation) ([]*models.FileOperation, []error) {
	byDest := map[string][]*models.FileOperation{}
	for _, op := range ops {
		byDest[op.Dest] = append(byDest[op.Dest], op)
	}

	var kept []*models.FileOperation
	var errs []error
	for _, op := range ops {
		if len(byDest[op.Dest]) > 1 {
			errs = append(errs, errors.WithStack(errcodes.DestinationConflict(op.Dest)))
			continue
		}
		if _, err := os.Stat(op.Dest); err == nil && op.Source != op.Dest {
			errs = append(errs, errors.WithStack(errcodes.DestinationConflict(op.Dest)))
			continue
		}
		kept = append(kept, op)
	}
	return kept, errs
}

// Execute applies a plan sequentially. In dry-run mode every operation is
// logged and nothing on disk changes. Existing destinations are never
// overwritten; an operation whose source is gone but whose destination exists
// is treated as already applied.
func Execute(ctx context.Context, ops []*models.FileOperation, dryRun bool) []error {
	log := logger.FromContext(ctx)

	var errs []error
	for _, op := range ops {
		data := logger.Data{"source": op.Source, "dest": op.Dest, "kind": op.Kind}

		if dryRun {
			log.Info("would apply file operation", data)
			continue
		}

		if err := applyOne(op); err != nil {
			log.Err(err).Error("file operation failed", data)
			errs = append(errs, err)
			continue
		}

		log.Info("applied file operation", data)
	}
	return errs
}

func applyOne(op *models.FileOperation) error {
	if op.Source == op.Dest {
		// Already in place; the operation exists so metadata still gets
		// rewritten downstream.
		op.Applied = true
		return nil
	}

	if _, err := os.Stat(op.Dest); err == nil {
		if _, srcErr := os.Stat(op.Source); os.IsNotExist(srcErr) {
			// A previous run already moved this file.
			op.Applied = true
			return nil
		}
		return errors.WithStack(errcodes.DestinationConflict(op.Dest))
	}

	if err := os.MkdirAll(filepath.Dir(op.Dest), 0o755); err != nil {
		return errors.WithStack(err)
	}

	if err := moveFile(op.Source, op.Dest); err != nil {
		return err
	}

	op.Applied = true
	return nil
}
