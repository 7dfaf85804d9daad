package archive

import (
	"archive/zip"
	"context"
	"io"
	"os"

	"github.com/luccast/runarr/pkg/errcodes"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// ProgressFunc reports per-entry conversion progress.
type ProgressFunc func(done, total int)

// Convert repacks a comic archive into a cbz at dst. The output is written to
// a temp file and validated before it is renamed into place; the source file
// is removed only after the destination is fully in place. Any failure leaves
// the source untouched and surfaces as a conversion_failure error.
func Convert(ctx context.Context, src Reader, srcPath, dst string, progress ProgressFunc) error {
	log := logger.FromContext(ctx)

	entries := src.Entries()
	if len(entries) == 0 {
		return errors.WithStack(errcodes.ConversionFailure(srcPath))
	}

	tmpPath := dst + ".tmp"
	if err := repack(ctx, src, entries, tmpPath, progress); err != nil {
		os.Remove(tmpPath)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		log.Err(err).Error("conversion failed", logger.Data{"source": srcPath})
		return errors.WithStack(errcodes.ConversionFailure(srcPath))
	}

	if err := validateZip(tmpPath); err != nil {
		os.Remove(tmpPath)
		log.Err(err).Error("converted archive failed validation", logger.Data{"source": srcPath})
		return errors.WithStack(errcodes.ConversionFailure(srcPath))
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		os.Remove(tmpPath)
		return errors.WithStack(err)
	}

	if err := os.Remove(srcPath); err != nil {
		return errors.WithStack(err)
	}

	log.Info("converted archive", logger.Data{"source": srcPath, "dest": dst, "entries": len(entries)})
	return nil
}

func repack(ctx context.Context, src Reader, entries []string, tmpPath string, progress ProgressFunc) error {
	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer tmpFile.Close()

	zw := zip.NewWriter(tmpFile)

	for i, name := range entries {
		if err := ctx.Err(); err != nil {
			return errors.WithStack(err)
		}

		w, err := zw.Create(name)
		if err != nil {
			return errors.WithStack(err)
		}

		r, err := src.Open(name)
		if err != nil {
			return errors.WithStack(err)
		}
		if _, err := io.Copy(w, r); err != nil {
			r.Close()
			return errors.WithStack(err)
		}
		r.Close()

		if progress != nil {
			progress(i+1, len(entries))
		}
	}

	if err := zw.Close(); err != nil {
		return errors.WithStack(err)
	}
	if err := tmpFile.Sync(); err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(tmpFile.Close())
}

// validateZip confirms the finished archive opens cleanly and is non-empty.
func validateZip(path string) error {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return errors.WithStack(err)
	}
	defer rc.Close()

	if len(rc.File) == 0 {
		return errors.New("converted archive has no entries")
	}
	return nil
}
