package archive

import (
	"archive/zip"
	"encoding/xml"
	"io"
	"os"
	"strings"

	"github.com/luccast/runarr/pkg/comicinfo"
	"github.com/pkg/errors"
)

// ParseComicInfo reads the embedded ComicInfo.xml from a cbz. Returns nil
// without error when the archive carries no metadata document.
func ParseComicInfo(path string) (*comicinfo.ComicInfo, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer rc.Close()

	for _, f := range rc.File {
		if !strings.EqualFold(f.Name, comicInfoFilename) {
			continue
		}

		r, err := f.Open()
		if err != nil {
			return nil, errors.WithStack(err)
		}
		defer r.Close()

		data, err := io.ReadAll(r)
		if err != nil {
			return nil, errors.WithStack(err)
		}

		info := &comicinfo.ComicInfo{}
		if err := xml.Unmarshal(data, info); err != nil {
			return nil, errors.Wrap(err, "parse ComicInfo.xml")
		}
		return info, nil
	}

	return nil, nil
}

// EmbedComicInfo replaces (or adds) ComicInfo.xml in a cbz. The archive is
// rewritten to a temp file in the same directory and swapped in with a
// rename, so an interrupt never leaves a half-written archive at the final
// path.
func EmbedComicInfo(path string, doc []byte) error {
	src, err := zip.OpenReader(path)
	if err != nil {
		return errors.WithStack(err)
	}
	defer src.Close()

	tmpPath := path + ".tmp"
	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return errors.WithStack(err)
	}
	defer func() {
		tmpFile.Close()
		os.Remove(tmpPath) // no-op after a successful rename
	}()

	zw := zip.NewWriter(tmpFile)

	for _, f := range src.File {
		if strings.EqualFold(f.Name, comicInfoFilename) {
			continue
		}

		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:   f.Name,
			Method: f.Method,
		})
		if err != nil {
			return errors.WithStack(err)
		}

		r, err := f.Open()
		if err != nil {
			return errors.WithStack(err)
		}
		if _, err := io.Copy(w, r); err != nil {
			r.Close()
			return errors.WithStack(err)
		}
		r.Close()
	}

	w, err := zw.Create(comicInfoFilename)
	if err != nil {
		return errors.WithStack(err)
	}
	if _, err := w.Write(doc); err != nil {
		return errors.WithStack(err)
	}

	if err := zw.Close(); err != nil {
		return errors.WithStack(err)
	}
	if err := tmpFile.Sync(); err != nil {
		return errors.WithStack(err)
	}
	if err := tmpFile.Close(); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(os.Rename(tmpPath, path))
}
