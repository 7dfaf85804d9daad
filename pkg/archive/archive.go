package archive

import (
	"archive/zip"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/nwaples/rardecode/v2"
	"github.com/pkg/errors"
)

const comicInfoFilename = "ComicInfo.xml"

// Reader is read-only access to a comic archive's entries, independent of the
// underlying container format.
type Reader interface {
	// Entries lists the archive's file entries in their stored order,
	// directories excluded.
	Entries() []string
	// Open returns a reader for a single entry.
	Open(name string) (io.ReadCloser, error)
	Close() error
}

// OpenReader opens a comic archive, picking the container format by content
// sniff with the extension as a fallback.
func OpenReader(path string) (Reader, error) {
	kind, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	switch {
	case kind.Is("application/zip"):
		return openZip(path)
	case kind.Is("application/x-rar-compressed") || kind.Is("application/vnd.rar"):
		return openRar(path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".cbz", ".zip":
		return openZip(path)
	case ".cbr", ".rar":
		return openRar(path)
	}

	return nil, errors.Errorf("unsupported archive format: %s", path)
}

type zipReader struct {
	rc    *zip.ReadCloser
	names []string
}

func openZip(path string) (*zipReader, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	r := &zipReader{rc: rc}
	for _, f := range rc.File {
		if !f.FileInfo().IsDir() {
			r.names = append(r.names, f.Name)
		}
	}
	return r, nil
}

func (r *zipReader) Entries() []string {
	return r.names
}

func (r *zipReader) Open(name string) (io.ReadCloser, error) {
	for _, f := range r.rc.File {
		if f.Name == name {
			rc, err := f.Open()
			return rc, errors.WithStack(err)
		}
	}
	return nil, errors.Errorf("entry not found in archive: %s", name)
}

func (r *zipReader) Close() error {
	return errors.WithStack(r.rc.Close())
}

// rarReader scans the volume once at open to list entries; Open re-walks the
// stream to the requested entry since rar has no central directory to seek by.
type rarReader struct {
	path  string
	names []string
}

func openRar(path string) (*rarReader, error) {
	rc, err := rardecode.OpenReader(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer rc.Close()

	r := &rarReader{path: path}
	for {
		header, err := rc.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.WithStack(err)
		}
		if !header.IsDir {
			r.names = append(r.names, header.Name)
		}
	}
	return r, nil
}

func (r *rarReader) Entries() []string {
	return r.names
}

func (r *rarReader) Open(name string) (io.ReadCloser, error) {
	rc, err := rardecode.OpenReader(r.path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	for {
		header, err := rc.Next()
		if err == io.EOF {
			rc.Close()
			return nil, errors.Errorf("entry not found in archive: %s", name)
		}
		if err != nil {
			rc.Close()
			return nil, errors.WithStack(err)
		}
		if header.Name == name {
			return &rarEntry{rc: rc}, nil
		}
	}
}

func (r *rarReader) Close() error {
	return nil
}

// rarEntry reads the current stream position and owns the underlying volume
// handle.
type rarEntry struct {
	rc *rardecode.ReadCloser
}

func (e *rarEntry) Read(p []byte) (int, error) {
	return e.rc.Read(p)
}

func (e *rarEntry) Close() error {
	return errors.WithStack(e.rc.Close())
}
