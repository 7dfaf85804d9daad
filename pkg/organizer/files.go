package organizer

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

// moveFile moves a file, falling back to copy+delete when rename crosses a
// filesystem boundary.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}

	if err := copyFile(src, dst); err != nil {
		return err
	}

	if err := os.Remove(src); err != nil {
		// Keep exactly one copy: drop the destination if the source cannot
		// be removed.
		os.Remove(dst)
		return errors.WithStack(err)
	}
	return nil
}

func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return errors.WithStack(err)
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return errors.WithStack(err)
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return errors.WithStack(err)
	}

	sourceInfo, err := sourceFile.Stat()
	if err != nil {
		return errors.WithStack(err)
	}
	return errors.WithStack(destFile.Chmod(sourceInfo.Mode()))
}
