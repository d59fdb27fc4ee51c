// Package archive resolves an input path to a working dataset file,
// extracting the first dataset entry of a tar archive when asked to.
package archive

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/gzip"
)

// Error kinds raised during input resolution.
var (
	ErrNotFound  = errors.New("input path not found")
	ErrNoDataset = errors.New("archive contains no dataset entry")
)

var datasetExts = map[string]bool{
	".nc":  true,
	".nc4": true,
	".cdf": true,
}

// IsDatasetName reports whether an archive entry name looks like a
// gridded dataset file.
func IsDatasetName(name string) bool {
	return datasetExts[strings.ToLower(filepath.Ext(name))]
}

// Resolve returns the path of the dataset file to work on. A plain
// input is returned as-is after existence validation. For an archive,
// the first dataset entry in listing order is extracted into destDir
// and its path returned; destDir is owned by the caller's workspace.
func Resolve(path string, isArchive bool, destDir string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil || fi.IsDir() {
		return "", errors.Wrapf(ErrNotFound, "%s", path)
	}
	if !isArchive {
		return path, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "opening archive %s", path)
	}
	defer f.Close()

	var r io.Reader = f
	if ext := strings.ToLower(path); strings.HasSuffix(ext, ".gz") || strings.HasSuffix(ext, ".tgz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return "", errors.Wrapf(err, "decompressing %s", path)
		}
		defer gz.Close()
		r = gz
	}

	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", errors.Wrapf(err, "reading archive %s", path)
		}
		if hdr.Typeflag != tar.TypeReg || !IsDatasetName(hdr.Name) {
			continue
		}
		dest := filepath.Join(destDir, filepath.Base(hdr.Name))
		if err := extractEntry(tr, dest); err != nil {
			return "", errors.Wrapf(err, "extracting %s from %s", hdr.Name, path)
		}
		return dest, nil
	}
	return "", errors.Wrapf(ErrNoDataset, "%s", path)
}

func extractEntry(r io.Reader, dest string) error {
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
