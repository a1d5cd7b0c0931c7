package bundle

import (
	"archive/zip"
	"io"
	"os"
	"path"
	"path/filepath"

	"sdaasverify/internal/manifest"
)

// MaxFileSize bounds every file read from a bundle. Zip entries are
// decompressed, so the bound also applies to their expanded size.
const MaxFileSize = 16 << 20

// Reader gives uniform access to the files of a bundle directory or zip.
type Reader interface {
	ReadFile(name string) ([]byte, error)
	HasFile(name string) bool
	Close() error
}

type DirReader struct{ Root string }

func (d DirReader) ReadFile(name string) ([]byte, error) {
	f, err := os.Open(filepath.Join(d.Root, name))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readLimited(f, name)
}
func (d DirReader) HasFile(name string) bool {
	_, err := os.Stat(filepath.Join(d.Root, name))
	return err == nil
}
func (d DirReader) Close() error { return nil }

// ZipReader serves files from a zip archive. A single top-level directory
// inside the archive is transparent, so zipping the bundle directory itself
// works as well as zipping its contents.
type ZipReader struct {
	z      *zip.ReadCloser
	prefix string
}

func OpenZip(path string) (*ZipReader, error) {
	z, err := zip.OpenReader(path)
	if err != nil {
		return nil, manifest.Wrap("BUNDLE_ZIP_OPEN_FAILED", err, "failed to open zip")
	}
	zr := &ZipReader{z: z}
	zr.prefix = zr.commonDir()
	return zr, nil
}
func (zr *ZipReader) Close() error { return zr.z.Close() }

func (zr *ZipReader) commonDir() string {
	if zr.find(ManifestFile) != nil {
		return ""
	}
	for _, f := range zr.z.File {
		if path.Base(f.Name) == ManifestFile && path.Dir(f.Name) != "." {
			return path.Dir(f.Name) + "/"
		}
	}
	return ""
}

func (zr *ZipReader) find(name string) *zip.File {
	for _, f := range zr.z.File {
		if f.Name == zr.prefix+name {
			return f
		}
	}
	return nil
}

func (zr *ZipReader) HasFile(name string) bool {
	return zr.find(name) != nil
}

func (zr *ZipReader) ReadFile(name string) ([]byte, error) {
	f := zr.find(name)
	if f == nil {
		return nil, os.ErrNotExist
	}
	rc, err := f.Open()
	if err != nil {
		return nil, manifest.Wrap("BUNDLE_ZIP_FILE_OPEN", err, "failed to open file in zip: "+name)
	}
	defer rc.Close()
	b, err := readLimited(rc, name)
	if _, coded := manifest.AsVerifyError(err); err != nil && !coded {
		return nil, manifest.Wrap("BUNDLE_ZIP_FILE_READ", err, "failed to read file in zip: "+name)
	}
	return b, err
}

func readLimited(r io.Reader, name string) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return nil, err
	}
	if len(b) > MaxFileSize {
		return nil, manifest.Errf("BUNDLE_FILE_TOO_LARGE", "%s exceeds %d bytes", name, MaxFileSize)
	}
	return b, nil
}

// Open picks a DirReader or ZipReader for path.
func Open(path string) (Reader, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, manifest.Wrap("BUNDLE_STAT_FAILED", err, "failed to stat bundle path")
	}
	if fi.IsDir() {
		return DirReader{Root: path}, nil
	}
	return OpenZip(path)
}

// IsBundle reports whether path looks like a bundle: a directory or a .zip
// file.
func IsBundle(path string) bool {
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	return fi.IsDir() || filepath.Ext(path) == ".zip"
}
