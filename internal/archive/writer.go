package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ulikunitz/xz"
)

// entry is one file written into an archive.
type entry struct {
	name string
	data []byte
}

// writeArchive writes entries under baseDir into dstPath, compressed
// according to its extension. Every entry gets modTime so identical
// snapshots produce identical archives.
func writeArchive(dstPath, baseDir string, modTime time.Time, entries []entry) (err error) {
	format := DetectFormat(dstPath)
	if format == FormatUnknown {
		return fmt.Errorf("unsupported archive format: %s", dstPath)
	}
	if err := os.MkdirAll(filepath.Dir(dstPath), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	outFile, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}

	var (
		cw io.WriteCloser
		tw *tar.Writer
	)
	// A failed write leaves no partial archive behind.
	defer func() {
		if err != nil {
			if tw != nil {
				_ = tw.Close()
			}
			if cw != nil {
				_ = cw.Close()
			}
		}
		if cerr := outFile.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(dstPath)
		}
	}()

	switch format {
	case FormatXZ:
		xw, xerr := xz.NewWriter(outFile)
		if xerr != nil {
			return fmt.Errorf("xz writer: %w", xerr)
		}
		cw = xw
	case FormatGzip:
		cw = gzip.NewWriter(outFile)
	}

	tw = tar.NewWriter(cw)
	if err := tw.WriteHeader(&tar.Header{
		Name:     baseDir + "/",
		Mode:     0755,
		Typeflag: tar.TypeDir,
		ModTime:  modTime,
	}); err != nil {
		return fmt.Errorf("failed to write directory header: %w", err)
	}
	for _, e := range entries {
		if err := tw.WriteHeader(&tar.Header{
			Name:     baseDir + "/" + e.name,
			Mode:     0644,
			Size:     int64(len(e.data)),
			Typeflag: tar.TypeReg,
			ModTime:  modTime,
		}); err != nil {
			return fmt.Errorf("failed to write header for %s: %w", e.name, err)
		}
		if _, err := tw.Write(e.data); err != nil {
			return fmt.Errorf("failed to write %s: %w", e.name, err)
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finish tar stream: %w", err)
	}
	if err := cw.Close(); err != nil {
		return fmt.Errorf("failed to finish compression: %w", err)
	}
	return nil
}
