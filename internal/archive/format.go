package archive

import "strings"

// Archive formats by extension.
const (
	FormatXZ      = "tar.xz"
	FormatGzip    = "tar.gz"
	FormatUnknown = "unknown"
)

// Extension is the default snapshot file suffix.
const Extension = ".snapshot.tar.xz"

// DetectFormat detects the archive format from the file extension.
func DetectFormat(path string) string {
	switch {
	case strings.HasSuffix(path, ".tar.xz"):
		return FormatXZ
	case strings.HasSuffix(path, ".tar.gz"):
		return FormatGzip
	default:
		return FormatUnknown
	}
}

// IsSupportedFormat returns true if the file has a supported archive extension.
func IsSupportedFormat(path string) bool {
	return DetectFormat(path) != FormatUnknown
}

// SnapshotName strips the snapshot and archive extensions from a filename.
func SnapshotName(filename string) string {
	for _, ext := range []string{".snapshot.tar.xz", ".snapshot.tar.gz", ".tar.xz", ".tar.gz"} {
		if strings.HasSuffix(filename, ext) {
			return strings.TrimSuffix(filename, ext)
		}
	}
	return filename
}
