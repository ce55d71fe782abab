// Package validation checks user-supplied paths and archive entry names
// before they reach the filesystem or the parser.
package validation

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"unicode"
)

// Limits guarding against resource exhaustion.
const (
	// MaxCorpusSize is the largest corpus file accepted (256 MB).
	MaxCorpusSize = 256 << 20
	// MaxEntrySize is the largest snapshot archive entry read into memory.
	MaxEntrySize = 512 << 20
	// MaxPathLength is the maximum allowed path length.
	MaxPathLength = 4096
)

// Common validation errors.
var (
	ErrPathTraversal    = errors.New("path traversal detected")
	ErrPathTooLong      = errors.New("path too long")
	ErrInvalidCharacter = errors.New("invalid character in path")
	ErrEmptyPath        = errors.New("path cannot be empty")
	ErrNotRegular       = errors.New("not a regular file")
	ErrTooLarge         = errors.New("file too large")
)

// ValidatePath checks length and rejects null bytes and control characters.
func ValidatePath(p string) error {
	if strings.TrimSpace(p) == "" {
		return ErrEmptyPath
	}
	if len(p) > MaxPathLength {
		return ErrPathTooLong
	}
	if strings.Contains(p, "\x00") {
		return fmt.Errorf("%w: null byte not allowed", ErrInvalidCharacter)
	}
	for _, r := range p {
		if unicode.IsControl(r) {
			return fmt.Errorf("%w: control character not allowed", ErrInvalidCharacter)
		}
	}
	return nil
}

// CheckCorpusFile verifies that p names a regular file no larger than
// MaxCorpusSize. A missing file is reported with the underlying fs error.
func CheckCorpusFile(p string) error {
	if err := ValidatePath(p); err != nil {
		return err
	}
	info, err := os.Stat(p)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s", ErrNotRegular, p)
	}
	if info.Size() > MaxCorpusSize {
		return fmt.Errorf("%w: %s is %d bytes, limit %d", ErrTooLarge, p, info.Size(), MaxCorpusSize)
	}
	return nil
}

// ValidateEntryName checks a tar entry name from a snapshot archive. Names
// are slash-separated and must stay inside the archive root.
func ValidateEntryName(name string) error {
	if err := ValidatePath(name); err != nil {
		return err
	}
	if strings.Contains(name, `\`) {
		return fmt.Errorf("%w: backslash in %q", ErrInvalidCharacter, name)
	}
	if path.IsAbs(name) {
		return fmt.Errorf("%w: absolute entry %q", ErrPathTraversal, name)
	}
	for _, part := range strings.Split(path.Clean(name), "/") {
		if part == ".." {
			return fmt.Errorf("%w: %q", ErrPathTraversal, name)
		}
	}
	return nil
}
