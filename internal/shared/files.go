package shared

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// BinaryKind is the type of Android binary being published.
type BinaryKind int

const (
	BinaryUnknown BinaryKind = iota
	BinaryAPK
	BinaryAAB
)

func (k BinaryKind) String() string {
	switch k {
	case BinaryAPK:
		return "apk"
	case BinaryAAB:
		return "aab"
	default:
		return "unknown"
	}
}

// DetectBinaryKind classifies path by its extension.
func DetectBinaryKind(path string) BinaryKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".apk":
		return BinaryAPK
	case ".aab":
		return BinaryAAB
	default:
		return BinaryUnknown
	}
}

// VerifyFile checks that path exists and is a regular file.
func VerifyFile(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrMissingArgument)
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrInvalidInput, path)
	}

	return nil
}

// VerifyDir checks that path exists and is a directory.
func VerifyDir(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidInput, path)
	}

	return nil
}

// ReadReleaseNotes reads localized release notes from files named "whatsnew-{language}" in dir.
//
// The language suffix must contain a region (e.g. whatsnew-en-US); other files are ignored.
// Returns a map of language to note text.
func ReadReleaseNotes(dir string) (map[string]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "whatsnew-*-*"))
	if err != nil {
		return nil, fmt.Errorf("failed to list release notes: %w", err)
	}

	notes := make(map[string]string, len(paths))
	for _, p := range paths {
		language := strings.TrimPrefix(filepath.Base(p), "whatsnew-")
		if language == "" {
			continue
		}

		content, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read release notes %s: %w", p, err)
		}
		notes[language] = strings.TrimSpace(string(content))
	}

	return notes, nil
}
