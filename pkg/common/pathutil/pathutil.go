package pathutil

import (
	"fmt"
	"path/filepath"
	"strings"
)

const parentDir = ".."

// SafePath joins filename onto baseDir and refuses results that escape it.
func SafePath(baseDir, filename string) (string, error) {
	cleanFilename := filepath.Clean(filename)
	if filepath.IsAbs(cleanFilename) || hasParentSegment(cleanFilename) {
		return "", fmt.Errorf("invalid filename %q: path traversal not allowed", filename)
	}

	fullPath := filepath.Join(baseDir, cleanFilename)

	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return "", fmt.Errorf("resolve base directory: %w", err)
	}
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}

	rel, err := filepath.Rel(absBase, absPath)
	if err != nil || hasParentSegment(rel) {
		return "", fmt.Errorf("path %q outside base directory", filename)
	}

	return fullPath, nil
}

// ValidateFilePath rejects empty paths and paths that climb back out of a
// directory they entered, such as keys/../../etc/passwd. Leading .. segments
// name an explicit parent directory and are allowed.
func ValidateFilePath(filePath string) error {
	if strings.TrimSpace(filePath) == "" {
		return fmt.Errorf("file path is empty")
	}

	descended := false
	for _, segment := range strings.Split(filepath.ToSlash(filePath), "/") {
		switch segment {
		case "", ".":
		case parentDir:
			if descended {
				return fmt.Errorf("invalid file path %q: path traversal not allowed", filePath)
			}
		default:
			descended = true
		}
	}
	return nil
}

func hasParentSegment(path string) bool {
	for _, segment := range strings.Split(filepath.ToSlash(path), "/") {
		if segment == parentDir {
			return true
		}
	}
	return false
}
