// Package security validates operator-supplied file paths before the CLI
// reads event payloads or analysis results from disk.
package security

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// MaxFileSize bounds the files the CLI will load into memory. Stripe events
// and analysis result documents are far below this.
const MaxFileSize = 1 << 20

// ErrFileTooLarge is returned when a file exceeds MaxFileSize.
var ErrFileTooLarge = errors.New("file exceeds size limit")

// dangerousChars contains shell metacharacters that never appear in the
// payload paths the CLI accepts.
var dangerousChars = []string{";", "&", "|", "$", "`", "(", ")", "{", "}", "<", ">", "!", "\n", "\r"}

// validateFilePath cleans path, makes it absolute and resolves symlinks.
func validateFilePath(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("file path cannot be empty")
	}

	for _, char := range dangerousChars {
		if strings.Contains(path, char) {
			return "", fmt.Errorf("file path contains forbidden character %q: %s", char, path)
		}
	}

	cleanPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("failed to resolve file path: %w", err)
	}

	resolvedPath, err := filepath.EvalSymlinks(cleanPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cleanPath, nil
		}
		return "", fmt.Errorf("failed to resolve file path: %w", err)
	}

	return resolvedPath, nil
}

// SafeReadFile reads a regular file after validating the path, refusing
// anything larger than MaxFileSize.
func SafeReadFile(path string) ([]byte, error) {
	cleanPath, err := validateFilePath(path)
	if err != nil {
		return nil, err
	}

	// #nosec G304 - path is validated above
	f, err := os.Open(cleanPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}
	if info.Size() > MaxFileSize {
		return nil, fmt.Errorf("%w: %s", ErrFileTooLarge, path)
	}

	return io.ReadAll(io.LimitReader(f, MaxFileSize+1))
}
