package errors

import (
	"strings"
	"unicode"
)

// ValidatePath validates a workspace-relative file path for safety.
// Navigation requests come from the rendered document, so the path is
// untrusted input and must not escape the workspace root.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
//   - No absolute paths (must be relative)
//   - No path traversal sequences (..)
//   - No backslashes (Windows-style paths)
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}

	const maxPathLength = 500
	if len(path) > maxPathLength {
		return New(ErrCodeInvalidPath, "path too long (max %d characters)", maxPathLength)
	}

	for _, r := range path {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidPath, "path contains invalid characters")
		}
	}

	if strings.HasPrefix(path, "/") {
		return New(ErrCodeInvalidPath, "path must be relative (cannot start with /)")
	}

	for _, seg := range strings.Split(path, "/") {
		if seg == ".." {
			return New(ErrCodeInvalidPath, "path cannot contain path traversal sequences (..)")
		}
	}

	if strings.Contains(path, "\\") {
		return New(ErrCodeInvalidPath, "path cannot contain backslashes")
	}

	return nil
}

// ValidateLineRange checks a 1-based source line range.
// endLine of zero means "single line".
func ValidateLineRange(startLine, endLine int) error {
	if startLine < 1 {
		return New(ErrCodeInvalidInput, "startLine must be >= 1, got %d", startLine)
	}
	if endLine != 0 && endLine < startLine {
		return New(ErrCodeInvalidInput, "endLine %d is before startLine %d", endLine, startLine)
	}
	return nil
}
