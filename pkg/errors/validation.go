package errors

import (
	"path/filepath"
	"strings"
	"unicode"
)

// WorkbookExtensions lists the accepted workbook file extensions.
var WorkbookExtensions = []string{".twb", ".twbx"}

// ValidateWorkbookFilename validates an uploaded or user-supplied workbook
// filename. It must be a simple basename with a workbook extension.
func ValidateWorkbookFilename(filename string) error {
	if filename == "" {
		return New(ErrCodeInvalidWorkbook, "workbook filename cannot be empty")
	}

	if len(filename) > 255 {
		return New(ErrCodeInvalidWorkbook, "workbook filename too long (max 255 characters)")
	}

	if strings.ContainsAny(filename, "/\\") {
		return New(ErrCodeInvalidWorkbook, "workbook filename cannot contain path separators")
	}

	for _, r := range filename {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidWorkbook, "workbook filename contains invalid control characters")
		}
	}

	if !HasWorkbookExtension(filename) {
		return New(ErrCodeInvalidWorkbook, "unsupported workbook extension %q (want .twb or .twbx)", filepath.Ext(filename))
	}

	return nil
}

// HasWorkbookExtension reports whether name ends in .twb or .twbx
// (case-insensitive).
func HasWorkbookExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range WorkbookExtensions {
		if ext == want {
			return true
		}
	}
	return false
}

// ValidateOutputDir validates an output directory path.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 500 characters
//   - No null bytes or control characters
func ValidateOutputDir(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "output directory cannot be empty")
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

	return nil
}
