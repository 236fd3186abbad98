package errors

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Package IDs and versions end up in file names under the output directory,
// so anything that could escape it is rejected before use.
var pathUnsafe = []string{
	"..",   // Parent directory
	"/",    // Path separator
	"\\",   // Backslash (Windows path)
	"\x00", // Null byte
}

// packageIDRegex matches Chocolatey/NuGet package ids.
var packageIDRegex = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9._-]*$`)

// ValidatePackageID validates a package id for safety and correctness.
//
// The validation rules are intentionally conservative:
//   - No empty ids
//   - Maximum length of 256 characters
//   - No control characters, path separators or traversal sequences
//   - Letters, digits, '.', '-' and '_' only
func ValidatePackageID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidPackage, "package id cannot be empty")
	}
	if len(id) > 256 {
		return New(ErrCodeInvalidPackage, "package id too long (max 256 characters)")
	}
	if reason := checkPathSafe(id); reason != "" {
		return New(ErrCodeInvalidPackage, "package id %q %s", id, reason)
	}
	if !packageIDRegex.MatchString(id) {
		return New(ErrCodeInvalidPackage, "invalid package id: %q", id)
	}
	return nil
}

// ValidateVersion validates a package version string.
//
// Versions are not parsed: a truncated range such as "1.2.3,2.0.0)" is
// accepted as long as it is safe to embed in a URL path and a file name.
// The empty string is valid and means "latest".
func ValidateVersion(v string) error {
	if v == "" {
		return nil
	}
	if len(v) > 128 {
		return New(ErrCodeInvalidVersion, "version too long (max 128 characters)")
	}
	if reason := checkPathSafe(v); reason != "" {
		return New(ErrCodeInvalidVersion, "version %q %s", v, reason)
	}
	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	// Simple scheme validation without full URL parsing
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}

// checkPathSafe returns a reason when s is unsafe to use as a path segment,
// or "" when it is safe.
func checkPathSafe(s string) string {
	for _, r := range s {
		if unicode.IsControl(r) {
			return "contains invalid control characters"
		}
	}
	for _, pattern := range pathUnsafe {
		if strings.Contains(s, pattern) {
			return fmt.Sprintf("contains invalid characters: %q", pattern)
		}
	}
	return ""
}
