package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// maxRepoIDLength bounds owner/name identifiers; GitHub caps owners at 39
// and repository names at 100 characters.
const maxRepoIDLength = 140

// repoSegmentRegex matches one owner or name segment.
var repoSegmentRegex = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidateRepoID validates an "owner/name" repository identifier.
//
// Identifiers are extracted from page markup, so they are checked before
// they ever reach the remote API:
//   - exactly one slash, with a non-empty owner and name
//   - no whitespace or control characters
//   - segments made of letters, digits, '.', '_' and '-'
//   - neither segment may be "." or ".."
func ValidateRepoID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidRepo, "repository identifier cannot be empty")
	}
	if len(id) > maxRepoIDLength {
		return New(ErrCodeInvalidRepo, "repository identifier too long (max %d characters)", maxRepoIDLength)
	}
	for _, r := range id {
		if unicode.IsControl(r) || unicode.IsSpace(r) {
			return New(ErrCodeInvalidRepo, "repository identifier contains invalid characters: %q", id)
		}
	}

	owner, name, ok := strings.Cut(id, "/")
	if !ok || strings.Contains(name, "/") {
		return New(ErrCodeInvalidRepo, "repository identifier must have the form owner/name: %q", id)
	}
	for _, seg := range []string{owner, name} {
		if seg == "" || seg == "." || seg == ".." {
			return New(ErrCodeInvalidRepo, "repository identifier must have the form owner/name: %q", id)
		}
		if !repoSegmentRegex.MatchString(seg) {
			return New(ErrCodeInvalidRepo, "invalid repository identifier: %q", id)
		}
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
