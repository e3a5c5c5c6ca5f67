package errors

import (
	"net/url"
	"strings"
	"unicode"
)

// maxSourceLength bounds dataset source strings accepted from flags, config and requests.
const maxSourceLength = 2048

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

// ValidateSource validates a dataset source location.
//
// Accepted forms:
//   - http:// or https:// URLs
//   - s3://bucket/key object references
//   - local file paths (absolute or relative)
//
// Control characters and null bytes are always rejected.
func ValidateSource(src string) error {
	if src == "" {
		return New(ErrCodeInvalidSource, "dataset source cannot be empty")
	}
	if len(src) > maxSourceLength {
		return New(ErrCodeInvalidSource, "dataset source too long (max %d characters)", maxSourceLength)
	}
	for _, r := range src {
		if r == '\x00' || unicode.IsControl(r) {
			return New(ErrCodeInvalidSource, "dataset source contains invalid characters")
		}
	}

	scheme, _, hasScheme := strings.Cut(src, "://")
	if !hasScheme {
		return nil
	}

	switch scheme {
	case "http", "https":
		return ValidateURL(src)
	case "s3":
		u, err := url.Parse(src)
		if err != nil {
			return Wrap(ErrCodeInvalidSource, err, "parse s3 source")
		}
		if u.Host == "" {
			return New(ErrCodeInvalidSource, "s3 source requires a bucket: %q", src)
		}
		if strings.Trim(u.Path, "/") == "" {
			return New(ErrCodeInvalidSource, "s3 source requires an object key: %q", src)
		}
		return nil
	case "file":
		return nil
	default:
		return New(ErrCodeInvalidSource, "unsupported source scheme %q (must be http, https, s3 or a local path)", scheme)
	}
}

// ValidateSessionID validates a viewer session identifier supplied by a client.
// IDs are UUID-like: hex digits and dashes only, at most 64 characters.
func ValidateSessionID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "session id cannot be empty")
	}
	if len(id) > 64 {
		return New(ErrCodeInvalidInput, "session id too long")
	}
	for _, r := range id {
		if r == '-' || ('0' <= r && r <= '9') || ('a' <= r && r <= 'f') || ('A' <= r && r <= 'F') {
			continue
		}
		return New(ErrCodeInvalidInput, "session id contains invalid characters")
	}
	return nil
}
