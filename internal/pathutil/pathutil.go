// Package pathutil converts file URLs into plain filesystem paths.
package pathutil

import (
	"fmt"
	"net/url"
	"strings"
)

// IsFileURL reports whether s carries a file URL scheme.
func IsFileURL(s string) bool {
	return strings.HasPrefix(s, "file:")
}

// FromURL converts a file URL into a plain filesystem path,
// percent-decoding escapes. Values that are not file URLs are returned
// unchanged. The URL host must be empty or "localhost".
func FromURL(s string) (string, error) {
	if !IsFileURL(s) {
		return s, nil
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("failed to parse file URL %q: %w", s, err)
	}

	if u.Host != "" && u.Host != "localhost" {
		return "", fmt.Errorf("file URL %q must not name a remote host %q", s, u.Host)
	}
	if u.Path == "" {
		return "", fmt.Errorf("file URL %q has no path", s)
	}

	return u.Path, nil
}
