// Package urlx completes and classifies URLs found inside captured
// documents.
package urlx

import (
	"net/url"
	"strings"
)

// Completed is the outcome of resolving a reference against its base.
type Completed struct {
	IsValid bool
	URL     string
	Message string
}

// Complete resolves pathOrURL against base and returns the absolute,
// normalized form. Data URLs pass through untouched. A reference that cannot
// be parsed, or that does not resolve to an absolute URL, is invalid.
func Complete(pathOrURL, base string) Completed {
	ref := strings.TrimSpace(pathOrURL)
	if ref == "" {
		return Completed{Message: "empty reference"}
	}
	if IsDataURL(ref) {
		return Completed{IsValid: true, URL: ref}
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return Completed{Message: "unparsable reference: " + err.Error()}
	}
	if refURL.IsAbs() {
		return Completed{IsValid: true, URL: refURL.String()}
	}
	baseURL, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return Completed{Message: "unparsable base: " + err.Error()}
	}
	abs := baseURL.ResolveReference(refURL)
	if !abs.IsAbs() || abs.Host == "" {
		return Completed{Message: "reference did not resolve to an absolute URL"}
	}
	return Completed{IsValid: true, URL: abs.String()}
}

// IsDataURL reports whether s carries inline data.
func IsDataURL(s string) bool {
	return strings.HasPrefix(strings.ToLower(s), "data:")
}

// IsHTTPURL reports whether s is an absolute http or https URL.
func IsHTTPURL(s string) bool {
	lower := strings.ToLower(s)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
