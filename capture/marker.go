package capture

import (
	"strconv"
	"strings"
)

// markerEntry is one captured URL plus the context its substitution needs.
type markerEntry struct {
	url   string
	kind  string
	media string
}

// marker allocates ordered placeholder tokens for URLs discovered during a
// rewrite pass and substitutes them back in allocation order. Tokens are
// delimited with control characters so they cannot occur in literal CSS and
// no rule pattern can re-match them. Each marker owns a token namespace, so
// markers sharing one text cannot consume each other's placeholders.
type marker struct {
	ns      string
	entries []markerEntry
}

func newMarker(ns string) *marker {
	return &marker{ns: ns}
}

func (m *marker) token(i int) string {
	return "\x01css-mark:" + m.ns + ":" + strconv.Itoa(i) + "\x01"
}

// next records url and returns a fresh token for it. Tokens are strictly
// increasing and unique within one marker.
func (m *marker) next(url, kind, media string) string {
	m.entries = append(m.entries, markerEntry{url: url, kind: kind, media: media})
	return m.token(len(m.entries) - 1)
}

// replaceBack substitutes every token in allocation order. resolve receives
// the URL collected at allocation time and the token's ordinal, so filename
// computation can be deferred until the complete URL set is known. Each
// token is consumed exactly once.
func (m *marker) replaceBack(text string, resolve func(url string, ordinal int) string) string {
	for i, e := range m.entries {
		text = strings.Replace(text, m.token(i), resolve(e.url, i), 1)
	}
	return text
}
