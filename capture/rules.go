package capture

import (
	"regexp"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"

	"styleclip/internal/urlx"
)

// assetRule is one declarative url(...) pattern. The separator is the quote
// the rewritten reference is emitted with.
type assetRule struct {
	pattern   *regexp.Regexp
	separator string
}

// The unquoted form excludes both quote characters from its content class so
// it can never partially match a quoted reference.
var assetRules = []assetRule{
	{regexp.MustCompile(`(?i)url\(\s*"([^"]+)"\s*\)`), `"`},
	{regexp.MustCompile(`(?i)url\(\s*'([^']+)'\s*\)`), `'`},
	{regexp.MustCompile(`(?i)url\(\s*([^'")]+?)\s*\)`), `"`},
}

var (
	reFontFace = regexp.MustCompile(`(?is)@font-face\s*\{[^}]*\}`)
	// The declaration value steps over url() bodies and quoted strings
	// whole, so the semicolons inside data URLs do not end the match.
	reImageDecl = regexp.MustCompile(`(?i)(?:background-image|background|border-image)\s*:(?:url\([^)]*\)|"[^"]*"|'[^']*'|[^;}"'])*`)
)

// The five @import syntaxes: double/single-quoted url(), unquoted url(),
// and the two bare-string forms. Group 1 is the target, group 2 the optional
// trailing media-query list. Trailing whitespace after the semicolon is
// consumed so the substitution controls statement separation.
var importRules = []*regexp.Regexp{
	regexp.MustCompile(`(?i)@import\s+url\(\s*"([^"]+)"\s*\)([^;]*);\s*`),
	regexp.MustCompile(`(?i)@import\s+url\(\s*'([^']+)'\s*\)([^;]*);\s*`),
	regexp.MustCompile(`(?i)@import\s+url\(\s*([^'")]+?)\s*\)([^;]*);\s*`),
	regexp.MustCompile(`(?i)@import\s+"([^"]+)"([^;]*);\s*`),
	regexp.MustCompile(`(?i)@import\s+'([^']+)'([^;]*);\s*`),
}

// replacement returns the match handler for one asset rule: complete the
// inner path against baseURL, keep ineligible references as-is, blank
// eligible ones when saving is off, otherwise swap in a placeholder token.
func replacement(rule assetRule, baseURL, kind string, m *marker, saveAsset bool) func(string) string {
	return func(match string) string {
		sub := rule.pattern.FindStringSubmatch(match)
		if len(sub) < 2 {
			return match
		}
		completed := urlx.Complete(strings.TrimSpace(sub[1]), baseURL)
		if !completed.IsValid {
			return match
		}
		if !urlx.IsHTTPURL(completed.URL) && !urlx.IsDataURL(completed.URL) {
			return match
		}
		if !saveAsset {
			return `url("")`
		}
		return `url(` + rule.separator + m.next(completed.URL, kind, "") + rule.separator + `)`
	}
}

// applyAssetRules runs the three url() patterns, quoted forms first, over
// one scope of text.
func applyAssetRules(text, baseURL, kind string, m *marker, saveAsset bool) string {
	for _, rule := range assetRules {
		text = rule.pattern.ReplaceAllStringFunc(text, replacement(rule, baseURL, kind, m, saveAsset))
	}
	return text
}

// stripComments drops CSS comments so later passes cannot match references
// inside disabled code. All other tokens are emitted byte-for-byte.
func stripComments(text string) string {
	lexer := css.NewLexer(parse.NewInputString(text))
	var b strings.Builder
	b.Grow(len(text))
	for {
		tt, data := lexer.Next()
		if tt == css.ErrorToken {
			break
		}
		if tt == css.CommentToken {
			continue
		}
		b.Write(data)
	}
	return b.String()
}

// reBodyChild matches a body > combinator at a selector boundary: start of
// text or after {, }, ;, whitespace or a comma. A class literally named body
// (.body) has no boundary character before it and stays untouched.
var reBodyChild = regexp.MustCompile(`(^|[\s{};,])body\s*>`)

// fixBodyChildSelector re-roots body > selectors under the wrapper element
// the captured fragment is placed in.
func fixBodyChildSelector(text string) string {
	return reBodyChild.ReplaceAllString(text, "${1}body > ."+WrapperClass+" >")
}
