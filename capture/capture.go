// Package capture resolves external resources referenced from CSS text:
// web fonts, background/border images and @import targets. Given raw CSS
// and the addressing context it was found in, it rewrites the text
// (inlining, blanking or re-pointing each reference according to the
// configured policy) and returns an ordered list of persistence tasks for
// an external collaborator to execute.
package capture

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Task kinds understood by the persistence collaborator. Style tasks carry
// their content inline; font and image tasks carry the URL to fetch.
const (
	KindStyleFile = "styleFileTask"
	KindFontFile  = "fontFileTask"
	KindImageFile = "imageFileTask"
)

// WrapperClass is the class of the element captured fragments are re-rooted
// under when the caller requests selector fix-up.
const WrapperClass = "clip-wrapper"

// StyleDocument is one CSS text plus its addressing context.
type StyleDocument struct {
	// Text is the raw CSS.
	Text string
	// BaseURL resolves relative references inside Text.
	BaseURL string
	// CSSURL is the destination the text will live at; it decides whether
	// asset references get a folder-relative path or a bare name.
	CSSURL string
	// DocURL is the top-level page URL.
	DocURL string
}

// StorageInfo tells the naming collaborator where assets are persisted and
// how the page refers to them.
type StorageInfo struct {
	// AssetFolder is the folder asset files are saved into.
	AssetFolder string
	// AssetRelPath is the path the main document uses to reference assets.
	AssetRelPath string
}

// Task asks the persistence collaborator to save one asset or stylesheet.
type Task struct {
	Filename string
	URL      string
	Content  string
	ClipID   string
	Kind     string
}

// CaptureResult is the rewritten CSS plus the tasks discovered while
// resolving it. CSSText never contains unresolved placeholder tokens.
type CaptureResult struct {
	CSSText string
	Tasks   []Task
}

// Options selects the per-kind persistence policy.
type Options struct {
	// EmbedCSS inlines imported stylesheets into the returned text instead
	// of persisting them as separate files.
	EmbedCSS bool
	// SaveWebFont records font URLs for persistence; when false they are
	// blanked to url("").
	SaveWebFont bool
	// SaveCSSImage does the same for background and border images.
	SaveCSSImage bool
	// Timeout and MaxTries are handed to the fetch collaborator.
	Timeout  time.Duration
	MaxTries int
}

// FetchResult is the fetch collaborator's answer: the resource text and
// whether it was served from cache rather than fetched fresh.
type FetchResult struct {
	FromCache bool
	Text      string
}

// Fetcher retrieves a resource's text. It may fail terminally on exhausted
// retries or network error; the capturer absorbs such failures.
type Fetcher interface {
	Fetch(ctx context.Context, url string, headers http.Header, timeout time.Duration, maxTries int) (FetchResult, error)
}

// Namer computes asset names and destination paths.
type Namer interface {
	// NameFor derives a stable asset name from a URL. ext wins over the URL
	// path extension and the mime hint; prefix, when non-empty, is prepended.
	NameFor(url, ext, prefix, mimeHint string) string
	// FilenameFor is the persistence destination for an asset name.
	FilenameFor(info StorageInfo, assetName string) string
	// PathFor is the path the main document uses to reference the asset.
	PathFor(info StorageInfo, assetName string) string
}

// Capturer drives CSS resolution. One Capturer may serve many capture calls;
// all per-call state lives in the parameter structs.
type Capturer struct {
	fetch Fetcher
	names Namer
	log   *zap.Logger
}

// New returns a Capturer using the given collaborators. A nil logger
// disables logging.
func New(fetch Fetcher, names Namer, log *zap.Logger) *Capturer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Capturer{fetch: fetch, names: names, log: log}
}

// ProcessedSet is the set of stylesheet URLs already visited along one
// recursive resolution chain. It is forked, never mutated, before being
// handed to a nested resolution, so sibling import branches cannot see each
// other's visits.
type ProcessedSet struct {
	urls []string
}

// NewProcessedSet seeds a set with the given URLs.
func NewProcessedSet(urls ...string) ProcessedSet {
	return ProcessedSet{urls: append([]string(nil), urls...)}
}

// Has reports whether url was visited on this chain.
func (s ProcessedSet) Has(url string) bool {
	for _, u := range s.urls {
		if u == url {
			return true
		}
	}
	return false
}

// Fork returns a copy of the set with url appended. The receiver is left
// untouched.
func (s ProcessedSet) Fork(url string) ProcessedSet {
	next := make([]string, len(s.urls), len(s.urls)+1)
	copy(next, s.urls)
	return ProcessedSet{urls: append(next, url)}
}

// Len reports how many URLs the chain has visited.
func (s ProcessedSet) Len() int { return len(s.urls) }
