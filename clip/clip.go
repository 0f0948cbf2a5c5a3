// Package clip walks a parsed HTML page, finds its style sources and drives
// capture over them: inline <style> elements and <link rel="stylesheet">
// references, with <base href> honored for relative resolution.
package clip

import (
	"context"
	"net/http"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"styleclip/capture"
	"styleclip/internal/urlx"
)

var (
	selStyle = cascadia.MustCompile("style")
	selLink  = cascadia.MustCompile("link[rel][href]")
	selBase  = cascadia.MustCompile("base[href]")
)

// PageParams addresses one page capture.
type PageParams struct {
	DocURL       string
	StorageInfo  capture.StorageInfo
	ClipID       string
	MimeTypes    map[string]string
	Options      capture.Options
	Headers      http.Header
	NeedFixStyle bool
}

// LinkStyle records a stylesheet link that stays external: the original href
// and the local file the page should point at instead.
type LinkStyle struct {
	Href      string
	AssetName string
}

// PageResult is the combined CSS of the page plus everything to persist.
// Links is empty when stylesheets are embedded.
type PageResult struct {
	CSSText string
	Tasks   []capture.Task
	Links   []LinkStyle
}

// Clipper captures the style sources of whole pages.
type Clipper struct {
	cap   *capture.Capturer
	names capture.Namer
	log   *zap.Logger
}

// New returns a Clipper. A nil logger disables logging.
func New(cap *capture.Capturer, names capture.Namer, log *zap.Logger) *Clipper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Clipper{cap: cap, names: names, log: log}
}

// NewClipID returns a fresh identifier tying a page's tasks together.
func NewClipID() string {
	return uuid.NewString()
}

// CapturePage resolves every style source of doc in document order. Inline
// style text always joins the combined CSS; linked stylesheets join it when
// embedding, otherwise each surfaces as a LinkStyle entry plus its tasks.
func (cl *Clipper) CapturePage(ctx context.Context, doc *html.Node, p PageParams) PageResult {
	baseURL := pageBaseURL(doc, p.DocURL)

	var (
		pieces []string
		out    PageResult
	)

	for _, n := range selStyle.MatchAll(doc) {
		r := cl.cap.CaptureText(ctx, capture.TextParams{
			Doc: capture.StyleDocument{
				Text:    nodeText(n),
				BaseURL: baseURL,
				CSSURL:  p.DocURL,
				DocURL:  p.DocURL,
			},
			StorageInfo:  p.StorageInfo,
			ClipID:       p.ClipID,
			MimeTypes:    p.MimeTypes,
			Options:      p.Options,
			Headers:      p.Headers,
			Processed:    capture.NewProcessedSet(p.DocURL),
			NeedFixStyle: p.NeedFixStyle,
		})
		if t := strings.TrimSpace(r.CSSText); t != "" {
			pieces = append(pieces, t)
		}
		out.Tasks = append(out.Tasks, r.Tasks...)
	}

	for _, n := range selLink.MatchAll(doc) {
		if !isStylesheetLink(n) {
			continue
		}
		href := getAttr(n, "href")
		completed := urlx.Complete(href, baseURL)
		if !completed.IsValid {
			cl.log.Warn("skipping unresolvable stylesheet link",
				zap.String("href", href), zap.String("base", baseURL))
			continue
		}
		r := cl.cap.CaptureLink(ctx, capture.LinkParams{
			Link:         completed.URL,
			BaseURL:      baseURL,
			DocURL:       p.DocURL,
			StorageInfo:  p.StorageInfo,
			ClipID:       p.ClipID,
			MimeTypes:    p.MimeTypes,
			Options:      p.Options,
			Headers:      p.Headers,
			Processed:    capture.NewProcessedSet(completed.URL),
			NeedFixStyle: p.NeedFixStyle,
		})
		out.Tasks = append(out.Tasks, r.Tasks...)
		if p.Options.EmbedCSS {
			if t := strings.TrimSpace(r.CSSText); t != "" {
				pieces = append(pieces, t)
			}
			continue
		}
		out.Links = append(out.Links, LinkStyle{
			Href:      href,
			AssetName: cl.names.PathFor(p.StorageInfo, cl.names.NameFor(completed.URL, "css", "", "text/css")),
		})
	}

	out.CSSText = strings.Join(pieces, "\n\n")
	return out
}

// pageBaseURL resolves the page's first <base href> against the document URL;
// without one the document URL itself is the base.
func pageBaseURL(doc *html.Node, docURL string) string {
	if n := selBase.MatchFirst(doc); n != nil {
		if completed := urlx.Complete(getAttr(n, "href"), docURL); completed.IsValid {
			return completed.URL
		}
	}
	return docURL
}

// isStylesheetLink accepts rel token lists containing "stylesheet" with an
// empty or text/css type.
func isStylesheetLink(n *html.Node) bool {
	rel := false
	for _, tok := range strings.Fields(getAttr(n, "rel")) {
		if strings.EqualFold(tok, "stylesheet") {
			rel = true
			break
		}
	}
	if !rel {
		return false
	}
	typ := strings.TrimSpace(getAttr(n, "type"))
	return typ == "" || strings.EqualFold(typ, "text/css")
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}
