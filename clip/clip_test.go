package clip

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"testing"
	"time"

	"golang.org/x/net/html"

	"styleclip/capture"
)

type pageFetcher struct {
	pages map[string]string
	calls []string
}

func (f *pageFetcher) Fetch(_ context.Context, url string, _ http.Header, _ time.Duration, _ int) (capture.FetchResult, error) {
	f.calls = append(f.calls, url)
	text, ok := f.pages[url]
	if !ok {
		return capture.FetchResult{}, fmt.Errorf("no fixture for %s", url)
	}
	return capture.FetchResult{Text: text}, nil
}

type pageNames struct{}

func (pageNames) NameFor(u, ext, prefix, _ string) string {
	name := path.Base(u)
	if i := strings.IndexByte(name, '?'); i != -1 {
		name = name[:i]
	}
	if prefix != "" {
		name = prefix + "-" + name
	}
	if ext != "" && !strings.HasSuffix(name, "."+ext) {
		name += "." + ext
	}
	return name
}

func (pageNames) FilenameFor(info capture.StorageInfo, n string) string {
	return path.Join(info.AssetFolder, n)
}

func (pageNames) PathFor(info capture.StorageInfo, n string) string {
	return path.Join(info.AssetRelPath, n)
}

func parsePage(t *testing.T, body string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		t.Fatalf("unable to parse fixture: %v", err)
	}
	return doc
}

func newTestClipper(f capture.Fetcher) *Clipper {
	names := pageNames{}
	return New(capture.New(f, names, nil), names, nil)
}

func pageParams(opts capture.Options) PageParams {
	return PageParams{
		DocURL:      "https://example.com/page",
		StorageInfo: capture.StorageInfo{AssetFolder: "out", AssetRelPath: "assets"},
		ClipID:      "clip-1",
		Options:     opts,
	}
}

func TestCapturePageInlineStyle(t *testing.T) {
	t.Parallel()
	cl := newTestClipper(&pageFetcher{})
	doc := parsePage(t, `<html><head><style>h1 { background: url("i.png"); }</style></head><body></body></html>`)

	r := cl.CapturePage(context.Background(), doc, pageParams(capture.Options{SaveCSSImage: true}))

	if r.CSSText != `h1 { background: url("assets/i.png"); }` {
		t.Fatalf("CSSText = %q", r.CSSText)
	}
	if len(r.Tasks) != 1 || r.Tasks[0].Kind != capture.KindImageFile {
		t.Fatalf("Tasks = %+v", r.Tasks)
	}
	if r.Tasks[0].URL != "https://example.com/i.png" {
		t.Fatalf("asset URL = %q", r.Tasks[0].URL)
	}
}

func TestCapturePageLinkedStylesheet(t *testing.T) {
	t.Parallel()
	f := &pageFetcher{pages: map[string]string{
		"https://example.com/a.css": "p { margin: 0; }",
	}}
	cl := newTestClipper(f)
	doc := parsePage(t, `<html><head><link rel="stylesheet" href="a.css"></head><body></body></html>`)

	r := cl.CapturePage(context.Background(), doc, pageParams(capture.Options{}))

	if r.CSSText != "" {
		t.Fatalf("CSSText = %q, want empty when not embedding", r.CSSText)
	}
	if len(r.Links) != 1 || r.Links[0].Href != "a.css" || r.Links[0].AssetName != "assets/a.css" {
		t.Fatalf("Links = %+v", r.Links)
	}
	if len(r.Tasks) != 1 || r.Tasks[0].Kind != capture.KindStyleFile || r.Tasks[0].Content != "p { margin: 0; }" {
		t.Fatalf("Tasks = %+v", r.Tasks)
	}
}

func TestCapturePageEmbedsLinkedStylesheet(t *testing.T) {
	t.Parallel()
	f := &pageFetcher{pages: map[string]string{
		"https://example.com/a.css": "p { margin: 0; }",
	}}
	cl := newTestClipper(f)
	doc := parsePage(t, `<html><head>
<style>h1 { color: red; }</style>
<link rel="stylesheet" href="a.css">
</head><body></body></html>`)

	r := cl.CapturePage(context.Background(), doc, pageParams(capture.Options{EmbedCSS: true}))

	want := "h1 { color: red; }\n\np { margin: 0; }"
	if r.CSSText != want {
		t.Fatalf("CSSText = %q, want %q", r.CSSText, want)
	}
	if len(r.Links) != 0 {
		t.Fatalf("Links = %+v, want none when embedding", r.Links)
	}
}

func TestCapturePageHonorsBaseHref(t *testing.T) {
	t.Parallel()
	f := &pageFetcher{pages: map[string]string{
		"https://cdn.example.org/x/a.css": "p {}",
	}}
	cl := newTestClipper(f)
	doc := parsePage(t, `<html><head>
<base href="https://cdn.example.org/x/">
<link rel="stylesheet" href="a.css">
</head><body></body></html>`)

	cl.CapturePage(context.Background(), doc, pageParams(capture.Options{EmbedCSS: true}))

	if len(f.calls) != 1 || f.calls[0] != "https://cdn.example.org/x/a.css" {
		t.Fatalf("fetched %v, want the base-resolved URL", f.calls)
	}
}

func TestCapturePageSkipsNonStylesheetLinks(t *testing.T) {
	t.Parallel()
	f := &pageFetcher{pages: map[string]string{
		"https://example.com/a.css": "p {}",
	}}
	cl := newTestClipper(f)
	doc := parsePage(t, `<html><head>
<link rel="icon" href="favicon.ico">
<link rel="preload stylesheet" href="a.css" type="text/css">
<link rel="alternate" href="feed.xml" type="application/rss+xml">
</head><body></body></html>`)

	r := cl.CapturePage(context.Background(), doc, pageParams(capture.Options{}))

	if len(f.calls) != 1 || f.calls[0] != "https://example.com/a.css" {
		t.Fatalf("fetched %v, want only the stylesheet", f.calls)
	}
	if len(r.Links) != 1 {
		t.Fatalf("Links = %+v", r.Links)
	}
}

func TestNewClipIDIsUnique(t *testing.T) {
	t.Parallel()
	a, b := NewClipID(), NewClipID()
	if a == "" || a == b {
		t.Fatalf("clip IDs not unique: %q, %q", a, b)
	}
}
