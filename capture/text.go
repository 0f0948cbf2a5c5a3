package capture

import (
	"context"
	"net/http"
	"strings"

	"styleclip/internal/urlx"
)

// TextParams carries one CSS text through resolution.
type TextParams struct {
	Doc          StyleDocument
	StorageInfo  StorageInfo
	ClipID       string
	MimeTypes    map[string]string
	Options      Options
	Headers      http.Header
	Processed    ProcessedSet
	NeedFixStyle bool
}

// CaptureText resolves every external reference in one CSS text. Stages run
// in a fixed order, each on the previous stage's output: comment strip,
// fonts, images, imports, selector fix-up, then the two substitution passes.
// Errors are absorbed per reference; the result never carries placeholder
// tokens.
func (c *Capturer) CaptureText(ctx context.Context, p TextParams) CaptureResult {
	text := stripComments(p.Doc.Text)

	am := newMarker("asset")
	text = reFontFace.ReplaceAllStringFunc(text, func(block string) string {
		return applyAssetRules(block, p.Doc.BaseURL, KindFontFile, am, p.Options.SaveWebFont)
	})
	text = reImageDecl.ReplaceAllStringFunc(text, func(decl string) string {
		return applyAssetRules(decl, p.Doc.BaseURL, KindImageFile, am, p.Options.SaveCSSImage)
	})

	im := newMarker("import")
	for _, re := range importRules {
		rule := re
		text = rule.ReplaceAllStringFunc(text, func(match string) string {
			sub := rule.FindStringSubmatch(match)
			completed := urlx.Complete(strings.TrimSpace(sub[1]), p.Doc.BaseURL)
			if !completed.IsValid || !urlx.IsHTTPURL(completed.URL) {
				return match
			}
			return im.next(completed.URL, KindStyleFile, strings.TrimSpace(sub[2]))
		})
	}

	// Fix-up runs before import splicing; recursive captures fix their own
	// text, so spliced content is never rewritten twice.
	if p.NeedFixStyle {
		text = fixBodyChildSelector(text)
	}

	var tasks []Task
	text = c.buildAssetTasks(text, am, p, &tasks)

	if len(im.entries) > 0 {
		if p.Options.EmbedCSS {
			text = c.embedImports(ctx, text, im, p, &tasks)
		} else {
			text = c.rewriteImports(ctx, text, im, p, &tasks)
		}
		text = strings.TrimSpace(text)
	}

	return CaptureResult{CSSText: text, Tasks: tasks}
}

// buildAssetTasks turns the marker's collected URL sequence into persistence
// tasks and substitutes each token with the asset's reference path. When the
// owning stylesheet lands at the page's own destination the reference is
// folder-relative; a stylesheet saved next to its assets uses the bare name.
func (c *Capturer) buildAssetTasks(text string, am *marker, p TextParams, tasks *[]Task) string {
	named := make(map[string]string, len(am.entries))
	return am.replaceBack(text, func(u string, i int) string {
		name, seen := named[u]
		if !seen {
			name = c.names.NameFor(u, "", "", p.MimeTypes[u])
			named[u] = name
			*tasks = append(*tasks, Task{
				Filename: c.names.FilenameFor(p.StorageInfo, name),
				URL:      u,
				ClipID:   p.ClipID,
				Kind:     am.entries[i].kind,
			})
		}
		if p.Doc.CSSURL == p.Doc.DocURL {
			return c.names.PathFor(p.StorageInfo, name)
		}
		return name
	})
}

// embedImports splices each import target's resolved text into its
// placeholder. A URL already on the resolution chain is a cycle and becomes
// an empty string; a URL imported twice embeds the same text at both
// occurrences while resolving (and registering tasks) only once.
func (c *Capturer) embedImports(ctx context.Context, text string, im *marker, p TextParams, tasks *[]Task) string {
	resolved := make(map[string]string, len(im.entries))
	return im.replaceBack(text, func(u string, i int) string {
		if p.Processed.Has(u) {
			return ""
		}
		body, seen := resolved[u]
		if !seen {
			r := c.CaptureLink(ctx, c.importParams(u, p))
			body = strings.TrimSpace(r.CSSText)
			resolved[u] = body
			*tasks = append(*tasks, r.Tasks...)
		}
		if media := im.entries[i].media; media != "" {
			return "@media " + media + " {\n" + body + "\n}\n\n"
		}
		return body + "\n\n"
	})
}

// rewriteImports points each import statement at the target's would-be local
// file and recurses once per distinct target purely to discover nested
// tasks; the statement text itself is not re-embedded. Targets already on
// the resolution chain are not recursed into.
func (c *Capturer) rewriteImports(ctx context.Context, text string, im *marker, p TextParams, tasks *[]Task) string {
	named := make(map[string]string, len(im.entries))
	return im.replaceBack(text, func(u string, i int) string {
		name, seen := named[u]
		if !seen {
			name = c.names.NameFor(u, "css", "", "text/css")
			named[u] = name
			if !p.Processed.Has(u) {
				r := c.CaptureLink(ctx, c.importParams(u, p))
				*tasks = append(*tasks, r.Tasks...)
			}
		}
		ref := name
		if p.Doc.CSSURL == p.Doc.DocURL {
			ref = c.names.PathFor(p.StorageInfo, name)
		}
		stmt := `@import url("` + ref + `")`
		if media := im.entries[i].media; media != "" {
			stmt += " " + media
		}
		return stmt + ";\n"
	})
}

func (c *Capturer) importParams(u string, p TextParams) LinkParams {
	return LinkParams{
		Link:         u,
		BaseURL:      p.Doc.BaseURL,
		DocURL:       p.Doc.DocURL,
		StorageInfo:  p.StorageInfo,
		ClipID:       p.ClipID,
		MimeTypes:    p.MimeTypes,
		Options:      p.Options,
		Headers:      p.Headers,
		Processed:    p.Processed.Fork(u),
		NeedFixStyle: p.NeedFixStyle,
	}
}
