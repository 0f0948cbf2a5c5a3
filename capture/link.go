package capture

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"styleclip/internal/urlx"
)

// LinkParams identifies one stylesheet reference to resolve.
type LinkParams struct {
	Link         string
	BaseURL      string
	DocURL       string
	StorageInfo  StorageInfo
	ClipID       string
	MimeTypes    map[string]string
	Options      Options
	Headers      http.Header
	Processed    ProcessedSet
	NeedFixStyle bool
}

// CaptureLink resolves a single stylesheet reference: completes its URL,
// fetches its text and delegates to CaptureText, then applies the
// cache/embed policy matrix. A malformed reference yields an empty result;
// a fetch failure is logged and resolution continues with empty content, so
// one broken stylesheet never aborts the surrounding capture.
func (c *Capturer) CaptureLink(ctx context.Context, p LinkParams) CaptureResult {
	completed := urlx.Complete(p.Link, p.BaseURL)
	if !completed.IsValid {
		c.log.Warn("invalid stylesheet reference",
			zap.String("link", p.Link),
			zap.String("base", p.BaseURL),
			zap.String("reason", completed.Message))
		return CaptureResult{}
	}

	fetched, err := c.fetch.Fetch(ctx, completed.URL, p.Headers, p.Options.Timeout, p.Options.MaxTries)
	if err != nil {
		c.log.Warn("stylesheet fetch failed", zap.String("url", completed.URL), zap.Error(err))
		fetched = FetchResult{}
	}

	// Embedded text lands in the page, so asset references inside it need
	// page-relative paths; a stylesheet saved as its own file sits next to
	// its assets and uses bare names.
	cssURL := completed.URL
	if p.Options.EmbedCSS {
		cssURL = p.DocURL
	}

	result := c.CaptureText(ctx, TextParams{
		Doc: StyleDocument{
			Text:    fetched.Text,
			BaseURL: completed.URL,
			CSSURL:  cssURL,
			DocURL:  p.DocURL,
		},
		StorageInfo:  p.StorageInfo,
		ClipID:       p.ClipID,
		MimeTypes:    p.MimeTypes,
		Options:      p.Options,
		Headers:      p.Headers,
		Processed:    p.Processed,
		NeedFixStyle: p.NeedFixStyle,
	})

	switch {
	case fetched.FromCache && p.Options.EmbedCSS:
		// The first resolution registered this sheet's tasks; re-resolving
		// keeps nested discovery uniform, but only the text is wanted here.
		return CaptureResult{CSSText: result.CSSText}
	case fetched.FromCache:
		// Already persisted by its first resolution.
		return CaptureResult{}
	case p.Options.EmbedCSS:
		return result
	default:
		name := c.names.NameFor(completed.URL, "css", "", "text/css")
		task := Task{
			Filename: c.names.FilenameFor(p.StorageInfo, name),
			Content:  result.CSSText,
			ClipID:   p.ClipID,
			Kind:     KindStyleFile,
		}
		return CaptureResult{Tasks: append(result.Tasks, task)}
	}
}
