// Package fetch retrieves remote resources for capture. Fetched text is kept
// in an in-process cache so repeat references to the same stylesheet are
// answered locally and reported as cache hits.
package fetch

import (
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"styleclip/capture"
)

const (
	defaultTimeout  = 8 * time.Second
	defaultMaxTries = 3
)

// Client implements capture.Fetcher over HTTP.
type Client struct {
	log   *zap.Logger
	cache sync.Map // url -> string
}

// New returns a Client. A nil logger disables logging.
func New(log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{log: log}
}

// Fetch returns the text at url, reporting whether it came from the cache.
// Only successful fetches populate the cache.
func (c *Client) Fetch(ctx context.Context, url string, headers http.Header, timeout time.Duration, maxTries int) (capture.FetchResult, error) {
	if v, ok := c.cache.Load(url); ok {
		return capture.FetchResult{FromCache: true, Text: v.(string)}, nil
	}
	body, err := c.Bytes(ctx, url, headers, timeout, maxTries)
	if err != nil {
		return capture.FetchResult{}, err
	}
	text := string(body)
	c.cache.Store(url, text)
	return capture.FetchResult{Text: text}, nil
}

// Bytes fetches url with bounded retries, decoding gzip/deflate bodies.
func (c *Client) Bytes(ctx context.Context, url string, headers http.Header, timeout time.Duration, maxTries int) ([]byte, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if maxTries <= 0 {
		maxTries = defaultMaxTries
	}
	var lastErr error
	for attempt := 1; attempt <= maxTries; attempt++ {
		body, err := c.fetchOnce(ctx, url, headers, timeout)
		if err == nil {
			return body, nil
		}
		lastErr = err
		c.log.Debug("fetch attempt failed",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Int("maxTries", maxTries),
			zap.Error(err))
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (c *Client) fetchOnce(ctx context.Context, url string, headers http.Header, timeout time.Duration) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/css,*/*;q=0.1")
	for k, vals := range headers {
		for _, v := range vals {
			if strings.EqualFold(k, "accept") {
				continue
			}
			req.Header.Add(k, v)
		}
	}
	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}
	rc := io.ReadCloser(resp.Body)
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		if gr, err := gzip.NewReader(resp.Body); err == nil {
			rc = gr
			defer gr.Close()
		}
	case "deflate":
		if zr, err := zlib.NewReader(resp.Body); err == nil {
			rc = zr
			defer zr.Close()
		} else if fr := flate.NewReader(resp.Body); fr != nil {
			rc = io.NopCloser(fr)
			defer fr.Close()
		}
	}
	return io.ReadAll(rc)
}
