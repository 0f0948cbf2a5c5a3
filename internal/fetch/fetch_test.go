package fetch

import (
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetchCachesByURL(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Write([]byte("p {}"))
	}))
	defer srv.Close()

	c := New(nil)

	first, err := c.Fetch(context.Background(), srv.URL+"/a.css", nil, time.Second, 1)
	if err != nil {
		t.Fatalf("first fetch failed: %v", err)
	}
	if first.FromCache || first.Text != "p {}" {
		t.Fatalf("first fetch = %+v", first)
	}

	second, err := c.Fetch(context.Background(), srv.URL+"/a.css", nil, time.Second, 1)
	if err != nil {
		t.Fatalf("second fetch failed: %v", err)
	}
	if !second.FromCache || second.Text != "p {}" {
		t.Fatalf("second fetch = %+v", second)
	}
	if hits.Load() != 1 {
		t.Fatalf("server hit %d times, want 1", hits.Load())
	}

	other, err := c.Fetch(context.Background(), srv.URL+"/b.css", nil, time.Second, 1)
	if err != nil {
		t.Fatalf("other fetch failed: %v", err)
	}
	if other.FromCache {
		t.Fatalf("different URL served from cache")
	}
}

func TestBytesRetriesUntilSuccess(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New(nil)
	body, err := c.Bytes(context.Background(), srv.URL, nil, time.Second, 3)
	if err != nil {
		t.Fatalf("Bytes failed after retries: %v", err)
	}
	if string(body) != "ok" {
		t.Fatalf("body = %q", body)
	}
	if hits.Load() != 3 {
		t.Fatalf("server hit %d times, want 3", hits.Load())
	}
}

func TestBytesExhaustsRetries(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(nil)
	if _, err := c.Bytes(context.Background(), srv.URL, nil, time.Second, 2); err == nil {
		t.Fatalf("expected error after exhausted retries")
	}
	if hits.Load() != 2 {
		t.Fatalf("server hit %d times, want 2", hits.Load())
	}
}

func TestBytesDecodesGzip(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		gz := gzip.NewWriter(w)
		gz.Write([]byte("h1 { color: red; }"))
		gz.Close()
	}))
	defer srv.Close()

	// An explicit Accept-Encoding disables the transport's transparent
	// decompression, exercising the manual path.
	headers := http.Header{}
	headers.Set("Accept-Encoding", "gzip")

	c := New(nil)
	body, err := c.Bytes(context.Background(), srv.URL, headers, time.Second, 1)
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	if string(body) != "h1 { color: red; }" {
		t.Fatalf("body = %q", body)
	}
}

func TestBytesForwardsHeaders(t *testing.T) {
	t.Parallel()
	var gotUA, gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	headers := http.Header{}
	headers.Set("User-Agent", "styleclip-test/1.0")
	headers.Set("Accept", "text/html")

	c := New(nil)
	if _, err := c.Bytes(context.Background(), srv.URL, headers, time.Second, 1); err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	if gotUA != "styleclip-test/1.0" {
		t.Fatalf("User-Agent = %q", gotUA)
	}
	// The page's Accept header is not meaningful for subresources.
	if gotAccept != "text/css,*/*;q=0.1" {
		t.Fatalf("Accept = %q", gotAccept)
	}
}

func TestFailedFetchIsNotCached(t *testing.T) {
	t.Parallel()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := New(nil)
	if _, err := c.Fetch(context.Background(), srv.URL, nil, time.Second, 1); err == nil {
		t.Fatalf("expected first fetch to fail")
	}
	got, err := c.Fetch(context.Background(), srv.URL, nil, time.Second, 1)
	if err != nil {
		t.Fatalf("second fetch failed: %v", err)
	}
	if got.FromCache || got.Text != "ok" {
		t.Fatalf("second fetch = %+v", got)
	}
}
