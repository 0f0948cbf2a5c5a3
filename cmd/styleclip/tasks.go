package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"styleclip/capture"
	"styleclip/internal/assets"
	"styleclip/internal/fetch"
	"styleclip/internal/urlx"
)

// executeTasks persists every capture task. Style tasks carry their content
// inline; font and image tasks are fetched (or decoded, for data URLs).
// Failures are collected so one bad asset never loses the rest.
func executeTasks(ctx context.Context, log *zap.Logger, client *fetch.Client, headers http.Header, timeout time.Duration, maxTries int, tasks []capture.Task) error {
	var errs error
	for _, t := range tasks {
		if err := executeTask(ctx, client, headers, timeout, maxTries, t); err != nil {
			log.Warn("task failed",
				zap.String("kind", t.Kind),
				zap.String("filename", t.Filename),
				zap.Error(err))
			errs = multierr.Append(errs, err)
			continue
		}
		log.Debug("task done", zap.String("kind", t.Kind), zap.String("filename", t.Filename))
	}
	return errs
}

func executeTask(ctx context.Context, client *fetch.Client, headers http.Header, timeout time.Duration, maxTries int, t capture.Task) error {
	var (
		body []byte
		err  error
	)
	switch {
	case t.Kind == capture.KindStyleFile:
		body = []byte(t.Content)
	case urlx.IsDataURL(t.URL):
		_, body = assets.DecodeDataURL(t.URL)
		if body == nil {
			return fmt.Errorf("malformed data URL for '%s'", t.Filename)
		}
	default:
		body, err = client.Bytes(ctx, t.URL, headers, timeout, maxTries)
		if err != nil {
			return fmt.Errorf("unable to fetch '%s': %w", t.URL, err)
		}
	}
	return writeFile(t.Filename, body)
}

func writeFile(name string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return fmt.Errorf("unable to create directory for '%s': %w", name, err)
	}
	if err := os.WriteFile(name, data, 0o644); err != nil {
		return fmt.Errorf("unable to write '%s': %w", name, err)
	}
	return nil
}
