package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"styleclip/capture"
	"styleclip/clip"
	"styleclip/internal/assets"
	"styleclip/internal/fetch"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	app := &cli.Command{
		Name:            "styleclip",
		Usage:           "captures a page's stylesheets and their assets for offline use",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "load configuration from `FILE` (YAML)"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "enable debug logging"},
		},
		Commands: []*cli.Command{
			{
				Name:      "clip",
				Usage:     "Resolves and persists all CSS reachable from URL",
				Action:    runClip,
				ArgsUsage: "URL",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output `DIR` for the page stylesheet"},
					&cli.BoolFlag{Name: "embed-css", Usage: "inline imported stylesheets instead of saving them as files"},
					&cli.BoolFlag{Name: "no-fonts", Usage: "blank web font references instead of saving them"},
					&cli.BoolFlag{Name: "no-images", Usage: "blank CSS image references instead of saving them"},
					&cli.BoolFlag{Name: "fix-style", Usage: "re-root body > selectors under the clip wrapper"},
					&cli.DurationFlag{Name: "timeout", Usage: "per-fetch `TIMEOUT`"},
					&cli.IntFlag{Name: "max-tries", Usage: "fetch attempts per resource"},
					&cli.StringFlag{Name: "user-agent", Usage: "User-Agent `STRING` sent with every fetch"},
				},
			},
		},
	}

	var err error
	defer func() {
		stop()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Program ended with error: %v\n", err)
			os.Exit(1)
		}
	}()
	err = app.Run(ctx, os.Args)
}

func runClip(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() != 1 {
		return fmt.Errorf("expected exactly one URL argument, got %d", cmd.NArg())
	}
	pageURL := cmd.Args().Get(0)

	cfg, err := loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	if cmd.IsSet("out") {
		cfg.Output.Dir = cmd.String("out")
	}
	if cmd.IsSet("embed-css") {
		cfg.Capture.EmbedCSS = cmd.Bool("embed-css")
	}
	if cmd.Bool("no-fonts") {
		cfg.Capture.SaveFonts = false
	}
	if cmd.Bool("no-images") {
		cfg.Capture.SaveImages = false
	}
	if cmd.IsSet("fix-style") {
		cfg.Capture.FixStyle = cmd.Bool("fix-style")
	}
	if cmd.IsSet("timeout") {
		cfg.Fetch.Timeout = Duration(cmd.Duration("timeout"))
	}
	if cmd.IsSet("max-tries") {
		cfg.Fetch.MaxTries = int(cmd.Int("max-tries"))
	}
	if cmd.IsSet("user-agent") {
		cfg.Fetch.UserAgent = cmd.String("user-agent")
	}
	if cmd.Bool("verbose") {
		cfg.Logging.Level = "debug"
	}

	log, err := prepareLog(cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	headers := http.Header{}
	headers.Set("User-Agent", cfg.Fetch.UserAgent)
	timeout := time.Duration(cfg.Fetch.Timeout)

	client := fetch.New(log)
	page, err := client.Bytes(ctx, pageURL, headers, timeout, cfg.Fetch.MaxTries)
	if err != nil {
		return fmt.Errorf("unable to fetch page '%s': %w", pageURL, err)
	}
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return fmt.Errorf("unable to parse page '%s': %w", pageURL, err)
	}

	names := assets.Naming{}
	capturer := capture.New(client, names, log)
	clipper := clip.New(capturer, names, log)
	clipID := clip.NewClipID()

	log.Info("capturing page", zap.String("url", pageURL), zap.String("clip", clipID))

	result := clipper.CapturePage(ctx, doc, clip.PageParams{
		DocURL: pageURL,
		StorageInfo: capture.StorageInfo{
			AssetFolder:  cfg.Output.AssetFolder,
			AssetRelPath: cfg.Output.AssetRelPath,
		},
		ClipID: clipID,
		Options: capture.Options{
			EmbedCSS:     cfg.Capture.EmbedCSS,
			SaveWebFont:  cfg.Capture.SaveFonts,
			SaveCSSImage: cfg.Capture.SaveImages,
			Timeout:      timeout,
			MaxTries:     cfg.Fetch.MaxTries,
		},
		Headers:      headers,
		NeedFixStyle: cfg.Capture.FixStyle,
	})

	cssFile := filepath.Join(cfg.Output.Dir, "style.css")
	if err := writeFile(cssFile, []byte(result.CSSText)); err != nil {
		return err
	}
	log.Info("page stylesheet written",
		zap.String("file", cssFile),
		zap.Int("tasks", len(result.Tasks)),
		zap.Int("links", len(result.Links)))
	for _, l := range result.Links {
		log.Info("external stylesheet", zap.String("href", l.Href), zap.String("local", l.AssetName))
	}

	return executeTasks(ctx, log, client, headers, timeout, cfg.Fetch.MaxTries, result.Tasks)
}
