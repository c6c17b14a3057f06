package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/mobiledepot/appfetch/internal/adapter/httpx"
	"github.com/mobiledepot/appfetch/internal/adapter/sqlite"
	"github.com/mobiledepot/appfetch/internal/config"
	"github.com/mobiledepot/appfetch/internal/domain"
	"github.com/mobiledepot/appfetch/internal/extract"
	"github.com/mobiledepot/appfetch/internal/logger"
	"github.com/mobiledepot/appfetch/internal/service/fetcher"
)

const version = "0.1.0"

const usage = `Usage: appfetch [flags] <command> [args]

Commands:
  fetch <url>        download and unpack an app bundle from a URL
  extract <archive>  unpack a local archive and locate the app bundle
  history            list recently fetched bundles
  gc                 remove stale temporary workspaces

Flags:
`

func main() {
	configPath := flag.String("config", "", "Path to configuration file (optional)")
	quiet := flag.Bool("quiet", false, "Suppress progress output")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
			os.Exit(1)
		}
	}

	log, err := logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	store, err := sqlite.Open(cfg.DatabasePath())
	if err != nil {
		log.Fatal("failed to open history database", zap.Error(err))
	}
	defer store.Close()

	transport := httpx.NewClient(cfg.Download.GetTimeout(), log)
	extractor := extract.New(log)

	fetcherCfg := &fetcher.Config{
		CacheRoot:        cfg.Cache.RootDir,
		TempRoot:         cfg.Cache.TempDir,
		ProgressInterval: cfg.Download.GetProgressInterval(),
	}
	svc := fetcher.New(fetcherCfg, transport, extractor, store, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	log.Debug("starting appfetch",
		zap.String("version", version),
		zap.String("command", flag.Arg(0)))

	var sink domain.ProgressSink
	if !*quiet {
		sink = printProgress
	}

	switch flag.Arg(0) {
	case "fetch":
		if flag.NArg() != 2 {
			fmt.Fprintln(os.Stderr, "Usage: appfetch fetch <url>")
			os.Exit(2)
		}
		path, err := svc.FetchFromURL(ctx, flag.Arg(1), sink)
		if err != nil {
			exitWithError(err)
		}
		fmt.Println(path)

	case "extract":
		if flag.NArg() != 2 {
			fmt.Fprintln(os.Stderr, "Usage: appfetch extract <archive>")
			os.Exit(2)
		}
		path, err := svc.ExtractArchive(ctx, flag.Arg(1))
		if err != nil {
			exitWithError(err)
		}
		fmt.Println(path)

	case "history":
		records, err := store.ListRecent(20)
		if err != nil {
			exitWithError(err)
		}
		for _, rec := range records {
			fmt.Printf("%s  %s  hits=%d  %s\n",
				rec.LastAccessAt.Format(time.RFC3339),
				humanize.Bytes(uint64(rec.BytesDownloaded)),
				rec.HitCount,
				rec.URL)
		}

	case "gc":
		removed, err := svc.CleanStaleWorkspaces(24 * time.Hour)
		if err != nil {
			exitWithError(err)
		}
		fmt.Printf("removed %d stale workspaces\n", removed)

	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", flag.Arg(0))
		flag.Usage()
		os.Exit(2)
	}
}

// printProgress renders transfer progress on stderr. The in-progress
// line shows the completed ratio and total size; completion prints a
// fixed message.
func printProgress(ev domain.ProgressEvent) {
	if ev.IsComplete {
		fmt.Fprintf(os.Stderr, "\rDownload complete.%-30s\n", "")
		return
	}
	fmt.Fprintf(os.Stderr, "\rDownloading %3.0f%% of %s...",
		ev.Percent*100, humanize.Bytes(ev.TotalBytes))
}

func exitWithError(err error) {
	var ambiguous *domain.AmbiguousBundleError
	if errors.As(err, &ambiguous) {
		// Show every candidate so the operator can pick one
		fmt.Fprintln(os.Stderr, "Error: archive contains more than one installable app:")
		for _, c := range ambiguous.Candidates {
			fmt.Fprintf(os.Stderr, "  %s  (%s)\n", c.Name, c.Path)
		}
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
