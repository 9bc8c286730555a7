package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/emilyzhang/assetcrawlr/assetcrawler"
	"github.com/emilyzhang/assetcrawlr/bundle"
	"github.com/emilyzhang/assetcrawlr/config"
	"github.com/emilyzhang/assetcrawlr/extractiondb"
	"github.com/emilyzhang/assetcrawlr/logger"
	"github.com/spf13/cobra"
)

type flags struct {
	cfgFile    string
	out        string
	payloads   bool
	sourcePage bool
}

func main() {
	var f flags
	cmd := &cobra.Command{
		Use:          "assetcrawlr <url>",
		Short:        "Extract a page and its assets into a zip archive",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return extract(cmd.Context(), args[0], f)
		},
	}
	cmd.Flags().StringVar(&f.cfgFile, "config", "", "config file (default is ./config.yaml or ./config/config.yaml)")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "archive path (default extraction-<id>.zip)")
	cmd.Flags().BoolVar(&f.payloads, "payloads", false, "probe API endpoints for JSON payloads")
	cmd.Flags().BoolVar(&f.sourcePage, "source-page", false, "include the page itself as index.html")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Unable to extract:", err)
		os.Exit(1)
	}
}

func extract(ctx context.Context, rawURL string, f flags) error {
	cfg, err := config.Load(f.cfgFile)
	if err != nil {
		return err
	}
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Development: cfg.Log.Development, OutputPaths: []string{"stderr"}})
	if err != nil {
		return err
	}
	defer log.Sync()

	store, closeStore, err := extractiondb.Open(ctx, extractiondb.OpenOptions{
		Driver:    cfg.Store.Driver,
		DSN:       cfg.Store.DSN,
		RedisAddr: cfg.Redis.Addr,
		RedisTTL:  cfg.Redis.TTL,
	})
	if err != nil {
		return err
	}
	defer closeStore()

	crawler := assetcrawler.New(store, log, cfg.AssetCrawler())
	started, err := crawler.StartExtraction(ctx, assetcrawler.Options{
		URL:               rawURL,
		IncludePayloads:   f.payloads,
		IncludeSourcePage: f.sourcePage,
	})
	if err != nil {
		return err
	}

	// Interrupts cancel the extraction, which then finishes as failed.
	go func() {
		<-ctx.Done()
		_ = crawler.Cancel(started.ID)
	}()
	if err := crawler.Wait(context.WithoutCancel(ctx), started.ID); err != nil {
		return err
	}

	r, err := store.Get(context.WithoutCancel(ctx), started.ID)
	if err != nil {
		return err
	}
	renderFiles(os.Stdout, r)
	if r.Status != extractiondb.StatusCompleted {
		return fmt.Errorf("extraction %s %s: %s", r.ID, r.Status, r.Error)
	}

	out := f.out
	if out == "" {
		out = fmt.Sprintf("extraction-%s.zip", r.ID)
	}
	return writeArchive(out, r)
}

func writeArchive(path string, r *extractiondb.ExtractionResult) error {
	entries, err := bundle.Entries(r)
	if err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("Unable to create %s: %w", path, err)
	}
	if err := bundle.WriteZip(file, entries); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return err
	}
	fmt.Printf("Wrote %d files to %s\n", len(entries), path)
	return nil
}
