package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/emilyzhang/assetcrawlr/api"
	"github.com/emilyzhang/assetcrawlr/assetcrawler"
	"github.com/emilyzhang/assetcrawlr/config"
	"github.com/emilyzhang/assetcrawlr/extractiondb"
	"github.com/emilyzhang/assetcrawlr/logger"
	"github.com/spf13/cobra"
)

func main() {
	var cfgFile string
	cmd := &cobra.Command{
		Use:          "assetcrawlr-api",
		Short:        "Serve the asset extraction API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), cfgFile)
		},
	}
	cmd.Flags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml or ./config/config.yaml)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Unable to start API server:", err)
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfgFile string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Development: cfg.Log.Development})
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
	log.Info("Connected to store", logger.String("driver", cfg.Store.Driver))

	crawler := assetcrawler.New(store, log, cfg.AssetCrawler())
	return api.New(store, crawler, log).Start(ctx, cfg.Server.Address)
}
