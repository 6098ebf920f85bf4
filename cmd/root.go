package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tangocommunity/crawler/internal/config"
)

var cfg *config.Config

// signalContext is cancelled on SIGINT or SIGTERM so an interrupted command
// still finalizes its crawl logs and closes the environment.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

var rootCmd = &cobra.Command{
	Use:   "tango-crawler",
	Short: "Crawl tango events, dance gear deals and nearby hotels",
	Long:  "Fetches tango event listings, affiliate shop pages and hotel search results, extracts structured records with Claude and reconciles them into Postgres.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
