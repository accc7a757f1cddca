package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/timmy/memefeed/internal/config"
	"github.com/timmy/memefeed/internal/logger"
	"github.com/timmy/memefeed/internal/memeapi"
	"github.com/timmy/memefeed/internal/metrics"
)

var rootCmd = &cobra.Command{
	Use:   "memefeed",
	Short: "Browse, comment on and compose memes from the terminal",
	Long: `memefeed talks to the meme service directly: it assembles feed pages with
authors and comments, posts comments, and composes new memes.

The bearer token is read from --token or MEMEFEED_TOKEN.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := logger.ConfigFromEnv("memefeed-cli")
		cfg.Output = os.Stderr
		if !verbose {
			cfg.Level = "warn"
		}
		cfg.Format = "text"
		logger.SetDefaultLogger(logger.New(cfg))
		return nil
	},
}

// Global flags
var (
	configPath string
	token      string
	jsonOutput bool
	verbose    bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("MEMEFEED_TOKEN"), "Bearer token (default $MEMEFEED_TOKEN)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print results as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log requests to stderr")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// setup loads the configuration and builds a meme service client.
func setup() (*config.Config, *memeapi.Client, error) {
	if token == "" {
		return nil, nil, fmt.Errorf("a bearer token is required (--token or MEMEFEED_TOKEN)")
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, memeapi.NewClient(memeapi.ConfigFrom(cfg.API), metrics.New()), nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
