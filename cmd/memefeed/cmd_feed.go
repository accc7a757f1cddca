package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/timmy/memefeed/internal/domain"
	"github.com/timmy/memefeed/internal/logger"
	"github.com/timmy/memefeed/internal/service"
)

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Show a page of the feed with authors and comments",
	Example: `  memefeed feed
  memefeed feed --page 2 --json`,
	RunE: runFeed,
}

var feedPage int

func init() {
	rootCmd.AddCommand(feedCmd)
	feedCmd.Flags().IntVar(&feedPage, "page", 1, "Page number (1-based)")
}

func runFeed(cmd *cobra.Command, args []string) error {
	cfg, client, err := setup()
	if err != nil {
		return err
	}

	feed := service.NewFeedService(client, nil, logger.GetDefault(), &service.FeedConfig{
		MaxConcurrency: cfg.API.MaxConcurrency,
	})
	loader := service.NewFeedLoader(feed)
	unsubscribe := loader.Subscribe(func(s service.FeedState) {
		if s.Loading {
			fmt.Fprintf(os.Stderr, "Loading page %d...\n", s.Page)
		}
	})
	defer unsubscribe()

	state, _ := loader.Load(cmd.Context(), token, feedPage)
	if state.Err != nil {
		return fmt.Errorf("failed to load feed: %w", state.Err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return printJSON(out, &service.FeedPage{
			Page:     state.Page,
			PageSize: state.PageSize,
			Total:    state.Total,
			Memes:    state.Memes,
		})
	}
	printFeed(out, state)
	return nil
}

func printFeed(w io.Writer, s service.FeedState) {
	fmt.Fprintf(w, "Page %d (%d memes, %d total)\n", s.Page, len(s.Memes), s.Total)
	for _, m := range s.Memes {
		fmt.Fprintf(w, "\n[%s] by %s\n", m.ID, username(m.Author, m.AuthorID))
		if m.Description != "" {
			fmt.Fprintf(w, "  %s\n", m.Description)
		}
		fmt.Fprintf(w, "  %s\n", m.PictureURL)
		for _, t := range m.Texts {
			fmt.Fprintf(w, "  %q at (%.0f, %.0f)\n", t.Content, t.X, t.Y)
		}
		if len(m.Comments) == 0 {
			continue
		}
		fmt.Fprintf(w, "  %d comments:\n", len(m.Comments))
		for _, c := range m.Comments {
			fmt.Fprintf(w, "    %s: %s\n", username(c.Author, c.AuthorID), c.Content)
		}
	}
}

func username(u *domain.User, fallback string) string {
	if u == nil || u.Username == "" {
		return "unknown (" + fallback + ")"
	}
	return u.Username
}
