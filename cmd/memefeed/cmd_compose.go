package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/timmy/memefeed/internal/composer"
	"github.com/timmy/memefeed/internal/storage"
)

var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Compose and publish a meme",
	Long: `Compose a meme from a local picture. Every --caption is placed at a random
position on the canvas, in the order given.`,
	Example: `  memefeed compose --picture cat.png --caption "top text" --caption "bottom text"
  memefeed compose --picture dog.jpg --description "monday mood"`,
	RunE: runCompose,
}

var (
	composePicture     string
	composeCaptions    []string
	composeDescription string
)

func init() {
	rootCmd.AddCommand(composeCmd)
	composeCmd.Flags().StringVar(&composePicture, "picture", "", "Path to the picture (jpeg, png, gif or webp)")
	composeCmd.Flags().StringArrayVar(&composeCaptions, "caption", nil, "Caption text, repeatable")
	composeCmd.Flags().StringVar(&composeDescription, "description", "", "Meme description")
	_ = composeCmd.MarkFlagRequired("picture")
}

func runCompose(cmd *cobra.Command, args []string) error {
	cfg, client, err := setup()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	data, err := os.ReadFile(composePicture)
	if err != nil {
		return fmt.Errorf("failed to read picture: %w", err)
	}

	dir, err := os.MkdirTemp("", "memefeed-compose-*")
	if err != nil {
		return fmt.Errorf("failed to create work directory: %w", err)
	}
	defer os.RemoveAll(dir)

	store, err := storage.NewLocalStorage(dir, "")
	if err != nil {
		return err
	}

	c := composer.New(store, client, composer.Options{
		Canvas:          composer.Canvas{Width: cfg.Composer.CanvasWidth, Height: cfg.Composer.CanvasHeight},
		MaxPictureBytes: cfg.Composer.MaxPictureBytes,
	})

	if _, err := c.SetPicture(ctx, filepath.Base(composePicture), data); err != nil {
		return err
	}
	for i, text := range composeCaptions {
		if _, err := c.AddCaption(); err != nil {
			return err
		}
		if _, err := c.EditCaption(i, text); err != nil {
			return err
		}
	}
	if _, err := c.SetDescription(composeDescription); err != nil {
		return err
	}

	_, meme, err := c.Submit(ctx, token)
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), meme)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Meme %s published\n", meme.ID)
	return nil
}
