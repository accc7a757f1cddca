package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/timmy/memefeed/internal/logger"
	"github.com/timmy/memefeed/internal/service"
)

var commentCmd = &cobra.Command{
	Use:     "comment",
	Short:   "Post a comment on a meme",
	Example: `  memefeed comment --meme 42 --content "this is me every monday"`,
	RunE:    runComment,
}

var (
	commentMeme    string
	commentContent string
)

func init() {
	rootCmd.AddCommand(commentCmd)
	commentCmd.Flags().StringVar(&commentMeme, "meme", "", "Meme id")
	commentCmd.Flags().StringVar(&commentContent, "content", "", "Comment text")
	_ = commentCmd.MarkFlagRequired("meme")
	_ = commentCmd.MarkFlagRequired("content")
}

func runComment(cmd *cobra.Command, args []string) error {
	_, client, err := setup()
	if err != nil {
		return err
	}

	comments := service.NewCommentService(client, logger.GetDefault())
	section := service.CommentSection{}.Toggle(commentMeme).SetDraft(commentMeme, commentContent)

	created, err := comments.Create(cmd.Context(), token, commentMeme, section.Draft(commentMeme))
	if err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), created)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Comment %s posted on %s by %s: %s\n",
		created.ID, created.MemeID, username(created.Author, created.AuthorID), created.Content)
	return nil
}
