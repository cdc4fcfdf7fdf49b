package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/tubestats/internal/model"
	"github.com/derickschaefer/tubestats/internal/server"
	"github.com/derickschaefer/tubestats/internal/view"
)

var (
	commentsSort  string
	commentsDir   string
	commentsLimit int
)

var commentsCmd = &cobra.Command{
	Use:   "comments",
	Short: "Recent viewer comments",
	Long: `Lists viewer comments, newest first. All comments are sorted before
--limit is applied.

Sort keys: id, author, text, date, likes, videoTitle.`,
	Example: `  tubestats comments
  tubestats comments --sort likes --limit 20
  tubestats comments --format csv --limit 0 --out comments.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sort, err := view.ParseSort(commentsSort, commentsDir, true, view.DefaultCommentSort)
		if err != nil {
			return err
		}

		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()

		start := time.Now()
		snap, src, warnings, err := loadSnapshot(cmd.Context(), deps)
		if err != nil {
			return err
		}
		comments := view.RecentComments(snap.Payload.Comments, commentsLimit, sort)

		command := fmt.Sprintf("comments --sort %s --dir %s --limit %d", sort.Key, sort.Dir, commentsLimit)
		result := newResult(model.KindComments, command, comments, len(comments), start)
		result.Stats.Source = src
		result.Warnings = warnings
		return emit(cmd, result, resolveFormat(deps.Config.Format))
	},
}

func init() {
	rootCmd.AddCommand(commentsCmd)

	commentsCmd.Flags().StringVar(&commentsSort, "sort", "", "sort key (default: date)")
	commentsCmd.Flags().StringVar(&commentsDir, "dir", "", "sort direction: asc|desc (default: desc)")
	commentsCmd.Flags().IntVar(&commentsLimit, "limit", server.DefaultLimit, "number of comments (0 = all)")
}
