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
	videosSort  string
	videosDir   string
	videosLimit int
)

var videosCmd = &cobra.Command{
	Use:   "videos",
	Short: "Top videos with views, likes, comments and revenue",
	Long: `Lists the channel's top videos. --limit keeps the first N videos in the
order the export ranks them, then sorts that page by --sort.

Sort keys: id, title, views, likes, dislikes, revenue, comments, watchMinutes.`,
	Example: `  tubestats videos
  tubestats videos --sort revenue --limit 5
  tubestats videos --sort title --dir asc --format md`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sort, err := view.ParseSort(videosSort, videosDir, false, view.DefaultVideoSort)
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
		videos := view.TopVideos(snap.Payload.TopVideos, videosLimit, sort)

		command := fmt.Sprintf("videos --sort %s --dir %s --limit %d", sort.Key, sort.Dir, videosLimit)
		result := newResult(model.KindVideos, command, videos, len(videos), start)
		result.Stats.Source = src
		result.Warnings = warnings
		return emit(cmd, result, resolveFormat(deps.Config.Format))
	},
}

func init() {
	rootCmd.AddCommand(videosCmd)

	videosCmd.Flags().StringVar(&videosSort, "sort", "", "sort key (default: views)")
	videosCmd.Flags().StringVar(&videosDir, "dir", "", "sort direction: asc|desc (default: desc)")
	videosCmd.Flags().IntVar(&videosLimit, "limit", server.DefaultLimit, "number of videos (0 = all)")
}
