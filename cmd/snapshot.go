package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/tubestats/internal/ingest"
	"github.com/derickschaefer/tubestats/internal/model"
	"github.com/derickschaefer/tubestats/internal/normalize"
	"github.com/derickschaefer/tubestats/internal/render"
	"github.com/derickschaefer/tubestats/internal/store"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Inspect and manage archived payloads",
	Long: `Every successful fetch stores the raw dashboard_data.json (and
prediction_data.json, when fetched) in the local bbolt archive, keyed by
fetch time. The newest archived payload seeds 'serve' on start and backs
--offline.

  tubestats snapshot list
  tubestats snapshot show <KEY>
  tubestats snapshot prune --keep 48`,
}

// ─── snapshot list ────────────────────────────────────────────────────────────

var snapshotListBucket string

var snapshotListCmd = &cobra.Command{
	Use:   "list",
	Short: "List archived payloads, newest first",
	Example: `  tubestats snapshot list
  tubestats snapshot list --bucket predictions --format json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()
		st, err := deps.OpenStore()
		if err != nil {
			return err
		}

		start := time.Now()
		var entries []store.Entry
		switch snapshotListBucket {
		case store.BucketPayloads:
			entries, err = st.ListPayloads()
		case store.BucketPredictions:
			entries, err = st.ListPredictions()
		default:
			return fmt.Errorf("unknown bucket %q (use %s)", snapshotListBucket, strings.Join(store.AllBuckets, " or "))
		}
		if err != nil {
			return fmt.Errorf("listing %s: %w", snapshotListBucket, err)
		}
		if len(entries) == 0 && resolveFormat(deps.Config.Format) == render.FormatTable {
			fmt.Fprintf(cmd.OutOrStdout(), "No archived %s in %s.\n", snapshotListBucket, st.Path())
			return nil
		}

		result := newResult(model.KindSnapshot, "snapshot list --bucket "+snapshotListBucket, entries, len(entries), start)
		result.Stats.Source = sourceArchive
		return emit(cmd, result, resolveFormat(deps.Config.Format))
	},
}

// ─── snapshot show ────────────────────────────────────────────────────────────

var snapshotShowRaw bool

var snapshotShowCmd = &cobra.Command{
	Use:   "show <KEY>",
	Short: "Show the stats derived from one archived payload",
	Long: `Decodes the archived payload stored under KEY and prints its stat cards
for --granularity. --raw prints the stored JSON instead.`,
	Example: `  tubestats snapshot show 2024-06-01T12:00:00.000000000Z
  tubestats snapshot show 2024-06-01T12:00:00.000000000Z -g monthly
  tubestats snapshot show 2024-06-01T12:00:00.000000000Z --raw > dashboard_data.json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()
		st, err := deps.OpenStore()
		if err != nil {
			return err
		}

		start := time.Now()
		body, ok, err := st.GetPayload(args[0])
		if err != nil {
			return fmt.Errorf("reading payload: %w", err)
		}
		if !ok {
			return fmt.Errorf("no archived payload %q (see 'tubestats snapshot list')", args[0])
		}

		if snapshotShowRaw {
			w, closeFn, err := outputWriter(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer closeFn()
			_, err = w.Write(body)
			return err
		}

		p, err := ingest.DecodeBytes(body)
		if err != nil {
			return fmt.Errorf("archived payload %s: %w", args[0], err)
		}
		stats, err := normalize.ComputeStats(p, deps.Config.Granularity)
		if err != nil {
			return err
		}
		result := newResult(model.KindStats, "snapshot show "+args[0], stats, 1, start)
		result.Stats.Source = sourceArchive
		return emit(cmd, result, resolveFormat(deps.Config.Format))
	},
}

// ─── snapshot prune ───────────────────────────────────────────────────────────

var snapshotPruneKeep int

var snapshotPruneCmd = &cobra.Command{
	Use:     "prune",
	Short:   "Delete all but the newest N entries in each bucket",
	Example: `  tubestats snapshot prune --keep 24`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()
		st, err := deps.OpenStore()
		if err != nil {
			return err
		}

		removed, err := st.Prune(snapshotPruneKeep)
		if err != nil {
			return err
		}
		successf(cmd.OutOrStdout(), "Removed %d entries (kept newest %d per bucket)", removed, snapshotPruneKeep)
		return nil
	},
}

// ─── snapshot stats ───────────────────────────────────────────────────────────

var snapshotStatsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show row counts and sizes for each bucket",
	Example: `  tubestats snapshot stats`,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()
		st, err := deps.OpenStore()
		if err != nil {
			return err
		}

		stats, err := st.Stats()
		if err != nil {
			return fmt.Errorf("reading store stats: %w", err)
		}

		if format := resolveFormat(deps.Config.Format); format != render.FormatTable {
			result := newResult(model.KindSnapshot, "snapshot stats", stats, len(stats), time.Now())
			result.Stats.Source = sourceArchive
			return emit(cmd, result, format)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Database: %s\n\n", st.Path())
		printSimpleTable(cmd.OutOrStdout(), []string{"BUCKET", "ROWS", "SIZE"}, func(add func(...string)) {
			for _, s := range stats {
				add(s.Name, fmt.Sprintf("%d", s.Count), humanBytes(s.Bytes))
			}
		})
		return nil
	},
}

// ─── snapshot clear ───────────────────────────────────────────────────────────

var (
	snapshotClearAll    bool
	snapshotClearBucket string
)

var snapshotClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete entries from the archive",
	Long: `Delete entries from one or all buckets.

Note: bbolt does not shrink the database file after clearing. Free pages
are reused internally on the next write.`,
	Example: `  tubestats snapshot clear --all
  tubestats snapshot clear --bucket predictions`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !snapshotClearAll && snapshotClearBucket == "" {
			return fmt.Errorf("specify --all or --bucket <name>\n\nBuckets: %s", strings.Join(store.AllBuckets, ", "))
		}

		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()
		st, err := deps.OpenStore()
		if err != nil {
			return err
		}

		if snapshotClearAll {
			if err := st.ClearAll(); err != nil {
				return fmt.Errorf("clearing all buckets: %w", err)
			}
			successf(cmd.OutOrStdout(), "Cleared all buckets")
			return nil
		}

		if err := st.ClearBucket(snapshotClearBucket); err != nil {
			return fmt.Errorf("clearing bucket %q: %w", snapshotClearBucket, err)
		}
		successf(cmd.OutOrStdout(), "Cleared bucket %q", snapshotClearBucket)
		return nil
	},
}

// ─── Registration ─────────────────────────────────────────────────────────────

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(snapshotListCmd)
	snapshotCmd.AddCommand(snapshotShowCmd)
	snapshotCmd.AddCommand(snapshotPruneCmd)
	snapshotCmd.AddCommand(snapshotStatsCmd)
	snapshotCmd.AddCommand(snapshotClearCmd)

	snapshotListCmd.Flags().StringVar(&snapshotListBucket, "bucket", store.BucketPayloads, "bucket to list: payloads|predictions")
	snapshotShowCmd.Flags().BoolVar(&snapshotShowRaw, "raw", false, "print the stored JSON")
	snapshotPruneCmd.Flags().IntVar(&snapshotPruneKeep, "keep", 24, "entries to keep per bucket")
	snapshotClearCmd.Flags().BoolVar(&snapshotClearAll, "all", false, "clear all buckets")
	snapshotClearCmd.Flags().StringVar(&snapshotClearBucket, "bucket", "", "clear a specific bucket: payloads|predictions")
}
