package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print cache occupancy and entry counts per category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cfgPath)
			if err != nil {
				return err
			}
			c, flush, err := openShared(cfg)
			if err != nil {
				return err
			}
			defer flush()
			defer c.Close(context.Background())

			st, err := c.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "dir:          %s\n", cfg.CacheDir)
			fmt.Fprintf(out, "size:         %d / %d bytes\n", st.TotalBytes, st.MaxSizeBytes)
			fmt.Fprintf(out, "expired:      %d\n", st.Expired)
			fmt.Fprintf(out, "orphans seen: %d\n", st.OrphansCleaned)
			if !st.OldestCreated.IsZero() {
				fmt.Fprintf(out, "oldest entry: %s\n", st.OldestCreated.Format("2006-01-02 15:04:05"))
				fmt.Fprintf(out, "newest entry: %s\n", st.NewestCreated.Format("2006-01-02 15:04:05"))
			}

			cats := make([]string, 0, len(st.Entries))
			for c := range st.Entries {
				cats = append(cats, c)
			}
			sort.Strings(cats)
			for _, cat := range cats {
				fmt.Fprintf(out, "  %-20s %d\n", cat, st.Entries[cat])
			}
			return nil
		},
	}
}
