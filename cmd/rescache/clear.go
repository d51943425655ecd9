package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newClearCmd() *cobra.Command {
	var category string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove cache entries, optionally limited to one category",
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

			n, err := c.Clear(cmd.Context(), category)
			if err != nil {
				return err
			}
			if category == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "cleared %d entries\n", n)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "cleared %d entries in %q\n", n, category)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "clear only this category (empty = all)")
	return cmd
}
