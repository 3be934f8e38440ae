package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/xiy/canvas-mcp/internal/schema"
	"github.com/xiy/canvas-mcp/pkg/types"
)

func newQueryCmd(opts *rootOptions) *cobra.Command {
	var q types.Query
	cmd := &cobra.Command{
		Use:       "query <courses|assignments|grades|upcoming|search>",
		Short:     "Run an aggregate query over the cache",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"courses", "assignments", "grades", "upcoming", "search"},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			q.Type = types.QueryType(args[0])
			res := a.data.QueryData(cmd.Context(), q)
			if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.Success {
				return errors.New(res.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&q.Term, "term", "", "Search term")
	cmd.Flags().IntVar(&q.Days, "days", 0, "Upcoming window in days")
	cmd.Flags().IntVar(&q.Limit, "limit", 0, "Maximum items")
	return cmd
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	var (
		in      types.StoreInput
		quality int
	)
	cmd := &cobra.Command{
		Use:   "import <type> <file.json>",
		Short: "Store a scraped JSON record in the cache",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			var data any
			if err := json.Unmarshal(raw, &data); err != nil {
				return fmt.Errorf("parse %s: %w", args[1], err)
			}

			a, err := opts.open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			so := types.StoreOptions{ID: in.ID, Version: in.Version, Source: in.Source}
			if cmd.Flags().Changed("quality") {
				so.Quality = &quality
			}
			res := a.data.StoreData(cmd.Context(), args[0], data, so)
			if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.Success {
				return errors.New(res.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&in.ID, "id", "", "Record id (default \"default\")")
	cmd.Flags().StringVar(&in.Version, "version", "", "Version label")
	cmd.Flags().StringVar(&in.Source, "source", "cli", "Record source")
	cmd.Flags().IntVar(&quality, "quality", 100, "Data quality 0-100")
	return cmd
}

func newKeysCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "keys <type>",
		Short: "List the cached keys indexed under a record type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			for _, k := range a.data.IndexedKeys(schema.TypeTag(args[0])) {
				fmt.Fprintln(cmd.OutOrStdout(), k)
			}
			return nil
		},
	}
}

func newCleanupCmd(opts *rootOptions) *cobra.Command {
	var maxAge time.Duration
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete cached records older than --max-age",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := opts.open(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			if maxAge <= 0 {
				maxAge = a.cfg.CleanupMaxAge()
			}
			n, err := a.data.CleanupOldData(cmd.Context(), maxAge)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d records older than %s\n", n, maxAge)
			return nil
		},
	}
	cmd.Flags().DurationVar(&maxAge, "max-age", 0, "Maximum record age (default from config)")
	return cmd
}
