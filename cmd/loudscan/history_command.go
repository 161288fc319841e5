package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"loudscan/internal/journal"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limitFlag int

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent measurement runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, ok, err := journalPath(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if !ok {
				cfg, _ := ctx.ensureConfig()
				if cfg != nil && !cfg.Journal.Enabled {
					fmt.Fprintln(out, "No runs recorded yet (set journal.enabled = true to start recording)")
				} else {
					fmt.Fprintln(out, "No runs recorded yet")
				}
				return nil
			}

			store, err := journal.Open(path)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			runs, err := store.Recent(cmd.Context(), limitFlag)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded yet")
				return nil
			}

			rows := make([][]string, 0, len(runs))
			for _, run := range runs {
				rows = append(rows, []string{
					shortRunID(run.ID),
					run.StartedAt.Local().Format("2006-01-02 15:04:05"),
					run.Target,
					strconv.Itoa(run.Files),
					strconv.Itoa(run.Measured),
					strconv.Itoa(run.Skipped),
					strconv.Itoa(run.Failed),
					run.Duration().Round(100 * time.Millisecond).String(),
				})
			}
			renderRows(out,
				[]string{"Run", "Started", "Target", "Files", "Measured", "Skipped", "Failed", "Elapsed"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight})
			return nil
		},
	}

	historyCmd.Flags().IntVarP(&limitFlag, "limit", "n", 20, "Maximum number of runs to show")
	historyCmd.AddCommand(newHistoryClearCommand(ctx))
	return historyCmd
}

func newHistoryClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all recorded runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, ok, err := journalPath(ctx)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet")
				return nil
			}

			store, err := journal.Open(path)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			removed, err := store.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d runs\n", removed)
			return nil
		},
	}
}

// journalPath resolves the history database location and reports whether
// the database exists yet.
func journalPath(ctx *commandContext) (string, bool, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return "", false, err
	}
	path := strings.TrimSpace(cfg.Journal.Path)
	if path == "" {
		return "", false, errors.New("no journal path configured; set journal.path")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path, false, nil
	}
	return path, true, nil
}

func shortRunID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
