package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"datefixer/internal/journal"
)

const historyTimeLayout = "2006-01-02 15:04:05"

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "List recorded runs, or the changes of one run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openJournal()
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				runs, err := store.ListRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Run", "Started", "Modified", "Dry run", "Reverted", "Paths"},
					runRows(runs),
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
				))
				return nil
			}

			run, err := store.FindRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			entries, err := store.Changes(cmd.Context(), run.ID)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Run %s started %s, %d changes\n", run.ID, formatLocal(run.StartedAt), len(entries))
			if len(entries) == 0 {
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Path", "Kind", "Source", "Previous", "Applied"},
				changeRows(entries),
				nil,
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list (0 for all)")
	return cmd
}

func runRows(runs []journal.Run) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		reverted := "-"
		if run.RevertedAt != nil {
			reverted = formatLocal(*run.RevertedAt)
		}
		rows = append(rows, []string{
			shortID(run.ID),
			formatLocal(run.StartedAt),
			fmt.Sprint(run.Modified),
			yesNo(run.DryRun),
			reverted,
			strings.Join(run.Roots, ", "),
		})
	}
	return rows
}

func changeRows(entries []journal.Entry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.Path,
			e.Kind.String(),
			e.Source,
			formatLocal(e.Previous),
			formatLocal(e.Applied),
		})
	}
	return rows
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatLocal(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(historyTimeLayout)
}
