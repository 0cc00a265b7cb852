package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"datefixer/internal/logging"
	"datefixer/internal/stamp"
)

func newRevertCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "revert <run-id>",
		Short: "Restore the modification times a run overwrote",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cfg)
			if err != nil {
				return err
			}
			store, err := ctx.openJournal()
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.FindRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if run.DryRun {
				return fmt.Errorf("run %s was a dry run; nothing to revert", shortID(run.ID))
			}
			if run.RevertedAt != nil && !force {
				return fmt.Errorf("run %s was already reverted at %s (use --force to revert again)", shortID(run.ID), formatLocal(*run.RevertedAt))
			}
			entries, err := store.Changes(cmd.Context(), run.ID)
			if err != nil {
				return err
			}

			runCtx := logging.WithRunID(cmd.Context(), run.ID)
			revertLogger := logging.WithContext(runCtx, logging.NewComponentLogger(logger, "revert"))
			writer := stamp.New(stamp.Options{}, logger)

			// Newest first, so a path written twice ends at its original time.
			var restored, failed int
			for i := len(entries) - 1; i >= 0; i-- {
				if err := runCtx.Err(); err != nil {
					return err
				}
				e := entries[i]
				if _, err := writer.Apply(e.Path, e.Previous, e.Kind); err != nil {
					logging.WarnWithContext(revertLogger, "restore failed", "revert_failed",
						logging.String(logging.FieldPath, e.Path),
						logging.String(logging.FieldImpact, "path keeps the date written by the run"),
						logging.Error(err),
					)
					failed++
					continue
				}
				revertLogger.Debug("date restored",
					logging.String(logging.FieldPath, e.Path),
					logging.Time(logging.FieldDate, e.Previous),
				)
				restored++
			}
			if err := store.MarkReverted(cmd.Context(), run.ID); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Restored %d of %d dates from run %s\n", restored, len(entries), shortID(run.ID))
			if failed > 0 {
				return errors.New("some dates could not be restored; see warnings above")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Revert a run that was already reverted")
	return cmd
}
