package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"datefixer/internal/preflight"
)

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check configured directories, the journal and external tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			results := preflight.RunAll(cmd.Context(), cfg)
			statuses := preflight.CheckSystemDeps(cfg)

			rows := make([][]string, 0, len(results)+len(statuses))
			problems := 0
			for _, r := range results {
				rows = append(rows, []string{r.Name, passLabel(r.Passed, false), r.Detail})
				if !r.Passed {
					problems++
				}
			}
			for _, s := range statuses {
				detail := s.Command
				if s.Detail != "" {
					detail = s.Detail
				}
				if s.Description != "" {
					detail = fmt.Sprintf("%s (%s)", detail, s.Description)
				}
				rows = append(rows, []string{s.Name, passLabel(s.Available, s.Optional), detail})
				if !s.Available && !s.Optional {
					problems++
				}
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config: %s\n", ctx.configPath)
			fmt.Fprintln(out, renderTable([]string{"Check", "Status", "Detail"}, rows, nil))
			if problems > 0 {
				return errors.New("doctor found problems")
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
}

func passLabel(passed, optional bool) string {
	switch {
	case passed:
		return "ok"
	case optional:
		return "missing (optional)"
	default:
		return "FAIL"
	}
}
