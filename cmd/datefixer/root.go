package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var logLevelFlag string
	var flags fixFlags

	ctx := newCommandContext(&configFlag, &logLevelFlag)

	rootCmd := &cobra.Command{
		Use:   "datefixer [paths...]",
		Short: "Restore file dates from their contents",
		Long: "datefixer infers the true date of files from disc image timestamps, code signatures,\n" +
			"archive members, EXIF data or file names, and writes it back as the modification time.\n" +
			"Without strategy switches the configured strategies apply (container and signature by default).\n" +
			"Paths named like a subcommand must be written with a directory prefix, for example ./config.",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runFix(cmd, ctx, &flags, args)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "Override logging.level (debug, info, warn, error)")
	flags.register(rootCmd)

	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newRevertCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newDoctorCommand(ctx))

	return rootCmd
}
