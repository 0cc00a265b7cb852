package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"datefixer/internal/archive"
	"datefixer/internal/config"
	"datefixer/internal/container"
	"datefixer/internal/exifdate"
	"datefixer/internal/journal"
	"datefixer/internal/logging"
	"datefixer/internal/preflight"
	"datefixer/internal/resolve"
	"datefixer/internal/signature"
	"datefixer/internal/stamp"
	"datefixer/internal/walker"
)

// fixFlags mirrors the root command switches. Boolean switches only ever turn
// behaviour on; the configuration supplies the baseline.
type fixFlags struct {
	container        bool
	signature        bool
	archive          bool
	exif             bool
	fileName         bool
	ignoreExtensions bool
	recursive        bool
	stampDirectories bool
	propagate        bool
	quiet            bool
	dryRun           bool
	archiveFormat    string
}

var strategyFlagNames = []string{"container", "signature", "archive", "exif", "filename"}

func (f *fixFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.BoolVarP(&f.container, "container", "i", false, "Use disc image (ISO 9660/UDF) timestamps")
	fs.BoolVarP(&f.signature, "signature", "s", false, "Use code signature timestamps")
	fs.BoolVarP(&f.archive, "archive", "a", false, "Use the newest archive member date")
	fs.BoolVarP(&f.exif, "exif", "e", false, "Use EXIF capture dates")
	fs.BoolVarP(&f.fileName, "filename", "f", false, "Use a date embedded in the file name")
	fs.BoolVarP(&f.ignoreExtensions, "ignore-extensions", "x", false, "Try strategies regardless of file extension")
	fs.BoolVarP(&f.recursive, "recursive", "r", false, "Descend into subdirectories")
	fs.BoolVarP(&f.stampDirectories, "directories", "d", false, "Stamp directories with their newest descendant date")
	fs.BoolVarP(&f.propagate, "propagate", "p", false, "Copy a resolved date to same-named siblings")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "Only log warnings and the summary")
	fs.BoolVarP(&f.dryRun, "dry-run", "n", false, "Resolve and report without writing timestamps")
	fs.StringVar(&f.archiveFormat, "archive-format", "", "Pin the archive format (auto, zip, tar, tar.gz, tar.zst, tar.bz2, gz, external)")
}

// apply folds the switches into cfg. Any strategy switch replaces the
// configured strategy set.
func (f *fixFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	explicit := false
	for _, name := range strategyFlagNames {
		if cmd.Flags().Changed(name) {
			explicit = true
			break
		}
	}
	if explicit {
		cfg.Strategies.Container = f.container
		cfg.Strategies.Signature = f.signature
		cfg.Strategies.Archive = f.archive
		cfg.Strategies.EXIF = f.exif
		cfg.Strategies.FileName = f.fileName
	}
	cfg.Strategies.IgnoreExtensions = cfg.Strategies.IgnoreExtensions || f.ignoreExtensions
	cfg.Walk.Recursive = cfg.Walk.Recursive || f.recursive
	cfg.Walk.StampDirectories = cfg.Walk.StampDirectories || f.stampDirectories
	cfg.Walk.Propagate = cfg.Walk.Propagate || f.propagate
	cfg.Walk.DryRun = cfg.Walk.DryRun || f.dryRun
	cfg.Logging.Quiet = cfg.Logging.Quiet || f.quiet

	if value := strings.TrimSpace(f.archiveFormat); value != "" {
		format, err := archive.ParseFormat(value)
		if err != nil {
			return fmt.Errorf("--archive-format: %w", err)
		}
		cfg.Archive.Format = format.String()
		if !explicit {
			cfg.Strategies.Archive = true
		}
	}
	return nil
}

func runFix(cmd *cobra.Command, ctx *commandContext, flags *fixFlags, args []string) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if err := flags.apply(cmd, cfg); err != nil {
		return err
	}
	logger, err := ctx.logger(cfg)
	if err != nil {
		return err
	}

	runCtx := cmd.Context()
	if failed := preflight.Failed(preflight.RunAll(runCtx, cfg)); len(failed) > 0 {
		parts := make([]string, 0, len(failed))
		for _, r := range failed {
			parts = append(parts, fmt.Sprintf("%s: %s", r.Name, r.Detail))
		}
		return fmt.Errorf("preflight failed: %s", strings.Join(parts, "; "))
	}

	roots, err := expandRoots(args)
	if err != nil {
		return err
	}

	pipeline, err := buildPipeline(cfg, logger)
	if err != nil {
		return err
	}
	if len(pipeline.StrategyNames()) == 0 {
		logging.WarnWithContext(logger, "no strategies enabled", "no_strategies",
			logging.String(logging.FieldErrorHint, "pass -i, -s, -a, -e or -f, or enable [strategies] in the config"),
			logging.String(logging.FieldImpact, "no dates can be resolved"),
		)
	}

	var options []walker.Option
	runID := uuid.NewString()
	var store *journal.Store
	if cfg.Journal.Enabled {
		store, err = journal.Open(cfg.JournalPath())
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer store.Close()
		run, err := store.BeginRun(runCtx, roots, cfg.Walk.DryRun)
		if err != nil {
			return err
		}
		runID = run.ID
		options = append(options, walker.WithRecorder(store.Recorder(runID)))
	}
	runCtx = logging.WithRunID(runCtx, runID)

	logging.WithContext(runCtx, logger).Info("run started",
		logging.String("strategies", strings.Join(pipeline.StrategyNames(), ",")),
		logging.Bool("recursive", cfg.Walk.Recursive),
		logging.Bool("dry_run", cfg.Walk.DryRun),
		logging.Int("paths", len(roots)),
	)

	writer := stamp.New(stamp.Options{
		FileCreationTime:      cfg.Walk.FileCreationTime,
		DirectoryCreationTime: cfg.Walk.DirectoryCreationTime,
	}, logger)
	w := walker.New(pipeline, writer, walker.Options{
		Recursive:        cfg.Walk.Recursive,
		StampDirectories: cfg.Walk.StampDirectories,
		Propagate:        cfg.Walk.Propagate,
		DryRun:           cfg.Walk.DryRun,
		Quiet:            cfg.Logging.Quiet,
		Exclude:          cfg.Walk.Exclude,
	}, logger, options...)

	started := time.Now()
	stats, walkErr := w.Walk(runCtx, roots...)

	if store != nil {
		// Record the outcome even when interrupted so history shows partial runs.
		if err := store.FinishRun(context.WithoutCancel(runCtx), runID, stats.Modified); err != nil {
			logging.WarnWithContext(logger, "journal finish failed", "journal_failed",
				logging.String(logging.FieldRunID, runID),
				logging.Error(err),
			)
		}
	}

	logging.WithContext(runCtx, logger).Info("run finished",
		logging.Int("modified", stats.Modified),
		logging.Int("directories", stats.Directories),
		logging.Int("unresolved", stats.Unresolved),
		logging.Int("failed", stats.Failed),
		logging.Duration("elapsed", time.Since(started)),
	)

	printSummary(cmd.OutOrStdout(), stats, cfg.Walk.DryRun)
	return walkErr
}

// buildPipeline wires the enabled strategies from cfg.
func buildPipeline(cfg *config.Config, logger *slog.Logger) (*resolve.Pipeline, error) {
	opts := resolve.Options{
		FileName:         cfg.Strategies.FileName,
		IgnoreExtensions: cfg.Strategies.IgnoreExtensions,
	}
	if cfg.Strategies.Container {
		opts.Container = container.NewResolver(logger)
	}
	if cfg.Strategies.Signature {
		opts.Signature = signature.New(logger)
	}
	if cfg.Strategies.Archive {
		format, err := archive.ParseFormat(cfg.Archive.Format)
		if err != nil {
			return nil, fmt.Errorf("archive.format: %w", err)
		}
		extractor, err := archive.NewExtractor(cfg.Archive.SevenZipBinary, cfg.Paths.ScratchDir, cfg.Archive.ExtractTimeout, logger)
		if err != nil {
			return nil, fmt.Errorf("archive extractor: %w", err)
		}
		opts.Archive = archive.NewResolver(format, logger, archive.WithExtractor(extractor))
	}
	if cfg.Strategies.EXIF {
		opts.EXIF = exifdate.New(logger)
	}
	return resolve.New(opts, logger), nil
}

func expandRoots(args []string) ([]string, error) {
	roots := make([]string, 0, len(args))
	for _, arg := range args {
		if strings.TrimSpace(arg) == "" {
			continue
		}
		path, err := config.ExpandPath(arg)
		if err != nil {
			return nil, err
		}
		roots = append(roots, path)
	}
	if len(roots) == 0 {
		return nil, errors.New("at least one path is required")
	}
	return roots, nil
}

func printSummary(out io.Writer, stats walker.Stats, dryRun bool) {
	if isTerminal(out) && len(stats.BySource) > 0 {
		fmt.Fprintln(out, renderSourceSummary(stats))
	}
	if dryRun {
		fmt.Fprintln(out, "Dry run: no timestamps were written")
	}
	if stats.Directories > 0 {
		fmt.Fprintf(out, "Directories stamped: %d\n", stats.Directories)
	}
	fmt.Fprintf(out, "Done: %d file dates modified\n", stats.Modified)
}
