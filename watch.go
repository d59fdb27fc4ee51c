package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/climgrid/tminx/internal/tmin"
)

// watch re-runs the extraction whenever the input dataset changes.
// Development helper, not part of the extraction contract.
func newWatchCmd(logger *slog.Logger) *cobra.Command {
	var (
		opts     tmin.Options
		outPath  string
		tf       toolFlags
		debounce time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run extraction whenever the input file changes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tool, err := tf.tool()
			if err != nil {
				return err
			}
			p := tmin.NewPipeline(logger, tool)

			run := func(ctx context.Context) {
				f, err := os.Create(outPath)
				if err != nil {
					logger.Error("Could not create output", "path", outPath, "err", err)
					return
				}
				_, err = p.Run(ctx, opts, f)
				if cerr := f.Close(); err == nil {
					err = cerr
				}
				if err != nil {
					logger.Error("Extraction failed", "err", err)
				}
			}

			w, err := fsnotify.NewWatcher()
			if err != nil {
				return errors.Wrap(err, "creating watcher")
			}
			defer w.Close()
			// Watch the directory: editors and download tools
			// replace files rather than write them in place.
			if err := w.Add(filepath.Dir(opts.Path)); err != nil {
				return errors.Wrapf(err, "watching %s", filepath.Dir(opts.Path))
			}

			ctx := cmd.Context()
			run(ctx)
			logger.Info("watching", "path", opts.Path)

			var pending <-chan time.Time
			for {
				select {
				case <-ctx.Done():
					return nil
				case ev, ok := <-w.Events:
					if !ok {
						return nil
					}
					if filepath.Clean(ev.Name) != filepath.Clean(opts.Path) {
						continue
					}
					if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
						continue
					}
					pending = time.After(debounce)
				case err, ok := <-w.Errors:
					if !ok {
						return nil
					}
					logger.Error("Watcher error", "err", err)
				case <-pending:
					pending = nil
					run(ctx)
				}
			}
		},
	}
	cmd.Flags().StringVar(&opts.Path, "file", "", "dataset file, or archive containing one")
	cmd.Flags().BoolVar(&opts.Archive, "archive", false, "treat the input as a tar archive")
	cmd.Flags().StringVar(&opts.VariableHint, "var", "tmin", "case-insensitive variable name hint")
	cmd.Flags().StringVar(&opts.ConfigFile, "config", "", "key/value config file (skips inference)")
	cmd.Flags().StringVar(&outPath, "out", "", "output CSV path")
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "delay before re-running after a change")
	tf.register(cmd)
	cmd.MarkFlagRequired("file")
	cmd.MarkFlagRequired("out")
	return cmd
}
