package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/climgrid/tminx/internal/store"
	"github.com/climgrid/tminx/internal/tmin"
)

func newExtractCmd(logger *slog.Logger) *cobra.Command {
	var (
		opts    tmin.Options
		outPath string
		tf      toolFlags
		dsn     string
		table   string
	)
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract a variable's records into CSV",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dsn != "" && outPath == "" {
				return errors.New("--dsn requires --out")
			}
			tool, err := tf.tool()
			if err != nil {
				return err
			}

			out := io.Writer(os.Stdout)
			var f *os.File
			if outPath != "" {
				if f, err = os.Create(outPath); err != nil {
					return errors.Wrapf(err, "creating %s", outPath)
				}
				out = f
			}
			_, err = tmin.NewPipeline(logger, tool).Run(cmd.Context(), opts, out)
			if f != nil {
				if cerr := f.Close(); err == nil && cerr != nil {
					err = errors.Wrapf(cerr, "closing %s", outPath)
				}
			}
			if err != nil {
				return err
			}

			if dsn != "" {
				csv, err := os.Open(outPath)
				if err != nil {
					return errors.Wrapf(err, "reopening %s", outPath)
				}
				defer csv.Close()
				loader := &store.Postgres{DSN: dsn, Table: table}
				n, err := loader.Load(cmd.Context(), csv)
				if err != nil {
					return err
				}
				logger.Info("records loaded", "table", table, "rows", n)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.Path, "file", "", "dataset file, or archive containing one")
	cmd.Flags().BoolVar(&opts.Archive, "archive", false, "treat the input as a tar archive")
	cmd.Flags().StringVar(&opts.VariableHint, "var", "tmin", "case-insensitive variable name hint")
	cmd.Flags().StringVar(&opts.ConfigFile, "config", "", "key/value config file (skips inference)")
	cmd.Flags().StringVar(&outPath, "out", "", "output CSV path (default stdout)")
	cmd.Flags().StringVar(&dsn, "dsn", "", "postgres DSN to bulk-load the output into")
	cmd.Flags().StringVar(&table, "table", "tmin_records", "target table for --dsn")
	tf.register(cmd)
	cmd.MarkFlagRequired("file")
	return cmd
}
