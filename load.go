package main

import (
	"log/slog"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/climgrid/tminx/internal/store"
)

func newLoadCmd(logger *slog.Logger) *cobra.Command {
	var (
		csvPath string
		dsn     string
		table   string
	)
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Bulk-load a previously extracted CSV into postgres",
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := os.Open(csvPath)
			if err != nil {
				return errors.Wrapf(err, "opening %s", csvPath)
			}
			defer f.Close()
			loader := &store.Postgres{DSN: dsn, Table: table}
			n, err := loader.Load(cmd.Context(), f)
			if err != nil {
				return err
			}
			logger.Info("records loaded", "table", table, "rows", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&csvPath, "csv", "", "CSV file produced by extract")
	cmd.Flags().StringVar(&dsn, "dsn", "", "postgres DSN")
	cmd.Flags().StringVar(&table, "table", "tmin_records", "target table")
	cmd.MarkFlagRequired("csv")
	cmd.MarkFlagRequired("dsn")
	return cmd
}
