package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/climgrid/tminx/internal/cdl"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// Workspace cleanup must run on interruption too: the context
	// cancels in-flight tool calls and the run unwinds through its
	// defers.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := &cobra.Command{
		Use:           "tminx",
		Short:         "Extract minimum-temperature grid time-series into tabular records",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newExtractCmd(logger), newWatchCmd(logger), newLoadCmd(logger))

	if err := root.ExecuteContext(ctx); err != nil {
		logger.Error("Run failed", "err", err)
		os.Exit(1)
	}
}

// toolFlags select how the dataset's textual projections are produced.
type toolFlags struct {
	name       string
	headerCmd  string
	recordsCmd string
}

func (f *toolFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "tool", "native", "dataset dump tool: native or exec")
	cmd.Flags().StringVar(&f.headerCmd, "header-cmd", "ncdump -h {file}", "metadata dump command for the exec tool, split on whitespace (no shell quoting)")
	cmd.Flags().StringVar(&f.recordsCmd, "records-cmd", "ncks --trd -C -H -v {var} {file}", "record dump command for the exec tool, split on whitespace (no shell quoting)")
}

func (f *toolFlags) tool() (cdl.Tool, error) {
	switch f.name {
	case "native":
		return cdl.Native{}, nil
	case "exec":
		return &cdl.Exec{
			HeaderArgv:  strings.Fields(f.headerCmd),
			RecordsArgv: strings.Fields(f.recordsCmd),
		}, nil
	}
	return nil, errors.Newf("unknown tool %q", f.name)
}
