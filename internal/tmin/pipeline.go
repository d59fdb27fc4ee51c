package tmin

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/climgrid/tminx/internal/archive"
	"github.com/climgrid/tminx/internal/cdl"
)

// Workspace is a scoped temporary directory owned by exactly one
// pipeline run. Remove must run on every exit path.
type Workspace struct {
	dir string
}

// NewWorkspace creates a fresh temporary directory.
func NewWorkspace() (*Workspace, error) {
	dir, err := os.MkdirTemp("", "tminx-")
	if err != nil {
		return nil, errors.Wrap(err, "creating workspace")
	}
	return &Workspace{dir: dir}, nil
}

// Dir returns the workspace directory path.
func (w *Workspace) Dir() string { return w.dir }

// Remove deletes the workspace and everything extracted into it.
func (w *Workspace) Remove() error { return os.RemoveAll(w.dir) }

// Options select the input and the configuration mode of one run.
type Options struct {
	// Path is the dataset file, or an archive containing one when
	// Archive is set.
	Path    string
	Archive bool

	// VariableHint drives inference mode; ConfigFile, when set,
	// switches to file mode and the hint is ignored.
	VariableHint string
	ConfigFile   string
}

// Result is what a completed run exposes for inspection.
type Result struct {
	Config *Config
	Rows   int64
}

// Pipeline sequences archive resolution, config resolution, optional
// coordinate expansion and record extraction inside one scoped
// workspace. Stages run synchronously; the first failure aborts the
// run after workspace cleanup.
type Pipeline struct {
	logger *slog.Logger
	tool   cdl.Tool
}

// NewPipeline creates a pipeline around the given dump tool.
func NewPipeline(logger *slog.Logger, tool cdl.Tool) *Pipeline {
	return &Pipeline{logger: logger, tool: tool}
}

// Run performs one extraction and writes the tabular output to out.
func (p *Pipeline) Run(ctx context.Context, opts Options, out io.Writer) (*Result, error) {
	logger := p.logger.With("run", uuid.NewString()[:8])

	ws, err := NewWorkspace()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := ws.Remove(); err != nil {
			logger.Error("Could not remove workspace", "dir", ws.Dir(), "err", err)
		}
	}()

	file, err := archive.Resolve(opts.Path, opts.Archive, ws.Dir())
	if err != nil {
		return nil, err
	}

	var cfg *Config
	if opts.ConfigFile != "" {
		cfg, err = ConfigFromFile(opts.ConfigFile)
	} else {
		cfg, err = Infer(ctx, p.tool, file, opts.VariableHint)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("config resolved",
		"variable", cfg.DisplayName,
		"varPos", cfg.VarPos,
		"timePos", cfg.TimePos,
		"xPos", cfg.XPos,
		"yPos", cfg.YPos,
		"timeSize", cfg.TimeSize,
		"timeOrigin", cfg.TimeOrigin,
		"rotated", cfg.Rotated(),
	)

	var coords []Coord
	if cfg.Rotated() {
		if coords, err = ExpandCoordinates(ctx, p.tool, file, cfg); err != nil {
			return nil, err
		}
		logger.Info("coordinate stream expanded", "pairs", len(coords))
	}

	recs, err := p.tool.Records(ctx, file, cfg.DisplayName)
	if err != nil {
		return nil, errors.Wrapf(err, "dumping records of %s", cfg.DisplayName)
	}
	defer recs.Close()

	rows, err := Extract(recs, cfg, coords, out)
	if err != nil {
		return nil, err
	}
	logger.Info("extraction complete", "rows", rows)
	return &Result{Config: cfg, Rows: rows}, nil
}
