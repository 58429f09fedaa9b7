package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/chazu/hardeen/internal/config"
	"github.com/chazu/hardeen/internal/metrics"
	"github.com/chazu/hardeen/pkg/ctxlog"
	"github.com/chazu/hardeen/pkg/engine"
	"github.com/chazu/hardeen/pkg/geometry"
	"github.com/chazu/hardeen/pkg/kernel/sdfx"
	"github.com/chazu/hardeen/pkg/project"
	"github.com/chazu/hardeen/pkg/tessellate"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <script.zy>",
	Short: "Build a graph from a script and evaluate its output",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		source, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading script: %w", err)
		}

		opts := runOptions{}
		opts.format, _ = cmd.Flags().GetString("format")
		opts.extrude, _ = cmd.Flags().GetBool("extrude")
		opts.merge, _ = cmd.Flags().GetBool("merge")
		opts.base, _ = cmd.Flags().GetFloat64("base")
		opts.metrics, _ = cmd.Flags().GetBool("metrics")
		if cmd.Flags().Changed("height") {
			cfg.Mesh.Height, _ = cmd.Flags().GetFloat64("height")
		}

		logger := ctxlog.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
		return runScript(cmd.Context(), cfg, logger, string(source), opts, cmd.OutOrStdout())
	},
}

func init() {
	runCmd.Flags().Bool("extrude", false, "Extrude closed shapes into meshes")
	runCmd.Flags().Float64("height", 0, "Extrusion height (overrides mesh.height)")
	runCmd.Flags().Float64("base", 0, "Z coordinate of the extrusion base")
	runCmd.Flags().Bool("merge", false, "Union all extruded shapes into one mesh")
	runCmd.Flags().Bool("metrics", false, "Print node evaluation metrics after the run")
	rootCmd.AddCommand(runCmd)
}

type runOptions struct {
	format  string
	extrude bool
	merge   bool
	base    float64
	metrics bool
}

// MeshSummary describes one extruded mesh.
type MeshSummary struct {
	Name      string `json:"name" yaml:"name"`
	Vertices  int    `json:"vertices" yaml:"vertices"`
	Triangles int    `json:"triangles" yaml:"triangles"`
}

// RunReport is the result of a run.
type RunReport struct {
	Points int           `json:"points" yaml:"points"`
	Shapes int           `json:"shapes" yaml:"shapes"`
	Groups int           `json:"groups" yaml:"groups"`
	Min    string        `json:"min,omitempty" yaml:"min,omitempty"`
	Max    string        `json:"max,omitempty" yaml:"max,omitempty"`
	Meshes []MeshSummary `json:"meshes,omitempty" yaml:"meshes,omitempty"`
}

func runScript(ctx context.Context, cfg *config.Config, logger *slog.Logger, source string, opts runOptions, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = ctxlog.WithLogger(ctx, logger)

	projectOpts := []project.Option{
		project.WithLogger(logger),
		project.WithWorkers(cfg.Eval.Workers),
		project.WithScriptTimeout(cfg.Eval.ScriptTimeout),
	}
	var m *metrics.Metrics
	if opts.metrics {
		m = metrics.New()
		projectOpts = append(projectOpts, project.WithObserver(m))
	}

	p, evalErrs, err := engine.NewEngine(projectOpts...).Evaluate(ctx, source)
	if err != nil {
		return err
	}
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			logger.Error("script error", "line", e.Line, "message", e.Message)
		}
		return errors.Join(toErrors(evalErrs)...)
	}
	defer p.Destroy()

	world, err := p.Evaluate(ctx)
	if err != nil {
		return fmt.Errorf("evaluating graph: %w", err)
	}

	report := summarize(world)
	if opts.extrude {
		meshes, err := tessellate.Tessellate(world, sdfx.New(cfg.Mesh.Cells), tessellate.Options{
			Height: cfg.Mesh.Height,
			Base:   opts.base,
			Merged: opts.merge,
		})
		if err != nil {
			return err
		}
		for _, mesh := range meshes {
			report.Meshes = append(report.Meshes, MeshSummary{
				Name:      mesh.Name,
				Vertices:  mesh.VertexCount(),
				Triangles: mesh.TriangleCount(),
			})
		}
	}

	if err := writeReport(w, opts.format, report); err != nil {
		return err
	}
	if m != nil {
		return m.WriteText(w)
	}
	return nil
}

func toErrors(evalErrs []engine.EvalError) []error {
	out := make([]error, len(evalErrs))
	for i, e := range evalErrs {
		out[i] = e
	}
	return out
}

func summarize(w *geometry.World) RunReport {
	r := RunReport{
		Points: w.PointCount(),
		Shapes: w.ShapeCount(),
		Groups: w.GroupCount(),
	}
	if lo, hi, ok := w.BoundingRect(); ok {
		r.Min = geometry.FormatPosition(lo)
		r.Max = geometry.FormatPosition(hi)
	}
	return r
}

func writeReport(w io.Writer, format string, r RunReport) error {
	if ok, err := writeStructured(w, format, r); ok {
		return err
	}
	fmt.Fprintf(w, "points: %d\nshapes: %d\ngroups: %d\n", r.Points, r.Shapes, r.Groups)
	if r.Min != "" {
		fmt.Fprintf(w, "bounds: %s .. %s\n", r.Min, r.Max)
	}
	for _, m := range r.Meshes {
		fmt.Fprintf(w, "mesh %s: %d vertices, %d triangles\n", m.Name, m.Vertices, m.Triangles)
	}
	return nil
}
