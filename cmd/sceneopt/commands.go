package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/schollz/progressbar/v3"
	"gopkg.in/yaml.v3"

	"scene-optimizer/analysis"
	"scene-optimizer/batch"
	"scene-optimizer/core"
	"scene-optimizer/optimize"
	"scene-optimizer/settings"
)

func runAnalyze(ctx context.Context, e *env, args []string) error {
	report := e.fs.String("report", "", "write the full analysis as YAML to this file (- for stdout)")
	if err := e.parse(args); err != nil {
		return err
	}
	if e.fs.NArg() != 1 {
		e.fs.Usage()
		return fmt.Errorf("analyze: one scene required: %w", core.ErrInvalidArgument)
	}
	p, err := e.loadProfile()
	if err != nil {
		return err
	}
	g, err := e.files.Import(ctx, e.fs.Arg(0))
	if err != nil {
		return err
	}
	r, err := analysis.AnalyzeWithSettings(ctx, g, p.Settings)
	if err != nil {
		return err
	}

	printAnalysis(os.Stdout, r)
	switch *report {
	case "":
	case "-":
		return analysis.WriteReport(os.Stdout, r)
	default:
		f, err := os.Create(*report)
		if err != nil {
			return fmt.Errorf("report %q: %v: %w", *report, err, core.ErrIOFailure)
		}
		defer f.Close()
		if err := analysis.WriteReport(f, r); err != nil {
			return err
		}
		return f.Close()
	}
	return nil
}

func printAnalysis(w io.Writer, r *analysis.Results) {
	fmt.Fprintf(w, "scene %q: score %d/100\n", r.Scene, r.Score)
	fmt.Fprintf(w, "  nodes %d, depth %d, draw calls %d\n", r.Hierarchy.TotalNodes, r.Hierarchy.MaxDepth, r.DrawCalls)
	fmt.Fprintf(w, "  meshes %d, polygons %d, materials %d, textures %d\n",
		r.Meshes.Meshes, r.Meshes.DrawnPolygons, r.MaterialCount, r.TextureCount)
	fmt.Fprintf(w, "  memory %.1f MB\n", r.MemoryMB())
	if len(r.Recommendations) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "\nPRIORITY\tIMPACT\tCATEGORY\tRECOMMENDATION")
	for _, rec := range r.Recommendations {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", rec.Priority, rec.Impact, rec.Category, rec.Title)
	}
	tw.Flush()
}

func runOptimize(ctx context.Context, e *env, args []string) error {
	out := e.fs.String("o", "", "output scene path")
	if err := e.parse(args); err != nil {
		return err
	}
	if e.fs.NArg() != 1 || *out == "" {
		e.fs.Usage()
		return fmt.Errorf("optimize: one scene and -o required: %w", core.ErrInvalidArgument)
	}
	p, err := e.loadProfile()
	if err != nil {
		return err
	}
	g, err := e.files.Import(ctx, e.fs.Arg(0))
	if err != nil {
		return err
	}
	optimized, results, err := (&optimize.Pipeline{Settings: p.Settings, Logger: e.log}).Run(ctx, g)
	if err != nil {
		return err
	}
	if err := e.files.Export(ctx, *out, optimized); err != nil {
		return err
	}
	printPasses(os.Stdout, results)
	return nil
}

func printPasses(w io.Writer, results []optimize.PassResult) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "PASS\tCHANGED\tNODES\tPOLYGONS\tDRAW CALLS\tTIME\t")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%d\t%d → %d\t%d → %d\t%d → %d\t%s\t\n", r.Pass, r.Changed,
			r.NodesBefore, r.NodesAfter, r.PolygonsBefore, r.PolygonsAfter,
			r.DrawCallsBefore, r.DrawCallsAfter, r.Duration.Round(time.Microsecond))
	}
	tw.Flush()
}

func runBatch(ctx context.Context, e *env, args []string) error {
	outDir := e.fs.String("out", "", "output directory")
	manifest := e.fs.String("manifest", "", "write a JSON summary of the batch to this file")
	if err := e.parse(args); err != nil {
		return err
	}
	scenes := e.fs.Args()
	if *outDir == "" {
		e.fs.Usage()
		return fmt.Errorf("batch: -out required: %w", core.ErrInvalidArgument)
	}
	p, err := e.loadProfile()
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(len(scenes),
		progressbar.OptionSetDescription("optimizing"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish())
	c := batch.New(e.files)
	c.Output = batch.OutputDir(*outDir)
	c.Hooks = batch.Hooks{
		OnItemDone:  func(string) { bar.Add(1) },
		OnBatchDone: func(*batch.Summary) { bar.Finish() },
	}

	sum, err := c.Run(ctx, scenes, p)
	if err != nil {
		return err
	}
	fmt.Printf("%d scenes: %d optimized, %d failed, %d skipped in %s\n",
		sum.Total, sum.Succeeded, sum.Failed, sum.Skipped, sum.Duration.Round(time.Millisecond))
	if *manifest != "" {
		if err := batch.WriteManifest(*manifest, sum); err != nil {
			return err
		}
	}
	if sum.Failed > 0 {
		return fmt.Errorf("batch: %d of %d scenes failed", sum.Failed, sum.Total)
	}
	if sum.Cancelled {
		return fmt.Errorf("batch: %w", context.Canceled)
	}
	return nil
}

func runProfiles(_ context.Context, e *env, args []string) error {
	if err := e.parse(args); err != nil {
		return err
	}
	switch e.fs.Arg(0) {
	case "list":
		return listProfiles(os.Stdout, e.store)
	case "show":
		if e.fs.NArg() != 2 {
			return fmt.Errorf("profiles show: profile name required: %w", core.ErrInvalidArgument)
		}
		p, err := settings.Resolve(e.store, e.fs.Arg(1))
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		if err := enc.Encode(p); err != nil {
			return err
		}
		return enc.Close()
	case "save-defaults":
		for _, p := range settings.Presets() {
			if err := e.store.Save(p); err != nil {
				return err
			}
			e.log.Info("profile saved", "profile", p.Name, "dir", e.profileDir)
		}
		return nil
	}
	e.fs.Usage()
	return fmt.Errorf("profiles: unknown action %q: %w", e.fs.Arg(0), core.ErrInvalidArgument)
}

func listProfiles(w io.Writer, store settings.Store) error {
	names, err := store.List()
	if err != nil {
		return err
	}
	saved := make(map[string]bool, len(names))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, name := range names {
		saved[name] = true
		p, err := store.Load(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name, "saved", p.Description)
	}
	for _, p := range settings.Presets() {
		if !saved[p.Name] {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name, "built-in", p.Description)
		}
	}
	return tw.Flush()
}
