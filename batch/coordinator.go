// Package batch optimizes many scenes in sequence: import, optimize and
// export, one scene at a time, with per-scene failure isolation and
// cooperative cancellation.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"scene-optimizer/core"
	sceneio "scene-optimizer/io"
	"scene-optimizer/optimize"
	"scene-optimizer/settings"
)

// State is the lifecycle of a Coordinator.
type State int32

const (
	Idle State = iota
	Running
	Completed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Hooks receive batch events on the goroutine calling Run. Any of them may
// be nil.
type Hooks struct {
	// OnProgress gets processed/total after every scene.
	OnProgress func(fraction float64)
	// OnItemDone gets the path of every scene processed, failed or not.
	OnItemDone func(scene string)
	// OnBatchDone fires once at the end, cancelled or not.
	OnBatchDone func(summary *Summary)
	// OnBatchError fires before OnBatchDone with the joined scene errors,
	// if any scene failed.
	OnBatchError func(err error)
}

// Result is the outcome of one scene.
type Result struct {
	Scene    string                `json:"scene"`
	Output   string                `json:"output,omitempty"`
	Success  bool                  `json:"success"`
	Error    string                `json:"error,omitempty"`
	Passes   []optimize.PassResult `json:"passes,omitempty"`
	Duration time.Duration         `json:"duration"`
}

// Summary describes a finished batch.
type Summary struct {
	Profile   string        `json:"profile"`
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Cancelled bool          `json:"cancelled"`
	Results   []Result      `json:"results"`
	Duration  time.Duration `json:"duration"`

	// Err joins the errors of the failed scenes.
	Err error `json:"-"`
}

// Coordinator runs batches. Only one batch runs at a time; a finished
// Coordinator can run again.
type Coordinator struct {
	Supplier sceneio.Supplier
	Sink     sceneio.Sink
	// Output maps a scene path to its export path. Nil means
	// OptimizedPath.
	Output func(scene string) string
	Logger *slog.Logger
	Hooks  Hooks

	mu        sync.Mutex
	state     State
	cancelled atomic.Bool
}

// New returns a coordinator reading and writing through fs.
func New(fs sceneio.FileSystem) *Coordinator {
	return &Coordinator{Supplier: fs, Sink: fs, Logger: fs.Logger}
}

func (c *Coordinator) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Cancel asks the running batch to stop before its next scene. The scene
// in progress runs to completion.
func (c *Coordinator) Cancel() {
	c.cancelled.Store(true)
}

func (c *Coordinator) begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Running {
		return fmt.Errorf("batch: already running: %w", core.ErrBusy)
	}
	c.state = Running
	c.cancelled.Store(false)
	return nil
}

func (c *Coordinator) finish(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Run processes scenes in order with the settings of profile. Argument
// errors are returned before any scene is touched; scene failures are
// logged, collected into the Summary and reported through the hooks.
// Cancelling ctx, like calling Cancel, stops the batch at the next scene
// boundary.
func (c *Coordinator) Run(ctx context.Context, scenes []string, profile *settings.Profile) (*Summary, error) {
	if len(scenes) == 0 {
		return nil, fmt.Errorf("batch: no scenes: %w", core.ErrInvalidArgument)
	}
	if profile == nil || profile.Settings == nil {
		return nil, fmt.Errorf("batch: profile: %w", core.ErrNullReference)
	}
	if c.Supplier == nil || c.Sink == nil {
		return nil, fmt.Errorf("batch: supplier and sink are required: %w", core.ErrNullReference)
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	if err := c.begin(); err != nil {
		return nil, err
	}

	log := c.logger().With("profile", profile.Name)
	pipeline := &optimize.Pipeline{Settings: profile.Settings.Clone(), Logger: c.Logger}
	output := c.Output
	if output == nil {
		output = OptimizedPath
	}

	start := time.Now()
	sum := &Summary{Profile: profile.Name, Total: len(scenes)}
	var errs []error
	log.Info("batch started", "scenes", len(scenes))
	for i, path := range scenes {
		if c.cancelled.Load() || ctx.Err() != nil {
			sum.Cancelled = true
			sum.Skipped = len(scenes) - i
			log.Info("batch cancelled", "processed", i, "skipped", sum.Skipped)
			break
		}
		// The scene in flight is never preempted.
		res, err := c.process(context.WithoutCancel(ctx), pipeline, path, output(path))
		if err != nil {
			errs = append(errs, err)
			sum.Failed++
			log.Error("scene failed", "scene", path, "err", err)
		} else {
			sum.Succeeded++
			log.Debug("scene done", "scene", path, "output", res.Output, "duration", res.Duration)
		}
		sum.Results = append(sum.Results, res)
		if c.Hooks.OnItemDone != nil {
			c.Hooks.OnItemDone(path)
		}
		if c.Hooks.OnProgress != nil {
			c.Hooks.OnProgress(float64(i+1) / float64(len(scenes)))
		}
	}
	sum.Duration = time.Since(start)
	sum.Err = errors.Join(errs...)

	if sum.Cancelled {
		c.finish(Cancelled)
	} else {
		c.finish(Completed)
	}
	log.Info("batch finished", "succeeded", sum.Succeeded, "failed", sum.Failed, "skipped", sum.Skipped, "duration", sum.Duration)
	if sum.Err != nil && c.Hooks.OnBatchError != nil {
		c.Hooks.OnBatchError(sum.Err)
	}
	if c.Hooks.OnBatchDone != nil {
		c.Hooks.OnBatchDone(sum)
	}
	return sum, nil
}

func (c *Coordinator) process(ctx context.Context, p *optimize.Pipeline, path, out string) (Result, error) {
	start := time.Now()
	res := Result{Scene: path}
	fail := func(err error) (Result, error) {
		res.Error = err.Error()
		res.Duration = time.Since(start)
		return res, err
	}

	g, err := c.Supplier.Import(ctx, path)
	if err != nil {
		return fail(err)
	}
	optimized, passes, err := p.Run(ctx, g)
	res.Passes = passes
	if err != nil {
		return fail(err)
	}
	if err := c.Sink.Export(ctx, out, optimized); err != nil {
		return fail(err)
	}
	res.Output = out
	res.Success = true
	res.Duration = time.Since(start)
	return res, nil
}

// OptimizedPath inserts ".optimized" before the extension of path:
// "city.glb" becomes "city.optimized.glb".
func OptimizedPath(path string) string {
	ext := filepath.Ext(path)
	if strings.HasSuffix(strings.ToLower(path), ".sceneopt.json") {
		ext = path[len(path)-len(".sceneopt.json"):]
	}
	return strings.TrimSuffix(path, ext) + ".optimized" + ext
}

// OutputDir returns an Output function writing every scene under dir with
// its base name kept.
func OutputDir(dir string) func(string) string {
	return func(scene string) string {
		return filepath.Join(dir, filepath.Base(scene))
	}
}
