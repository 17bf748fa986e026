// Command sceneopt analyzes and optimizes 3D scene files.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"scene-optimizer/core"
	sceneio "scene-optimizer/io"
	"scene-optimizer/settings"
)

type command struct {
	name    string
	usage   string
	summary string
	run     func(ctx context.Context, env *env, args []string) error
}

var commands = []command{
	{"analyze", "analyze [-report out.yaml] [-profile name] scene", "print metrics, score and recommendations", runAnalyze},
	{"optimize", "optimize [-profile name] -o out scene", "optimize one scene", runOptimize},
	{"batch", "batch [-profile name] -out dir [-manifest file] scenes...", "optimize many scenes", runBatch},
	{"profiles", "profiles list | show name | save-defaults", "manage optimization profiles", runProfiles},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "sceneopt: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: sceneopt <command> [flags] [args...]\n\nCommands:\n")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-10s %s\n", c.name, c.summary)
	}
	fmt.Fprintf(os.Stderr, "\nRun 'sceneopt <command> -h' for the flags of a command.\n")
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "help" {
		usage()
		return flag.ErrHelp
	}
	for _, c := range commands {
		if c.name != args[0] {
			continue
		}
		fs := flag.NewFlagSet(c.name, flag.ContinueOnError)
		e := newEnv(fs)
		fs.Usage = func() {
			fmt.Fprintf(fs.Output(), "Usage: sceneopt %s\n\nFlags:\n", c.usage)
			fs.PrintDefaults()
		}
		return c.run(ctx, e, args[1:])
	}
	usage()
	return fmt.Errorf("unknown command %q: %w", args[0], core.ErrInvalidArgument)
}

// env holds the flags every command shares and the collaborators built
// from them.
type env struct {
	fs *flag.FlagSet

	verbose    bool
	profileDir string
	yamlStore  bool
	profile    string

	log   *slog.Logger
	files sceneio.FileSystem
	store settings.Store
}

func newEnv(fs *flag.FlagSet) *env {
	e := &env{fs: fs}
	fs.BoolVar(&e.verbose, "v", false, "log debug messages")
	fs.StringVar(&e.profileDir, "profiles", settings.DefaultDir, "profile directory")
	fs.BoolVar(&e.yamlStore, "yaml", false, "store profiles as YAML instead of TOML")
	fs.StringVar(&e.profile, "profile", settings.Balanced, "optimization profile")
	return e
}

// parse parses args and builds the logger, file system and profile store.
func (e *env) parse(args []string) error {
	if err := e.fs.Parse(args); err != nil {
		return err
	}
	level := new(slog.LevelVar)
	if e.verbose {
		level.Set(slog.LevelDebug)
	}
	e.log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(e.log)
	e.files = sceneio.FileSystem{Logger: e.log}

	codec := settings.TOML
	if e.yamlStore {
		codec = settings.YAML
	}
	store, err := settings.NewFileStore(e.profileDir, codec)
	if err != nil {
		return err
	}
	e.store = store
	return nil
}

func (e *env) loadProfile() (*settings.Profile, error) {
	p, err := settings.Resolve(e.store, e.profile)
	if err != nil {
		return nil, err
	}
	e.log.Debug("profile loaded", "profile", p.Name)
	return p, nil
}
