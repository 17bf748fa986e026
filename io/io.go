// Package io moves scene graphs between files and memory. It supplies the
// optimizer with graphs and writes the results back.
package io

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"scene-optimizer/core"
	"scene-optimizer/scene"
)

// Supplier produces a scene graph from a path.
type Supplier interface {
	Import(ctx context.Context, path string) (*scene.Graph, error)
}

// Sink stores a scene graph at a path, creating directories as needed.
type Sink interface {
	Export(ctx context.Context, path string, g *scene.Graph) error
}

// FileSystem imports and exports scenes on the local file system, picking
// the codec from the file extension: .gltf/.glb, .json (.sceneopt.json)
// and .obj.
type FileSystem struct {
	Logger *slog.Logger
}

var (
	_ Supplier = FileSystem{}
	_ Sink     = FileSystem{}
)

func (f FileSystem) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

// Extensions lists the file extensions Import understands.
var Extensions = []string{".gltf", ".glb", ".json", ".obj"}

// Supported reports whether path has an importable extension.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

func (f FileSystem) Import(ctx context.Context, path string) (*scene.Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkReadable(path); err != nil {
		return nil, err
	}

	var (
		g   *scene.Graph
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".gltf", ".glb":
		g, err = readGLTF(path, f.logger())
	case ".json":
		g, err = readJSON(path)
	case ".obj":
		g, err = readOBJ(path, f.logger())
	default:
		return nil, fmt.Errorf("import %q: unsupported extension %q: %w", path, ext, core.ErrInvalidArgument)
	}
	if err != nil {
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("import %q: %w", path, err)
	}
	f.logger().Debug("scene imported", "path", path, "nodes", g.NodeCount(), "meshes", g.Meshes.Len())
	return g, nil
}

func (f FileSystem) Export(ctx context.Context, path string, g *scene.Graph) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if g == nil {
		return fmt.Errorf("export %q: %w", path, core.ErrNullReference)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("export %q: %v: %w", path, err, core.ErrIOFailure)
	}

	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".gltf", ".glb":
		err = writeGLTF(path, g)
	case ".json":
		err = writeJSON(path, g)
	case ".obj":
		err = writeOBJ(path, g)
	default:
		return fmt.Errorf("export %q: unsupported extension %q: %w", path, ext, core.ErrInvalidArgument)
	}
	if err != nil {
		return err
	}
	f.logger().Debug("scene exported", "path", path, "nodes", g.NodeCount())
	return nil
}

func checkReadable(path string) error {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("import %q: %w", path, core.ErrNotFound)
	case err != nil:
		return fmt.Errorf("import %q: %v: %w", path, err, core.ErrIOFailure)
	case info.IsDir():
		return fmt.Errorf("import %q: is a directory: %w", path, core.ErrIOFailure)
	}
	return nil
}

// ioErr wraps a read or write failure.
func ioErr(op, path string, err error) error {
	return fmt.Errorf("%s %q: %v: %w", op, path, err, core.ErrIOFailure)
}
