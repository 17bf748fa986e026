package io

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "github.com/ftrvxmtrx/tga"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"scene-optimizer/scene"
)

// probeTexture reads only the image header to learn its size and format.
func probeTexture(name string, data []byte) (*scene.Texture, error) {
	return probeTextureReader(name, bufio.NewReader(bytes.NewReader(data)))
}

func probeTextureReader(name string, r *bufio.Reader) (*scene.Texture, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return nil, fmt.Errorf("probe texture %q: %w", name, err)
	}
	return &scene.Texture{
		Name:   name,
		Width:  cfg.Width,
		Height: cfg.Height,
		Format: formatOf(format, cfg.ColorModel),
	}, nil
}

func probeTextureFile(name, path string) (*scene.Texture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	t, err := probeTextureReader(name, bufio.NewReader(f))
	if err != nil {
		return nil, err
	}
	t.Source = path
	return t, nil
}

// formatOf maps a decoded image to the GPU format it would be uploaded as.
func formatOf(format string, model color.Model) scene.Format {
	switch model {
	case color.GrayModel, color.AlphaModel:
		return scene.FormatR8
	case color.Gray16Model, color.Alpha16Model:
		return scene.FormatRG16
	case color.RGBA64Model, color.NRGBA64Model:
		return scene.FormatRGBAHalf
	}
	if format == "jpeg" {
		return scene.FormatRGB24
	}
	return scene.FormatRGBA32
}
