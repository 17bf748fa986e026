package scene

import (
	"fmt"
	"strings"
)

// Format is a texture pixel format tag.
type Format int

const (
	FormatRGBA32 Format = iota
	FormatRGB24
	FormatRG16
	FormatR8
	FormatRGBAHalf
	FormatRGBAFloat
	FormatDXT1
	FormatDXT5
	FormatBC7
	FormatETC2RGBA
	FormatASTC4x4
)

var formatInfo = [...]struct {
	name string
	bits int // bits per pixel
}{
	FormatRGBA32:    {"RGBA32", 32},
	FormatRGB24:     {"RGB24", 24},
	FormatRG16:      {"RG16", 16},
	FormatR8:        {"R8", 8},
	FormatRGBAHalf:  {"RGBAHalf", 64},
	FormatRGBAFloat: {"RGBAFloat", 128},
	FormatDXT1:      {"DXT1", 4},
	FormatDXT5:      {"DXT5", 8},
	FormatBC7:       {"BC7", 8},
	FormatETC2RGBA:  {"ETC2_RGBA8", 8},
	FormatASTC4x4:   {"ASTC_4x4", 8},
}

func (f Format) valid() bool { return f >= 0 && int(f) < len(formatInfo) }

func (f Format) String() string {
	if !f.valid() {
		return fmt.Sprintf("Format(%d)", int(f))
	}
	return formatInfo[f].name
}

// BitsPerPixel returns the storage cost of one pixel. Block-compressed
// formats report their amortized rate.
func (f Format) BitsPerPixel() int {
	if !f.valid() {
		return 32
	}
	return formatInfo[f].bits
}

// ParseFormat maps a format tag back to its Format, ignoring case.
func ParseFormat(s string) (Format, error) {
	for i, fi := range formatInfo {
		if strings.EqualFold(fi.name, s) {
			return Format(i), nil
		}
	}
	return 0, fmt.Errorf("unknown texture format %q", s)
}

func (f Format) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *Format) UnmarshalText(b []byte) error {
	v, err := ParseFormat(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// Texture describes an image by its dimensions and format; pixel data stays
// with the external importer.
type Texture struct {
	Name   string
	Width  int
	Height int
	Format Format
	// Source is the file or URI the texture came from, if any.
	Source string
}

// ByteSize is width·height·bytesPerPixel.
func (t *Texture) ByteSize() int64 {
	return int64(t.Width) * int64(t.Height) * int64(t.Format.BitsPerPixel()) / 8
}
