package render

import (
	"fmt"
	"os"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
)

// Weight selects the regular or bold face.
type Weight int

const (
	Regular Weight = iota
	Bold
)

type faceKey struct {
	weight Weight
	size   float64
}

// fontSet owns the parsed fonts and a cache of sized faces.
type fontSet struct {
	regular *truetype.Font
	bold    *truetype.Font
	faces   map[faceKey]font.Face
}

// loadFonts parses the TTF files at regularPath and boldPath; an empty path
// selects the embedded Go Mono face of that weight.
func loadFonts(regularPath, boldPath string) (*fontSet, error) {
	regular, err := loadFont(regularPath, gomono.TTF)
	if err != nil {
		return nil, fmt.Errorf("render: regular font: %w", err)
	}
	bold, err := loadFont(boldPath, gomonobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("render: bold font: %w", err)
	}
	return &fontSet{
		regular: regular,
		bold:    bold,
		faces:   make(map[faceKey]font.Face),
	}, nil
}

func loadFont(path string, fallback []byte) (*truetype.Font, error) {
	data := fallback
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		data = b
	}
	return truetype.Parse(data)
}

// face returns a cached face; sizes are in points at 72 DPI, so a point is
// a pixel.
func (fs *fontSet) face(w Weight, size float64) font.Face {
	key := faceKey{weight: w, size: size}
	if f, ok := fs.faces[key]; ok {
		return f
	}
	ttf := fs.regular
	if w == Bold {
		ttf = fs.bold
	}
	f := truetype.NewFace(ttf, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	fs.faces[key] = f
	return f
}

func (fs *fontSet) close() {
	for k, f := range fs.faces {
		_ = f.Close()
		delete(fs.faces, k)
	}
}
