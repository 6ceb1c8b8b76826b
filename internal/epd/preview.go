package epd

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"path/filepath"

	"edashboard/internal/config"
	"edashboard/internal/convert"
	appLog "edashboard/internal/log"
)

// Preview is a render-only Device. Each Display writes black.bin, red.bin
// and a composited landscape preview.png into its directory.
type Preview struct {
	dir    string
	width  int
	height int

	// Frames counts successful Display calls.
	Frames int
	// Asleep is true between Sleep and the next Init.
	Asleep bool
}

// NewPreview returns a preview device for the 2.13" B/C geometry.
func NewPreview(dir string) *Preview {
	return &Preview{dir: dir, width: Width, height: Height}
}

func (p *Preview) Width() int  { return p.width }
func (p *Preview) Height() int { return p.height }

func (p *Preview) Init(context.Context) error {
	p.Asleep = false
	return nil
}

func (p *Preview) Display(black, red []byte) error {
	size := convert.PlaneSize(p.width, p.height)
	if len(black) != size || len(red) != size {
		return fmt.Errorf("epd: invalid buffer size, expected %d bytes per plane", size)
	}

	if err := config.WriteFileAtomic(filepath.Join(p.dir, "black.bin"), black, 0o644); err != nil {
		return fmt.Errorf("epd: write black.bin: %w", err)
	}
	if err := config.WriteFileAtomic(filepath.Join(p.dir, "red.bin"), red, 0o644); err != nil {
		return fmt.Errorf("epd: write red.bin: %w", err)
	}

	img := convert.Composite(p.unpack(black), p.unpack(red))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("epd: encode preview: %w", err)
	}
	if err := config.WriteFileAtomic(filepath.Join(p.dir, "preview.png"), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("epd: write preview.png: %w", err)
	}

	p.Frames++
	appLog.Info("preview written", "dir", p.dir, "frame", p.Frames)
	return nil
}

func (p *Preview) Sleep() error {
	p.Asleep = true
	return nil
}

func (p *Preview) Close() error { return nil }

// unpack turns a packed portrait plane back into a landscape layer, undoing
// the rotation applied by convert.PackLayer.
func (p *Preview) unpack(plane []byte) *image.Gray {
	stride := convert.Stride(p.width)
	out := convert.NewLayer(p.height, p.width)
	for py := 0; py < p.height; py++ {
		for px := 0; px < p.width; px++ {
			if plane[py*stride+(px>>3)]&(0x80>>(px&7)) != 0 {
				continue
			}
			// Portrait (px, py) came from landscape (height-1-py, px).
			out.SetGray(p.height-1-py, px, color.Gray{Y: convert.Ink})
		}
	}
	return out
}
