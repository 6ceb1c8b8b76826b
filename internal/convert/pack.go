package convert

import (
	"fmt"
	"image"
	"image/color"
)

// Ink values stored in a layer. Layers are *image.Gray where anything darker
// than InkThreshold is treated as ink.
const (
	Ink          uint8 = 0x00
	Paper        uint8 = 0xFF
	InkThreshold uint8 = 0x80
)

// Stride returns the number of bytes per packed row for a panel that is
// panelW pixels wide.
func Stride(panelW int) int {
	return (panelW + 7) / 8
}

// PlaneSize returns the packed size of one plane.
func PlaneSize(panelW, panelH int) int {
	return Stride(panelW) * panelH
}

// PackLayer converts a monochrome layer into a packed 1bpp plane for a panel
// whose native (portrait) geometry is panelW x panelH.
//
// Requirements / behavior:
//
//   - img may be portrait (panelW x panelH) or landscape (panelH x panelW).
//     Landscape layers are rotated so that landscape x runs along the panel's
//     long axis from the bottom up: panel(x=y, y=panelH-1-x).
//   - Each plane is y-major, MSB-first: byteIndex = y*stride + x>>3,
//     mask = 0x80 >> (x & 7).
//   - All bits start as 1 (paper); ink pixels clear their bit to 0.
func PackLayer(img *image.Gray, panelW, panelH int) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("convert: nil layer")
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	var landscape bool
	switch {
	case w == panelW && h == panelH:
	case w == panelH && h == panelW:
		landscape = true
	default:
		return nil, fmt.Errorf("convert: layer is %dx%d, panel is %dx%d", w, h, panelW, panelH)
	}

	stride := Stride(panelW)
	out := make([]byte, stride*panelH)
	for i := range out {
		out[i] = 0xFF
	}

	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w]
		for x := 0; x < w; x++ {
			if row[x] >= InkThreshold {
				continue
			}
			px, py := x, y
			if landscape {
				px, py = y, panelH-1-x
			}
			out[py*stride+(px>>3)] &^= byte(0x80 >> (px & 7))
		}
	}

	return out, nil
}

// NewLayer returns a blank (all paper) layer.
func NewLayer(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = Paper
	}
	return img
}

// InkColor indicates which plane a pixel should be drawn to.
type InkColor int

const (
	InkWhite InkColor = iota
	InkBlack
	InkRed
)

// Classify decides whether a pixel should be black, red, or white on the
// bi-color panel.
//
// Heuristics:
//
//   - alpha < 128 -> white
//   - luma Y = 0.299R + 0.587G + 0.114B
//   - redness = R - max(G, B)
//   - Y < 64 -> black
//   - R > 128 and redness > 32 -> red
//   - mid-grey (Y < 160) -> black, so pale icon strokes survive
//   - everything else -> white
func Classify(c color.Color) InkColor {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	if n.A < 128 {
		return InkWhite
	}

	r, g, b := float64(n.R), float64(n.G), float64(n.B)

	// Luma (perceptual brightness).
	y := 0.299*r + 0.587*g + 0.114*b

	maxGB := g
	if b > maxGB {
		maxGB = b
	}
	redness := r - maxGB

	if y < 64 {
		return InkBlack
	}
	if r > 128 && redness > 32 {
		return InkRed
	}
	if y < 160 {
		return InkBlack
	}
	return InkWhite
}

// Composite renders a black/red layer pair into a color preview image the
// way the panel would show it (red wins over black, like the controller).
func Composite(black, red *image.Gray) *image.NRGBA {
	b := black.Bounds()
	out := image.NewNRGBA(b)
	white := color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	ink := color.NRGBA{A: 0xFF}
	redInk := color.NRGBA{R: 0xD0, G: 0x10, B: 0x10, A: 0xFF}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := white
			if black.GrayAt(x, y).Y < InkThreshold {
				c = ink
			}
			if red != nil && red.GrayAt(x, y).Y < InkThreshold {
				c = redInk
			}
			out.SetNRGBA(x, y, c)
		}
	}
	return out
}
