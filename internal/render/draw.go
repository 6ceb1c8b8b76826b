package render

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"edashboard/internal/convert"
)

var inkColor = color.Gray{Y: convert.Ink}

// drawText draws s with its line box's top-left corner at (x, y) and returns
// the advance in pixels.
func drawText(dst *image.Gray, face font.Face, x, y int, s string) int {
	ascent := face.Metrics().Ascent.Ceil()
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(inkColor),
		Face: face,
		Dot:  fixed.P(x, y+ascent),
	}
	d.DrawString(s)
	return (d.Dot.X - fixed.I(x)).Ceil()
}

func setInk(img *image.Gray, x, y int) {
	if image.Pt(x, y).In(img.Rect) {
		img.SetGray(x, y, inkColor)
	}
}

func hline(img *image.Gray, x0, x1, y int) {
	for x := x0; x <= x1; x++ {
		setInk(img, x, y)
	}
}

func vline(img *image.Gray, x, y0, y1 int) {
	for y := y0; y <= y1; y++ {
		setInk(img, x, y)
	}
}

func fillRect(img *image.Gray, x0, y0, x1, y1 int) {
	for y := y0; y <= y1; y++ {
		hline(img, x0, x1, y)
	}
}

func rectOutline(img *image.Gray, x0, y0, x1, y1 int) {
	hline(img, x0, x1, y0)
	hline(img, x0, x1, y1)
	vline(img, x0, y0, y1)
	vline(img, x1, y0, y1)
}

// inCircle reports whether (x, y) lies within radius r of (cx, cy).
func inCircle(x, y, cx, cy, r int) bool {
	dx, dy := x-cx, y-cy
	return dx*dx+dy*dy <= r*r
}

func measure(face font.Face, s string) int {
	return font.MeasureString(face, s).Ceil()
}
