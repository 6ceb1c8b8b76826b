package render

import (
	"image"
	"strconv"

	"edashboard/internal/config"
)

// drawMoon draws a crescent filling the slot's square.
func drawMoon(img *image.Gray, s config.ImageSlot) {
	r := s.Size / 2
	cx, cy := s.X+r, s.Y+r
	// The bite is a same-sized disc shifted up and to the right.
	bx, by := cx+r/2, cy-r/4
	for y := s.Y; y < s.Y+s.Size; y++ {
		for x := s.X; x < s.X+s.Size; x++ {
			if inCircle(x, y, cx, cy, r) && !inCircle(x, y, bx, by, r-r/8) {
				setInk(img, x, y)
			}
		}
	}
}

// drawCalendar draws a page-a-day calendar with n printed on it.
func drawCalendar(img *image.Gray, fs *fontSet, s config.ImageSlot, n int) {
	x0, y0 := s.X, s.Y+s.Size/8
	x1, y1 := s.X+s.Size-1, s.Y+s.Size-1
	rectOutline(img, x0, y0, x1, y1)
	rectOutline(img, x0+1, y0+1, x1-1, y1-1)

	header := s.Size / 5
	fillRect(img, x0, y0, x1, y0+header)

	// Binder rings.
	ring := s.Size / 4
	vline(img, x0+ring, s.Y, y0+header/2)
	vline(img, x1-ring, s.Y, y0+header/2)

	label := strconv.Itoa(n)
	if n > 9 {
		label = "9+"
	}
	size := float64(y1-y0-header) * 0.8
	face := fs.face(Bold, size)
	w := measure(face, label)
	tx := x0 + (x1-x0+1-w)/2
	ty := y0 + header + (y1-y0-header-int(size))/2
	drawText(img, face, tx, ty, label)
}

// drawBattery draws a battery outline with a fill bar for percent.
func drawBattery(img *image.Gray, s config.ImageSlot, percent int) {
	h := s.Size / 2
	x0, y0 := s.X, s.Y+(s.Size-h)/2
	x1, y1 := s.X+s.Size-4, y0+h-1
	rectOutline(img, x0, y0, x1, y1)

	// Terminal nub.
	fillRect(img, x1+1, y0+h/4, x1+3, y1-h/4)

	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	inner := x1 - x0 - 3
	fill := inner * percent / 100
	if fill < 1 {
		// Always show a sliver so the glyph reads as "nearly empty".
		fill = 1
	}
	fillRect(img, x0+2, y0+2, x0+1+fill, y1-2)
}
