package epd

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"edashboard/internal/convert"
)

func TestPreview_Display(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dump")
	p := NewPreview(dir)
	require.NoError(t, p.Init(context.Background()))
	assert.Equal(t, 104, p.Width())
	assert.Equal(t, 212, p.Height())

	black := convert.NewLayer(212, 104)
	red := convert.NewLayer(212, 104)
	black.SetGray(0, 0, color.Gray{Y: convert.Ink})
	red.SetGray(211, 103, color.Gray{Y: convert.Ink})

	bp, err := convert.PackLayer(black, Width, Height)
	require.NoError(t, err)
	rp, err := convert.PackLayer(red, Width, Height)
	require.NoError(t, err)

	require.NoError(t, p.Display(bp, rp))
	assert.Equal(t, 1, p.Frames)

	gotBlack, err := os.ReadFile(filepath.Join(dir, "black.bin"))
	require.NoError(t, err)
	assert.Equal(t, bp, gotBlack)
	gotRed, err := os.ReadFile(filepath.Join(dir, "red.bin"))
	require.NoError(t, err)
	assert.Equal(t, rp, gotRed)

	fh, err := os.Open(filepath.Join(dir, "preview.png"))
	require.NoError(t, err)
	defer fh.Close()
	img, err := png.Decode(fh)
	require.NoError(t, err)

	// The preview is landscape again, like the composed frame.
	assert.Equal(t, image.Rect(0, 0, 212, 104), img.Bounds())
	r, g, b, _ := img.At(0, 0).RGBA()
	assert.Equal(t, [3]uint32{0, 0, 0}, [3]uint32{r, g, b})
	r, g, _, _ = img.At(211, 103).RGBA()
	assert.Greater(t, r, g, "red pixel")
	r, g, b, _ = img.At(100, 50).RGBA()
	assert.Equal(t, [3]uint32{0xFFFF, 0xFFFF, 0xFFFF}, [3]uint32{r, g, b})
}

func TestPreview_SleepAndWake(t *testing.T) {
	p := NewPreview(t.TempDir())
	require.NoError(t, p.Sleep())
	assert.True(t, p.Asleep)
	require.NoError(t, p.Init(context.Background()))
	assert.False(t, p.Asleep)
	require.NoError(t, p.Close())
}

func TestPreview_RejectsWrongSize(t *testing.T) {
	p := NewPreview(t.TempDir())
	err := p.Display(make([]byte, 10), make([]byte, PlaneSize))
	require.Error(t, err)
	assert.Zero(t, p.Frames)
}

func TestTee_MirrorsFrames(t *testing.T) {
	panel := NewPreview(filepath.Join(t.TempDir(), "panel"))
	dump := NewPreview(filepath.Join(t.TempDir(), "dump"))
	tee := &Tee{Panel: panel, Preview: dump}

	blank := make([]byte, PlaneSize)
	for i := range blank {
		blank[i] = 0xFF
	}

	require.NoError(t, tee.Init(context.Background()))
	require.NoError(t, tee.Display(blank, blank))
	require.NoError(t, tee.Sleep())

	assert.Equal(t, 1, panel.Frames)
	assert.Equal(t, 1, dump.Frames)
	assert.True(t, panel.Asleep)
	assert.True(t, dump.Asleep)
	assert.Equal(t, Width, tee.Width())

	// A rejected frame never reaches the dump.
	require.Error(t, tee.Display(blank[:10], blank))
	assert.Equal(t, 1, dump.Frames)
}

func TestClear(t *testing.T) {
	dir := t.TempDir()
	p := NewPreview(dir)
	require.NoError(t, p.Init(context.Background()))
	require.NoError(t, Clear(p))
	assert.Equal(t, 1, p.Frames)

	for _, name := range []string{"black.bin", "red.bin"} {
		plane, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		require.Len(t, plane, PlaneSize)
		for i, b := range plane {
			require.Equal(t, byte(0xFF), b, "%s byte %d", name, i)
		}
	}
}
