package codec_test

import (
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/eric2788/framestudio/internal/modules/config"
	"github.com/eric2788/framestudio/internal/services/codec"
	"github.com/eric2788/framestudio/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeGif creates an animated gif of n solid frames sized w x h.
func writeGif(t *testing.T, path string, n, w, h int) {
	t.Helper()
	anim := &gif.GIF{}
	for i := range n {
		frame := image.NewPaletted(image.Rect(0, 0, w, h), palette.Plan9)
		c := palette.Plan9[(i*37)%len(palette.Plan9)]
		for y := range h {
			for x := range w {
				frame.Set(x, y, c)
			}
		}
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, 10)
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, gif.EncodeAll(f, anim))
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.Set(x, y, color.RGBA{R: uint8(x * 10), G: uint8(y * 10), B: 90, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func newGifCodec() codec.FrameCodec {
	return codec.NewGifCodec(config.Default(), codec.NewLoader())
}

func TestGifSplit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anim.gif")
	writeGif(t, path, 4, 12, 7)

	c := newGifCodec()
	count := 0
	for frame, err := range c.SplitContainerToFrames(t.Context(), path) {
		require.NoError(t, err)
		assert.Equal(t, count, frame.Number)
		assert.Equal(t, 12, frame.Image.Bounds().Dx())
		assert.Equal(t, 7, frame.Image.Bounds().Dy())
		count++
	}
	assert.Equal(t, 4, count)
}

func TestGifSplitStopsEarly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anim.gif")
	writeGif(t, path, 5, 4, 4)

	count := 0
	for _, err := range newGifCodec().SplitContainerToFrames(t.Context(), path) {
		require.NoError(t, err)
		count++
		if count == 2 {
			break
		}
	}
	assert.Equal(t, 2, count)
}

func TestGifSplitBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.gif")
	require.NoError(t, os.WriteFile(path, []byte("not a gif"), 0o644))

	var gotErr error
	for _, err := range newGifCodec().SplitContainerToFrames(t.Context(), path) {
		gotErr = err
	}
	assert.Error(t, gotErr)
}

func TestGifAssembleAndMetadata(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i := range 3 {
		p := filepath.Join(dir, "frame_"+string(rune('a'+i))+".png")
		writePNG(t, p, 9, 5)
		paths = append(paths, p)
	}

	c := newGifCodec()
	target := filepath.Join(dir, "out", "new.gif")
	require.NoError(t, c.AssembleFramesToContainer(t.Context(), paths, target))

	meta, ok := c.GetContainerMetadata(t.Context(), target)
	require.True(t, ok)
	assert.Equal(t, 3, meta.FrameCount)
	assert.Equal(t, 9, meta.Width)
	assert.Equal(t, 5, meta.Height)
	assert.Positive(t, meta.SizeBytes)

	assert.ErrorIs(t, c.AssembleFramesToContainer(t.Context(), nil, target), codec.ErrNoFrames)
}

func TestGifMetadataAbsent(t *testing.T) {
	c := newGifCodec()
	_, ok := c.GetContainerMetadata(t.Context(), filepath.Join(t.TempDir(), "missing.gif"))
	assert.False(t, ok)
}

func TestLoaderAndThumbnail(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "wide.png")
	writePNG(t, p, 20, 10)

	l := codec.NewLoader()
	img, err := l.LoadDisplayableImage(p)
	require.NoError(t, err)

	thumb := codec.Thumbnail(img, 8)
	assert.Equal(t, 8, thumb.Bounds().Dx())
	assert.Equal(t, 4, thumb.Bounds().Dy())
	assert.Same(t, img, codec.Thumbnail(img, 64))

	data, err := codec.EncodePNG(thumb)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	_, err = l.LoadDisplayableImage(filepath.Join(dir, "missing.png"))
	assert.ErrorIs(t, err, codec.ErrImageNotFound)
}

func TestNewServiceSelectsCodec(t *testing.T) {
	cfg := config.Default()
	cfg.Codec = "gif"
	c, err := codec.NewService(cfg, codec.NewLoader())
	require.NoError(t, err)
	assert.Equal(t, "gif", c.Name())
	assert.Equal(t, []string{".gif"}, c.Extensions())

	cfg.Codec = "bogus"
	_, err = codec.NewService(cfg, codec.NewLoader())
	assert.ErrorIs(t, err, codec.ErrUnknownCodec)
}

func TestFFmpegRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test in short mode")
	} else if !utils.FFmpegAvailable() {
		t.Skip("ffmpeg not available, skipping test")
	}

	dir := t.TempDir()
	src := filepath.Join(dir, "anim.gif")
	writeGif(t, src, 3, 8, 6)

	c := codec.NewFFmpegCodec(config.Default())
	var paths []string
	for frame, err := range c.SplitContainerToFrames(t.Context(), src) {
		require.NoError(t, err)
		p := filepath.Join(dir, "f"+string(rune('0'+frame.Number))+".png")
		f, err := os.Create(p)
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, frame.Image))
		f.Close()
		paths = append(paths, p)
	}
	require.Len(t, paths, 3)

	target := filepath.Join(dir, "out.gif")
	require.NoError(t, c.AssembleFramesToContainer(t.Context(), paths, target))
	meta, ok := c.GetContainerMetadata(t.Context(), target)
	require.True(t, ok)
	assert.Equal(t, 8, meta.Width)
	assert.Equal(t, 6, meta.Height)
}
