package codec

import (
	"context"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"iter"
	"os"
	"path/filepath"
	"time"

	"github.com/eric2788/framestudio/internal/modules/config"
	"github.com/kovidgoyal/imaging"
	"golang.org/x/image/draw"
)

// GifCodec splits and assembles animated GIF containers in process.
type GifCodec struct {
	delay  time.Duration
	loader ImageLoader
}

func NewGifCodec(cfg *config.Config, loader ImageLoader) *GifCodec {
	return &GifCodec{
		delay:  cfg.FrameDelay,
		loader: loader,
	}
}

func (c *GifCodec) Name() string {
	return "gif"
}

func (c *GifCodec) Extensions() []string {
	return []string{".gif"}
}

// SplitContainerToFrames yields every frame coalesced onto the full canvas,
// so each still looks the way it does during playback.
func (c *GifCodec) SplitContainerToFrames(ctx context.Context, path string) iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		img, err := imaging.OpenAll(path)
		if err != nil {
			yield(Frame{}, err)
			return
		}
		img.Coalesce()
		for i, f := range img.Frames {
			if err := ctx.Err(); err != nil {
				yield(Frame{}, err)
				return
			}
			if !yield(Frame{Number: i, Image: f.Image}, nil) {
				return
			}
		}
	}
}

func (c *GifCodec) AssembleFramesToContainer(ctx context.Context, orderedPaths []string, targetPath string) error {
	if len(orderedPaths) == 0 {
		return ErrNoFrames
	}

	anim := &gif.GIF{LoopCount: 0}
	width, height := 0, 0
	delay := int(c.delay / (10 * time.Millisecond))

	for _, p := range orderedPaths {
		if err := ctx.Err(); err != nil {
			return err
		}
		img, err := c.loader.LoadDisplayableImage(p)
		if err != nil {
			return err
		}
		b := img.Bounds()
		frame := image.NewPaletted(image.Rect(0, 0, b.Dx(), b.Dy()), palette.Plan9)
		draw.FloydSteinberg.Draw(frame, frame.Bounds(), img, b.Min)

		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, delay)
		width = max(width, b.Dx())
		height = max(height, b.Dy())
	}
	anim.Config = image.Config{
		ColorModel: color.Palette(palette.Plan9),
		Width:      width,
		Height:     height,
	}

	return writeAtomic(targetPath, func(f *os.File) error {
		return gif.EncodeAll(f, anim)
	})
}

func (c *GifCodec) GetContainerMetadata(ctx context.Context, path string) (Metadata, bool) {
	f, err := os.Open(path)
	if err != nil {
		return Metadata{}, false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return Metadata{}, false
	}
	g, err := gif.DecodeAll(f)
	if err != nil || len(g.Image) == 0 {
		logger.Debugf("no gif metadata for %s: %v", path, err)
		return Metadata{}, false
	}

	width, height := g.Config.Width, g.Config.Height
	if width == 0 || height == 0 {
		b := g.Image[0].Bounds()
		width, height = b.Dx(), b.Dy()
	}
	return Metadata{
		FrameCount: len(g.Image),
		Width:      width,
		Height:     height,
		SizeBytes:  info.Size(),
	}, true
}

// writeAtomic writes into a temp file next to target and renames it into place.
func writeAtomic(target string, write func(f *os.File) error) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if err := write(tmp); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	// remove existing target (Windows may block rename), ignore errors
	_ = os.Remove(target)
	return os.Rename(tmpName, target)
}
