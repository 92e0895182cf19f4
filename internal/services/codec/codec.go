package codec

import (
	"context"
	"errors"
	"fmt"
	"image"
	"iter"

	"github.com/eric2788/framestudio/internal/modules/config"
	"github.com/eric2788/framestudio/utils"
	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
)

var logger = logrus.WithField("service", "codec")

var (
	ErrFFmpegNotInstalled = errors.New("ffmpeg is not installed or not found in PATH")
	ErrUnknownCodec       = errors.New("unknown codec")
	ErrNoFrames           = errors.New("no frames to assemble")
)

type Frame struct {
	Number int
	Image  image.Image
}

// Metadata describes a container. Width and height are read independently.
type Metadata struct {
	FrameCount int   `json:"frame_count"`
	Width      int   `json:"width"`
	Height     int   `json:"height"`
	SizeBytes  int64 `json:"size_bytes"`
}

type FrameCodec interface {
	Name() string
	// Extensions lists the container extensions the codec can split, lowercase with the dot.
	Extensions() []string
	SplitContainerToFrames(ctx context.Context, path string) iter.Seq2[Frame, error]
	AssembleFramesToContainer(ctx context.Context, orderedPaths []string, targetPath string) error
	GetContainerMetadata(ctx context.Context, path string) (Metadata, bool)
}

func NewService(cfg *config.Config, loader ImageLoader) (FrameCodec, error) {
	switch cfg.Codec {
	case "gif":
		return NewGifCodec(cfg, loader), nil
	case "ffmpeg":
		if !utils.FFmpegAvailable() {
			return nil, ErrFFmpegNotInstalled
		}
		return NewFFmpegCodec(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, cfg.Codec)
	}
}

var Module = fx.Module("codec",
	fx.Provide(
		fx.Annotate(NewLoader, fx.As(new(ImageLoader))),
		NewService,
	),
)
