package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"github.com/eric2788/framestudio/internal/modules/config"
	"github.com/eric2788/framestudio/internal/services"
	"github.com/eric2788/framestudio/internal/services/cancel"
	"github.com/eric2788/framestudio/internal/services/codec"
	"github.com/eric2788/framestudio/internal/services/display"
	"github.com/jellydator/ttlcache/v3"
	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"
)

var logger = logrus.WithField("service", "indexer")

var ErrFrameNotFound = errors.New("frame not found")

type Indexer struct {
	loader      codec.ImageLoader
	dispatcher  display.Dispatcher
	coordinator *cancel.Coordinator
	thumbSize   int

	published  atomic.Pointer[display.FrameIndex]
	thumbnails *ttlcache.Cache[string, []byte]
}

type publishOptions struct {
	containerPath string
	statusText    string
}

type PublishOption func(*publishOptions)

// WithContainer records the container the frames belong to on the display.
func WithContainer(path string) PublishOption {
	return func(o *publishOptions) {
		o.containerPath = path
	}
}

func WithStatus(text string) PublishOption {
	return func(o *publishOptions) {
		o.statusText = text
	}
}

func New(cfg *config.Config, loader codec.ImageLoader, dispatcher display.Dispatcher, coordinator *cancel.Coordinator) *Indexer {
	return &Indexer{
		loader:      loader,
		dispatcher:  dispatcher,
		coordinator: coordinator,
		thumbSize:   cfg.ThumbnailSize,
		thumbnails: ttlcache.New(
			ttlcache.WithTTL[string, []byte](cfg.ThumbnailTTL),
			ttlcache.WithCapacity[string, []byte](2048),
		),
	}
}

func NewService(lc fx.Lifecycle, cfg *config.Config, loader codec.ImageLoader, owner *display.Owner, coordinator *cancel.Coordinator) *Indexer {
	x := New(cfg, loader, owner, coordinator)
	lc.Append(fx.StartStopHook(
		func() {
			go x.thumbnails.Start()
		},
		func() {
			x.thumbnails.Stop()
		},
	))
	return x
}

// Published returns the frame index currently shown on the display.
func (x *Indexer) Published() *display.FrameIndex {
	return x.published.Load()
}

// GenerateFromFiles builds a frame index over files in the given order, renders
// their thumbnails and publishes the index to the display. Nothing is published
// when the token is cancelled before the index reaches the display.
func (x *Indexer) GenerateFromFiles(ctx context.Context, files []string, token *cancel.Token, opts ...PublishOption) (*display.FrameIndex, error) {
	if err := token.Err(); err != nil {
		return nil, err
	}

	idx := display.NewFrameIndex(files)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for _, frame := range idx.Frames() {
		g.Go(func() error {
			if err := token.Err(); err != nil {
				return err
			}
			if err := gctx.Err(); err != nil {
				return err
			}
			if _, err := x.thumbnail(frame.Path); err != nil {
				// a broken frame still gets an id, it just has no preview
				logger.Warnf("cannot render thumbnail for %s: %v", frame.Path, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if services.IsCancelled(err) || errors.Is(err, context.Canceled) {
			return nil, services.ErrOperationCancelled
		}
		return nil, err
	}

	if err := x.publish(ctx, idx, token, opts...); err != nil {
		return nil, err
	}
	logger.Infof("published frame index with %d frames", idx.Len())
	return idx, nil
}

// Reset publishes an empty index, used after the workspace is cleared.
func (x *Indexer) Reset(ctx context.Context, token *cancel.Token, opts ...PublishOption) error {
	return x.publish(ctx, display.NewFrameIndex(nil), token, opts...)
}

func (x *Indexer) publish(ctx context.Context, idx *display.FrameIndex, token *cancel.Token, opts ...PublishOption) error {
	o := &publishOptions{}
	for _, opt := range opts {
		opt(o)
	}

	result := make(chan bool, 1)
	x.dispatcher.RunOnOwnerThread(func(s *display.State) {
		// the token check happens on the owner so a newer job cannot be overwritten
		if !x.coordinator.IsCurrent(token) {
			result <- false
			return
		}
		x.published.Store(idx)
		s.Frames = idx
		s.CurrentFrameID = nil
		s.CurrentFramePath = ""
		s.CurrentBitmap = nil
		s.CurrentContainerPath = o.containerPath
		s.IsActive = idx.Len() > 0
		s.InformationText = fmt.Sprintf("%d frames", idx.Len())
		s.StatusText = o.statusText
		result <- true
	})

	select {
	case ok := <-result:
		if !ok {
			return services.ErrOperationCancelled
		}
		return nil
	case <-ctx.Done():
		if token.Cancelled() {
			return services.ErrOperationCancelled
		}
		return ctx.Err()
	}
}

// ChangeDisplayed shows frame id of the published index. Ids that are not in
// the published index are ignored.
func (x *Indexer) ChangeDisplayed(id int) {
	idx := x.published.Load()
	frame, ok := idx.Lookup(id)
	if !ok {
		logger.Debugf("frame %d is not in the published index, ignored", id)
		return
	}

	img, err := x.loader.LoadDisplayableImage(frame.Path)
	if err != nil {
		logger.Warnf("cannot load frame %d: %v", id, err)
		x.dispatcher.RunOnOwnerThread(func(s *display.State) {
			if s.Frames == idx {
				s.StatusText = fmt.Sprintf("Cannot display frame %d", id)
			}
		})
		return
	}

	info := fmt.Sprintf("Frame %d/%d | %s | %dx%d", id+1, idx.Len(), filepath.Base(frame.Path), img.Bounds().Dx(), img.Bounds().Dy())
	if stat, err := os.Stat(frame.Path); err == nil {
		info += " | " + humanize.Bytes(uint64(stat.Size()))
	}

	x.dispatcher.RunOnOwnerThread(func(s *display.State) {
		// a newer index was published while the bitmap was loading
		if s.Frames != idx {
			return
		}
		s.CurrentFrameID = &id
		s.CurrentFramePath = frame.Path
		s.CurrentBitmap = img
		s.InformationText = info
		s.StatusText = ""
	})
}

// Thumbnail returns the png thumbnail of frame id in the published index.
func (x *Indexer) Thumbnail(id int) ([]byte, error) {
	frame, ok := x.published.Load().Lookup(id)
	if !ok {
		return nil, ErrFrameNotFound
	}
	return x.thumbnail(frame.Path)
}

func (x *Indexer) thumbnail(path string) ([]byte, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	// frame files are reused between jobs, so the key tracks the file version
	key := fmt.Sprintf("%s@%d:%d", path, stat.ModTime().UnixNano(), stat.Size())
	if item := x.thumbnails.Get(key); item != nil {
		return item.Value(), nil
	}

	img, err := x.loader.LoadDisplayableImage(path)
	if err != nil {
		return nil, err
	}
	data, err := codec.EncodePNG(codec.Thumbnail(img, x.thumbSize))
	if err != nil {
		return nil, err
	}
	x.thumbnails.Set(key, data, ttlcache.DefaultTTL)
	return data, nil
}
