package workstation_test

import (
	"context"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"iter"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/eric2788/framestudio/internal/modules/config"
	"github.com/eric2788/framestudio/internal/services"
	"github.com/eric2788/framestudio/internal/services/cancel"
	"github.com/eric2788/framestudio/internal/services/codec"
	"github.com/eric2788/framestudio/internal/services/copier"
	"github.com/eric2788/framestudio/internal/services/display"
	"github.com/eric2788/framestudio/internal/services/exporter"
	"github.com/eric2788/framestudio/internal/services/indexer"
	"github.com/eric2788/framestudio/internal/services/orchestrator"
	"github.com/eric2788/framestudio/internal/services/search"
	"github.com/eric2788/framestudio/internal/services/workspace"
	"github.com/eric2788/framestudio/internal/services/workstation"
	"github.com/eric2788/framestudio/pkg/ds"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	cfg   *config.Config
	ws    *workstation.Workstation
	owner *display.Owner
}

func newFixture(t *testing.T, fc codec.FrameCodec, cfg *config.Config) *fixture {
	if cfg == nil {
		cfg = config.Default()
	}
	cfg.WorkspaceDir = filepath.Join(t.TempDir(), "ws")
	cfg.ThumbnailSize = 4
	if fc == nil {
		fc = codec.NewGifCodec(cfg, codec.NewLoader())
	}

	owner := display.New()
	owner.Start()
	t.Cleanup(owner.Stop)

	coord := cancel.New(context.Background())
	wm := workspace.New(cfg)
	ix := indexer.New(cfg, codec.NewLoader(), owner, coord)
	orch := orchestrator.NewService(cfg, wm, fc, search.NewService(), ix)
	exp := exporter.NewService(ix, orch, copier.NewService(cfg))
	return &fixture{
		cfg:   cfg,
		ws:    workstation.New(cfg, coord, wm, orch, exp, ix, owner),
		owner: owner,
	}
}

func (f *fixture) state(t *testing.T) display.State {
	require.NoError(t, f.owner.Sync(t.Context()))
	return f.owner.Snapshot()
}

func writeGif(t *testing.T, path string, n int) {
	t.Helper()
	anim := &gif.GIF{}
	for i := range n {
		frame := image.NewPaletted(image.Rect(0, 0, 8, 6), palette.Plan9)
		frame.Set(i%8, 0, palette.Plan9[(i*40)%len(palette.Plan9)])
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, 10)
	}
	out, err := os.Create(path)
	require.NoError(t, err)
	defer out.Close()
	require.NoError(t, gif.EncodeAll(out, anim))
}

func TestOpenContainerAndExport(t *testing.T) {
	f := newFixture(t, nil, nil)
	src := filepath.Join(t.TempDir(), "dance.gif")
	writeGif(t, src, 4)

	require.NoError(t, f.ws.OpenContainer(src).Wait(t.Context()))
	state := f.state(t)
	assert.True(t, state.IsActive)
	assert.Equal(t, src, state.CurrentContainerPath)
	assert.Contains(t, state.InformationText, "dance.gif | 4 frames | 8x6")
	require.Len(t, f.ws.Frames(), 4)

	thumb, err := f.ws.Thumbnail(0)
	require.NoError(t, err)
	assert.NotEmpty(t, thumb)

	f.ws.ChangeDisplayed(2)
	state = f.state(t)
	require.NotNil(t, state.CurrentFrameID)
	assert.Equal(t, 2, *state.CurrentFrameID)
	assert.Contains(t, state.InformationText, "Frame 3/4")

	target := filepath.Join(t.TempDir(), "cut.gif")
	require.NoError(t, f.ws.SaveSelectionAsContainer(ds.NewSetOf(3, 1), target))
	assert.FileExists(t, target)
	assert.Equal(t, "Saved 2 frames to cut.gif", f.state(t).StatusText)

	// ids missing from the index are not counted
	require.NoError(t, f.ws.SaveSelectionAsContainer(ds.NewSetOf(0, 2, 40), target))
	assert.Equal(t, "Saved 2 frames to cut.gif", f.state(t).StatusText)

	dir := t.TempDir()
	copied, failed, err := f.ws.SaveSelectionAsFiles(t.Context(), ds.NewSetOf(0, 1), dir, false)
	require.NoError(t, err)
	assert.Equal(t, 2, copied)
	assert.Zero(t, failed)
	assert.FileExists(t, filepath.Join(dir, "frame_0000.png"))

	jobs := f.ws.Jobs()
	require.Len(t, jobs, 3)
	assert.Equal(t, orchestrator.KindAssemble, jobs[0].Kind)
	assert.Equal(t, orchestrator.KindExtract, jobs[2].Kind)
}

func TestStateIncludesQueuedUpdates(t *testing.T) {
	f := newFixture(t, nil, nil)
	src := filepath.Join(t.TempDir(), "loop.gif")
	writeGif(t, src, 4)

	for range 20 {
		require.NoError(t, f.ws.OpenContainer(src).Wait(t.Context()))
		state, err := f.ws.State(t.Context())
		require.NoError(t, err)
		assert.Contains(t, state.InformationText, "loop.gif | 4 frames |")
	}

	err := f.ws.OpenContainer("/videos/clip.avi").Wait(t.Context())
	require.Error(t, err)
	state, err := f.ws.State(t.Context())
	require.NoError(t, err)
	assert.Contains(t, state.StatusText, "Invalid input")
}

func TestErrorsBecomeStatusText(t *testing.T) {
	f := newFixture(t, nil, nil)

	err := f.ws.OpenContainer("/videos/clip.avi").Wait(t.Context())
	require.ErrorIs(t, err, services.ErrValidation)
	assert.Contains(t, f.state(t).StatusText, "Invalid input")

	err = f.ws.SaveSelectionAsContainer(ds.NewSetOf(1), filepath.Join(t.TempDir(), "x.gif"))
	require.ErrorIs(t, err, services.ErrEmptySelection)
	assert.Equal(t, "Nothing selected", f.state(t).StatusText)

	broken := filepath.Join(t.TempDir(), "broken.gif")
	require.NoError(t, os.WriteFile(broken, []byte("not a gif"), 0o644))
	err = f.ws.OpenContainer(broken).Wait(t.Context())
	require.ErrorIs(t, err, services.ErrCodec)
	assert.Contains(t, f.state(t).StatusText, "Conversion failed")
}

// blockingCodec stalls on the second frame until released.
type blockingCodec struct {
	reached chan struct{}
	release chan struct{}
}

func (c *blockingCodec) Name() string         { return "blocking" }
func (c *blockingCodec) Extensions() []string { return []string{".gif"} }

func (c *blockingCodec) SplitContainerToFrames(ctx context.Context, path string) iter.Seq2[codec.Frame, error] {
	return func(yield func(codec.Frame, error) bool) {
		for i := range 3 {
			if i == 1 {
				close(c.reached)
				<-c.release
			}
			img := image.NewRGBA(image.Rect(0, 0, 2, 2))
			img.Set(0, 0, color.Black)
			if !yield(codec.Frame{Number: i, Image: img}, nil) {
				return
			}
		}
	}
}

func (c *blockingCodec) AssembleFramesToContainer(context.Context, []string, string) error {
	return nil
}

func (c *blockingCodec) GetContainerMetadata(context.Context, string) (codec.Metadata, bool) {
	return codec.Metadata{}, false
}

func TestCloseCancelsSilently(t *testing.T) {
	cfg := config.Default()
	cfg.AutoClearOnClose = true
	bc := &blockingCodec{reached: make(chan struct{}), release: make(chan struct{})}
	f := newFixture(t, bc, cfg)

	task := f.ws.OpenContainer("/videos/long.gif")
	select {
	case <-bc.reached:
	case <-time.After(5 * time.Second):
		t.Fatal("extraction never started")
	}

	f.ws.Close()
	close(bc.release)

	require.ErrorIs(t, task.Wait(t.Context()), services.ErrOperationCancelled)
	state := f.state(t)
	assert.Empty(t, state.StatusText)
	assert.False(t, state.IsActive)
	assert.Nil(t, state.Frames)
	assert.NoDirExists(t, filepath.Join(f.cfg.WorkspaceDir, workspace.ContainerDirName))
}

func TestClearWorkspace(t *testing.T) {
	f := newFixture(t, nil, nil)
	src := filepath.Join(t.TempDir(), "a.gif")
	writeGif(t, src, 2)
	require.NoError(t, f.ws.OpenContainer(src).Wait(t.Context()))

	require.NoError(t, f.ws.ClearWorkspace().Wait(t.Context()))
	assert.Empty(t, f.ws.Frames())
	assert.NoDirExists(t, filepath.Join(f.cfg.WorkspaceDir, workspace.FramesDirName))
	assert.Equal(t, "Workspace cleared", f.state(t).StatusText)
}
