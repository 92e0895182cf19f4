package workstation

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/dustin/go-humanize"
	"github.com/eric2788/framestudio/internal/modules/config"
	"github.com/eric2788/framestudio/internal/services"
	"github.com/eric2788/framestudio/internal/services/cancel"
	"github.com/eric2788/framestudio/internal/services/display"
	"github.com/eric2788/framestudio/internal/services/exporter"
	"github.com/eric2788/framestudio/internal/services/indexer"
	"github.com/eric2788/framestudio/internal/services/orchestrator"
	"github.com/eric2788/framestudio/internal/services/workspace"
	"github.com/eric2788/framestudio/pkg/ds"
	"github.com/eric2788/framestudio/utils"
	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
)

var logger = logrus.WithField("service", "workstation")

const maxStatusLength = 240

// Workstation is the command surface used by the http api and the cli. Every
// command mints a fresh token, so starting one supersedes whatever runs.
type Workstation struct {
	cfg         *config.Config
	coordinator *cancel.Coordinator
	workspace   *workspace.Manager
	orch        *orchestrator.Orchestrator
	exporter    *exporter.Exporter
	indexer     *indexer.Indexer
	owner       *display.Owner
}

func New(
	cfg *config.Config,
	coordinator *cancel.Coordinator,
	ws *workspace.Manager,
	orch *orchestrator.Orchestrator,
	exp *exporter.Exporter,
	ix *indexer.Indexer,
	owner *display.Owner,
) *Workstation {
	return &Workstation{
		cfg:         cfg,
		coordinator: coordinator,
		workspace:   ws,
		orch:        orch,
		exporter:    exp,
		indexer:     ix,
		owner:       owner,
	}
}

func NewService(
	lc fx.Lifecycle,
	cfg *config.Config,
	coordinator *cancel.Coordinator,
	ws *workspace.Manager,
	orch *orchestrator.Orchestrator,
	exp *exporter.Exporter,
	ix *indexer.Indexer,
	owner *display.Owner,
) *Workstation {
	w := New(cfg, coordinator, ws, orch, exp, ix, owner)
	lc.Append(fx.StopHook(w.Close))
	return w
}

// report shows err as status text. Errors of superseded jobs are dropped.
func (w *Workstation) report(err error, token *cancel.Token) {
	text := services.StatusText(err)
	if text == "" {
		return
	}
	text = utils.TruncateString(text, maxStatusLength)
	if token != nil && !w.coordinator.IsCurrent(token) {
		logger.Debugf("dropping error of superseded job: %v", err)
		return
	}
	logger.Warn(text)
	w.owner.RunOnOwnerThread(func(s *display.State) {
		s.StatusText = text
	})
}

func (w *Workstation) status(text string) {
	w.owner.RunOnOwnerThread(func(s *display.State) {
		s.StatusText = text
	})
}

// OpenContainer extracts the frames of a container file and shows them.
func (w *Workstation) OpenContainer(path string) *Task {
	token := w.coordinator.StartNew()
	logger.Infof("opening container %s", path)
	return run(func() error {
		idx, err := w.orch.ExtractFrames(path, token)
		if err != nil {
			w.report(err, token)
			return err
		}
		if meta, ok := w.orch.Codec().GetContainerMetadata(token.Context(), path); ok {
			info := fmt.Sprintf("%s | %d frames | %dx%d | %s",
				filepath.Base(path), meta.FrameCount, meta.Width, meta.Height, humanize.Bytes(uint64(meta.SizeBytes)))
			w.owner.RunOnOwnerThread(func(s *display.State) {
				if s.Frames == idx {
					s.InformationText = info
				}
			})
		}
		return nil
	})
}

// OpenFolder shows the images of a folder and assembles them into a container
// inside the workspace.
func (w *Workstation) OpenFolder(folder string) *Task {
	token := w.coordinator.StartNew()
	logger.Infof("opening folder %s", folder)
	return run(func() error {
		idx, target, err := w.orch.ConvertFolderToContainer(folder, token)
		if err != nil {
			w.report(err, token)
			return err
		}
		w.owner.RunOnOwnerThread(func(s *display.State) {
			if s.Frames == idx {
				s.StatusText = fmt.Sprintf("Created %s", filepath.Base(target))
			}
		})
		return nil
	})
}

// ClearWorkspace cancels the running job and removes every staged file.
func (w *Workstation) ClearWorkspace() *Task {
	token := w.coordinator.StartNew()
	return run(func() error {
		err := w.orch.ClearWorkspace(token.Context(), token)
		w.report(err, token)
		return err
	})
}

func (w *Workstation) SaveSelectionAsContainer(selection ds.Set[int], targetPath string) error {
	saved, err := w.exporter.ExportSelectionAsContainer(selection, targetPath)
	if err != nil {
		w.report(err, nil)
		return err
	}
	w.status(fmt.Sprintf("Saved %d frames to %s", saved, filepath.Base(targetPath)))
	return nil
}

func (w *Workstation) SaveSelectionAsFiles(ctx context.Context, selection ds.Set[int], targetDir string, overwrite bool) (copied, failed int, err error) {
	copied, failed, err = w.exporter.ExportSelectionAsFiles(ctx, selection, targetDir, overwrite)
	if err != nil {
		w.report(err, nil)
		return copied, failed, err
	}
	w.status(utils.Ternary(failed > 0,
		fmt.Sprintf("Copied %d files, %d skipped or failed", copied, failed),
		fmt.Sprintf("Copied %d files", copied),
	))
	return copied, failed, nil
}

func (w *Workstation) ChangeDisplayed(id int) {
	w.indexer.ChangeDisplayed(id)
}

// Close cancels the running job without waiting for it and clears the
// workspace when AUTO_CLEAR_ON_CLOSE is set.
func (w *Workstation) Close() {
	w.coordinator.CancelCurrent()
	if w.cfg.AutoClearOnClose {
		w.workspace.Clear()
	}
	w.owner.RunOnOwnerThread(func(s *display.State) {
		s.IsActive = false
	})
	logger.Info("workstation closed")
}

func (w *Workstation) Snapshot() display.State {
	return w.owner.Snapshot()
}

// State waits until every display update queued so far is applied and
// returns the resulting state.
func (w *Workstation) State(ctx context.Context) (display.State, error) {
	if err := w.owner.Sync(ctx); err != nil {
		return display.State{}, err
	}
	return w.owner.Snapshot(), nil
}

func (w *Workstation) Frames() []display.Frame {
	return w.indexer.Published().Frames()
}

func (w *Workstation) Frame(id int) (display.Frame, bool) {
	return w.indexer.Published().Lookup(id)
}

// IsPublishedFrame reports whether path belongs to the frame index on display.
func (w *Workstation) IsPublishedFrame(path string) bool {
	return slices.Contains(w.indexer.Published().Paths(), path)
}

func (w *Workstation) Thumbnail(id int) ([]byte, error) {
	return w.indexer.Thumbnail(id)
}

func (w *Workstation) Jobs() []orchestrator.Job {
	return w.orch.Jobs()
}

func (w *Workstation) Stats() orchestrator.Stats {
	return w.orch.Stats()
}

func (w *Workstation) Usage() (*workspace.Usage, error) {
	return w.workspace.Usage()
}
