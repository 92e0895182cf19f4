package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/eric2788/framestudio/internal/modules/config"
	"github.com/eric2788/framestudio/internal/services"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
)

var logger = logrus.WithField("service", "workspace")

const (
	FramesDirName    = "Images"
	ContainerDirName = "NewGif"
)

// swapped by tests to simulate a locked directory
var removeAll = os.RemoveAll

type Workspace struct {
	Root         string `json:"root"`
	FramesDir    string `json:"frames_dir"`
	ContainerDir string `json:"container_dir"`
}

func Layout(root string) Workspace {
	root = filepath.Clean(root)
	return Workspace{
		Root:         root,
		FramesDir:    filepath.Join(root, FramesDirName),
		ContainerDir: filepath.Join(root, ContainerDirName),
	}
}

type Manager struct {
	mu      sync.Mutex
	current Workspace
	lock    *rootLock
}

func New(cfg *config.Config) *Manager {
	return &Manager{current: Layout(cfg.WorkspaceDir)}
}

func NewService(lc fx.Lifecycle, cfg *config.Config) *Manager {
	m := New(cfg)
	lc.Append(fx.StartStopHook(m.Lock, m.Unlock))
	return m
}

// Current returns the layout of the last prepared workspace.
func (m *Manager) Current() Workspace {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Prepare wipes and recreates the container directory and creates the frames
// directory when it does not exist yet. Frames of earlier jobs stay until Clear.
func (m *Manager) Prepare(root string) (Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ws := Layout(root)
	if err := removeAll(ws.ContainerDir); err != nil {
		return ws, services.Wrap(services.ErrIO, "prepare workspace", errors.Wrapf(err, "remove %s", ws.ContainerDir))
	}
	if err := os.MkdirAll(ws.ContainerDir, 0o755); err != nil {
		return ws, services.Wrap(services.ErrIO, "prepare workspace", errors.Wrapf(err, "create %s", ws.ContainerDir))
	}
	if err := os.MkdirAll(ws.FramesDir, 0o755); err != nil {
		return ws, services.Wrap(services.ErrIO, "prepare workspace", errors.Wrapf(err, "create %s", ws.FramesDir))
	}
	m.current = ws
	logger.Debugf("workspace prepared at %s", ws.Root)
	return ws, nil
}

// Clear removes both workspace directories. Failures are logged and swallowed.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, dir := range []string{m.current.FramesDir, m.current.ContainerDir} {
		err := retry.Do(
			func() error { return removeAll(dir) },
			retry.Attempts(3),
			retry.Delay(50*time.Millisecond),
			retry.LastErrorOnly(true),
		)
		if err != nil {
			logger.Warnf("cannot clear %s: %v", dir, err)
			continue
		}
		logger.Debugf("cleared %s", dir)
	}
}

// Lock takes an exclusive lock on the workspace root so that two processes
// never stage frames in the same directory.
func (m *Manager) Lock() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lock != nil {
		return nil
	}
	l, err := acquireRootLock(m.current.Root)
	if err != nil {
		return fmt.Errorf("cannot lock workspace: %w", err)
	}
	m.lock = l
	logger.Infof("workspace root locked: %s", m.current.Root)
	return nil
}

func (m *Manager) Unlock() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lock == nil {
		return nil
	}
	err := m.lock.release()
	m.lock = nil
	return err
}
