package workspace

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/shirou/gopsutil/v4/disk"
)

const lockFileName = ".lock"

var ErrWorkspaceInUse = errors.New("workspace is in use by another process")

type rootLock struct {
	fl *flock.Flock
}

func acquireRootLock(root string) (*rootLock, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	fl := flock.New(filepath.Join(root, lockFileName))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrWorkspaceInUse
	}
	return &rootLock{fl: fl}, nil
}

func (l *rootLock) release() error {
	return l.fl.Unlock()
}

type Usage struct {
	Path        string  `json:"path"`
	Total       uint64  `json:"total"`
	Free        uint64  `json:"free"`
	UsedPercent float64 `json:"used_percent"`
}

// Usage reports the disk usage of the file system holding the workspace root.
func (m *Manager) Usage() (*Usage, error) {
	root := m.Current().Root
	probe := root
	// the root may not exist before the first job
	for probe != filepath.Dir(probe) {
		if _, err := os.Stat(probe); err == nil {
			break
		}
		probe = filepath.Dir(probe)
	}
	stat, err := disk.Usage(probe)
	if err != nil {
		return nil, err
	}
	return &Usage{
		Path:        root,
		Total:       stat.Total,
		Free:        stat.Free,
		UsedPercent: stat.UsedPercent,
	}, nil
}
