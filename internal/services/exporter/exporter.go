package exporter

import (
	"context"
	"slices"
	"strings"

	"github.com/eric2788/framestudio/internal/services"
	"github.com/eric2788/framestudio/internal/services/copier"
	"github.com/eric2788/framestudio/internal/services/display"
	"github.com/eric2788/framestudio/internal/services/search"
	"github.com/eric2788/framestudio/pkg/ds"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("service", "exporter")

type FrameSource interface {
	Published() *display.FrameIndex
}

type Assembler interface {
	AssembleContainer(orderedFramePaths []string, targetPath string) error
}

type Exporter struct {
	frames    FrameSource
	assembler Assembler
	copier    copier.FileCopier
}

func NewService(frames FrameSource, assembler Assembler, fc copier.FileCopier) *Exporter {
	return &Exporter{
		frames:    frames,
		assembler: assembler,
		copier:    fc,
	}
}

// resolve maps the selected ids to frame paths of the published index in
// natural order. Ids the index does not know are dropped.
func (e *Exporter) resolve(selection ds.Set[int]) []string {
	idx := e.frames.Published()
	var paths []string
	if selection != nil {
		for _, id := range selection.ToSlice() {
			frame, ok := idx.Lookup(id)
			if !ok {
				logger.Debugf("selected frame %d is not published, dropped", id)
				continue
			}
			paths = append(paths, frame.Path)
		}
	}
	search.SortNatural(paths)
	return slices.Compact(paths)
}

// ExportSelectionAsContainer assembles the selected frames into targetPath and
// returns how many frames went in.
func (e *Exporter) ExportSelectionAsContainer(selection ds.Set[int], targetPath string) (int, error) {
	if strings.TrimSpace(targetPath) == "" {
		return 0, services.Wrap(services.ErrValidation, "export container", nil)
	}
	paths := e.resolve(selection)
	if len(paths) == 0 {
		return 0, services.ErrEmptySelection
	}
	logger.Infof("exporting %d frames to %s", len(paths), targetPath)
	if err := e.assembler.AssembleContainer(paths, targetPath); err != nil {
		return 0, err
	}
	return len(paths), nil
}

// ExportSelectionAsFiles copies the selected frame files into targetDir.
// Existing files are kept unless overwrite is set.
func (e *Exporter) ExportSelectionAsFiles(ctx context.Context, selection ds.Set[int], targetDir string, overwrite bool) (copied, failed int, err error) {
	if strings.TrimSpace(targetDir) == "" {
		return 0, 0, services.Wrap(services.ErrValidation, "export files", nil)
	}
	paths := e.resolve(selection)
	if len(paths) == 0 {
		return 0, 0, services.ErrEmptySelection
	}
	copied, failed = e.copier.CopyFiles(ctx, paths, targetDir, overwrite)
	return copied, failed, nil
}
