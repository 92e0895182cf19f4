package search

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/eric2788/framestudio/utils"
	"github.com/maruel/natural"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("service", "search")

type FileSystemSearch interface {
	ListFilesByExtension(folder string, exts []string, recursive bool) ([]string, error)
}

type Service struct{}

func NewService() *Service {
	return &Service{}
}

// ListFilesByExtension returns absolute paths of regular files in folder whose
// extension is in exts, in natural order.
func (s *Service) ListFilesByExtension(folder string, exts []string, recursive bool) ([]string, error) {
	root, err := filepath.Abs(folder)
	if err != nil {
		return nil, err
	}

	var files []string
	if recursive {
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.Type().IsRegular() && utils.HasExtension(path, exts) {
				files = append(files, path)
			}
			return nil
		})
	} else {
		var entries []os.DirEntry
		entries, err = os.ReadDir(root)
		for _, entry := range entries {
			if entry.Type().IsRegular() && utils.HasExtension(entry.Name(), exts) {
				files = append(files, filepath.Join(root, entry.Name()))
			}
		}
	}
	if err != nil {
		return nil, err
	}

	SortNatural(files)
	logger.Debugf("found %d files in %s", len(files), root)
	return files, nil
}

// SortNatural orders paths so that embedded numbers compare by value (b2 before b10).
func SortNatural(paths []string) {
	slices.SortStableFunc(paths, func(a, b string) int {
		switch {
		case natural.Less(a, b):
			return -1
		case natural.Less(b, a):
			return 1
		default:
			return 0
		}
	})
}
