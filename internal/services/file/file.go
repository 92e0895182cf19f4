package file

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/eric2788/framestudio/internal/modules/config"
	"github.com/eric2788/framestudio/internal/services/codec"
	"github.com/eric2788/framestudio/internal/services/path"
	"github.com/eric2788/framestudio/internal/services/search"
	"github.com/eric2788/framestudio/utils"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("service", "file")

var ErrIsNotDirectory = fmt.Errorf("path is not a directory")

type Kind string

const (
	KindDir       Kind = "dir"
	KindContainer Kind = "container"
	KindImage     Kind = "image"
)

type Tree struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// Service lists the media a client may open: directories, containers the codec
// can split and images that can be assembled.
type Service struct {
	paths           *path.Service
	imageExtensions []string
	containerExts   []string
}

func NewService(cfg *config.Config, paths *path.Service, fc codec.FrameCodec) *Service {
	return &Service{
		paths:           paths,
		imageExtensions: cfg.ImageExtensions,
		containerExts:   fc.Extensions(),
	}
}

func (s *Service) kindOf(entry fs.DirEntry) (Kind, bool) {
	switch {
	case entry.IsDir():
		return KindDir, true
	case utils.HasExtension(entry.Name(), s.containerExts):
		return KindContainer, true
	case utils.HasExtension(entry.Name(), s.imageExtensions):
		return KindImage, true
	default:
		return "", false
	}
}

// ListTree lists the openable entries of a directory, directories first and
// each group in natural order.
func (s *Service) ListTree(p string) ([]*Tree, error) {
	fullPath, err := s.paths.Resolve(p)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, ErrIsNotDirectory
	}

	entries, err := os.ReadDir(fullPath)
	if err != nil {
		return nil, err
	}

	var dirs, files []*Tree
	for _, entry := range entries {
		kind, ok := s.kindOf(entry)
		if !ok || entry.Name()[0] == '.' {
			continue
		}
		entryPath, err := s.paths.Relative(filepath.Join(fullPath, entry.Name()))
		if err != nil {
			logger.Debugf("skip %s: %v", entry.Name(), err)
			continue
		}
		tree := &Tree{
			Name: entry.Name(),
			Kind: kind,
			Path: entryPath,
		}
		if kind == KindDir {
			dirs = append(dirs, tree)
			continue
		}
		if info, err := entry.Info(); err == nil {
			tree.Size = info.Size()
		}
		files = append(files, tree)
	}

	sortTrees(dirs)
	sortTrees(files)
	return slices.Concat(dirs, files), nil
}

func sortTrees(trees []*Tree) {
	names := make([]string, len(trees))
	byName := make(map[string]*Tree, len(trees))
	for i, t := range trees {
		names[i] = t.Name
		byName[t.Name] = t
	}
	search.SortNatural(names)
	for i, name := range names {
		trees[i] = byName[name]
	}
}
