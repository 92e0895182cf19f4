package path

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/eric2788/framestudio/internal/modules/config"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("service", "path")

var ErrInvalidFilePath = fmt.Errorf("invalid file path")
var ErrAccessDenied = fmt.Errorf("access denied")

// Service resolves paths received from clients. When MEDIA_ROOT is set every
// path must stay inside it; otherwise any absolute path is accepted.
type Service struct {
	root string
}

func NewService(cfg *config.Config) *Service {
	s := &Service{}
	if cfg.MediaRoot != "" {
		root, err := filepath.Abs(cfg.MediaRoot)
		if err != nil {
			logger.Errorf("invalid media root %s: %v", cfg.MediaRoot, err)
			root = filepath.Clean(cfg.MediaRoot)
		}
		s.root = root
	}
	return s
}

func (s *Service) Root() string {
	return s.root
}

// Resolve returns the absolute form of p. Relative paths are taken from the
// media root.
func (s *Service) Resolve(p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" || strings.ContainsRune(p, 0) {
		return "", ErrInvalidFilePath
	}

	if s.root == "" {
		if !filepath.IsAbs(p) {
			return "", ErrInvalidFilePath
		}
		return filepath.Clean(p), nil
	}

	full := p
	if !filepath.IsAbs(full) {
		full = filepath.Join(s.root, full)
	}
	full = filepath.Clean(full)

	if !strings.HasPrefix(full, s.root+string(os.PathSeparator)) && full != s.root {
		logger.Warnf("path traversal detected: %s", p)
		return "", ErrAccessDenied
	}
	return full, nil
}

// Relative returns full relative to the media root, or full itself when no
// root is configured.
func (s *Service) Relative(full string) (string, error) {
	if s.root == "" {
		return full, nil
	}
	rel, err := filepath.Rel(s.root, full)
	if err != nil {
		return "", err
	}
	if rel == "." {
		rel = ""
	}
	return rel, nil
}
