package copier

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/eric2788/framestudio/internal/modules/config"
	"github.com/eric2788/framestudio/pkg/monitor"
	"github.com/eric2788/framestudio/pkg/pool"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("service", "copier")

type FileCopier interface {
	CopyFiles(ctx context.Context, paths []string, targetDir string, overwrite bool) (copied, failed int)
}

type Service struct {
	bufferSize int
	bp         *pool.BytesPool
}

func NewService(cfg *config.Config) *Service {
	return &Service{
		bufferSize: cfg.CopyBufferSize,
		bp:         pool.DefaultBytesPool,
	}
}

// CopyFiles copies each path into targetDir keeping its base name. Existing
// targets are only replaced when overwrite is set, otherwise they count as failed.
func (s *Service) CopyFiles(ctx context.Context, paths []string, targetDir string, overwrite bool) (copied, failed int) {
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		logger.Errorf("cannot create target dir %s: %v", targetDir, err)
		return 0, len(paths)
	}

	writer := pool.NewFileStreamWriter(ctx, s.bp)
	var written int64
	for _, src := range paths {
		if ctx.Err() != nil {
			failed++
			continue
		}
		dst := filepath.Join(targetDir, filepath.Base(src))
		n, err := s.copyOne(writer, src, dst, overwrite)
		if err != nil {
			if errors.Is(err, pool.ErrTargetExists) {
				logger.Infof("skip existing file %s", dst)
			} else {
				logger.Warnf("copy %s -> %s failed: %v", src, dst, err)
			}
			failed++
			continue
		}
		copied++
		written += n
	}
	logger.Infof("copied %d files (%s) to %s, %d failed", copied, humanize.Bytes(uint64(written)), targetDir, failed)
	return copied, failed
}

func (s *Service) copyOne(writer *pool.FileStreamWriter, src, dst string, overwrite bool) (int64, error) {
	if abs, err := filepath.Abs(src); err == nil {
		if absDst, err := filepath.Abs(dst); err == nil && abs == absDst {
			return 0, pool.ErrTargetExists
		}
	}
	f, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	pr := monitor.NewProgressReader(f, nil)
	if err := writer.WriteToFile(pr, dst, s.bufferSize, overwrite); err != nil {
		return 0, err
	}
	return pr.BytesRead(), nil
}
