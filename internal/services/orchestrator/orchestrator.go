package orchestrator

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/eric2788/framestudio/internal/modules/config"
	"github.com/eric2788/framestudio/internal/services"
	"github.com/eric2788/framestudio/internal/services/cancel"
	"github.com/eric2788/framestudio/internal/services/codec"
	"github.com/eric2788/framestudio/internal/services/display"
	"github.com/eric2788/framestudio/internal/services/indexer"
	"github.com/eric2788/framestudio/internal/services/search"
	"github.com/eric2788/framestudio/internal/services/workspace"
	"github.com/eric2788/framestudio/utils"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("service", "orchestrator")

var frameEncoder = &png.Encoder{CompressionLevel: png.BestSpeed}

// Orchestrator runs extraction and assembly jobs. Jobs are executed one at a
// time; a job waiting for its turn gives up once its token is superseded.
type Orchestrator struct {
	cfg       *config.Config
	workspace *workspace.Manager
	codec     codec.FrameCodec
	search    search.FileSystemSearch
	indexer   *indexer.Indexer

	exec sync.Mutex
	jobs *xsync.Map[string, *Job]

	completed *xsync.Counter
	cancelled *xsync.Counter
	failed    *xsync.Counter
}

func NewService(
	cfg *config.Config,
	ws *workspace.Manager,
	fc codec.FrameCodec,
	fs search.FileSystemSearch,
	ix *indexer.Indexer,
) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		workspace: ws,
		codec:     fc,
		search:    fs,
		indexer:   ix,
		jobs:      xsync.NewMap[string, *Job](),
		completed: xsync.NewCounter(),
		cancelled: xsync.NewCounter(),
		failed:    xsync.NewCounter(),
	}
}

func (o *Orchestrator) logger(job *Job) *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		"job":  job.ID[:8],
		"kind": job.Kind,
	})
}

func (o *Orchestrator) Codec() codec.FrameCodec {
	return o.codec
}

// acquire waits for the running job to finish. The token is checked again once
// the turn comes, since a newer command may have superseded it meanwhile.
func (o *Orchestrator) acquire(job *Job, token *cancel.Token) (*Job, error) {
	o.exec.Lock()
	if token != nil {
		if err := token.Err(); err != nil {
			o.exec.Unlock()
			return job, err
		}
	}
	return o.running(job), nil
}

// ExtractFrames splits the container into png frames inside the workspace and
// publishes them as the new frame index. Frames written before a cancellation
// are left on disk.
func (o *Orchestrator) ExtractFrames(containerPath string, token *cancel.Token) (*display.FrameIndex, error) {
	job := o.begin(KindExtract, containerPath, "", token)

	if !utils.HasExtension(containerPath, o.codec.Extensions()) {
		return nil, o.finish(job, services.Wrap(services.ErrUnsupportedFormat, "extract", errors.Errorf("%s is not one of %v", filepath.Base(containerPath), o.codec.Extensions())))
	}

	job, err := o.acquire(job, token)
	if err != nil {
		return nil, o.finish(job, err)
	}
	defer o.exec.Unlock()

	ws, err := o.workspace.Prepare(o.cfg.WorkspaceDir)
	if err != nil {
		return nil, o.finish(job, err)
	}

	paths, err := o.extract(token, containerPath, ws.FramesDir)
	if err != nil {
		return nil, o.finish(job, err)
	}
	o.logger(job).Debugf("%d frames written to %s", len(paths), ws.FramesDir)

	idx, err := o.indexer.GenerateFromFiles(token.Context(), paths, token, indexer.WithContainer(containerPath))
	if err != nil {
		return nil, o.finish(job, err)
	}
	return idx, o.finish(job, nil)
}

func (o *Orchestrator) extract(token *cancel.Token, containerPath, framesDir string) ([]string, error) {
	var paths []string
	for frame, err := range o.codec.SplitContainerToFrames(token.Context(), containerPath) {
		if token.Cancelled() {
			return nil, services.ErrOperationCancelled
		}
		if err != nil {
			return nil, services.Wrap(services.ErrCodec, "extract", err)
		}
		path := filepath.Join(framesDir, fmt.Sprintf("frame_%04d.png", frame.Number))
		if err := writeFrame(path, frame.Image); err != nil {
			return nil, services.Wrap(services.ErrIO, "write frame", err)
		}
		paths = append(paths, path)
	}
	// a cancellation after the last frame still aborts the job
	if err := token.Err(); err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, services.Wrap(services.ErrCodec, "extract", errors.Errorf("%s has no frames", filepath.Base(containerPath)))
	}
	return paths, nil
}

func writeFrame(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := frameEncoder.Encode(f, img); err != nil {
		f.Close()
		return errors.Wrapf(err, "encode %s", path)
	}
	return f.Close()
}

// AssembleContainer writes the frames, in the given order, into one container.
// It runs synchronously and cannot be cancelled.
func (o *Orchestrator) AssembleContainer(orderedFramePaths []string, targetPath string) error {
	job := o.begin(KindAssemble, fmt.Sprintf("%d frames", len(orderedFramePaths)), targetPath, nil)
	job, _ = o.acquire(job, nil)
	defer o.exec.Unlock()
	return o.finish(job, o.assemble(orderedFramePaths, targetPath))
}

func (o *Orchestrator) assemble(orderedFramePaths []string, targetPath string) error {
	if len(orderedFramePaths) == 0 {
		return services.Wrap(services.ErrValidation, "assemble", codec.ErrNoFrames)
	}
	if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
		return services.Wrap(services.ErrIO, "assemble", err)
	}
	if err := o.codec.AssembleFramesToContainer(context.Background(), orderedFramePaths, targetPath); err != nil {
		return services.Wrap(services.ErrCodec, "assemble", err)
	}
	return nil
}

// ConvertFolderToContainer indexes the images of folder and assembles them into
// <ContainerDir>/<folder name>.gif. Folders with more than MaxFolderFiles images
// are rejected before anything is written.
func (o *Orchestrator) ConvertFolderToContainer(folderPath string, token *cancel.Token) (*display.FrameIndex, string, error) {
	job := o.begin(KindFolderToContainer, folderPath, "", token)

	if !utils.IsDirExists(folderPath) {
		return nil, "", o.finish(job, services.Wrap(services.ErrValidation, "folder to container", errors.Errorf("%s is not a directory", folderPath)))
	}
	files, err := o.search.ListFilesByExtension(folderPath, o.cfg.ImageExtensions, false)
	if err != nil {
		return nil, "", o.finish(job, services.Wrap(services.ErrIO, "list folder", err))
	}
	if len(files) > o.cfg.MaxFolderFiles {
		return nil, "", o.finish(job, services.Wrap(services.ErrTooManyFiles, "", errors.Errorf("%d images, limit is %d", len(files), o.cfg.MaxFolderFiles)))
	}
	if len(files) == 0 {
		return nil, "", o.finish(job, services.Wrap(services.ErrValidation, "folder to container", errors.Errorf("no supported image in %s", folderPath)))
	}

	job, err = o.acquire(job, token)
	if err != nil {
		return nil, "", o.finish(job, err)
	}
	defer o.exec.Unlock()

	ws, err := o.workspace.Prepare(o.cfg.WorkspaceDir)
	if err != nil {
		return nil, "", o.finish(job, err)
	}

	target := filepath.Join(ws.ContainerDir, containerName(folderPath))
	job = o.update(job, func(j *Job) { j.Target = target })

	if err := token.Err(); err != nil {
		return nil, "", o.finish(job, err)
	}
	if err := o.assemble(files, target); err != nil {
		return nil, "", o.finish(job, err)
	}

	idx, err := o.indexer.GenerateFromFiles(token.Context(), files, token, indexer.WithContainer(target))
	if err != nil {
		return nil, "", o.finish(job, err)
	}
	return idx, target, o.finish(job, nil)
}

func containerName(folderPath string) string {
	name := utils.SanitizeFilename(filepath.Base(filepath.Clean(folderPath)))
	if name == "" || name == "." || strings.Trim(name, "_") == "" {
		name = "frames"
	}
	return name + ".gif"
}

// ClearWorkspace removes the staged frames and containers and empties the display.
func (o *Orchestrator) ClearWorkspace(ctx context.Context, token *cancel.Token) error {
	o.exec.Lock()
	defer o.exec.Unlock()
	if err := token.Err(); err != nil {
		return err
	}
	o.workspace.Clear()
	return o.indexer.Reset(ctx, token, indexer.WithStatus("Workspace cleared"))
}
