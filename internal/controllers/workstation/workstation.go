package workstation

import (
	"errors"
	"net/url"
	"os"
	"strconv"

	"github.com/eric2788/framestudio/internal/modules/config"
	"github.com/eric2788/framestudio/internal/services"
	"github.com/eric2788/framestudio/internal/services/file"
	"github.com/eric2788/framestudio/internal/services/indexer"
	"github.com/eric2788/framestudio/internal/services/path"
	"github.com/eric2788/framestudio/internal/services/workstation"
	"github.com/eric2788/framestudio/pkg/ds"
	"github.com/eric2788/framestudio/pkg/signeddownload"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("controller", "workstation")

type Controller struct {
	ws      *workstation.Workstation
	pathSvc *path.Service
	fileSvc *file.Service
	signer  *signeddownload.Client
}

func NewController(
	app *fiber.App,
	cfg *config.Config,
	ws *workstation.Workstation,
	pathSvc *path.Service,
	fileSvc *file.Service,
) *Controller {
	wc := &Controller{
		ws:      ws,
		pathSvc: pathSvc,
		fileSvc: fileSvc,
		signer:  signeddownload.NewClient([]byte(cfg.JwtSecret), cfg.LinkTTL),
	}

	station := app.Group("/workstation")

	station.Post("/container", wc.openContainer)
	station.Post("/folder", wc.openFolder)
	station.Delete("/workspace", wc.clearWorkspace)
	station.Post("/close", wc.close)

	station.Get("/state", wc.getState)
	station.Get("/frames", wc.listFrames)
	station.Get("/frames/:id/thumbnail", wc.getThumbnail)
	station.Put("/frames/:id/display", wc.changeDisplayed)

	station.Post("/selection/container", wc.saveSelectionAsContainer)
	station.Post("/selection/files", wc.saveSelectionAsFiles)

	station.Get("/browse", wc.browse)
	station.Get("/frames/:id/link", wc.createFrameLink)
	station.Get("/download", wc.download)

	station.Get("/jobs", wc.listJobs)
	station.Get("/status", wc.getStatus)

	return wc
}

// openContainer starts extracting a container. With ?wait=true the response
// is sent once the frames are published.
func (c *Controller) openContainer(ctx fiber.Ctx) error {
	p, err := c.bindPath(ctx)
	if err != nil {
		return err
	}
	return c.respondTask(ctx, c.ws.OpenContainer(p))
}

func (c *Controller) openFolder(ctx fiber.Ctx) error {
	p, err := c.bindPath(ctx)
	if err != nil {
		return err
	}
	return c.respondTask(ctx, c.ws.OpenFolder(p))
}

func (c *Controller) bindPath(ctx fiber.Ctx) (string, error) {
	var req PathRequest
	if err := ctx.Bind().Body(&req); err != nil {
		return "", fiber.ErrBadRequest
	}
	p, err := c.pathSvc.Resolve(req.Path)
	if err != nil {
		return "", c.parseFiberError(err)
	}
	return p, nil
}

func (c *Controller) clearWorkspace(ctx fiber.Ctx) error {
	return c.respondTask(ctx, c.ws.ClearWorkspace())
}

func (c *Controller) close(ctx fiber.Ctx) error {
	c.ws.Close()
	return ctx.SendStatus(fiber.StatusNoContent)
}

func (c *Controller) respondTask(ctx fiber.Ctx, task *workstation.Task) error {
	if ctx.Query("wait") != "true" {
		return ctx.SendStatus(fiber.StatusAccepted)
	}
	if err := task.Wait(ctx.Context()); err != nil {
		return c.parseFiberError(err)
	}
	return c.sendState(ctx)
}

// sendState responds with the display state once every queued update is applied.
func (c *Controller) sendState(ctx fiber.Ctx) error {
	s, err := c.ws.State(ctx.Context())
	if err != nil {
		return c.parseFiberError(err)
	}
	return ctx.JSON(StateResponse{
		CurrentFrameID:       s.CurrentFrameID,
		CurrentFramePath:     s.CurrentFramePath,
		CurrentContainerPath: s.CurrentContainerPath,
		InformationText:      s.InformationText,
		StatusText:           s.StatusText,
		IsActive:             s.IsActive,
		FrameCount:           s.Frames.Len(),
	})
}

func (c *Controller) getState(ctx fiber.Ctx) error {
	return c.sendState(ctx)
}

func (c *Controller) listFrames(ctx fiber.Ctx) error {
	return ctx.JSON(c.ws.Frames())
}

func (c *Controller) getThumbnail(ctx fiber.Ctx) error {
	id, err := strconv.Atoi(ctx.Params("id"))
	if err != nil {
		return fiber.ErrBadRequest
	}
	data, err := c.ws.Thumbnail(id)
	if err != nil {
		return c.parseFiberError(err)
	}
	ctx.Set(fiber.HeaderCacheControl, "private, max-age=60")
	ctx.Type("png")
	return ctx.Send(data)
}

func (c *Controller) changeDisplayed(ctx fiber.Ctx) error {
	id, err := strconv.Atoi(ctx.Params("id"))
	if err != nil {
		return fiber.ErrBadRequest
	}
	c.ws.ChangeDisplayed(id)
	return ctx.SendStatus(fiber.StatusNoContent)
}

func (c *Controller) saveSelectionAsContainer(ctx fiber.Ctx) error {
	var req SelectionContainerRequest
	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.ErrBadRequest
	}
	target, err := c.pathSvc.Resolve(req.Target)
	if err != nil {
		return c.parseFiberError(err)
	}
	if err := c.ws.SaveSelectionAsContainer(ds.NewSetOf(req.IDs...), target); err != nil {
		return c.parseFiberError(err)
	}
	return ctx.SendStatus(fiber.StatusCreated)
}

func (c *Controller) saveSelectionAsFiles(ctx fiber.Ctx) error {
	var req SelectionFilesRequest
	if err := ctx.Bind().Body(&req); err != nil {
		return fiber.ErrBadRequest
	}
	targetDir, err := c.pathSvc.Resolve(req.TargetDir)
	if err != nil {
		return c.parseFiberError(err)
	}
	copied, failed, err := c.ws.SaveSelectionAsFiles(ctx.Context(), ds.NewSetOf(req.IDs...), targetDir, req.Overwrite)
	if err != nil {
		return c.parseFiberError(err)
	}
	return ctx.JSON(CopyResult{Copied: copied, Failed: failed})
}

// browse lists directories, containers and images under ?path=.
// Without MEDIA_ROOT the path must be absolute.
func (c *Controller) browse(ctx fiber.Ctx) error {
	p := ctx.Query("path", c.pathSvc.Root())
	trees, err := c.fileSvc.ListTree(p)
	if err != nil {
		logger.Warnf("error listing dir at path %s: %v", p, err)
		return c.parseFiberError(err)
	}
	return ctx.JSON(trees)
}

// createFrameLink signs a download link for one frame of the published index.
func (c *Controller) createFrameLink(ctx fiber.Ctx) error {
	id, err := strconv.Atoi(ctx.Params("id"))
	if err != nil {
		return fiber.ErrBadRequest
	}
	frame, ok := c.ws.Frame(id)
	if !ok {
		return c.parseFiberError(indexer.ErrFrameNotFound)
	}
	token, exp, err := c.signer.GenerateDownloadToken(frame.Path)
	if err != nil {
		logger.Errorf("cannot sign link for frame %d: %v", id, err)
		return fiber.ErrInternalServerError
	}
	return ctx.Status(fiber.StatusCreated).JSON(FrameLink{
		URL:       "/workstation/download?token=" + url.QueryEscape(token),
		ExpiresAt: exp,
	})
}

// download serves a frame through a signed link, no bearer token needed.
func (c *Controller) download(ctx fiber.Ctx) error {
	token := ctx.Query("token", "")
	if token == "" {
		return fiber.ErrBadRequest
	}
	p, err := c.signer.ParseDownloadToken(token)
	if err != nil {
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	}
	// links die with the index they were issued for
	if !c.ws.IsPublishedFrame(p) {
		return fiber.NewError(fiber.StatusGone, "frame is no longer available")
	}
	ctx.Attachment(p)
	return ctx.SendFile(p, fiber.SendFile{
		ByteRange: true,
	})
}

func (c *Controller) listJobs(ctx fiber.Ctx) error {
	return ctx.JSON(JobsResponse{
		Jobs:  c.ws.Jobs(),
		Stats: c.ws.Stats(),
	})
}

func (c *Controller) getStatus(ctx fiber.Ctx) error {
	usage, err := c.ws.Usage()
	if err != nil {
		logger.Warnf("cannot read disk usage: %v", err)
	}
	return ctx.JSON(StatusResponse{
		Disk: usage,
		Jobs: c.ws.Stats(),
	})
}

func (c *Controller) parseFiberError(err error) error {
	switch {
	case os.IsNotExist(err):
		return fiber.NewError(fiber.StatusNotFound, "path not found")
	case errors.Is(err, path.ErrAccessDenied):
		return fiber.NewError(fiber.StatusForbidden, "path is outside the media root")
	case os.IsPermission(err):
		return fiber.NewError(fiber.StatusForbidden, "permission denied")
	case errors.Is(err, path.ErrInvalidFilePath), errors.Is(err, file.ErrIsNotDirectory):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, indexer.ErrFrameNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case services.IsCancelled(err):
		return fiber.NewError(fiber.StatusConflict, "operation was superseded")
	case errors.Is(err, services.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrCodec):
		return fiber.NewError(fiber.StatusUnprocessableEntity, err.Error())
	default:
		logger.Errorf("request failed: %v", err)
		return fiber.ErrInternalServerError
	}
}
