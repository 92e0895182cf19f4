package workstation_test

import (
	"context"
	"encoding/json"
	"image"
	"image/color/palette"
	"image/gif"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/eric2788/framestudio/internal/controllers/workstation"
	"github.com/eric2788/framestudio/internal/modules/config"
	"github.com/eric2788/framestudio/internal/services/cancel"
	"github.com/eric2788/framestudio/internal/services/codec"
	"github.com/eric2788/framestudio/internal/services/copier"
	"github.com/eric2788/framestudio/internal/services/display"
	"github.com/eric2788/framestudio/internal/services/exporter"
	"github.com/eric2788/framestudio/internal/services/file"
	"github.com/eric2788/framestudio/internal/services/indexer"
	"github.com/eric2788/framestudio/internal/services/orchestrator"
	"github.com/eric2788/framestudio/internal/services/path"
	"github.com/eric2788/framestudio/internal/services/search"
	"github.com/eric2788/framestudio/internal/services/workspace"
	station "github.com/eric2788/framestudio/internal/services/workstation"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newApp(t *testing.T, mediaRoot ...string) *fiber.App {
	cfg := config.Default()
	cfg.WorkspaceDir = filepath.Join(t.TempDir(), "ws")
	cfg.ThumbnailSize = 4
	cfg.MediaRoot = ""
	if len(mediaRoot) > 0 {
		cfg.MediaRoot = mediaRoot[0]
	}

	owner := display.New()
	owner.Start()
	t.Cleanup(owner.Stop)

	loader := codec.NewLoader()
	coord := cancel.New(context.Background())
	wm := workspace.New(cfg)
	ix := indexer.New(cfg, loader, owner, coord)
	gc := codec.NewGifCodec(cfg, loader)
	orch := orchestrator.NewService(cfg, wm, gc, search.NewService(), ix)
	exp := exporter.NewService(ix, orch, copier.NewService(cfg))
	paths := path.NewService(cfg)

	app := fiber.New()
	workstation.NewController(app, cfg, station.New(cfg, coord, wm, orch, exp, ix, owner), paths, file.NewService(cfg, paths, gc))
	return app
}

func writeGif(t *testing.T, n int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.gif")
	anim := &gif.GIF{}
	for i := range n {
		frame := image.NewPaletted(image.Rect(0, 0, 6, 4), palette.Plan9)
		frame.Set(i, 0, palette.Plan9[100])
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, 10)
	}
	out, err := os.Create(path)
	require.NoError(t, err)
	defer out.Close()
	require.NoError(t, gif.EncodeAll(out, anim))
	return path
}

func call(t *testing.T, app *fiber.App, method, target, body string) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestOpenContainerAndBrowse(t *testing.T) {
	app := newApp(t)
	src := writeGif(t, 3)

	resp, body := call(t, app, http.MethodPost, "/workstation/container?wait=true", `{"path":"`+src+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var state workstation.StateResponse
	require.NoError(t, json.Unmarshal(body, &state))
	assert.Equal(t, 3, state.FrameCount)
	assert.True(t, state.IsActive)

	resp, body = call(t, app, http.MethodGet, "/workstation/frames", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var frames []display.Frame
	require.NoError(t, json.Unmarshal(body, &frames))
	require.Len(t, frames, 3)
	assert.Equal(t, 2, frames[2].ID)

	resp, body = call(t, app, http.MethodGet, "/workstation/frames/1/thumbnail", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, body)

	resp, _ = call(t, app, http.MethodGet, "/workstation/frames/9/thumbnail", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = call(t, app, http.MethodPut, "/workstation/frames/1/display", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = call(t, app, http.MethodGet, "/workstation/jobs", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var jobs workstation.JobsResponse
	require.NoError(t, json.Unmarshal(body, &jobs))
	require.Len(t, jobs.Jobs, 1)
	assert.Equal(t, orchestrator.Completed, jobs.Jobs[0].Status)
	assert.EqualValues(t, 1, jobs.Stats.Completed)
}

func TestWaitRespondsWithAppliedState(t *testing.T) {
	app := newApp(t)
	src := writeGif(t, 4)

	for range 20 {
		resp, body := call(t, app, http.MethodPost, "/workstation/container?wait=true", `{"path":"`+src+`"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		var state workstation.StateResponse
		require.NoError(t, json.Unmarshal(body, &state))
		assert.Contains(t, state.InformationText, "| 4 frames |")
	}

	folder := filepath.Join(t.TempDir(), "shots")
	require.NoError(t, os.Mkdir(folder, 0o755))
	for _, name := range []string{"a.png", "b.png"} {
		out, err := os.Create(filepath.Join(folder, name))
		require.NoError(t, err)
		require.NoError(t, png.Encode(out, image.NewRGBA(image.Rect(0, 0, 4, 4))))
		require.NoError(t, out.Close())
	}
	resp, body := call(t, app, http.MethodPost, "/workstation/folder?wait=true", `{"path":"`+folder+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var state workstation.StateResponse
	require.NoError(t, json.Unmarshal(body, &state))
	assert.Equal(t, 2, state.FrameCount)
	assert.True(t, strings.HasPrefix(state.StatusText, "Created "), state.StatusText)
}

func TestSaveSelection(t *testing.T) {
	app := newApp(t)
	src := writeGif(t, 4)
	resp, _ := call(t, app, http.MethodPost, "/workstation/container?wait=true", `{"path":"`+src+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	target := filepath.Join(t.TempDir(), "sel.gif")
	resp, body := call(t, app, http.MethodPost, "/workstation/selection/container", `{"ids":[0,2],"target":"`+target+`"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	assert.FileExists(t, target)

	resp, _ = call(t, app, http.MethodPost, "/workstation/selection/container", `{"ids":[42],"target":"`+target+`"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	dir := t.TempDir()
	resp, body = call(t, app, http.MethodPost, "/workstation/selection/files", `{"ids":[1,3],"target_dir":"`+dir+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var result workstation.CopyResult
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, workstation.CopyResult{Copied: 2}, result)
}

func TestBadRequests(t *testing.T) {
	app := newApp(t)

	resp, _ := call(t, app, http.MethodPost, "/workstation/container", `{"path":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = call(t, app, http.MethodPost, "/workstation/container?wait=true", `{"path":"/videos/a.mkv"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = call(t, app, http.MethodPut, "/workstation/frames/abc/display", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = call(t, app, http.MethodPost, "/workstation/folder", `{"path":"/does/not/exist"}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestStateAndStatus(t *testing.T) {
	app := newApp(t)

	resp, body := call(t, app, http.MethodGet, "/workstation/state", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var state workstation.StateResponse
	require.NoError(t, json.Unmarshal(body, &state))
	assert.False(t, state.IsActive)
	assert.Zero(t, state.FrameCount)

	resp, body = call(t, app, http.MethodGet, "/workstation/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var status workstation.StatusResponse
	require.NoError(t, json.Unmarshal(body, &status))
	require.NotNil(t, status.Disk)
	assert.NotZero(t, status.Disk.Total)

	resp, _ = call(t, app, http.MethodDelete, "/workstation/workspace?wait=true", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = call(t, app, http.MethodPost, "/workstation/close", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestFrameLinkDownload(t *testing.T) {
	app := newApp(t)
	src := writeGif(t, 2)
	resp, _ := call(t, app, http.MethodPost, "/workstation/container?wait=true", `{"path":"`+src+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := call(t, app, http.MethodGet, "/workstation/frames/1/link", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var link workstation.FrameLink
	require.NoError(t, json.Unmarshal(body, &link))
	require.Contains(t, link.URL, "/workstation/download?token=")

	resp, body = call(t, app, http.MethodGet, link.URL, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []byte("\x89PNG"), body[:4])

	resp, _ = call(t, app, http.MethodGet, "/workstation/download?token=forged", "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = call(t, app, http.MethodGet, "/workstation/frames/5/link", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// clearing the workspace retires links of the old index
	resp, _ = call(t, app, http.MethodDelete, "/workstation/workspace?wait=true", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = call(t, app, http.MethodGet, link.URL, "")
	assert.Equal(t, http.StatusGone, resp.StatusCode)
}

func TestBrowseMediaRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "shots"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "intro.gif"), []byte("GIF89a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "readme.md"), []byte("#"), 0o644))
	app := newApp(t, root)

	resp, body := call(t, app, http.MethodGet, "/workstation/browse", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var trees []file.Tree
	require.NoError(t, json.Unmarshal(body, &trees))
	require.Len(t, trees, 2)
	assert.Equal(t, "shots", trees[0].Name)
	assert.Equal(t, file.KindContainer, trees[1].Kind)

	resp, _ = call(t, app, http.MethodGet, "/workstation/browse?path=..", "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = call(t, app, http.MethodPost, "/workstation/container", `{"path":"/etc/passwd.gif"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = call(t, app, http.MethodGet, "/workstation/browse?path=missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
