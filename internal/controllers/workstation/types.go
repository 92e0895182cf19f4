package workstation

import (
	"time"

	"github.com/eric2788/framestudio/internal/services/orchestrator"
	"github.com/eric2788/framestudio/internal/services/workspace"
)

type PathRequest struct {
	Path string `json:"path"`
}

type SelectionContainerRequest struct {
	IDs    []int  `json:"ids"`
	Target string `json:"target"`
}

type SelectionFilesRequest struct {
	IDs       []int  `json:"ids"`
	TargetDir string `json:"target_dir"`
	Overwrite bool   `json:"overwrite"`
}

type CopyResult struct {
	Copied int `json:"copied"`
	Failed int `json:"failed"`
}

type StateResponse struct {
	CurrentFrameID       *int   `json:"current_frame_id,omitempty"`
	CurrentFramePath     string `json:"current_frame_path,omitempty"`
	CurrentContainerPath string `json:"current_container_path,omitempty"`
	InformationText      string `json:"information_text"`
	StatusText           string `json:"status_text"`
	IsActive             bool   `json:"is_active"`
	FrameCount           int    `json:"frame_count"`
}

type JobsResponse struct {
	Jobs  []orchestrator.Job `json:"jobs"`
	Stats orchestrator.Stats `json:"stats"`
}

type StatusResponse struct {
	Disk *workspace.Usage   `json:"disk,omitempty"`
	Jobs orchestrator.Stats `json:"jobs"`
}

type FrameLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
