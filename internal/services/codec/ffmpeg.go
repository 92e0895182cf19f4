package codec

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"iter"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/eric2788/framestudio/internal/modules/config"
	"github.com/eric2788/framestudio/utils"
	"github.com/sirupsen/logrus"
)

// FFmpegCodec shells out to ffmpeg and ffprobe, which lets it handle animated
// webp/apng and short video clips as well as gif.
type FFmpegCodec struct {
	delay  time.Duration
	logger *logrus.Entry
}

func NewFFmpegCodec(cfg *config.Config) *FFmpegCodec {
	return &FFmpegCodec{
		delay:  cfg.FrameDelay,
		logger: logger.WithField("codec", "ffmpeg"),
	}
}

func (c *FFmpegCodec) Name() string {
	return "ffmpeg"
}

func (c *FFmpegCodec) Extensions() []string {
	return []string{".gif", ".webp", ".apng", ".mp4", ".webm"}
}

// SplitContainerToFrames pipes every frame out of ffmpeg as png and decodes them one at a time.
func (c *FFmpegCodec) SplitContainerToFrames(ctx context.Context, path string) iter.Seq2[Frame, error] {
	return func(yield func(Frame, error) bool) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		cmd := exec.CommandContext(ctx,
			"ffmpeg",
			"-hide_banner",
			"-loglevel", "error",
			"-i", path,
			"-f", "image2pipe",
			"-vcodec", "png",
			"-",
		)
		cmd.Stderr = c.logger.Writer()
		stdout, err := cmd.StdoutPipe()
		if err != nil {
			yield(Frame{}, err)
			return
		}
		if err := cmd.Start(); err != nil {
			yield(Frame{}, err)
			return
		}

		stopped := false
		reader := bufio.NewReader(stdout)
		for n := 0; ; n++ {
			if _, err := reader.Peek(1); err == io.EOF {
				break
			} else if err != nil {
				stopped = !yield(Frame{}, err)
				break
			}
			img, err := png.Decode(reader)
			if err != nil {
				yield(Frame{}, fmt.Errorf("decode frame %d: %w", n, err))
				stopped = true
				break
			}
			if !yield(Frame{Number: n, Image: img}, nil) {
				stopped = true
				break
			}
		}

		if stopped {
			cancel()
			_ = cmd.Wait()
			return
		}
		if err := cmd.Wait(); err != nil {
			yield(Frame{}, fmt.Errorf("ffmpeg: %w", err))
		}
	}
}

func (c *FFmpegCodec) AssembleFramesToContainer(ctx context.Context, orderedPaths []string, targetPath string) error {
	if len(orderedPaths) == 0 {
		return ErrNoFrames
	}

	list, err := os.CreateTemp("", "framestudio-concat-*.txt")
	if err != nil {
		return err
	}
	defer os.Remove(list.Name())

	seconds := strconv.FormatFloat(c.delay.Seconds(), 'f', 3, 64)
	w := bufio.NewWriter(list)
	for _, p := range orderedPaths {
		fmt.Fprintf(w, "file '%s'\nduration %s\n", strings.ReplaceAll(p, "'", `'\''`), seconds)
	}
	// the concat demuxer ignores the duration of the last entry unless it is repeated
	fmt.Fprintf(w, "file '%s'\n", strings.ReplaceAll(orderedPaths[len(orderedPaths)-1], "'", `'\''`))
	if err := w.Flush(); err != nil {
		list.Close()
		return err
	}
	if err := list.Close(); err != nil {
		return err
	}

	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", list.Name(),
	}
	switch utils.GetPathFormat(targetPath) {
	case ".gif", ".webp", ".apng":
		args = append(args, "-loop", "0")
	}
	args = append(args, targetPath)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stdout = c.logger.Writer()
	cmd.Stderr = c.logger.Writer()
	return cmd.Run()
}

type probeResult struct {
	Streams []struct {
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		NbReadFrames string `json:"nb_read_frames"`
	} `json:"streams"`
}

func (c *FFmpegCodec) GetContainerMetadata(ctx context.Context, path string) (Metadata, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return Metadata{}, false
	}

	out, err := exec.CommandContext(ctx,
		"ffprobe",
		"-v", "error",
		"-select_streams", "v:0",
		"-count_frames",
		"-show_entries", "stream=width,height,nb_read_frames",
		"-of", "json",
		path,
	).Output()
	if err != nil {
		c.logger.Debugf("ffprobe %s failed: %v", path, err)
		return Metadata{}, false
	}

	var probe probeResult
	if err := json.Unmarshal(out, &probe); err != nil || len(probe.Streams) == 0 {
		return Metadata{}, false
	}
	stream := probe.Streams[0]
	frames, err := strconv.Atoi(stream.NbReadFrames)
	if err != nil {
		return Metadata{}, false
	}
	return Metadata{
		FrameCount: frames,
		Width:      stream.Width,
		Height:     stream.Height,
		SizeBytes:  info.Size(),
	}, true
}
