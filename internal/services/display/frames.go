package display

// Frame is one entry of a FrameIndex.
type Frame struct {
	ID   int    `json:"id"`
	Path string `json:"path"`
}

// FrameIndex maps ids to frame files. Ids are positions in discovery order,
// starting at 0. An index is never modified after it is built; a nil index is empty.
type FrameIndex struct {
	frames []Frame
}

func NewFrameIndex(paths []string) *FrameIndex {
	frames := make([]Frame, len(paths))
	for i, p := range paths {
		frames[i] = Frame{ID: i, Path: p}
	}
	return &FrameIndex{frames: frames}
}

func (f *FrameIndex) Len() int {
	if f == nil {
		return 0
	}
	return len(f.frames)
}

func (f *FrameIndex) Lookup(id int) (Frame, bool) {
	if f == nil || id < 0 || id >= len(f.frames) {
		return Frame{}, false
	}
	return f.frames[id], true
}

func (f *FrameIndex) Frames() []Frame {
	if f == nil {
		return []Frame{}
	}
	out := make([]Frame, len(f.frames))
	copy(out, f.frames)
	return out
}

// Paths returns the frame paths in id order.
func (f *FrameIndex) Paths() []string {
	if f == nil {
		return []string{}
	}
	out := make([]string, len(f.frames))
	for i, frame := range f.frames {
		out[i] = frame.Path
	}
	return out
}
