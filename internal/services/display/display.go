package display

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
)

var logger = logrus.WithField("service", "display")

var ErrOwnerStopped = errors.New("display owner stopped")

// State is mutated only by the owner goroutine.
type State struct {
	CurrentFrameID       *int        `json:"current_frame_id,omitempty"`
	CurrentFramePath     string      `json:"current_frame_path,omitempty"`
	CurrentBitmap        image.Image `json:"-"`
	CurrentContainerPath string      `json:"current_container_path,omitempty"`
	InformationText      string      `json:"information_text"`
	StatusText           string      `json:"status_text"`
	IsActive             bool        `json:"is_active"`
	Frames               *FrameIndex `json:"-"`
}

type Dispatcher interface {
	// RunOnOwnerThread queues action to run on the owner goroutine. It is the
	// only way background work may change the display state.
	RunOnOwnerThread(action func(*State))
}

type Owner struct {
	actions  chan func(*State)
	quit     chan struct{}
	done     chan struct{}
	state    State
	snapshot atomic.Pointer[State]
	started  atomic.Bool
	stopOnce sync.Once
}

func New() *Owner {
	o := &Owner{
		actions: make(chan func(*State), 64),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	o.snapshot.Store(&State{})
	return o
}

func NewService(lc fx.Lifecycle) *Owner {
	o := New()
	lc.Append(fx.StartStopHook(o.Start, o.Stop))
	return o
}

func (o *Owner) Start() {
	if !o.started.CompareAndSwap(false, true) {
		return
	}
	go o.loop()
}

func (o *Owner) Stop() {
	o.stopOnce.Do(func() {
		close(o.quit)
		if o.started.Load() {
			<-o.done
		}
	})
}

func (o *Owner) loop() {
	defer close(o.done)
	for {
		select {
		case action := <-o.actions:
			o.apply(action)
		case <-o.quit:
			return
		}
	}
}

func (o *Owner) apply(action func(*State)) {
	defer func() {
		if err := recover(); err != nil {
			logger.Errorf("display action panicked: %v", err)
		}
		snap := o.state
		o.snapshot.Store(&snap)
	}()
	action(&o.state)
}

func (o *Owner) RunOnOwnerThread(action func(*State)) {
	select {
	case o.actions <- action:
	case <-o.quit:
		logger.Debug("display owner stopped, action dropped")
	}
}

// Do runs action on the owner goroutine and waits until it has been applied.
func (o *Owner) Do(ctx context.Context, action func(*State)) error {
	applied := make(chan struct{})
	select {
	case o.actions <- func(s *State) {
		defer close(applied)
		action(s)
	}:
	case <-o.quit:
		return ErrOwnerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-applied:
		return nil
	case <-o.quit:
		return ErrOwnerStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sync waits for every action queued before it.
func (o *Owner) Sync(ctx context.Context) error {
	return o.Do(ctx, func(*State) {})
}

// Snapshot returns a copy of the state as of the last applied action.
func (o *Owner) Snapshot() State {
	return *o.snapshot.Load()
}
