package cancel

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/eric2788/framestudio/internal/services"
	"github.com/sirupsen/logrus"
	"go.uber.org/fx"
)

var logger = logrus.WithField("service", "cancel")

// Coordinator owns the single current cancellation token. Minting a new token
// cancels the previous one.
type Coordinator struct {
	mu         sync.Mutex
	generation atomic.Uint64
	current    *Token
	ctx        context.Context
}

type Token struct {
	gen       uint64
	owner     *Coordinator
	cancelled atomic.Bool
	ctx       context.Context
	cancel    context.CancelFunc
}

func New(ctx context.Context) *Coordinator {
	return &Coordinator{ctx: ctx}
}

func NewService(lc fx.Lifecycle) *Coordinator {
	ctx, cancel := context.WithCancel(context.Background())
	c := New(ctx)
	lc.Append(fx.StopHook(func() {
		c.CancelCurrent()
		cancel()
	}))
	return c
}

// StartNew cancels the outstanding token and returns a fresh one.
func (c *Coordinator) StartNew() *Token {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != nil {
		c.current.release()
	}
	ctx, cancel := context.WithCancel(c.ctx)
	t := &Token{
		gen:    c.generation.Add(1),
		owner:  c,
		ctx:    ctx,
		cancel: cancel,
	}
	c.current = t
	logger.Debugf("token generation %d issued", t.gen)
	return t
}

// CancelCurrent cancels the outstanding token without issuing a replacement.
func (c *Coordinator) CancelCurrent() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return
	}
	c.current.release()
	c.current = nil
	// leaves no token current
	c.generation.Add(1)
}

func (c *Coordinator) IsCurrent(t *Token) bool {
	return t != nil && !t.cancelled.Load() && t.gen == c.generation.Load()
}

func (t *Token) release() {
	t.cancelled.Store(true)
	t.cancel()
}

func (t *Token) Generation() uint64 {
	return t.gen
}

// Cancelled reports whether a newer token was issued or the token was cancelled.
func (t *Token) Cancelled() bool {
	return !t.owner.IsCurrent(t)
}

// Err returns ErrOperationCancelled once the token is no longer current.
func (t *Token) Err() error {
	if t.Cancelled() {
		return services.ErrOperationCancelled
	}
	return nil
}

// Context is done as soon as the token is cancelled, for blocking calls such as external tools.
func (t *Token) Context() context.Context {
	return t.ctx
}
