package workstation

import "context"

// Task is a command running in the background.
type Task struct {
	done chan struct{}
	err  error
}

func run(fn func() error) *Task {
	t := &Task{done: make(chan struct{})}
	go func() {
		defer close(t.done)
		t.err = fn()
	}()
	return t
}

func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the command finished and returns its error, cancellation included.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
