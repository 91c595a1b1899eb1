package async

import (
	"fmt"
	"sync"
)

// Handle is an observable completion token for a background task.
// Unlike a bare goroutine, the owner can wait on it or poll it, so a
// background failure is detected instead of vanishing.
type Handle struct {
	done chan struct{}
	mu   sync.Mutex
	err  error
}

// Go runs fn in a goroutine and returns its handle. Panics are
// converted to errors so a broken task cannot take the process down.
func Go(fn func() error) *Handle {
	h := &Handle{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		defer func() {
			if r := recover(); r != nil {
				h.mu.Lock()
				h.err = fmt.Errorf("background task panic: %v", r)
				h.mu.Unlock()
			}
		}()
		if err := fn(); err != nil {
			h.mu.Lock()
			h.err = err
			h.mu.Unlock()
		}
	}()
	return h
}

// Wait blocks until the task completes and returns its error.
func (h *Handle) Wait() error {
	<-h.done
	return h.Err()
}

// Done exposes the completion channel for select-based observation.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err returns the task error. Only meaningful once Done is closed.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Completed reports whether the task has finished without blocking.
func (h *Handle) Completed() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}
