package rig

import "sync"

// Pipe is a one-directional FIFO link from a single producer to a single
// consumer. Only the producer closes it, after its last send.
type Pipe[T any] struct {
	c         chan T
	closeOnce sync.Once
}

// NewPipe creates a pipe buffering up to capacity items.
func NewPipe[T any](capacity int) *Pipe[T] {
	return &Pipe[T]{c: make(chan T, capacity)}
}

// Send delivers v, blocking while the buffer is full. Used for events, which
// must never be dropped.
func (p *Pipe[T]) Send(v T) {
	p.c <- v
}

// Offer delivers v without blocking and reports whether it was accepted.
// Used for control messages from loops that must keep their cadence.
func (p *Pipe[T]) Offer(v T) bool {
	select {
	case p.c <- v:
		return true
	default:
		return false
	}
}

// TryRecv returns the next item if one is waiting. ok is false when the pipe
// is empty or closed.
func (p *Pipe[T]) TryRecv() (v T, ok bool) {
	select {
	case v, ok = <-p.c:
		return v, ok
	default:
		return v, false
	}
}

// Recv exposes the receive side for select statements.
func (p *Pipe[T]) Recv() <-chan T {
	return p.c
}

// Close marks the end of the stream. Safe to call more than once.
func (p *Pipe[T]) Close() {
	p.closeOnce.Do(func() { close(p.c) })
}
