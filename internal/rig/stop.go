package rig

import (
	"sync"
	"sync/atomic"
)

// Termination causes recorded in the results file.
const (
	CauseKeypress = "keypress"
	CauseDuration = "experiment duration elapsed"
)

// Stop is the run-wide cancellation flag. It only ever transitions from
// unset to set; the first cause wins.
type Stop struct {
	set   atomic.Bool
	once  sync.Once
	done  chan struct{}
	cause string
}

// NewStop creates an unset Stop.
func NewStop() *Stop {
	return &Stop{done: make(chan struct{})}
}

// Set raises the flag with the given cause. It reports whether this call
// was the one that set it.
func (s *Stop) Set(cause string) bool {
	first := false
	s.once.Do(func() {
		s.cause = cause
		s.set.Store(true)
		close(s.done)
		first = true
	})
	return first
}

// IsSet reports whether the flag has been raised.
func (s *Stop) IsSet() bool {
	return s.set.Load()
}

// Done is closed when the flag is raised.
func (s *Stop) Done() <-chan struct{} {
	return s.done
}

// Cause returns the cause passed to the first Set, or "" if unset.
func (s *Stop) Cause() string {
	if !s.IsSet() {
		return ""
	}
	return s.cause
}
