package gpio

import (
	"errors"
	"sync"
)

// FakeInput is a test double that returns scripted levels.
// Safe for concurrent use: a test may Set the level while a monitor reads it.
type FakeInput struct {
	mu sync.Mutex

	// samples contains scripted levels; each Read consumes the next one and
	// the last is repeated once exhausted.
	samples []bool
	index   int

	readErr error
	closed  bool
	reads   int
}

// NewFakeInput creates a FakeInput with the given scripted levels.
func NewFakeInput(samples ...bool) *FakeInput {
	return &FakeInput{samples: samples}
}

// Read returns the next scripted level.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeInput) Read() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reads++
	if f.readErr != nil {
		return false, f.readErr
	}
	if len(f.samples) == 0 {
		return false, errors.New("no samples configured")
	}

	v := f.samples[f.index]
	if f.index < len(f.samples)-1 {
		f.index++
	}
	return v, nil
}

// Set replaces the script with a single constant level.
func (f *FakeInput) Set(high bool) {
	f.mu.Lock()
	f.samples = []bool{high}
	f.index = 0
	f.mu.Unlock()
}

// SetError makes subsequent reads fail with err (nil clears it).
func (f *FakeInput) SetError(err error) {
	f.mu.Lock()
	f.readErr = err
	f.mu.Unlock()
}

// Reads returns how many times Read was called.
func (f *FakeInput) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

// Close marks the input as closed.
func (f *FakeInput) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (f *FakeInput) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// FakeOutput records every level written to it.
type FakeOutput struct {
	mu      sync.Mutex
	writes  []bool
	level   bool
	closed  bool
	onWrite func(high bool)

	writeErr error
}

// NewFakeOutput creates a FakeOutput, initially low.
func NewFakeOutput() *FakeOutput {
	return &FakeOutput{}
}

// Write records the level.
func (f *FakeOutput) Write(high bool) error {
	f.mu.Lock()
	if f.writeErr != nil {
		err := f.writeErr
		f.mu.Unlock()
		return err
	}
	f.writes = append(f.writes, high)
	f.level = high
	hook := f.onWrite
	f.mu.Unlock()

	if hook != nil {
		hook(high)
	}
	return nil
}

// OnWrite registers a hook called after every successful write.
func (f *FakeOutput) OnWrite(hook func(high bool)) {
	f.mu.Lock()
	f.onWrite = hook
	f.mu.Unlock()
}

// SetError makes subsequent writes fail with err (nil clears it).
func (f *FakeOutput) SetError(err error) {
	f.mu.Lock()
	f.writeErr = err
	f.mu.Unlock()
}

// Close drives the output low and marks it closed. Unlike Write it always
// succeeds, mirroring the real line being released.
func (f *FakeOutput) Close() error {
	f.mu.Lock()
	f.level = false
	f.writes = append(f.writes, false)
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Level returns the current output level.
func (f *FakeOutput) Level() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.level
}

// Writes returns a copy of every level written, including the final low
// written by Close.
func (f *FakeOutput) Writes() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.writes...)
}

// Closed reports whether Close was called.
func (f *FakeOutput) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
