package display

import "sync"

// Fake records every image shown, for test assertions.
type Fake struct {
	mu      sync.Mutex
	shown   []string
	quit    bool
	closed  bool
	showErr error
}

// NewFake creates a Fake display.
func NewFake() *Fake {
	return &Fake{}
}

// Show records the image.
func (f *Fake) Show(image string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.showErr != nil {
		return f.showErr
	}
	f.shown = append(f.shown, image)
	return nil
}

// Quit simulates the operator pressing a key.
func (f *Fake) Quit() {
	f.mu.Lock()
	f.quit = true
	f.mu.Unlock()
}

// SetError makes subsequent Show calls fail with err.
func (f *Fake) SetError(err error) {
	f.mu.Lock()
	f.showErr = err
	f.mu.Unlock()
}

// QuitRequested reports whether Quit was called.
func (f *Fake) QuitRequested() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.quit
}

// Shown returns a copy of the images shown so far.
func (f *Fake) Shown() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.shown...)
}

// Close marks the display closed.
func (f *Fake) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
