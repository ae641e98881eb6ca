package display

import (
	"bufio"
	"io"
	"log"
	"path/filepath"
	"sync/atomic"
)

// Console is a headless display for bench testing a rig without a screen.
// It logs each image it is asked to show, and any line read from the input
// (the operator pressing Enter) requests termination.
type Console struct {
	dir  string
	quit atomic.Bool
}

// NewConsole creates a Console that resolves image names against dir and
// watches in for a termination keypress.
func NewConsole(dir string, in io.Reader) *Console {
	c := &Console{dir: dir}
	if in != nil {
		go c.watch(in)
	}
	return c
}

func (c *Console) watch(in io.Reader) {
	sc := bufio.NewScanner(in)
	if sc.Scan() {
		log.Printf("display: key press")
		c.quit.Store(true)
	}
}

// Show logs the image that would be rendered.
func (c *Console) Show(image string) error {
	if image == "" {
		log.Printf("display: blank")
		return nil
	}
	log.Printf("display: showing %s", filepath.Join(c.dir, image))
	return nil
}

// QuitRequested reports whether a line has been read from the input.
func (c *Console) QuitRequested() bool {
	return c.quit.Load()
}

// Close is a no-op; the input watcher exits with the process.
func (c *Console) Close() error {
	return nil
}
