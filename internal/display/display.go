// Package display is the boundary between the rig and the stimulus renderer.
// The rig decides which image to show and when; rasterizing pixels is the
// renderer's job.
package display

// Display renders stimulus images and reports operator termination requests.
type Display interface {
	// Show renders the named image now. An empty name blanks the screen.
	Show(image string) error

	// QuitRequested reports whether the operator has asked to end the run
	// (for example with a keypress). It must not block.
	QuitRequested() bool

	// Close releases the display.
	Close() error
}
