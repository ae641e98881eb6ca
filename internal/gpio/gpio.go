// Package gpio provides digital input and output lines with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementations allow testing without hardware.
package gpio

// Input reads a single digital input line.
type Input interface {
	// Read returns the current level of the line (true = High).
	Read() (bool, error)

	// Close releases the line.
	Close() error
}

// Output drives a single digital output line.
type Output interface {
	// Write sets the level of the line (true = High).
	Write(high bool) error

	// Close drives the line low and releases it.
	Close() error
}

// Default pin definitions (BCM numbering). These are the BCM equivalents of
// physical header pins 35 (wheel), 37 (door) and 29 (pump).
const (
	DefaultPinWheel = 19
	DefaultPinDoor  = 26
	DefaultPinPump  = 5

	DefaultChip = "gpiochip0"
)
