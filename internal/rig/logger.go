package rig

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/sweeney/behavior-rig/internal/event"
)

// Separator divides the results-file header from the event records.
const Separator = "-------------------------------Start of experiment-------------------------------"

// Mirror receives a copy of every event written to the results file, for
// example to publish it over MQTT. Errors are logged and never stop the run.
type Mirror interface {
	Publish(e event.Event) error
}

// Observer is notified of every event written, after it reaches disk.
type Observer interface {
	Observe(e event.Event)
}

// LoggerSummary describes what the result logger wrote.
type LoggerSummary struct {
	Written int   // event records
	Errors  int   // CHANNEL_ERROR records among them
	Err     error // first write failure, if any
}

// resultLogger is the single writer of the results file. It consumes the
// three event streams and appends one line per event, durably, in the order
// received.
type resultLogger struct {
	f     *os.File
	w     *bufio.Writer
	clock Clock
	stop  *Stop

	wheel <-chan event.Event
	door  <-chan event.Event
	coord <-chan event.Event

	wait  time.Duration
	drain time.Duration

	mirror   Mirror
	observer Observer

	// reported holds producers whose latest record was their own error.
	reported map[event.Source]bool

	summary LoggerSummary
}

// openResultLogger opens path for appending and writes the header.
func openResultLogger(path string, header []string, clock Clock, stop *Stop, l *links, wait, drain time.Duration) (*resultLogger, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open results file: %w", err)
	}
	rl := &resultLogger{
		f:        f,
		w:        bufio.NewWriter(f),
		reported: make(map[event.Source]bool),
		clock:    clock,
		stop:     stop,
		wheel:    l.wheelEvents.Recv(),
		door:     l.doorEvents.Recv(),
		coord:    l.coordEvents.Recv(),
		wait:     wait,
		drain:    drain,
	}
	for _, line := range header {
		rl.w.WriteString(line + "\n")
	}
	rl.w.WriteString(Separator + "\n")
	if err := rl.sync(); err != nil {
		f.Close()
		return nil, fmt.Errorf("write results header: %w", err)
	}
	return rl, nil
}

// Header returns the lines written before the separator.
func Header(epoch time.Time, summary []string) []string {
	lines := []string{"Date: " + epoch.Format(time.RFC3339)}
	return append(lines, summary...)
}

// Run consumes events until stop is set, drains what is left for up to the
// drain timeout, then writes the termination marker and closes the file.
func (l *resultLogger) Run() LoggerSummary {
	for !l.stop.IsSet() {
		l.next(l.wait)
	}

	deadline := time.Now().Add(l.drain)
	for l.wheel != nil || l.door != nil || l.coord != nil {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			log.Printf("logger: drain timed out with producers still open")
			break
		}
		l.next(remaining)
	}

	l.finish()
	return l.summary
}

// next waits up to timeout for one event from any producer.
func (l *resultLogger) next(timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case e, ok := <-l.wheel:
		l.receive(&l.wheel, event.SourceWheel, e, ok)
	case e, ok := <-l.door:
		l.receive(&l.door, event.SourceDoor, e, ok)
	case e, ok := <-l.coord:
		l.receive(&l.coord, event.SourceCoordinator, e, ok)
	case <-timer.C:
	}
}

func (l *resultLogger) receive(ch *<-chan event.Event, src event.Source, e event.Event, ok bool) {
	if ok {
		l.reported[src] = e.Kind == event.KindChannelError
		l.write(e)
		return
	}
	*ch = nil
	if l.stop.IsSet() {
		return
	}
	log.Printf("logger: %s channel closed before stop", src)
	if l.reported[src] {
		return
	}
	l.write(event.Event{
		Source:  src,
		Kind:    event.KindChannelError,
		Detail:  "channel closed unexpectedly",
		Elapsed: l.clock.Elapsed(l.clock.Now()),
	})
}

func (l *resultLogger) write(e event.Event) {
	l.w.WriteString(event.Format(e) + "\n")
	if err := l.sync(); err != nil && l.summary.Err == nil {
		log.Printf("logger: write results: %v", err)
		l.summary.Err = err
	}
	l.summary.Written++
	if e.Kind == event.KindChannelError {
		l.summary.Errors++
	}

	if l.mirror != nil {
		if err := l.mirror.Publish(e); err != nil {
			log.Printf("logger: mirror: %v", err)
		}
	}
	if l.observer != nil {
		l.observer.Observe(e)
	}
}

func (l *resultLogger) sync() error {
	if err := l.w.Flush(); err != nil {
		return err
	}
	return l.f.Sync()
}

func (l *resultLogger) finish() {
	elapsed := fmt.Sprintf("%.6f", l.clock.Elapsed(l.clock.Now()))
	cause := l.stop.Cause()
	if l.summary.Errors > 0 {
		fmt.Fprintf(l.w, "Terminated with errors - Cause: %s, Errors: %d, Time: %s\n", cause, l.summary.Errors, elapsed)
	} else {
		fmt.Fprintf(l.w, "Successful termination - Cause: %s, Time: %s\n", cause, elapsed)
	}
	if err := l.sync(); err != nil && l.summary.Err == nil {
		l.summary.Err = err
	}
	if err := l.f.Close(); err != nil && l.summary.Err == nil {
		l.summary.Err = err
	}
}
