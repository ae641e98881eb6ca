// Command behavior-rig runs one unattended wheel-running / reward experiment
// and writes its results file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/behavior-rig/internal/archive"
	"github.com/sweeney/behavior-rig/internal/display"
	"github.com/sweeney/behavior-rig/internal/event"
	"github.com/sweeney/behavior-rig/internal/gpio"
	"github.com/sweeney/behavior-rig/internal/mqtt"
	"github.com/sweeney/behavior-rig/internal/protocol"
	"github.com/sweeney/behavior-rig/internal/rig"
	"github.com/sweeney/behavior-rig/internal/status"
	"github.com/sweeney/behavior-rig/internal/web"
)

type options struct {
	protocolPath string
	results      string
	images       string

	chip     string
	pinWheel int
	pinDoor  int
	pinPump  int
	doorLow  bool

	poll        time.Duration
	wheelBounce time.Duration
	doorBounce  time.Duration

	broker        string
	rigID         string
	httpAddr      string
	archiveBucket string
	seed          int64
	printState    bool
}

func main() {
	var o options
	flag.StringVar(&o.protocolPath, "protocol", "protocol.json", "Protocol file (JSON)")
	flag.StringVar(&o.results, "results", "results.txt", "Results file (appended)")
	flag.StringVar(&o.images, "images", "images", "Directory holding stimulus images")
	flag.StringVar(&o.chip, "chip", gpio.DefaultChip, "GPIO chip")
	flag.IntVar(&o.pinWheel, "pin-wheel", gpio.DefaultPinWheel, "BCM pin number for the wheel sensor")
	flag.IntVar(&o.pinDoor, "pin-door", gpio.DefaultPinDoor, "BCM pin number for the door sensor")
	flag.IntVar(&o.pinPump, "pin-pump", gpio.DefaultPinPump, "BCM pin number for the pump")
	flag.BoolVar(&o.doorLow, "door-open-low", false, "Door sensor reads Low when open")
	flag.DurationVar(&o.poll, "poll", time.Millisecond, "Sensor polling interval")
	flag.DurationVar(&o.wheelBounce, "wheel-bounce", time.Millisecond, "Wheel sensor bounce window")
	flag.DurationVar(&o.doorBounce, "door-bounce", time.Millisecond, "Door sensor bounce window")
	flag.StringVar(&o.broker, "broker", "", "MQTT broker address (empty to disable)")
	flag.StringVar(&o.rigID, "rig-id", defaultRigID(), "Rig identifier used in topics, metrics and archive keys")
	flag.StringVar(&o.httpAddr, "http", ":8080", "HTTP status address (empty to disable)")
	flag.StringVar(&o.archiveBucket, "archive-bucket", "", "S3 bucket to upload the results file to (empty to disable)")
	flag.Int64Var(&o.seed, "seed", 0, "Random seed (0 seeds from the clock)")
	flag.BoolVar(&o.printState, "print-state", false, "Print current sensor levels and exit")

	flag.Parse()

	if err := run(o); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(o options) error {
	if o.printState {
		return printState(o)
	}

	proto, err := protocol.Load(o.protocolPath)
	if err != nil {
		return err
	}

	hw, err := openHardware(o)
	if err != nil {
		return err
	}
	hw.Display = display.NewConsole(o.images, os.Stdin)

	clock := rig.NewClock(time.Now)
	seed := o.seed
	if seed == 0 {
		seed = clock.Epoch().UnixNano()
	}

	tracker := status.NewTracker(clock.Epoch(), status.Config{
		RigID:         o.rigID,
		Results:       o.results,
		PollMs:        ms(o.poll),
		WheelBounceMs: ms(o.wheelBounce),
		DoorBounceMs:  ms(o.doorBounce),
		Broker:        o.broker,
		HTTPAddr:      o.httpAddr,
		Protocol:      proto.Summary(),
	})

	var publisher mqtt.Publisher
	var conn mqtt.ConnectionStatus
	if o.broker != "" {
		p, err := mqtt.NewRealPublisher(o.broker, o.rigID)
		if err != nil {
			log.Printf("mqtt disabled: %v", err)
		} else {
			publisher, conn = p, p
			defer p.Close()
		}
	}

	var uploader archive.Uploader
	if o.archiveBucket != "" {
		u, err := archive.NewS3(context.Background(), archive.ConfigFromEnv(o.archiveBucket))
		if err != nil {
			log.Printf("archive disabled: %v", err)
		} else {
			uploader = u
		}
	}

	if o.httpAddr != "" {
		srv := web.New(o.httpAddr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", o.httpAddr)
	}

	cfg := rig.DefaultConfig()
	cfg.WheelPoll, cfg.DoorPoll = o.poll, o.poll
	cfg.WheelBounce, cfg.DoorBounce = o.wheelBounce, o.doorBounce
	cfg.DoorOpenLevel = !o.doorLow
	cfg.Rand = rand.New(rand.NewSource(seed))
	cfg.Stop = rig.NewStop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for s := range sigCh {
			log.Printf("received %v, stopping", s)
			cfg.Stop.Set(signalName(s))
		}
	}()

	log.Printf("started: rig=%s protocol=%s results=%s poll=%v seed=%d", o.rigID, o.protocolPath, o.results, o.poll, seed)

	s := session{
		tracker:   tracker,
		publisher: publisher,
		conn:      conn,
		uploader:  uploader,
		rigID:     o.rigID,
	}
	out, err := s.run(proto, clock, rig.Paths{Results: o.results}, hw, cfg)
	if err != nil {
		return err
	}
	if out.Degraded {
		log.Printf("run degraded: %d context faults, see %s", len(out.Faults), o.results)
	}
	return nil
}

// session wraps one rig run with its lifecycle notices, status tracking and
// archiving. publisher, conn and uploader may be nil.
type session struct {
	tracker   *status.Tracker
	publisher mqtt.Publisher
	conn      mqtt.ConnectionStatus
	uploader  archive.Uploader
	rigID     string
}

func (s session) run(proto protocol.Protocol, clock rig.Clock, paths rig.Paths, hw rig.Hardware, cfg rig.Config) (rig.Outcome, error) {
	cfg.Observer = observer{tracker: s.tracker, conn: s.conn}
	if s.publisher != nil {
		cfg.Mirror = s.publisher
	}

	s.publishSystem("STARTUP", "")

	out, err := rig.Run(proto, clock, paths, hw, cfg)
	s.tracker.Finish(out.Cause, out.Degraded || err != nil)
	log.Printf("run finished: cause=%q events=%d elapsed=%.1fs", out.Cause, out.Events, out.Elapsed)

	reason := out.Cause
	if err != nil {
		reason = "error: " + err.Error()
	}
	s.publishSystem("SHUTDOWN", reason)

	if err == nil && s.uploader != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		key := archive.Key(s.rigID, clock.Epoch(), paths.Results)
		if uerr := s.uploader.Upload(ctx, key, paths.Results); uerr != nil {
			log.Printf("archive upload failed: %v", uerr)
		} else {
			log.Printf("archived results as %s", key)
		}
	}
	return out, err
}

func (s session) publishSystem(name, reason string) {
	if s.publisher == nil {
		return
	}
	if s.conn != nil {
		s.tracker.SetMQTTConnected(s.conn.IsConnected())
	}
	snap := s.tracker.Snapshot()
	err := s.publisher.PublishSystem(mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      name,
		Reason:     reason,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, name, reason),
	})
	if err != nil {
		log.Printf("failed to publish %s event: %v", name, err)
	} else {
		log.Printf("published %s event", name)
	}
}

// observer feeds written events into the status tracker and refreshes the
// broker connection state alongside.
type observer struct {
	tracker *status.Tracker
	conn    mqtt.ConnectionStatus
}

func (o observer) Observe(e event.Event) {
	o.tracker.Observe(e)
	if o.conn != nil {
		o.tracker.SetMQTTConnected(o.conn.IsConnected())
	}
}

func openHardware(o options) (rig.Hardware, error) {
	wheel, err := gpio.NewRealInput(o.chip, o.pinWheel)
	if err != nil {
		return rig.Hardware{}, fmt.Errorf("init wheel pin: %w", err)
	}
	door, err := gpio.NewRealInput(o.chip, o.pinDoor)
	if err != nil {
		wheel.Close()
		return rig.Hardware{}, fmt.Errorf("init door pin: %w", err)
	}
	pump, err := gpio.NewRealOutput(o.chip, o.pinPump)
	if err != nil {
		err = errors.Join(fmt.Errorf("init pump pin: %w", err), wheel.Close(), door.Close())
		return rig.Hardware{}, err
	}
	return rig.Hardware{Wheel: wheel, Door: door, Pump: pump}, nil
}

func printState(o options) error {
	for _, pin := range []struct {
		name string
		num  int
	}{{"Wheel", o.pinWheel}, {"Door", o.pinDoor}} {
		in, err := gpio.NewRealInput(o.chip, pin.num)
		if err != nil {
			return fmt.Errorf("init %s pin: %w", pin.name, err)
		}
		high, err := in.Read()
		in.Close()
		if err != nil {
			return fmt.Errorf("read %s pin: %w", pin.name, err)
		}
		fmt.Printf("%s: %s\n", pin.name, levelString(high))
	}
	return nil
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}

func levelString(high bool) string {
	if high {
		return "HIGH"
	}
	return "LOW"
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func defaultRigID() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "rig"
	}
	return h
}
