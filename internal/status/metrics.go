package status

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/behavior-rig/internal/event"
)

// Collector exposes a Tracker as Prometheus metrics. Values are read from a
// fresh Snapshot on every scrape.
type Collector struct {
	tracker *Tracker

	wheelRevs   *prometheus.Desc
	doorOpens   *prometheus.Desc
	pumpRuns    *prometheus.Desc
	rewards     *prometheus.Desc
	images      *prometheus.Desc
	errors      *prometheus.Desc
	pumpOn      *prometheus.Desc
	rewardPhase *prometheus.Desc
	running     *prometheus.Desc
	mqtt        *prometheus.Desc
	elapsed     *prometheus.Desc
}

// NewCollector creates a Collector labelled with the tracker's rig ID.
func NewCollector(t *Tracker) *Collector {
	labels := prometheus.Labels{"rig": t.Snapshot().Config.RigID}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc("behavior_rig_"+name, help, nil, labels)
	}
	return &Collector{
		tracker:     t,
		wheelRevs:   desc("wheel_revolutions_total", "Debounced rising wheel transitions."),
		doorOpens:   desc("door_openings_total", "Debounced rising door transitions."),
		pumpRuns:    desc("pump_runs_total", "Times the reward pump was switched on."),
		rewards:     desc("reward_phases_total", "Reward phases entered."),
		images:      desc("images_shown_total", "Stimulus images shown, including blanks."),
		errors:      desc("errors_total", "Error records written to the results file."),
		pumpOn:      desc("pump_on", "1 while the reward pump is running."),
		rewardPhase: desc("reward_phase", "1 while in a Reward phase."),
		running:     desc("running", "1 until the run terminates."),
		mqtt:        desc("mqtt_connected", "1 while the MQTT broker connection is up."),
		elapsed:     desc("elapsed_seconds", "Experiment time of the latest event."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.wheelRevs, c.doorOpens, c.pumpRuns, c.rewards, c.images, c.errors,
		c.pumpOn, c.rewardPhase, c.running, c.mqtt, c.elapsed,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.tracker.Snapshot()

	counter := func(d *prometheus.Desc, v int) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v))
	}
	gauge := func(d *prometheus.Desc, v float64) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v)
	}

	counter(c.wheelRevs, s.Counts.WheelRevolutions)
	counter(c.doorOpens, s.Counts.DoorOpenings)
	counter(c.pumpRuns, s.Counts.PumpRuns)
	counter(c.rewards, s.Counts.RewardPhases)
	counter(c.images, s.Counts.Images)
	counter(c.errors, s.Counts.Errors)
	gauge(c.pumpOn, bool01(s.Pump))
	gauge(c.rewardPhase, bool01(s.Phase == event.PhaseReward))
	gauge(c.running, bool01(s.Running))
	gauge(c.mqtt, bool01(s.MQTTConnected))
	gauge(c.elapsed, s.Elapsed)
}

func bool01(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
