// Package protocol holds the immutable experiment configuration handed to the
// rig at start. A Protocol is validated once at construction and never
// mutated afterwards.
package protocol

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Protocol is the validated configuration for one run.
type Protocol struct {
	// ControlImages are shown outside reward phases. May be empty, in which
	// case the display is blanked during control.
	ControlImages []string
	// RewardImages are cycled during reward phases. Never empty.
	RewardImages []string
	// RandomRewardOrder selects a random reward image each frame instead of
	// cycling through RewardImages in order.
	RandomRewardOrder bool

	// MinRevolutions and MaxRevolutions bound the wheel revolution target
	// drawn at the start of every control phase.
	MinRevolutions int
	MaxRevolutions int

	MaxRewardDuration time.Duration
	PumpOnDuration    time.Duration
	// WheelInterval is the longest gap between wheel revolutions that still
	// counts towards the same run of revolutions.
	WheelInterval     time.Duration
	RewardFramePeriod time.Duration
	// ExperimentDuration ends the run when elapsed.
	ExperimentDuration time.Duration
}

// FieldError reports a protocol field that failed validation.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("protocol: %s: %s", e.Field, e.Reason)
}

// Validate checks every field and returns a *FieldError naming the first
// field that is missing or invalid.
func (p Protocol) Validate() error {
	if len(p.RewardImages) == 0 {
		return &FieldError{Field: "reward_images", Reason: "must not be empty"}
	}
	for _, img := range p.RewardImages {
		if strings.TrimSpace(img) == "" {
			return &FieldError{Field: "reward_images", Reason: "contains an empty name"}
		}
	}
	for _, img := range p.ControlImages {
		if strings.TrimSpace(img) == "" {
			return &FieldError{Field: "control_images", Reason: "contains an empty name"}
		}
	}
	if p.MinRevolutions < 1 {
		return &FieldError{Field: "min_revolutions", Reason: "must be at least 1"}
	}
	if p.MaxRevolutions < p.MinRevolutions {
		return &FieldError{Field: "max_revolutions", Reason: fmt.Sprintf("must be >= min_revolutions (%d)", p.MinRevolutions)}
	}
	positive := []struct {
		name string
		d    time.Duration
	}{
		{"max_reward_duration", p.MaxRewardDuration},
		{"pump_on_duration", p.PumpOnDuration},
		{"wheel_interval", p.WheelInterval},
		{"reward_frame_period", p.RewardFramePeriod},
		{"experiment_duration", p.ExperimentDuration},
	}
	for _, f := range positive {
		if f.d <= 0 {
			return &FieldError{Field: f.name, Reason: "must be greater than 0"}
		}
	}
	return nil
}

// Summary returns human-readable lines describing p, written at the top of
// the results file.
func (p Protocol) Summary() []string {
	order := "cyclic"
	if p.RandomRewardOrder {
		order = "random"
	}
	return []string{
		"control images: [" + strings.Join(p.ControlImages, ", ") + "]",
		"reward images: [" + strings.Join(p.RewardImages, ", ") + "]",
		"reward order: " + order,
		fmt.Sprintf("revolutions: %d-%d", p.MinRevolutions, p.MaxRevolutions),
		"wheel interval: " + p.WheelInterval.String(),
		"max reward duration: " + p.MaxRewardDuration.String(),
		"pump on duration: " + p.PumpOnDuration.String(),
		"reward frame period: " + p.RewardFramePeriod.String(),
		"experiment duration: " + p.ExperimentDuration.String(),
	}
}

// File is the on-disk JSON form of a protocol. Durations are in seconds.
type File struct {
	ControlImages      []string `json:"control_images"`
	RewardImages       []string `json:"reward_images"`
	RandomRewardOrder  bool     `json:"random_reward_order"`
	MinRevolutions     int      `json:"min_revolutions"`
	MaxRevolutions     int      `json:"max_revolutions"`
	MaxRewardDuration  float64  `json:"max_reward_duration"`
	PumpOnDuration     float64  `json:"pump_on_duration"`
	WheelInterval      float64  `json:"wheel_interval"`
	RewardFramePeriod  float64  `json:"reward_frame_period"`
	ExperimentDuration float64  `json:"experiment_duration"`
}

// Protocol converts f and validates the result.
func (f File) Protocol() (Protocol, error) {
	p := Protocol{
		ControlImages:      append([]string(nil), f.ControlImages...),
		RewardImages:       append([]string(nil), f.RewardImages...),
		RandomRewardOrder:  f.RandomRewardOrder,
		MinRevolutions:     f.MinRevolutions,
		MaxRevolutions:     f.MaxRevolutions,
		MaxRewardDuration:  seconds(f.MaxRewardDuration),
		PumpOnDuration:     seconds(f.PumpOnDuration),
		WheelInterval:      seconds(f.WheelInterval),
		RewardFramePeriod:  seconds(f.RewardFramePeriod),
		ExperimentDuration: seconds(f.ExperimentDuration),
	}
	if err := p.Validate(); err != nil {
		return Protocol{}, err
	}
	return p, nil
}

// Load reads and validates a JSON protocol file.
func Load(path string) (Protocol, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Protocol{}, fmt.Errorf("read protocol: %w", err)
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return Protocol{}, fmt.Errorf("parse protocol %s: %w", path, err)
	}
	return f.Protocol()
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
