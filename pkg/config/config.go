// Package config holds the parameter file for a hemisphere scan run.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/golang/geo/r3"
)

const DefaultConfigFile = "hemiscan.json"

// FailurePolicy decides what happens after a viewpoint cannot be reached.
type FailurePolicy string

const (
	// FailureSkip logs the failed viewpoint and continues with the next one.
	FailureSkip FailurePolicy = "skip"
	// FailureAbort stops the run at the first failed viewpoint.
	FailureAbort FailurePolicy = "abort"
)

// XYZ is a point or direction in millimeters, with lowercase JSON keys for
// the parameter file.
type XYZ struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Vector converts to the vector type used by the geometry code.
func (p XYZ) Vector() r3.Vector {
	return r3.Vector{X: p.X, Y: p.Y, Z: p.Z}
}

// Config is the full parameter set, loaded once and passed explicitly.
type Config struct {
	Hemisphere HemisphereConfig `json:"hemisphere"`
	Robot      RobotConfig      `json:"robot"`
	Run        RunConfig        `json:"run"`
	Viz        VizConfig        `json:"viz"`
}

// HemisphereConfig describes the viewing hemisphere and its sampling density.
type HemisphereConfig struct {
	RadiusMM     float64 `json:"radius_mm"`
	Center       XYZ     `json:"center"`
	Level        int     `json:"level"`
	Axis         XYZ     `json:"axis"`
	MinElevation float64 `json:"min_elevation"`
}

// RobotConfig identifies the machine and the resources used to move the arm.
type RobotConfig struct {
	Address       string `json:"address"`
	APIKeyID      string `json:"api_key_id,omitempty"`
	APIKey        string `json:"api_key,omitempty"`
	Arm           string `json:"arm"`
	MotionService string `json:"motion_service"`
	Frame         string `json:"frame"`
}

// RunConfig controls dispatch behavior: failure policy, retry budget,
// reach tolerances and the collision guard box around the scanned object.
type RunConfig struct {
	OnFailure               FailurePolicy `json:"on_failure"`
	Retries                 int           `json:"retries"`
	SettleMS                int           `json:"settle_ms"`
	PositionToleranceMM     float64       `json:"position_tolerance_mm"`
	OrientationToleranceDeg float64       `json:"orientation_tolerance_deg"`
	GuardBox                XYZ           `json:"guard_box"`
	ReportPath              string        `json:"report_path"`
}

// VizConfig names the sink and topics for the external viewer feed.
type VizConfig struct {
	Sink        string `json:"sink"`
	TargetTopic string `json:"target_topic"`
	SetTopic    string `json:"set_topic"`
}

// Default returns a config with every optional field filled in. The robot
// address and arm name still have to come from the parameter file.
func Default() Config {
	return Config{
		Hemisphere: HemisphereConfig{
			RadiusMM: 300,
			Level:    2,
			Axis:     XYZ{Z: 1},
		},
		Robot: RobotConfig{
			MotionService: "builtin",
			Frame:         "world",
		},
		Run: RunConfig{
			OnFailure:               FailureSkip,
			Retries:                 0,
			SettleMS:                500,
			PositionToleranceMM:     10,
			OrientationToleranceDeg: 5,
			GuardBox:                XYZ{X: 100, Y: 100, Z: 100},
			ReportPath:              "viewpoints_executed.csv",
		},
		Viz: VizConfig{
			TargetTopic: "hemiscan/target",
			SetTopic:    "hemiscan/viewpoints",
		},
	}
}

// Load loads configuration from the default config file.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom loads configuration from a specific file, filling unset optional
// fields with defaults and validating the result.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.Robot.MotionService == "" {
		c.Robot.MotionService = def.Robot.MotionService
	}
	if c.Robot.Frame == "" {
		c.Robot.Frame = def.Robot.Frame
	}
	if c.Run.OnFailure == "" {
		c.Run.OnFailure = def.Run.OnFailure
	}
	if c.Run.PositionToleranceMM == 0 {
		c.Run.PositionToleranceMM = def.Run.PositionToleranceMM
	}
	if c.Run.OrientationToleranceDeg == 0 {
		c.Run.OrientationToleranceDeg = def.Run.OrientationToleranceDeg
	}
	if c.Run.ReportPath == "" {
		c.Run.ReportPath = def.Run.ReportPath
	}
	if c.Viz.TargetTopic == "" {
		c.Viz.TargetTopic = def.Viz.TargetTopic
	}
	if c.Viz.SetTopic == "" {
		c.Viz.SetTopic = def.Viz.SetTopic
	}
}

// Validate checks the parameter combinations that would make a run
// impossible or ambiguous.
func (c *Config) Validate() error {
	if c.Hemisphere.RadiusMM <= 0 {
		return fmt.Errorf("hemisphere radius must be positive, got %v", c.Hemisphere.RadiusMM)
	}
	if c.Hemisphere.Level < 0 {
		return fmt.Errorf("subdivision level must be >= 0, got %d", c.Hemisphere.Level)
	}
	if c.Hemisphere.Axis.Vector().Norm() == 0 {
		return fmt.Errorf("hemisphere axis must be non-zero")
	}
	switch c.Run.OnFailure {
	case FailureSkip, FailureAbort:
	default:
		return fmt.Errorf("on_failure must be %q or %q, got %q", FailureSkip, FailureAbort, c.Run.OnFailure)
	}
	if c.Run.Retries < 0 {
		return fmt.Errorf("retries must be >= 0, got %d", c.Run.Retries)
	}
	return nil
}

// Save saves configuration to the default config file.
func (c *Config) Save() error {
	return c.SaveTo(DefaultConfigFile)
}

// SaveTo saves configuration to a specific file.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Exists returns true if the default config file exists.
func Exists() bool {
	_, err := os.Stat(DefaultConfigFile)
	return err == nil
}
