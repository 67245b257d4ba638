package main

import (
	"fmt"
	"strings"
	"time"
)

// Config holds parameters for the simulator.
type Config struct {
	Broker       string
	TopicPattern string
	Trains       int
	RunsFile     string
	Interval     time.Duration
	Duration     time.Duration
	MaxDrift     int
	DropRate     float64
	Verbose      bool
}

// Validate checks flag combinations.
func (c Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("broker required")
	}
	if !strings.Contains(c.TopicPattern, "%d") {
		return fmt.Errorf("topic pattern %q must contain %%d for the train id", c.TopicPattern)
	}
	if c.RunsFile == "" && c.Trains <= 0 {
		return fmt.Errorf("either -trains or -runs-file is required")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}
	if c.DropRate < 0 || c.DropRate >= 1 {
		return fmt.Errorf("drop rate must be within [0, 1)")
	}
	return nil
}
