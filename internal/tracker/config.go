package tracker

import (
	"fmt"
	"time"
)

// Config provides a configuration builder for the Tracker, following the
// same defaults-plus-Validate pattern used throughout this module.
type Config struct {
	// NumDelaySlots is the per-device delay-slot ring size K (spec §4.1/§4.7).
	NumDelaySlots int
	// PoseLostThreshold is how long a device's last observed pose may age
	// before view_pose freezes position (spec §4.8).
	PoseLostThreshold time.Duration
	// MaxTrackedDevices bounds the device vector (spec §4.6, "fixed upper bound").
	MaxTrackedDevices int
	// MaxSensors bounds the sensor vector.
	MaxSensors int
	// ExposureSkewWarnThreshold is how far an HMD exposure timestamp may lag
	// the IMU timestamp before logging a clock-skew warning (SPEC_FULL §11).
	ExposureSkewWarnThreshold time.Duration
}

// DefaultConfig returns sensible defaults matching the original firmware's
// constants (K=3 delay slots, 500ms pose-lost threshold).
func DefaultConfig() *Config {
	return &Config{
		NumDelaySlots:             3,
		PoseLostThreshold:         500 * time.Millisecond,
		MaxTrackedDevices:         4,
		MaxSensors:                4,
		ExposureSkewWarnThreshold: 1500 * time.Microsecond,
	}
}

// Validate checks the configuration for obviously broken values.
func (c *Config) Validate() error {
	if c.NumDelaySlots < 1 {
		return fmt.Errorf("tracker: NumDelaySlots must be >= 1, got %d", c.NumDelaySlots)
	}
	if c.PoseLostThreshold <= 0 {
		return fmt.Errorf("tracker: PoseLostThreshold must be positive, got %v", c.PoseLostThreshold)
	}
	if c.MaxTrackedDevices < 1 {
		return fmt.Errorf("tracker: MaxTrackedDevices must be >= 1, got %d", c.MaxTrackedDevices)
	}
	if c.MaxSensors < 1 {
		return fmt.Errorf("tracker: MaxSensors must be >= 1, got %d", c.MaxSensors)
	}
	if c.ExposureSkewWarnThreshold <= 0 {
		return fmt.Errorf("tracker: ExposureSkewWarnThreshold must be positive, got %v", c.ExposureSkewWarnThreshold)
	}
	return nil
}

// WithNumDelaySlots sets K, the per-device delay-slot ring size.
func (c *Config) WithNumDelaySlots(k int) *Config {
	c.NumDelaySlots = k
	return c
}

// WithPoseLostThreshold sets the position-freeze threshold.
func (c *Config) WithPoseLostThreshold(d time.Duration) *Config {
	c.PoseLostThreshold = d
	return c
}

// WithMaxTrackedDevices sets the device-vector upper bound.
func (c *Config) WithMaxTrackedDevices(n int) *Config {
	c.MaxTrackedDevices = n
	return c
}

// WithMaxSensors sets the sensor-vector upper bound.
func (c *Config) WithMaxSensors(n int) *Config {
	c.MaxSensors = n
	return c
}
