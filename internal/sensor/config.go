package sensor

import (
	"fmt"
	"time"

	"github.com/riftcore/tracker/internal/calibration"
)

// Config provides a configuration builder for a Sensor, following the same
// defaults-plus-Validate pattern as internal/tracker.Config.
type Config struct {
	// Product selects the EEPROM/flash calibration layout (spec §6).
	Product calibration.ProductID
	// FramePoolSize is the fixed number of capture buffers rotated between
	// stages (spec §3 "a pool of 4 frames").
	FramePoolSize int
	// ExposurePatchWindow is the late-exposure grace window after a
	// start-of-frame (spec §4.6 "Exposure patch"). It is validated but not
	// consulted by the capture pipeline: a new exposure is never patched onto
	// the in-flight frame and always applies from the next start-of-frame.
	ExposurePatchWindow time.Duration
	// BootstrapGravityThresholdDeg is the maximum gravity uncertainty, in
	// degrees, allowed when bootstrapping the camera pose (spec §4.5).
	BootstrapGravityThresholdDeg float64
	// AlignedSearchGravityThresholdDeg is the gravity-uncertainty ceiling
	// below which the deep search uses the gravity-aligned constrained mode
	// (spec §4.3).
	AlignedSearchGravityThresholdDeg float64
	// AlignedSearchMinToleranceDeg is the floor on the aligned search's swing
	// tolerance (spec §4.3 "max(2*sigma_gravity, 10 degrees)").
	AlignedSearchMinToleranceDeg float64
}

// DefaultConfig returns sensible defaults matching the original firmware's
// constants.
func DefaultConfig() *Config {
	return &Config{
		Product:                          calibration.CV1,
		FramePoolSize:                    4,
		ExposurePatchWindow:              5 * time.Millisecond,
		BootstrapGravityThresholdDeg:     15,
		AlignedSearchGravityThresholdDeg: 45,
		AlignedSearchMinToleranceDeg:     10,
	}
}

// Validate checks the configuration for obviously broken values.
func (c *Config) Validate() error {
	if c.FramePoolSize < 1 || c.FramePoolSize > queueCapacity-1 {
		return fmt.Errorf("sensor: FramePoolSize must be in [1, %d], got %d", queueCapacity-1, c.FramePoolSize)
	}
	if c.ExposurePatchWindow < 0 {
		return fmt.Errorf("sensor: ExposurePatchWindow must be non-negative, got %v", c.ExposurePatchWindow)
	}
	if c.BootstrapGravityThresholdDeg <= 0 {
		return fmt.Errorf("sensor: BootstrapGravityThresholdDeg must be positive, got %f", c.BootstrapGravityThresholdDeg)
	}
	if c.AlignedSearchGravityThresholdDeg <= 0 {
		return fmt.Errorf("sensor: AlignedSearchGravityThresholdDeg must be positive, got %f", c.AlignedSearchGravityThresholdDeg)
	}
	if c.AlignedSearchMinToleranceDeg <= 0 {
		return fmt.Errorf("sensor: AlignedSearchMinToleranceDeg must be positive, got %f", c.AlignedSearchMinToleranceDeg)
	}
	return nil
}

// WithFramePoolSize sets the capture buffer pool size.
func (c *Config) WithFramePoolSize(n int) *Config {
	c.FramePoolSize = n
	return c
}

// WithExposurePatchWindow sets the late-exposure grace window.
func (c *Config) WithExposurePatchWindow(d time.Duration) *Config {
	c.ExposurePatchWindow = d
	return c
}
