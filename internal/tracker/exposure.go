package tracker

import "time"

// ExposureInfo is produced by the Tracker on every LED phase change (spec
// §3 "Exposure Info"). The tracker's own copy is replaced, never mutated:
// CurrentExposure hands each caller a separate clone, and a sensor stamps
// that clone onto its frame, where ClaimFrame may clear a record's
// FusionSlotID in place.
type ExposureInfo struct {
	LocalTimestamp time.Time
	HMDTimestamp   uint64 // device-time ns, HMD-reported
	Count          uint16 // 16-bit exposure counter, wraps
	Phase          int    // LED pattern phase index 0..P-1
	NumDevices     int
	Devices        []ExposureRecord // one per tracked device, index-aligned with Tracker.devices
}

// Valid reports whether this ExposureInfo has ever been populated by the
// tracker (the zero value, used before the first exposure edge, is not).
func (e *ExposureInfo) Valid() bool {
	return e != nil && !e.LocalTimestamp.IsZero()
}

// clone returns a deep-enough copy of e for handing to a sensor: the
// Devices slice is copied so the sensor's frame-local snapshot is immune to
// later tracker mutation.
func (e *ExposureInfo) clone() *ExposureInfo {
	if e == nil {
		return nil
	}
	out := *e
	out.Devices = append([]ExposureRecord(nil), e.Devices...)
	return &out
}
