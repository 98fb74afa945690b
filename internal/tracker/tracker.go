// Package tracker implements the central Tracker singleton (spec §4.6):
// device registry, exposure publication, and delay-slot bookkeeping.
package tracker

import (
	"fmt"
	"sync"
	"time"

	"github.com/riftcore/tracker/internal/collab"
	"github.com/riftcore/tracker/internal/riftlog"
	"github.com/riftcore/tracker/internal/rigid"
)

// sensorHandle is the narrow callback surface the Tracker uses to notify
// registered sensors, avoiding an import cycle back to package sensor (spec
// §9 "sensors hold only a non-owning handle back to the tracker" — the
// inverse direction here is equally narrow).
type sensorHandle interface {
	OnExposureUpdated(info *ExposureInfo)
	OnDeviceAdded(id int)
}

// Tracker is the singleton coordinator described in spec §2/§4.6. Exactly
// one Tracker exists per session; it is created and destroyed explicitly
// (spec §9 "Global state").
type Tracker struct {
	cfg *Config

	mu       sync.Mutex
	devices  []*Device
	sensors  []sensorHandle
	exposure ExposureInfo

	smoothAlpha float64
}

// New constructs a Tracker. Construction errors are returned rather than
// panicking (SPEC_FULL §7).
func New(cfg *Config) (*Tracker, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("tracker: invalid config: %w", err)
	}
	return &Tracker{
		cfg:         cfg,
		smoothAlpha: 0.3,
	}, nil
}

// RegisterDevice allocates a device slot with its filter instance and
// metadata sink, then broadcasts the new device to every sensor (spec
// §4.6 "On device registration").
func (t *Tracker) RegisterDevice(filter collab.FusionFilter, sink collab.MetadataSink) (*Device, error) {
	t.mu.Lock()
	if len(t.devices) >= t.cfg.MaxTrackedDevices {
		t.mu.Unlock()
		return nil, fmt.Errorf("tracker: device registry full (max %d)", t.cfg.MaxTrackedDevices)
	}
	id := len(t.devices)
	dev := newDevice(id, filter, t.cfg.NumDelaySlots, t.cfg.PoseLostThreshold, sink)
	t.devices = append(t.devices, dev)
	sensors := append([]sensorHandle(nil), t.sensors...)
	t.mu.Unlock()

	for _, s := range sensors {
		s.OnDeviceAdded(id)
	}
	return dev, nil
}

// addSensor registers a sensor handle for exposure broadcast. Unexported:
// called only from package sensor's constructor via AttachSensor.
func (t *Tracker) addSensor(h sensorHandle) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.sensors) >= t.cfg.MaxSensors {
		return fmt.Errorf("tracker: sensor registry full (max %d)", t.cfg.MaxSensors)
	}
	t.sensors = append(t.sensors, h)
	return nil
}

// AttachSensor is the public entry point package sensor calls from its
// constructor to register itself for exposure broadcasts.
func (t *Tracker) AttachSensor(h sensorHandle) error {
	return t.addSensor(h)
}

// CurrentExposure returns a copy of the most recently published exposure
// info, or a zero-value (Valid() == false) ExposureInfo before the first
// edge (spec §4.2 SOF step 1).
func (t *Tracker) CurrentExposure() *ExposureInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.exposure.clone()
}

// UpdateExposure is called when an LED-phase edge is detected on the HMD
// (spec §4.6 "Exposure update"). If count has not advanced since the last
// call it is a duplicate edge and ignored.
func (t *Tracker) UpdateExposure(hmdDeviceTimeNS uint64, hmdIMUTimeNS uint64, count uint16, phase int) {
	t.mu.Lock()
	if t.exposure.Valid() && count == t.exposure.Count {
		t.mu.Unlock()
		return
	}

	skew := int64(hmdDeviceTimeNS) - int64(hmdIMUTimeNS)
	if skew < -t.cfg.ExposureSkewWarnThreshold.Nanoseconds() {
		riftlog.Opsf("exposure clock skew: exposure ts %dns trails IMU ts %dns by %dns", hmdDeviceTimeNS, hmdIMUTimeNS, -skew)
	}

	devices := append([]*Device(nil), t.devices...)
	records := make([]ExposureRecord, len(devices))
	t.mu.Unlock()

	for i, d := range devices {
		records[i] = d.updateExposure(hmdDeviceTimeNS)
		d.flushPendingIMU()
	}

	t.mu.Lock()
	t.exposure = ExposureInfo{
		LocalTimestamp: time.Now(),
		HMDTimestamp:   hmdDeviceTimeNS,
		Count:          count,
		Phase:          phase,
		NumDevices:     len(devices),
		Devices:        records,
	}
	info := t.exposure.clone()
	sensors := append([]sensorHandle(nil), t.sensors...)
	t.mu.Unlock()

	for _, s := range sensors {
		s.OnExposureUpdated(info)
	}
}

// PatchExposure swaps a frame's exposure for a newer one (spec §4.6
// "Exposure patch"): releases the old per-device slots the frame had
// claimed and claims the new exposure's slots in their place. Returns the
// new exposure's per-device records with claims applied. It applies no time
// window itself, and package sensor does not call it.
func (t *Tracker) PatchExposure(oldInfo, newInfo *ExposureInfo) []ExposureRecord {
	t.mu.Lock()
	devices := append([]*Device(nil), t.devices...)
	t.mu.Unlock()

	if oldInfo != nil {
		for i, d := range devices {
			if i < len(oldInfo.Devices) {
				d.releaseSlot(oldInfo.Devices[i].FusionSlotID)
			}
		}
	}

	out := append([]ExposureRecord(nil), newInfo.Devices...)
	for i, d := range devices {
		if i < len(out) {
			d.claimSlot(&out[i])
		}
	}
	return out
}

// ClaimFrame performs the frame_start accounting hook: claims each device's
// slot referenced in info (spec §4.6 "Frame lifecycle hooks").
func (t *Tracker) ClaimFrame(info *ExposureInfo) {
	if info == nil {
		return
	}
	t.mu.Lock()
	devices := append([]*Device(nil), t.devices...)
	t.mu.Unlock()
	for i, d := range devices {
		if i < len(info.Devices) {
			d.claimSlot(&info.Devices[i])
		}
	}
}

// ReleaseFrame performs the frame_release accounting hook (spec §4.6):
// releases each device's claimed slot for info. Safe to call on a nil or
// never-populated info.
func (t *Tracker) ReleaseFrame(info *ExposureInfo) {
	if info == nil || !info.Valid() {
		return
	}
	t.mu.Lock()
	devices := append([]*Device(nil), t.devices...)
	t.mu.Unlock()
	for i, d := range devices {
		if i < len(info.Devices) {
			d.releaseSlot(info.Devices[i].FusionSlotID)
		}
	}
}

// Device returns the device with the given id, or nil if out of range.
func (t *Tracker) Device(id int) *Device {
	t.mu.Lock()
	defer t.mu.Unlock()
	if id < 0 || id >= len(t.devices) {
		return nil
	}
	return t.devices[id]
}

// NumDevices returns the current device count.
func (t *Tracker) NumDevices() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.devices)
}

// ViewPose returns the smoothed pose for device id, for external consumers
// (spec §4.8 view_pose).
func (t *Tracker) ViewPose(id int) (rigid.Pose, bool) {
	d := t.Device(id)
	if d == nil {
		return rigid.Identity(), false
	}
	return d.ViewPose(t.smoothAlpha)
}

// ModelPose returns the sensor-facing pose for device id (spec §4.8
// model_pose). Exposure records are not built from it: Device.updateExposure
// stores the filter's unsmoothed pose at the exposure time, without the
// fusion-to-model offset or the HMD mirror.
func (t *Tracker) ModelPose(id int) (rigid.Pose, bool) {
	d := t.Device(id)
	if d == nil {
		return rigid.Identity(), false
	}
	return d.ModelPose(t.smoothAlpha)
}

// SubmitDevicePose fuses a refined observation into device id's filter at
// the given delay slot (spec §4.4 step 5 final submission).
func (t *Tracker) SubmitDevicePose(id int, deviceTimeNS uint64, pose rigid.Pose, slotID int) {
	d := t.Device(id)
	if d == nil {
		return
	}
	d.SubmitPose(deviceTimeNS, pose, slotID)
	d.flushPendingIMU()
}
