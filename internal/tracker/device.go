package tracker

import (
	"sync"
	"time"

	"github.com/riftcore/tracker/internal/collab"
	"github.com/riftcore/tracker/internal/riftlog"
	"github.com/riftcore/tracker/internal/rigid"
)

// maxPendingIMUObservations bounds the debug IMU batching buffer (SPEC_FULL
// §11, "RIFT_MAX_PENDING_IMU_OBSERVATIONS").
const maxPendingIMUObservations = 32

// HMDDeviceID is the reserved id for the head-mounted display (spec §3,
// "id 0 is the HMD").
const HMDDeviceID = 0

// imuSample is one raw IMU observation buffered for debug output.
type imuSample struct {
	DeviceTimeNS uint64
	AngVel       rigid.Vec3
	Accel        rigid.Vec3
	Mag          rigid.Vec3
}

// smoothedPose is the output of the device's exponential-smoothing filter
// (spec §4.8), cached between view_pose/model_pose calls.
type smoothedPose struct {
	valid        bool
	deviceTimeNS uint64
	pose         rigid.Pose
	vel, accel   rigid.Vec3
}

// Device is a single tracked device: HMD (id 0) or a controller (spec §3
// "Tracked Device"). Its mutex guards the filter, delay-slot ring, pending
// IMU buffer, last-observed pose and output smoother, per spec §5's
// per-device lock scope.
type Device struct {
	ID     int
	Filter collab.FusionFilter

	// FusionToModel is the rigid offset from the filter's reference frame to
	// the LED constellation's origin (spec §3, glossary "Fusion-to-model").
	FusionToModel rigid.Pose

	mu sync.Mutex

	clock        deviceClock
	lastPose     rigid.Pose
	lastPoseTime time.Time
	havePose     bool

	slots *delaySlotRing

	pendingIMU []imuSample

	smoother smoothedPose

	poseLostThreshold time.Duration
	metadataSink      collab.MetadataSink
}

// newDevice constructs a device with its own K-slot delay ring.
func newDevice(id int, filter collab.FusionFilter, numSlots int, poseLostThreshold time.Duration, sink collab.MetadataSink) *Device {
	return &Device{
		ID:                id,
		Filter:            filter,
		FusionToModel:     rigid.Identity(),
		slots:             newDelaySlotRing(numSlots),
		pendingIMU:        make([]imuSample, 0, maxPendingIMUObservations),
		poseLostThreshold: poseLostThreshold,
		metadataSink:      sink,
	}
}

// IMUUpdate folds a raw IMU sample into the device clock and filter, and
// buffers it for debug output (SPEC_FULL §11).
func (d *Device) IMUUpdate(rawMicros uint32, dt float64, angVel, accel, mag rigid.Vec3) uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	deviceTimeNS := d.clock.Advance(rawMicros)
	if d.Filter != nil {
		d.Filter.IMUUpdate(deviceTimeNS, dt, angVel, accel, mag)
	}
	d.bufferIMULocked(imuSample{DeviceTimeNS: deviceTimeNS, AngVel: angVel, Accel: accel, Mag: mag})
	return deviceTimeNS
}

func (d *Device) bufferIMULocked(s imuSample) {
	d.pendingIMU = append(d.pendingIMU, s)
	if len(d.pendingIMU) >= maxPendingIMUObservations {
		d.flushPendingIMULocked()
	}
}

// flushPendingIMU drains the pending IMU buffer to the metadata debug sink.
// Called for every device on an exposure update and for a device whose pose
// is submitted; the buffer also flushes itself when it fills (SPEC_FULL
// §11). The frame-start and frame-release hooks do not flush it.
func (d *Device) flushPendingIMU() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flushPendingIMULocked()
}

func (d *Device) flushPendingIMULocked() {
	if len(d.pendingIMU) == 0 {
		return
	}
	if d.metadataSink != nil && d.metadataSink.Connected() {
		batch := append([]imuSample(nil), d.pendingIMU...)
		if err := d.metadataSink.PushJSON(time.Now(), struct {
			DeviceID int         `json:"device_id"`
			Samples  []imuSample `json:"imu_samples"`
		}{DeviceID: d.ID, Samples: batch}); err != nil {
			riftlog.Diagf("[device %d] failed to push IMU debug batch: %v", d.ID, err)
		}
	}
	d.pendingIMU = d.pendingIMU[:0]
}

// updateExposure allocates a delay slot for this device's current state and
// records the exposure record's fields (spec §4.7 update_exposure).
func (d *Device) updateExposure(deviceTimeNS uint64) ExposureRecord {
	d.mu.Lock()
	defer d.mu.Unlock()

	slotID := -1
	var pose rigid.Pose
	var posErr, rotErr rigid.Vec3
	if d.Filter != nil {
		pose, _, _, posErr, rotErr = d.Filter.GetPoseAt(deviceTimeNS)
		slotID = d.slots.allocate(deviceTimeNS)
		if slotID >= 0 {
			d.Filter.PrepareDelaySlot(deviceTimeNS, slotID)
		} else {
			riftlog.Opsf("[device %d] no free delay slot at exposure t=%d", d.ID, deviceTimeNS)
		}
	}
	return ExposureRecord{
		DeviceTime:   deviceTimeNS,
		Pose:         pose,
		PosError:     posErr,
		RotError:     rotErr,
		FusionSlotID: slotID,
	}
}

// claimSlot attempts to claim rec's fusion slot; if the claim fails the
// slot is lost and the record's FusionSlotID is cleared to -1 in place
// (spec §4.7 claim).
func (d *Device) claimSlot(rec *ExposureRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if rec.FusionSlotID < 0 {
		return
	}
	if !d.slots.claim(rec.FusionSlotID, rec.DeviceTime) {
		rec.FusionSlotID = -1
	}
}

// releaseSlot releases a previously claimed slot, discarding the filter's
// backing snapshot once the use count reaches zero (spec §4.7 release).
func (d *Device) releaseSlot(slotID int) {
	if slotID < 0 {
		return
	}
	d.mu.Lock()
	shouldFree := d.slots.release(slotID)
	filter := d.Filter
	d.mu.Unlock()
	if shouldFree && filter != nil {
		filter.ReleaseDelaySlot(slotID)
	}
}

// SubmitPose fuses an observed camera-relative pose, already composed into
// world frame and offset-corrected, into the device's filter at the given
// delay slot (spec §4.4 step 5).
func (d *Device) SubmitPose(deviceTimeNS uint64, pose rigid.Pose, slotID int) {
	d.mu.Lock()
	d.lastPose = pose
	d.lastPoseTime = time.Now()
	d.havePose = true
	filter := d.Filter
	d.mu.Unlock()

	if filter != nil && slotID >= 0 {
		filter.PoseUpdate(deviceTimeNS, pose, slotID)
	}
}

// ViewPose returns the smoothed pose for external consumption (spec §4.8
// view_pose): queries the filter if device-time has advanced, applies
// exponential smoothing, and freezes position (but not orientation) once
// the last observed pose exceeds poseLostThreshold in age.
func (d *Device) ViewPose(alpha float64) (rigid.Pose, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.outputPoseLocked(alpha, rigid.Identity())
}

// ModelPose returns the pose in the sensor-facing model frame: ViewPose
// composed with FusionToModel and, for the HMD, mirrored about XZ (spec
// §4.8 model_pose, SPEC_FULL §11 symmetric mirror on read-back).
func (d *Device) ModelPose(alpha float64) (rigid.Pose, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	pose, ok := d.outputPoseLocked(alpha, d.FusionToModel)
	if !ok {
		return pose, false
	}
	if d.ID == HMDDeviceID {
		pose = rigid.MirrorXZ(pose)
	}
	return pose, true
}

func (d *Device) outputPoseLocked(alpha float64, modelOffset rigid.Pose) (rigid.Pose, bool) {
	if d.Filter == nil {
		return rigid.Identity(), false
	}
	deviceTimeNS := d.clock.Last()
	if deviceTimeNS != d.smoother.deviceTimeNS || !d.smoother.valid {
		pose, vel, accel, _, _ := d.Filter.GetPoseAt(deviceTimeNS)

		if d.havePose && time.Since(d.lastPoseTime) > d.poseLostThreshold {
			// Position tracking lost: freeze position, let orientation continue
			// integrating from IMU (spec §4.8, end-to-end scenario 6).
			if d.smoother.valid {
				pose.Pos = d.smoother.pose.Pos
			}
			vel, accel = rigid.Vec3{}, rigid.Vec3{}
		}

		if d.smoother.valid {
			pose = expSmoothPose(d.smoother.pose, pose, alpha)
		}

		d.smoother = smoothedPose{valid: true, deviceTimeNS: deviceTimeNS, pose: pose, vel: vel, accel: accel}
	}

	return rigid.Compose(modelOffset, d.smoother.pose), true
}

// expSmoothPose blends prev and next with weight alpha on next (standard
// single-pole exponential smoothing applied independently to position and
// orientation).
func expSmoothPose(prev, next rigid.Pose, alpha float64) rigid.Pose {
	pos := prev.Pos.Scale(1 - alpha).Add(next.Pos.Scale(alpha))
	orient := rigid.Lerp(prev.Orient, next.Orient, alpha)
	return rigid.Pose{Orient: orient, Pos: pos}
}
