package sensor

import (
	"github.com/riftcore/tracker/internal/riftlog"
	"github.com/riftcore/tracker/internal/rigid"
)

// bootstrapNormalizationThreshold is the minimum quaternion norm required
// of the HMD's capture-time orientation before it is trusted for bootstrap
// (spec §4.5, "|q| > 0.9").
const bootstrapNormalizationThreshold = 0.9

// maybeBootstrap installs the camera->world pose from the first
// trustworthy HMD observation (spec §4.5). No-op for any device but the
// HMD, or if the gating conditions are not met.
func (s *Sensor) maybeBootstrap(devID int, st *DeviceState, candidate rigid.Pose) {
	if devID != 0 {
		return
	}
	if st.GravityErrorDeg >= s.cfg.BootstrapGravityThresholdDeg {
		return
	}
	if rigid.Length(st.CapturePose.Orient) <= bootstrapNormalizationThreshold {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.haveCameraPose {
		return
	}
	s.cameraPose = rigid.Compose(rigid.Inverse(candidate), st.CapturePose)
	s.haveCameraPose = true
	riftlog.Opsf("[sensor %d] camera pose bootstrapped from HMD observation", s.id)
}

// deviceFusionToModel fetches devID's fusion-to-model offset from the
// tracker, defaulting to identity if the device is unknown.
func (s *Sensor) deviceFusionToModel(devID int) rigid.Pose {
	d := s.tracker.Device(devID)
	if d == nil {
		return rigid.Identity()
	}
	return d.FusionToModel
}
