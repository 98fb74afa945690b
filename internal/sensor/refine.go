package sensor

import (
	"github.com/riftcore/tracker/internal/collab"
	"github.com/riftcore/tracker/internal/rigid"
	"github.com/riftcore/tracker/internal/tracker"
)

// visibilityThresholdDeg bounds how far an LED's surface normal may point
// away from the camera before it is excluded from relabeling (spec §4.4
// step 2, "orientation to the camera exceeds a visibility threshold").
const visibilityThresholdDeg = 70

// refineAndSubmit implements spec §4.4: given a camera-relative candidate
// pose for devID, invalidate/relabel/PnP-refine/relabel/rescore, and on
// success compose into world frame, undo the fusion-to-model offset and
// (for the HMD) the axis mirror, and submit to the device's filter.
func (s *Sensor) refineAndSubmit(f *Frame, devID int, candidate rigid.Pose) {
	st := &f.Devices[devID]

	if f.Blobs != nil {
		invalidateLabels(f.Blobs, devID)
		if s.labeler != nil {
			s.labeler.MarkMatchingBlobs(candidate, f.Blobs.Blobs, devID, s.intrinsics, visibilityThresholdDeg)
		}
	}

	if s.pnp != nil {
		if refined, ok := s.pnp.EstimateInitialPose(f.Blobs.Blobs, devID, s.intrinsics, candidate); ok {
			candidate = refined
		}
	}

	if f.Blobs != nil && s.labeler != nil {
		s.labeler.MarkMatchingBlobs(candidate, f.Blobs.Blobs, devID, s.intrinsics, visibilityThresholdDeg)
	}

	if s.eval == nil {
		st.FinalPose = candidate
		return
	}

	score := s.eval.EvaluatePose(candidate, f.Blobs.Blobs, devID, s.intrinsics)
	st.Score = score
	if !score.Good {
		return
	}

	st.FinalPose = candidate

	if !s.haveCameraPose {
		s.maybeBootstrap(devID, st, candidate)
		if !s.haveCameraPose {
			// Can't express a world pose without a camera pose yet; the
			// observation is scored but not submitted to the filter.
			return
		}
	}

	worldPose := rigid.Compose(candidate, s.cameraPose)
	submitPose := rigid.ApplyInverse(worldPose, s.deviceFusionToModel(devID))
	if devID == tracker.HMDDeviceID {
		submitPose = rigid.MirrorXZ(submitPose)
	}

	if devID >= len(f.Exposure.Devices) {
		return
	}
	rec := f.Exposure.Devices[devID]
	s.tracker.SubmitDevicePose(devID, rec.DeviceTime, submitPose, rec.FusionSlotID)
	st.FoundDevicePose = true

	if s.watcher != nil {
		s.watcher.UpdateLabels(f.Blobs, devID)
	}
}

// invalidateLabels clears devID's blobs back to unlabeled, retaining the
// outgoing label on PrevDeviceID for continuity (spec §4.4 step 1).
func invalidateLabels(obs *collab.Observation, devID int) {
	for i := range obs.Blobs {
		if obs.Blobs[i].DeviceID == devID {
			obs.Blobs[i].PrevDeviceID = devID
			obs.Blobs[i].DeviceID = collab.NoDevice
		}
	}
}
