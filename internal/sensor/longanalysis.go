package sensor

import (
	"time"

	"github.com/riftcore/tracker/internal/collab"
	"github.com/riftcore/tracker/internal/riftlog"
	"github.com/riftcore/tracker/internal/rigid"
)

// worldGravity is the constant gravity direction in world coordinates,
// used to decompose a prior orientation into swing-about-gravity and twist
// for the aligned search (spec §4.3).
var worldGravity = rigid.Vec3{X: 0, Y: -1, Z: 0}

// longAnalysisLoop runs the deep combinatorial correspondence search (spec
// §4.2 "Long-analysis worker").
func (s *Sensor) longAnalysisLoop() {
	defer s.wg.Done()
	for {
		f := s.waitAndPop(s.long)
		if f == nil {
			return // shutdown
		}

		s.mu.Lock()
		s.longBusy = true
		s.mu.Unlock()

		f.Timeline.LongStart = time.Now()
		s.runLongAnalysis(f)
		f.Timeline.LongDone = time.Now()

		s.mu.Lock()
		s.longBusy = false
		released := s.releaseFrameLocked(f)
		s.mu.Unlock()

		// Outside s.mu: tracker accounting hooks must never run under the
		// sensor lock (spec §5/§9).
		s.tracker.ReleaseFrame(released)
	}
}

// runLongAnalysis executes the two-pass deep correspondence search of spec
// §4.3 over every device not already placed by the fast-analysis pass.
func (s *Sensor) runLongAnalysis(f *Frame) {
	if s.search == nil || f.Blobs == nil {
		return
	}
	s.search.SetBlobs(f.Blobs.Blobs)

	acceptedThisCycle := make(map[int]bool)

	pass0 := collab.StopForStrongMatch | collab.ShallowSearch
	pass1 := collab.DeepSearch

	for pass, flags := range []collab.SearchFlags{pass0, pass1} {
		for devID := range f.Devices {
			st := &f.Devices[devID]
			if st.FoundDevicePose {
				continue
			}
			devFlags := flags
			if devID == HMDDeviceID {
				devFlags |= collab.MatchAllBlobs
			}

			candidate, score, ok := s.searchForDevice(devID, st, devFlags)
			if !ok {
				continue
			}
			st.Score = score
			s.refineAndSubmit(f, devID, candidate)
			if st.FoundDevicePose {
				f.LongAnalysisFoundNewBlobs = true
				acceptedThisCycle[devID] = true
				riftlog.Diagf("[sensor %d] frame %d device %d accepted in long pass %d", s.id, f.ID, devID, pass)
			}
		}

		// A later device's acceptance in this same pass may have claimed
		// blobs an earlier acceptance relied on; rescore and, if it fell
		// below good, re-search shallow (spec §4.3).
		for devID := range acceptedThisCycle {
			st := &f.Devices[devID]
			if !st.FoundDevicePose || s.eval == nil {
				continue
			}
			rescored := s.eval.EvaluatePose(st.FinalPose, f.Blobs.Blobs, devID, s.intrinsics)
			if rescored.Good {
				continue
			}
			st.FoundDevicePose = false
			shallowFlags := collab.StopForStrongMatch | collab.ShallowSearch
			if devID == HMDDeviceID {
				shallowFlags |= collab.MatchAllBlobs
			}
			if candidate, score, ok := s.searchForDevice(devID, st, shallowFlags); ok {
				st.Score = score
				s.refineAndSubmit(f, devID, candidate)
			}
		}
	}
}

// searchForDevice dispatches to the gravity-aligned or unconstrained search
// depending on whether a camera pose is known and the device's gravity
// uncertainty is low enough (spec §4.3).
func (s *Sensor) searchForDevice(devID int, st *DeviceState, flags collab.SearchFlags) (rigid.Pose, collab.PoseScore, bool) {
	if s.haveCameraPose && st.GravityErrorDeg < s.cfg.AlignedSearchGravityThresholdDeg {
		swing, _ := rigid.DecomposeSwingTwist(st.CapturePose.Orient, worldGravity)
		toleranceDeg := rigid.Max(2*st.GravityErrorDeg, s.cfg.AlignedSearchMinToleranceDeg)
		return s.search.FindOnePoseAligned(devID, flags, st.CapturePose, worldGravity, swing, rigid.DegToRad(toleranceDeg))
	}
	return s.search.FindOnePose(devID, flags, st.CapturePose)
}
