package sensor

import (
	"time"

	"github.com/riftcore/tracker/internal/collab"
	"github.com/riftcore/tracker/internal/riftlog"
	"github.com/riftcore/tracker/internal/rigid"
	"github.com/riftcore/tracker/internal/tracker"
)

// minBlobsForReacquirePnP is the "remaining blobs whose label still
// identifies this device" threshold at or below which step 4 of the fast-analysis
// worker does not bother attempting PnP (spec §4.2 step 4, "if > 4").
const minBlobsForReacquirePnP = 4

// fastAnalysisLoop runs the cheap reacquisition pass (spec §4.2
// "Fast-analysis worker").
func (s *Sensor) fastAnalysisLoop() {
	defer s.wg.Done()
	for {
		f := s.waitAndPop(s.fast)
		if f == nil {
			return // shutdown
		}
		f.Timeline.FastStart = time.Now()
		s.runFastAnalysis(f)
		f.Timeline.FastDone = time.Now()
		s.pushFrameTelemetry(f)

		s.mu.Lock()
		var released []*tracker.ExposureInfo
		if f.NeedLongAnalysis && !s.longBusy {
			if stale := s.long.rewind(); stale != nil {
				released = append(released, s.releaseFrameLocked(stale))
				riftlog.Diagf("[sensor %d] dropped stale long-queue frame %d for frame %d", s.id, stale.ID, f.ID)
			}
			s.long.push(f)
			s.cond.Broadcast()
		} else {
			released = append(released, s.releaseFrameLocked(f))
		}
		s.mu.Unlock()

		// Tracker accounting hooks must never run while the sensor lock is
		// held (spec §5/§9), so the matching frame_release call for every
		// frame releaseFrameLocked returned to the capture queue happens out
		// here, after s.mu has been released.
		for _, info := range released {
			s.tracker.ReleaseFrame(info)
		}
	}
}

// waitAndPop blocks on the sensor's condition variable until q is non-empty
// or shutdown is requested, returning nil in the latter case.
func (s *Sensor) waitAndPop(q *frameQueue) *Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	for q.len() == 0 && !s.shutdown {
		s.cond.Wait()
	}
	if s.shutdown && q.len() == 0 {
		return nil
	}
	return q.pop()
}

// releaseFrameLocked returns f to the capture queue, resetting its
// per-cycle state, and returns the exposure claim f held so the caller can
// release it with the tracker once s.mu is no longer held (tracker hooks
// must never run under the sensor lock, spec §5/§9). Every frame that
// reaches here claimed its exposure's delay slots at frame_start
// (Sensor.onStartOfFrame -> Tracker.ClaimFrame); this is the matching
// frame_release half of that accounting (spec §4.6, §8 "for every claim
// there is exactly one release"). Must be called with s.mu held.
func (s *Sensor) releaseFrameLocked(f *Frame) *tracker.ExposureInfo {
	s.logReleaseTrace(f)
	exposure := f.Exposure
	f.reset()
	s.capture.push(f)
	return exposure
}

// runFastAnalysis executes the blob extract + quick reacquire pass over f,
// outside the sensor lock (spec §4.2).
func (s *Sensor) runFastAnalysis(f *Frame) {
	if s.watcher == nil {
		return
	}
	phase := 0
	if f.Exposure.Valid() {
		phase = f.Exposure.Phase
	}
	obs, err := s.watcher.Process(f.Image, s.width, s.height, phase)
	f.Timeline.BlobDone = time.Now()
	if err != nil || obs == nil {
		riftlog.Opsf("[sensor %d] blob extraction failed: %v", s.id, err)
		f.NeedLongAnalysis = true
		return
	}
	f.Blobs = obs

	anyUnmatched := false
	for devID := range f.Devices {
		if s.acquireDevice(f, devID) {
			continue
		}
		anyUnmatched = true
	}
	f.NeedLongAnalysis = anyUnmatched
}

// acquireDevice attempts the cheap reacquire for one device (spec §4.2
// steps 2-4, 6), returning whether a pose was accepted (so the long path
// can skip this device).
func (s *Sensor) acquireDevice(f *Frame, devID int) bool {
	st := &f.Devices[devID]

	candidate := st.CapturePose
	if s.haveCameraPose {
		candidate = rigid.ApplyInverse(st.CapturePose, s.cameraPose)
	}

	if s.eval == nil {
		return false
	}

	score := s.eval.EvaluatePose(candidate, f.Blobs.Blobs, devID, s.intrinsics)
	if !score.Good {
		if f.Blobs.CountForDevice(devID) > minBlobsForReacquirePnP && s.pnp != nil {
			if refined, ok := s.pnp.EstimateInitialPose(f.Blobs.Blobs, devID, s.intrinsics, candidate); ok {
				candidate = refined
				score = s.eval.EvaluatePose(candidate, f.Blobs.Blobs, devID, s.intrinsics)
			}
		}
	}

	if !score.Good {
		return false
	}

	st.Score = score
	s.refineAndSubmit(f, devID, candidate)
	return st.FoundDevicePose
}

// asHandle returns f cast to the opaque collab.FrameHandle type, used
// when handing a frame to the Transport.
func (f *Frame) asHandle() collab.FrameHandle { return f }
