package sensor

import (
	"time"

	"github.com/riftcore/tracker/internal/collab"
	"github.com/riftcore/tracker/internal/rigid"
	"github.com/riftcore/tracker/internal/tracker"
)

// DeviceState mirrors the exposure record for one device across a frame's
// lifetime (spec §3 "Per-device Frame State").
type DeviceState struct {
	CapturePose     rigid.Pose
	GravityErrorDeg float64
	FinalPose       rigid.Pose
	Score           collab.PoseScore
	FoundDevicePose bool
}

// Timeline records the timestamps a frame passes through each stage (spec
// §3 "a timeline of timestamps").
type Timeline struct {
	Delivered time.Time
	FastStart time.Time
	BlobDone  time.Time
	FastDone  time.Time
	LongStart time.Time
	LongDone  time.Time
}

// Frame is a capture buffer, owned by exactly one pipeline stage at a time
// (spec §3 "Capture Frame", §9 "single-owner moves between stages").
type Frame struct {
	ID    int
	Image []byte

	Exposure *tracker.ExposureInfo
	Blobs    *collab.Observation

	Devices []DeviceState

	Timeline Timeline

	NeedLongAnalysis          bool
	LongAnalysisFoundNewBlobs bool
}

// reset clears a frame's per-cycle state before it re-enters the capture
// queue, retaining its Image buffer and ID (zero-copy hand-off, spec §4.1).
func (f *Frame) reset() {
	f.Exposure = nil
	f.Blobs = nil
	f.Devices = nil
	f.Timeline = Timeline{}
	f.NeedLongAnalysis = false
	f.LongAnalysisFoundNewBlobs = false
}

// gravityErrorDegFromRotError derives the gravity uncertainty from the X/Z
// components of a rotational error vector (spec §3 Per-device Frame State).
func gravityErrorDegFromRotError(rotError rigid.Vec3) float64 {
	return rigid.RadToDeg(rigid.Vec3{X: rotError.X, Z: rotError.Z}.Length())
}

// newFramePool allocates the fixed pool of n frame buffers, each sized for
// width*height single-channel pixels.
func newFramePool(n, width, height int) []*Frame {
	pool := make([]*Frame, n)
	for i := range pool {
		pool[i] = &Frame{ID: i, Image: make([]byte, width*height)}
	}
	return pool
}
