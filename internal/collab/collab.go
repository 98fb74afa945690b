// Package collab declares the narrow interfaces through which the tracking
// core consumes its external collaborators (spec §6): capture transport,
// blob watcher, correspondence search, PnP, pose scoring, and the fusion
// filter. None of these are implemented by the core itself — USB/UVC
// streaming, blob detection, PnP, LED-constellation search and Kalman
// filter math are all out of scope per spec §1.
package collab

import (
	"time"

	"gonum.org/v1/gonum/num/quat"

	"github.com/riftcore/tracker/internal/calibration"
	"github.com/riftcore/tracker/internal/rigid"
)

// Blob is a connected bright region detected in an IR image by the external
// blob watcher (glossary: "a connected bright region ... candidate for
// being an LED").
type Blob struct {
	X, Y          float64
	Width, Height float64

	// DeviceID is the tracked-device id this blob is currently labeled as
	// belonging to, or -1 if unlabeled.
	DeviceID int
	// PrevDeviceID retains the label this blob had before relabeling, for
	// continuity across the invalidate/relabel cycle in §4.4.
	PrevDeviceID int

	Pattern    uint16
	PatternAge uint32
}

// NoDevice is the sentinel DeviceID for an unlabeled blob.
const NoDevice = -1

// Observation is a time-stamped set of blobs produced by the extractor from
// one image (glossary: "blob observation").
type Observation struct {
	Phase int
	Blobs []Blob
}

// CountForDevice returns how many blobs in obs still carry deviceID's
// label, used by the fast-analysis re-acquire check (spec §4.2 step 4).
func (o *Observation) CountForDevice(deviceID int) int {
	n := 0
	for _, b := range o.Blobs {
		if b.DeviceID == deviceID {
			n++
		}
	}
	return n
}

// BlobWatcher extracts blob observations from raw camera images and tracks
// blob identity across frames.
type BlobWatcher interface {
	// Process runs blob extraction over one raw image, given the LED
	// pattern phase needed to disambiguate LED identities (glossary).
	Process(image []byte, width, height, phase int) (*Observation, error)
	// UpdateLabels transfers the per-device labels computed in obs into the
	// watcher's persistent label memory, so future frames carry them
	// forward (spec §4.3, "transfer the per-device labels into the
	// sensor-wide blobwatch label memory").
	UpdateLabels(obs *Observation, deviceID int)
}

// PoseScore is a structured assessment of a candidate pose (glossary:
// "pose score").
type PoseScore struct {
	MatchedBlobs int
	VisibleLEDs  int
	Good         bool
	Strong       bool
}

// SearchFlags control a correspondence-search invocation.
type SearchFlags uint8

const (
	// StopForStrongMatch ends the search as soon as a strong match is found.
	StopForStrongMatch SearchFlags = 1 << iota
	// MatchAllBlobs allows the device to match against every blob, not just
	// ones already labeled for it (used for the HMD, spec §4.3).
	MatchAllBlobs
	// ShallowSearch requires a strong match to commit (pass 0 of the deep
	// search, spec §4.3).
	ShallowSearch
	// DeepSearch accepts good (not necessarily strong) matches (pass 1).
	DeepSearch
)

// LEDModel is an opaque handle to a device's LED constellation geometry and
// search index, constructed by the correspondence-search collaborator and
// owned here only as an identifier.
type LEDModel interface{}

// CorrespondenceSearch is the deep combinatorial LED-constellation search
// (spec §4.3), consumed as a black box.
type CorrespondenceSearch interface {
	// SetModel registers a device's LED geometry/search index. Returns
	// false if the model could not be registered (e.g. duplicate id).
	SetModel(deviceID int, model LEDModel) bool
	// SetBlobs primes the search with the current frame's blob set.
	SetBlobs(blobs []Blob)
	// FindOnePose performs an unconstrained single-pose search, returning
	// the refined pose, its score, and whether a pose was found at all.
	FindOnePose(deviceID int, flags SearchFlags, guess rigid.Pose) (rigid.Pose, PoseScore, bool)
	// FindOnePoseAligned constrains the search to orientations whose swing
	// about gravity is within tolerance of priorSwing (spec §4.3).
	FindOnePoseAligned(deviceID int, flags SearchFlags, guess rigid.Pose, gravity rigid.Vec3, priorSwing quat.Number, toleranceRad float64) (rigid.Pose, PoseScore, bool)
}

// PoseEvaluator scores a candidate pose against a blob set without
// searching (used for the cheap reacquire path of spec §4.2).
type PoseEvaluator interface {
	// EvaluatePose scores candidate directly.
	EvaluatePose(candidate rigid.Pose, blobs []Blob, deviceID int, camera *calibration.Intrinsics) PoseScore
	// EvaluatePoseWithPrior scores candidate against blobs, using prior and
	// its uncertainty (posError/rotError) to weight the match.
	EvaluatePoseWithPrior(candidate, prior rigid.Pose, posError, rotError rigid.Vec3, blobs []Blob, deviceID int, camera *calibration.Intrinsics) PoseScore
}

// PnPSolver refines a camera-relative pose from labeled 2D/3D
// correspondences (spec §6, "PnP solver").
type PnPSolver interface {
	// EstimateInitialPose runs PnP over blobs currently labeled for
	// deviceID, returning a refined pose and whether it succeeded.
	EstimateInitialPose(blobs []Blob, deviceID int, camera *calibration.Intrinsics, guess rigid.Pose) (rigid.Pose, bool)
}

// BlobLabeler projects a candidate pose onto the image plane and marks
// blobs whose projected LED orientation faces the camera closely enough
// (spec §4.4 step 2).
type BlobLabeler interface {
	// MarkMatchingBlobs projects candidate's LEDs onto the image plane and
	// labels blobs within a visibilityThresholdDeg surface-normal tolerance
	// of facing the camera.
	MarkMatchingBlobs(candidate rigid.Pose, blobs []Blob, deviceID int, camera *calibration.Intrinsics, visibilityThresholdDeg float64)
}

// FusionFilter is the Kalman 6DOF filter driving a single device (spec §6).
// It owns the delay-slot backing state; the core only tells it which slot
// id to snapshot into or release.
type FusionFilter interface {
	IMUUpdate(deviceTimeNS uint64, dt float64, angVel, accel, mag rigid.Vec3)
	// PoseUpdate fuses an observed pose at deviceTimeNS against the
	// historical state held in slot.
	PoseUpdate(deviceTimeNS uint64, pose rigid.Pose, slot int)
	// PositionUpdate fuses only the position component (used when
	// orientation-only tracking is disabled for this build).
	PositionUpdate(deviceTimeNS uint64, pos rigid.Vec3, slot int)
	// PrepareDelaySlot snapshots current filter state into slot, for later
	// fusion against a delayed observation.
	PrepareDelaySlot(deviceTimeNS uint64, slot int)
	// ReleaseDelaySlot discards the snapshot held in slot.
	ReleaseDelaySlot(slot int)
	// GetPoseAt returns the filter's best estimate, velocity, acceleration
	// and positional/rotational uncertainty at deviceTimeNS.
	GetPoseAt(deviceTimeNS uint64) (pose rigid.Pose, vel, accel, posErr, rotErr rigid.Vec3)
}

// FrameHandle is an opaque capture-buffer handle passed to Transport.SetFrame
// and returned by its frame-complete callback. The concrete type is owned
// by the sensor package (*sensor.Frame); Transport never inspects it.
type FrameHandle interface{}

// Transport is the capture stream collaborator (spec §6): USB/UVC streaming
// and device control live entirely outside the core.
type Transport interface {
	// Configure installs the start-of-frame and frame-complete callbacks.
	// Must be called before Start.
	Configure(sof func(start time.Time), complete func(handle FrameHandle))
	// SetFrame publishes the next capture target.
	SetFrame(handle FrameHandle) error
	Start() error
	Stop() error
	Clear() error
}

// VideoSink is a debug video sink (raw or annotated). Connectivity is
// checked before every push and a disconnected sink never blocks the
// pipeline (spec §6).
type VideoSink interface {
	Connected() bool
	Push(ts time.Time, frame []byte)
}

// MetadataSink is the JSON-metadata debug sink (spec §6).
type MetadataSink interface {
	Connected() bool
	PushJSON(ts time.Time, v interface{}) error
}
