package sensor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/riftcore/tracker/internal/calibration"
	"github.com/riftcore/tracker/internal/collab"
	"github.com/riftcore/tracker/internal/riftlog"
	"github.com/riftcore/tracker/internal/rigid"
	"github.com/riftcore/tracker/internal/tracker"
)

// Sensor owns one camera's capture pipeline: a bounded pool of frame
// buffers rotated between three stages, and the two analysis workers (spec
// §2 "Sensor (one per camera)", §3 "Sensor Context").
type Sensor struct {
	id            int
	SessionID     uuid.UUID
	cfg           *Config
	intrinsics    *calibration.Intrinsics
	width, height int

	tracker  *tracker.Tracker
	watcher  collab.BlobWatcher
	search   collab.CorrespondenceSearch
	pnp      collab.PnPSolver
	eval     collab.PoseEvaluator
	labeler  collab.BlobLabeler
	transport collab.Transport

	videoSink    collab.VideoSink
	metadataSink collab.MetadataSink

	mu        sync.Mutex
	cond      *sync.Cond
	capture   *frameQueue
	fast      *frameQueue
	long      *frameQueue
	pool      []*Frame
	capturing *Frame

	haveCameraPose bool
	cameraPose     rigid.Pose

	droppedFrames uint64
	longBusy      bool
	shutdown      bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Collaborators bundles the external, consumed interfaces a Sensor needs
// (spec §6). Each is a narrow black box; nil fields are tolerated where the
// corresponding stage would then be a no-op (useful in tests).
type Collaborators struct {
	Transport collab.Transport
	Watcher   collab.BlobWatcher
	Search    collab.CorrespondenceSearch
	PnP       collab.PnPSolver
	Evaluator collab.PoseEvaluator
	Labeler   collab.BlobLabeler

	VideoSink    collab.VideoSink
	MetadataSink collab.MetadataSink
}

// New constructs a Sensor, allocates its frame pool, and registers it with
// trk for exposure broadcasts (spec §4.6). Construction failures return an
// error rather than panicking (SPEC_FULL §7).
func New(id int, cfg *Config, intrinsics *calibration.Intrinsics, trk *tracker.Tracker, width, height int, deps Collaborators) (*Sensor, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("sensor %d: invalid config: %w", id, err)
	}
	if trk == nil {
		return nil, fmt.Errorf("sensor %d: tracker is required", id)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Sensor{
		id:           id,
		SessionID:    uuid.New(),
		cfg:          cfg,
		intrinsics:   intrinsics,
		width:        width,
		height:       height,
		tracker:      trk,
		watcher:      deps.Watcher,
		search:       deps.Search,
		pnp:          deps.PnP,
		eval:         deps.Evaluator,
		labeler:      deps.Labeler,
		transport:    deps.Transport,
		videoSink:    deps.VideoSink,
		metadataSink: deps.MetadataSink,
		capture:      newFrameQueue(),
		fast:         newFrameQueue(),
		long:         newFrameQueue(),
		pool:         newFramePool(cfg.FramePoolSize, width, height),
		ctx:          ctx,
		cancel:       cancel,
	}
	s.cond = sync.NewCond(&s.mu)
	for _, f := range s.pool {
		s.capture.push(f)
	}

	if err := trk.AttachSensor(s); err != nil {
		cancel()
		return nil, fmt.Errorf("sensor %d: %w", id, err)
	}

	if deps.Transport != nil {
		deps.Transport.Configure(s.onStartOfFrame, s.onFrameComplete)
	}

	s.wg.Add(2)
	go s.fastAnalysisLoop()
	go s.longAnalysisLoop()

	return s, nil
}

// Start begins capture on the underlying transport.
func (s *Sensor) Start() error {
	if s.transport == nil {
		return nil
	}
	return s.transport.Start()
}

// Stop signals shutdown to both analysis workers and stops the transport
// (spec §5 "Cancellation"). It blocks until both workers have exited.
func (s *Sensor) Stop() error {
	s.mu.Lock()
	s.shutdown = true
	s.cond.Broadcast()
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()

	if s.transport != nil {
		return s.transport.Stop()
	}
	return nil
}

// DroppedFrames returns the cumulative dropped-frame counter (spec §5
// "Backpressure / graceful degradation").
func (s *Sensor) DroppedFrames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.droppedFrames
}

// OnDeviceAdded implements the tracker's sensorHandle interface. No sensor
// state needs updating: devices are looked up from the tracker by id on
// demand during analysis.
func (s *Sensor) OnDeviceAdded(id int) {
	riftlog.Diagf("[sensor %d] device %d added", s.id, id)
}

// OnExposureUpdated implements the tracker's sensorHandle interface,
// invoked after the lock is released (spec §4.6 "After the lock is
// released, notify every sensor."). It only broadcasts the sensor's
// condition variable. The new exposure is not applied to a frame already
// being captured; the next start-of-frame fetches it from the tracker.
func (s *Sensor) OnExposureUpdated(info *tracker.ExposureInfo) {
	s.mu.Lock()
	s.cond.Broadcast()
	s.mu.Unlock()
}

// onStartOfFrame is the SOF callback (spec §4.2).
func (s *Sensor) onStartOfFrame(startTimestamp time.Time) {
	info := s.tracker.CurrentExposure()

	s.mu.Lock()
	var target *Frame
	var displaced *tracker.ExposureInfo

	if s.capturing != nil {
		// A prior capture never completed (transport glitch): reuse the same
		// buffer and schedule a release of its prior exposure.
		target = s.capturing
		displaced = target.Exposure
		riftlog.Opsf("[sensor %d] prior capture on frame %d never completed, reusing", s.id, target.ID)
	} else if f := s.capture.pop(); f != nil {
		target = f
	} else if f := s.fast.rewind(); f != nil {
		// The stolen frame still holds the claim its own frame_start made;
		// release it explicitly so accounting stays balanced (spec §5).
		target = f
		displaced = f.Exposure
		s.droppedFrames++
		riftlog.Opsf("[sensor %d] capture starved, stole frame %d from fast queue (dropped=%d)", s.id, f.ID, s.droppedFrames)
	} else {
		// Invariant violation: every buffer is accounted for but none could be
		// reclaimed.
		s.mu.Unlock()
		panic(fmt.Sprintf("sensor %d: no buffer available for capture and fast-queue steal failed", s.id))
	}

	target.reset()
	target.Exposure = info
	target.Timeline.Delivered = startTimestamp
	s.capturing = target
	s.mu.Unlock()

	s.tracker.ClaimFrame(info)
	if displaced != nil {
		s.tracker.ReleaseFrame(displaced)
	}

	if s.transport != nil {
		if err := s.transport.SetFrame(target); err != nil {
			riftlog.Opsf("[sensor %d] SetFrame failed: %v", s.id, err)
		}
	}
}

// onFrameComplete is the EOF callback (spec §4.2), invoked by the transport
// once the capture buffer identified by handle is fully delivered.
func (s *Sensor) onFrameComplete(handle collab.FrameHandle) {
	f, ok := handle.(*Frame)
	if !ok || f == nil {
		panic("sensor: frame-complete callback invoked with unrecognized handle")
	}

	s.mu.Lock()
	if s.capturing != f {
		panic(fmt.Sprintf("sensor %d: frame-complete for frame %d does not match the frame given out for capture", s.id, f.ID))
	}
	s.capturing = nil

	if !f.Exposure.Valid() {
		s.capture.push(f)
		s.mu.Unlock()
		return
	}

	f.Devices = s.snapshotDeviceStatesLocked(f.Exposure)
	s.fast.push(f)
	s.cond.Broadcast()
	s.mu.Unlock()
}

// snapshotDeviceStatesLocked builds the per-device frame state array from
// the frame's exposure record (spec §4.2 EOF callback step 3). Must be
// called with s.mu held.
func (s *Sensor) snapshotDeviceStatesLocked(info *tracker.ExposureInfo) []DeviceState {
	states := make([]DeviceState, len(info.Devices))
	for i, rec := range info.Devices {
		states[i] = DeviceState{
			CapturePose:     rec.Pose,
			GravityErrorDeg: gravityErrorDegFromRotError(rec.RotError),
		}
	}
	return states
}
