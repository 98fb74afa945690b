package sensor

import (
	"time"

	"github.com/riftcore/tracker/internal/riftlog"
)

// frameTelemetry is the per-frame debug record pushed to the metadata sink
// after the fast-analysis pass (spec §6 MetadataSink; SPEC_FULL §11 debug
// telemetry). Chart tooling (cmd/chart) reads a stream of these back out of
// the file debug sink to plot dropped-frame counts and per-stage latency
// over time.
type frameTelemetry struct {
	SensorID      int           `json:"sensor_id"`
	FrameID       int           `json:"frame_id"`
	DroppedFrames uint64        `json:"dropped_frames"`
	DevicesFound  int           `json:"devices_found"`
	NeedLong      bool          `json:"need_long_analysis"`
	USBLatency    time.Duration `json:"usb_latency_ns"`
	BlobLatency   time.Duration `json:"blob_latency_ns"`
	FastLatency   time.Duration `json:"fast_latency_ns"`
	LongLatency   time.Duration `json:"long_latency_ns"`
}

// pushFrameTelemetry reports f's fast-analysis outcome to the metadata sink,
// if one is connected. Never blocks the pipeline on a disconnected or
// errored sink (spec §6, "a disconnected sink never blocks the pipeline").
func (s *Sensor) pushFrameTelemetry(f *Frame) {
	if s.metadataSink == nil || !s.metadataSink.Connected() {
		return
	}
	found := 0
	for _, st := range f.Devices {
		if st.FoundDevicePose {
			found++
		}
	}
	rec := frameTelemetry{
		SensorID:      s.id,
		FrameID:       f.ID,
		DroppedFrames: s.DroppedFrames(),
		DevicesFound:  found,
		NeedLong:      f.NeedLongAnalysis,
		USBLatency:    f.Timeline.FastStart.Sub(f.Timeline.Delivered),
		BlobLatency:   f.Timeline.BlobDone.Sub(f.Timeline.FastStart),
		FastLatency:   f.Timeline.FastDone.Sub(f.Timeline.FastStart),
		LongLatency:   longLatency(f.Timeline),
	}
	if err := s.metadataSink.PushJSON(time.Now(), rec); err != nil {
		riftlog.Diagf("[sensor %d] failed to push frame telemetry: %v", s.id, err)
	}
}

// longLatency is the queue-wait plus run time a frame spent in the
// long-analysis stage, or zero if it was released without ever reaching
// that stage (long-analysis is only invoked when fast-analysis leaves a
// device unmatched).
func longLatency(tl Timeline) time.Duration {
	if tl.LongDone.IsZero() {
		return 0
	}
	return tl.LongDone.Sub(tl.FastDone)
}

// logReleaseTrace emits the per-frame timing breakdown on the Trace stream
// when a frame is released back to the capture queue (SPEC_FULL §11,
// grounded on rift-sensor.c's release_capture_frame LOGD line): time from
// start-of-frame to fast-analysis start (USB delivery plus fast-queue wait),
// fast-analysis run time, blob-extraction time, and long-analysis
// queue+run time. Must be called before f.reset() clears f.Timeline.
func (s *Sensor) logReleaseTrace(f *Frame) {
	tl := f.Timeline
	riftlog.Tracef("[sensor %d] frame %d released: usb=%s fast=%s blob=%s long=%s",
		s.id, f.ID,
		tl.FastStart.Sub(tl.Delivered),
		tl.FastDone.Sub(tl.FastStart),
		tl.BlobDone.Sub(tl.FastStart),
		longLatency(tl),
	)
}
