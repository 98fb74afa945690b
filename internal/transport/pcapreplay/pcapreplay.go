// Package pcapreplay is a reference collab.Transport for integration tests
// and the cmd/replay tool: it reads a recorded libpcap capture of synthetic
// UVC frame-boundary markers and drives start-of-frame/frame-complete
// callbacks on a schedule derived from the capture's own packet timestamps,
// grounded on the teacher's internal/lidar/network/pcap*.go replay tooling
// (ReadPCAPFileRealtime's capture-timestamp-paced replay loop).
//
// Each UDP packet on Config.Port carries a single marker byte: markerSOF
// starts a frame, markerEOF completes the frame most recently handed to
// SetFrame. No real camera or USB/UVC stack is involved; this exists purely
// so the tracking core can be exercised end to end without hardware.
package pcapreplay

import (
	"fmt"
	"sync"
	"time"

	"github.com/riftcore/tracker/internal/collab"
)

const (
	markerSOF byte = 0x01
	markerEOF byte = 0x02
)

// Config configures a replay Transport.
type Config struct {
	// Path is the pcap file to replay.
	Path string
	// Port is the UDP destination port carrying frame-boundary markers.
	Port int
	// SpeedMultiplier scales replay speed relative to the capture's own
	// timestamps (1.0 = real-time, 2.0 = 2x speed). Defaults to 1.0.
	SpeedMultiplier float64
}

// DefaultConfig returns a Config with SpeedMultiplier set to real-time.
func DefaultConfig(path string, port int) Config {
	return Config{Path: path, Port: port, SpeedMultiplier: 1.0}
}

// Transport replays a pcap capture as a collab.Transport.
type Transport struct {
	cfg Config

	mu      sync.Mutex
	sof     func(start time.Time)
	done    func(handle collab.FrameHandle)
	pending collab.FrameHandle
	running bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// New returns a replay Transport for cfg. The pcap file is not opened until
// Start is called.
func New(cfg Config) (*Transport, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("pcapreplay: Path is required")
	}
	if cfg.SpeedMultiplier <= 0 {
		cfg.SpeedMultiplier = 1.0
	}
	return &Transport{cfg: cfg}, nil
}

// Configure installs the start-of-frame and frame-complete callbacks
// (collab.Transport).
func (t *Transport) Configure(sof func(start time.Time), complete func(handle collab.FrameHandle)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sof = sof
	t.done = complete
}

// SetFrame publishes the capture buffer handle that the next markerEOF will
// be delivered against (collab.Transport).
func (t *Transport) SetFrame(handle collab.FrameHandle) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = handle
	return nil
}

// Clear drops any pending frame handle (collab.Transport).
func (t *Transport) Clear() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = nil
	return nil
}

// Stop halts replay and waits for the replay goroutine to exit
// (collab.Transport).
func (t *Transport) Stop() error {
	t.mu.Lock()
	running := t.running
	stopCh := t.stopCh
	t.running = false
	t.mu.Unlock()
	if !running {
		return nil
	}
	close(stopCh)
	t.wg.Wait()
	return nil
}

// deliverSOF invokes the configured start-of-frame callback, if any.
func (t *Transport) deliverSOF(ts time.Time) {
	t.mu.Lock()
	sof := t.sof
	t.mu.Unlock()
	if sof != nil {
		sof(ts)
	}
}

// deliverEOF invokes the configured frame-complete callback against
// whichever handle was last set via SetFrame, if any.
func (t *Transport) deliverEOF() {
	t.mu.Lock()
	done := t.done
	handle := t.pending
	t.pending = nil
	t.mu.Unlock()
	if done != nil && handle != nil {
		done(handle)
	}
}
