// Command replay drives the tracking core from a recorded pcap capture of
// synthetic UVC frame-boundary markers, standing in for live camera
// hardware. It prints the HMD's view pose on a fixed interval,
// grounded on cmd/lidar's flag-driven main pattern (flag.Parse, logging
// with log, signal.NotifyContext for shutdown).
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/riftcore/tracker/internal/collab"
	"github.com/riftcore/tracker/internal/debugsink/filesink"
	"github.com/riftcore/tracker/internal/riftlog"
	"github.com/riftcore/tracker/internal/sensor"
	"github.com/riftcore/tracker/internal/tracker"
	"github.com/riftcore/tracker/internal/transport/pcapreplay"
)

var (
	pcapFile   = flag.String("pcap", "", "pcap capture of synthetic UVC frame-boundary markers to replay")
	udpPort    = flag.Int("udp-port", 2369, "UDP port the capture's frame markers are addressed to")
	speed      = flag.Float64("speed", 1.0, "replay speed multiplier relative to the capture's own timing")
	printEvery = flag.Duration("print-interval", 500*time.Millisecond, "how often to print the HMD's view pose")
	metaOut    = flag.String("meta-out", "", "optional path to write gzip-compressed JSON telemetry (filesink)")
)

func main() {
	flag.Parse()
	if *pcapFile == "" {
		log.Fatal("-pcap is required")
	}
	riftlog.SetWriters(riftlog.Writers{Ops: os.Stderr, Diag: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	trk, err := tracker.New(tracker.DefaultConfig())
	if err != nil {
		log.Fatalf("tracker.New: %v", err)
	}

	var meta collab.MetadataSink
	if *metaOut != "" {
		fs, err := filesink.New(*metaOut)
		if err != nil {
			log.Fatalf("filesink.New: %v", err)
		}
		defer fs.Close()
		meta = fs
	}

	if _, err := trk.RegisterDevice(nil, meta); err != nil {
		log.Fatalf("RegisterDevice(hmd): %v", err)
	}

	cfg := pcapreplay.DefaultConfig(*pcapFile, *udpPort)
	cfg.SpeedMultiplier = *speed
	transport, err := pcapreplay.New(cfg)
	if err != nil {
		log.Fatalf("pcapreplay.New: %v", err)
	}

	s, err := sensor.New(0, sensor.DefaultConfig(), nil, trk, 640, 480, sensor.Collaborators{
		Transport:    transport,
		MetadataSink: meta,
	})
	if err != nil {
		log.Fatalf("sensor.New: %v", err)
	}

	if err := s.Start(); err != nil {
		log.Fatalf("sensor.Start: %v", err)
	}

	ticker := time.NewTicker(*printEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Print("shutting down")
			if err := s.Stop(); err != nil {
				log.Printf("sensor.Stop: %v", err)
			}
			return
		case <-ticker.C:
			pose, ok := trk.ViewPose(tracker.HMDDeviceID)
			if !ok {
				log.Print("hmd: no pose yet")
				continue
			}
			log.Printf("hmd pose: pos=%.3f,%.3f,%.3f orient=%.3f,%.3f,%.3f,%.3f dropped=%d",
				pose.Pos.X, pose.Pos.Y, pose.Pos.Z,
				pose.Orient.Real, pose.Orient.Imag, pose.Orient.Jmag, pose.Orient.Kmag,
				s.DroppedFrames())
		}
	}
}
