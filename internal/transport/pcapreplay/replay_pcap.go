//go:build pcap
// +build pcap

package pcapreplay

import (
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/riftcore/tracker/internal/riftlog"
)

// Start opens the pcap file and begins replaying frame-boundary markers in
// a background goroutine, pacing delivery by the capture's own packet
// timestamps scaled by Config.SpeedMultiplier (collab.Transport).
//
// Grounded on internal/lidar/network/pcap_realtime.go's ReadPCAPFileRealtime:
// same pattern of pcap.OpenOffline + BPF filter + gopacket.NewPacketSource,
// with inter-packet delay scaled by a speed multiplier to reproduce the
// original capture's timing.
func (t *Transport) Start() error {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return fmt.Errorf("pcapreplay: already running")
	}
	t.running = true
	t.stopCh = make(chan struct{})
	t.mu.Unlock()

	handle, err := pcap.OpenOffline(t.cfg.Path)
	if err != nil {
		t.mu.Lock()
		t.running = false
		t.mu.Unlock()
		return fmt.Errorf("pcapreplay: open %s: %w", t.cfg.Path, err)
	}

	filterStr := fmt.Sprintf("udp port %d", t.cfg.Port)
	if err := handle.SetBPFFilter(filterStr); err != nil {
		handle.Close()
		t.mu.Lock()
		t.running = false
		t.mu.Unlock()
		return fmt.Errorf("pcapreplay: set BPF filter %q: %w", filterStr, err)
	}

	t.wg.Add(1)
	go t.replayLoop(handle)
	return nil
}

func (t *Transport) replayLoop(handle *pcap.Handle) {
	defer t.wg.Done()
	defer handle.Close()

	source := gopacket.NewPacketSource(handle, handle.LinkType())
	var lastCapture time.Time
	packetCount := 0

	for {
		select {
		case <-t.stopCh:
			return
		case packet, ok := <-source.Packets():
			if !ok || packet == nil {
				riftlog.Diagf("pcapreplay: replay of %s complete after %d markers", t.cfg.Path, packetCount)
				return
			}

			captureTime := packet.Metadata().Timestamp
			if !lastCapture.IsZero() {
				delay := captureTime.Sub(lastCapture)
				scaled := time.Duration(float64(delay) / t.cfg.SpeedMultiplier)
				if scaled > 0 {
					select {
					case <-t.stopCh:
						return
					case <-time.After(scaled):
					}
				}
			}
			lastCapture = captureTime

			udpLayer := packet.Layer(layers.LayerTypeUDP)
			if udpLayer == nil {
				continue
			}
			udp, ok := udpLayer.(*layers.UDP)
			if !ok || len(udp.Payload) == 0 {
				continue
			}

			packetCount++
			switch udp.Payload[0] {
			case markerSOF:
				t.deliverSOF(captureTime)
			case markerEOF:
				t.deliverEOF()
			default:
				riftlog.Diagf("pcapreplay: unrecognised marker byte 0x%02x at packet %d", udp.Payload[0], packetCount)
			}
		}
	}
}
