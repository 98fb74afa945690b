//go:build !pcap
// +build !pcap

package pcapreplay

import "fmt"

// Start reports that pcap replay support was not compiled in. Rebuild with
// -tags=pcap (which pulls in github.com/google/gopacket/pcap and its cgo
// libpcap dependency) to enable it.
func (t *Transport) Start() error {
	return fmt.Errorf("pcapreplay: not enabled: rebuild with -tags=pcap")
}
