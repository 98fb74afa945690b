package tracker

import (
	"github.com/riftcore/tracker/internal/rigid"
)

// delaySlot is a handle into a device's fusion filter history (spec §3
// "Delay Slot" / §4.7). Slots live in a fixed-size ring per device; findFree
// treats any slot with useCount == 0 as available, including one that was
// allocated (valid) but has not been claimed yet.
type delaySlot struct {
	id         int
	valid      bool
	useCount   int
	deviceTime uint64
}

// delaySlotRing is the per-device arena of K delay slots, round-robin
// allocated (spec §4.7 find_free).
type delaySlotRing struct {
	slots  []delaySlot
	cursor int // next index to consider in find_free's round-robin scan
}

func newDelaySlotRing(k int) *delaySlotRing {
	slots := make([]delaySlot, k)
	for i := range slots {
		slots[i].id = i
	}
	return &delaySlotRing{slots: slots}
}

// findFree scans the ring starting at cursor and returns the first slot
// with useCount == 0, advancing cursor past it so repeated calls bias
// toward the oldest free slot rather than always returning slot 0. Returns
// -1 if every slot is in use.
func (r *delaySlotRing) findFree() int {
	n := len(r.slots)
	for i := 0; i < n; i++ {
		idx := (r.cursor + i) % n
		if r.slots[idx].useCount == 0 {
			r.cursor = (idx + 1) % n
			return idx
		}
	}
	return -1
}

// allocate assigns deviceTime to a free slot and marks it valid, returning
// its id or -1 if none was free (spec §4.7 update_exposure: "If no slot is
// free, record fusion_slot = -1").
func (r *delaySlotRing) allocate(deviceTime uint64) int {
	idx := r.findFree()
	if idx < 0 {
		return -1
	}
	r.slots[idx].valid = true
	r.slots[idx].deviceTime = deviceTime
	return idx
}

// claim increments the use count of slot id if it is still valid and
// anchored at deviceTime, returning whether the claim succeeded. A failed
// claim means the exposure's fusion_slot is lost and the caller must set
// it to -1 (spec §4.7 claim).
func (r *delaySlotRing) claim(id int, deviceTime uint64) bool {
	if id < 0 || id >= len(r.slots) {
		return false
	}
	s := &r.slots[id]
	if !s.valid || s.deviceTime != deviceTime {
		return false
	}
	s.useCount++
	return true
}

// release decrements the use count of slot id; when it reaches zero the
// slot is marked invalid and becomes eligible for reallocation, and the
// backing filter snapshot should be discarded by the caller (spec §4.7
// release).
func (r *delaySlotRing) release(id int) (shouldFreeFilterState bool) {
	if id < 0 || id >= len(r.slots) {
		return false
	}
	s := &r.slots[id]
	if s.useCount > 0 {
		s.useCount--
	}
	if s.useCount == 0 {
		s.valid = false
		return true
	}
	return false
}

// ExposureRecord is the per-device exposure record of spec §3: device-time
// at exposure, predicted pose/uncertainty copied from the filter, and the
// allocated delay slot id (or -1 if none was free).
type ExposureRecord struct {
	DeviceTime   uint64
	Pose         rigid.Pose
	PosError     rigid.Vec3
	RotError     rigid.Vec3
	FusionSlotID int
}

// gravityErrorDeg returns the gravity uncertainty derived from the X/Z
// components of the rotational error vector (spec §3 Per-device Frame
// State, §4.2 EOF callback).
func gravityErrorDeg(rotError rigid.Vec3) float64 {
	return rigid.RadToDeg(rigid.Vec3{X: rotError.X, Z: rotError.Z}.Length())
}
