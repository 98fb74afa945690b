// Package calibration decodes vendor-specific EEPROM/flash byte layouts into
// camera intrinsics. Byte I/O (USB flash/EEPROM reads) is an external
// collaborator (spec §6); this package only decodes bytes already read into
// memory, which is explicitly in scope per spec §1.
package calibration

import (
	"encoding/binary"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ProductID identifies the sensor hardware variant, which determines the
// EEPROM/flash byte layout.
type ProductID int

const (
	CV1 ProductID = iota
	DK2
)

// CV1BlockSize and CV1FlashOffset describe the CV1 calibration read: 128
// bytes at flash offset 0x1d000.
const (
	CV1BlockSize   = 128
	CV1FlashOffset = 0x1d000
)

// DK2BlockSize and DK2EEPROMOffset describe the DK2 calibration read: 128
// bytes (four 32-byte chunks) at EEPROM offset 0x2000.
const (
	DK2BlockSize    = 128
	DK2EEPROMOffset = 0x2000
	DK2ChunkSize    = 32
)

// Intrinsics holds a decoded camera calibration.
type Intrinsics struct {
	// CameraMatrix is the 3x3 pinhole intrinsic matrix:
	//   [ fx  0  cx ]
	//   [  0 fy  cy ]
	//   [  0  0   1 ]
	CameraMatrix *mat.Dense
	// DistCoeffs holds the distortion coefficients; length and meaning
	// depend on Fisheye.
	DistCoeffs *mat.VecDense
	// Fisheye is true for the CV1's fisheye distortion model, false for the
	// DK2's rational-polynomial model.
	Fisheye bool
}

func newCameraMatrix(fx, fy, cx, cy float64) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		fx, 0, cx,
		0, fy, cy,
		0, 0, 1,
	})
}

// DecodeCV1 decodes a 128-byte CV1 flash block (little-endian float32
// fields) into fisheye intrinsics: fx=fy@0x30, cx@0x34, cy@0x38,
// k1..k4@0x48/0x4c/0x50/0x54.
func DecodeCV1(buf []byte) (*Intrinsics, error) {
	if len(buf) < CV1BlockSize {
		return nil, fmt.Errorf("calibration: CV1 block too short: got %d bytes, want %d", len(buf), CV1BlockSize)
	}

	f := func(off int) float64 { return float64(readFloat32LE(buf, off)) }

	fx := f(0x30)
	fy := fx
	cx := f(0x34)
	cy := f(0x38)

	k1 := f(0x48)
	k2 := f(0x4c)
	k3 := f(0x50)
	k4 := f(0x54)

	return &Intrinsics{
		CameraMatrix: newCameraMatrix(fx, fy, cx, cy),
		DistCoeffs:   mat.NewVecDense(4, []float64{k1, k2, k3, k4}),
		Fisheye:      true,
	}, nil
}

// DecodeDK2 decodes a 128-byte DK2 EEPROM block (little-endian float64
// fields, read as four 32-byte chunks) into rational-polynomial intrinsics:
// fx@18, fy@30, cx@42, cy@54, k1@66, k2@78, p1@90, p2@102, k3@114.
//
// The original firmware decode has a layout quirk preserved here for
// faithfulness (see DESIGN.md "DK2 distortion clobber"): it writes k2 into
// dist_coeffs[1] and then immediately overwrites that slot with p1 before k2
// is ever consumed, so k2 is discarded rather than occupying a slot of its
// own. The decoded vector is [k1, p1, p2, k3], not [k1, k2, p1, p2, k3].
func DecodeDK2(buf []byte) (*Intrinsics, error) {
	if len(buf) < DK2BlockSize {
		return nil, fmt.Errorf("calibration: DK2 block too short: got %d bytes, want %d", len(buf), DK2BlockSize)
	}

	f := func(off int) float64 { return readFloat64LE(buf, off) }

	fx := f(18)
	fy := f(30)
	cx := f(42)
	cy := f(54)
	k1 := f(66)
	p1 := f(90)
	p2 := f(102)
	k3 := f(114)
	// k2 at offset 78 is decoded and written to dist_coeffs[1], then
	// immediately overwritten by p1 before anything reads it back out.
	_ = f(78)

	dist := mat.NewVecDense(4, []float64{k1, p1, p2, k3})

	return &Intrinsics{
		CameraMatrix: newCameraMatrix(fx, fy, cx, cy),
		DistCoeffs:   dist,
		Fisheye:      false,
	}, nil
}

// ReadBlockOffsets returns the chunked read plan for the DK2's four 32-byte
// EEPROM reads, so a Transport/EEPROM collaborator can issue them in order
// and concatenate the results before calling DecodeDK2.
func ReadBlockOffsets(base ProductID) []int {
	if base != DK2 {
		return []int{0}
	}
	offsets := make([]int, 0, DK2BlockSize/DK2ChunkSize)
	for off := 0; off < DK2BlockSize; off += DK2ChunkSize {
		offsets = append(offsets, off)
	}
	return offsets
}

func readFloat32LE(buf []byte, off int) float32 {
	bits := binary.LittleEndian.Uint32(buf[off : off+4])
	return math.Float32frombits(bits)
}

func readFloat64LE(buf []byte, off int) float64 {
	bits := binary.LittleEndian.Uint64(buf[off : off+8])
	return math.Float64frombits(bits)
}
