package calibration

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func putFloat32LE(buf []byte, off int, v float32) {
	binary.LittleEndian.PutUint32(buf[off:off+4], math.Float32bits(v))
}

func putFloat64LE(buf []byte, off int, v float64) {
	binary.LittleEndian.PutUint64(buf[off:off+8], math.Float64bits(v))
}

func TestDecodeCV1RejectsShortBuffer(t *testing.T) {
	t.Parallel()
	_, err := DecodeCV1(make([]byte, CV1BlockSize-1))
	assert.Error(t, err)
}

func TestDecodeCV1DecodesFisheyeIntrinsics(t *testing.T) {
	t.Parallel()
	buf := make([]byte, CV1BlockSize)
	putFloat32LE(buf, 0x30, 600)
	putFloat32LE(buf, 0x34, 320)
	putFloat32LE(buf, 0x38, 240)
	putFloat32LE(buf, 0x48, 0.1)
	putFloat32LE(buf, 0x4c, 0.2)
	putFloat32LE(buf, 0x50, 0.3)
	putFloat32LE(buf, 0x54, 0.4)

	intr, err := DecodeCV1(buf)
	require.NoError(t, err)
	assert.True(t, intr.Fisheye)

	assert.InDelta(t, 600, intr.CameraMatrix.At(0, 0), 1e-3, "fx")
	assert.InDelta(t, 600, intr.CameraMatrix.At(1, 1), 1e-3, "fy equals fx on CV1")
	assert.InDelta(t, 320, intr.CameraMatrix.At(0, 2), 1e-3, "cx")
	assert.InDelta(t, 240, intr.CameraMatrix.At(1, 2), 1e-3, "cy")

	require.Equal(t, 4, intr.DistCoeffs.Len())
	assert.InDelta(t, 0.1, intr.DistCoeffs.AtVec(0), 1e-4)
	assert.InDelta(t, 0.2, intr.DistCoeffs.AtVec(1), 1e-4)
	assert.InDelta(t, 0.3, intr.DistCoeffs.AtVec(2), 1e-4)
	assert.InDelta(t, 0.4, intr.DistCoeffs.AtVec(3), 1e-4)
}

func TestDecodeDK2RejectsShortBuffer(t *testing.T) {
	t.Parallel()
	_, err := DecodeDK2(make([]byte, DK2BlockSize-1))
	assert.Error(t, err)
}

func TestDecodeDK2DecodesRationalPolynomialIntrinsics(t *testing.T) {
	t.Parallel()
	buf := make([]byte, DK2BlockSize)
	putFloat64LE(buf, 18, 700)
	putFloat64LE(buf, 30, 710)
	putFloat64LE(buf, 42, 400)
	putFloat64LE(buf, 54, 300)
	putFloat64LE(buf, 66, 1.0)  // k1
	putFloat64LE(buf, 78, 2.0)  // k2 -- should be decoded then clobbered
	putFloat64LE(buf, 90, 3.0)  // p1
	putFloat64LE(buf, 102, 4.0) // p2
	putFloat64LE(buf, 114, 5.0) // k3

	intr, err := DecodeDK2(buf)
	require.NoError(t, err)
	assert.False(t, intr.Fisheye)

	assert.InDelta(t, 700, intr.CameraMatrix.At(0, 0), 1e-6, "fx")
	assert.InDelta(t, 710, intr.CameraMatrix.At(1, 1), 1e-6, "fy")
	assert.InDelta(t, 400, intr.CameraMatrix.At(0, 2), 1e-6, "cx")
	assert.InDelta(t, 300, intr.CameraMatrix.At(1, 2), 1e-6, "cy")

	t.Run("k2 is clobbered by p1, reproducing the original firmware's layout bug", func(t *testing.T) {
		require.Equal(t, 4, intr.DistCoeffs.Len())
		assert.InDelta(t, 1.0, intr.DistCoeffs.AtVec(0), 1e-6, "k1")
		assert.InDelta(t, 3.0, intr.DistCoeffs.AtVec(1), 1e-6, "p1 has clobbered the k2 slot")
		assert.InDelta(t, 4.0, intr.DistCoeffs.AtVec(2), 1e-6, "p2")
		assert.InDelta(t, 5.0, intr.DistCoeffs.AtVec(3), 1e-6, "k3")
	})
}

func TestReadBlockOffsets(t *testing.T) {
	t.Parallel()

	t.Run("CV1 is a single contiguous read", func(t *testing.T) {
		assert.Equal(t, []int{0}, ReadBlockOffsets(CV1))
	})

	t.Run("DK2 is four 32-byte chunked reads", func(t *testing.T) {
		offsets := ReadBlockOffsets(DK2)
		assert.Equal(t, []int{0, 32, 64, 96}, offsets)
	})
}
