package sensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftcore/tracker/internal/rigid"
)

func TestNewFramePool(t *testing.T) {
	t.Parallel()

	pool := newFramePool(4, 8, 6)
	require.Len(t, pool, 4)
	for i, f := range pool {
		assert.Equal(t, i, f.ID)
		assert.Len(t, f.Image, 8*6)
	}
}

func TestFrameResetClearsPerCycleStateOnly(t *testing.T) {
	t.Parallel()

	f := &Frame{ID: 2, Image: make([]byte, 4)}
	f.Devices = []DeviceState{{FoundDevicePose: true}}
	f.NeedLongAnalysis = true
	f.LongAnalysisFoundNewBlobs = true
	f.Timeline.FastStart = f.Timeline.FastStart // no-op, keep gofmt happy

	f.reset()

	assert.Equal(t, 2, f.ID, "ID must survive reset for pool identity")
	assert.Len(t, f.Image, 4, "Image buffer must survive reset (zero-copy reuse)")
	assert.Nil(t, f.Exposure)
	assert.Nil(t, f.Blobs)
	assert.Nil(t, f.Devices)
	assert.False(t, f.NeedLongAnalysis)
	assert.False(t, f.LongAnalysisFoundNewBlobs)
	assert.Equal(t, Timeline{}, f.Timeline)
}

func TestGravityErrorDegFromRotError(t *testing.T) {
	t.Parallel()
	got := gravityErrorDegFromRotError(rigid.Vec3{X: 0, Y: 99, Z: 0})
	assert.InDelta(t, 0, got, 1e-9, "Y component (twist about gravity) contributes nothing")

	got = gravityErrorDegFromRotError(rigid.Vec3{X: 0, Y: 0, Z: 0})
	assert.InDelta(t, 0, got, 1e-9)
}
