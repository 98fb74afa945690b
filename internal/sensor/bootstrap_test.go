package sensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"

	"github.com/riftcore/tracker/internal/rigid"
)

func newTestSensorForBootstrap(t *testing.T) *Sensor {
	t.Helper()
	s, _ := newTestSensor(t, Collaborators{})
	return s
}

func TestMaybeBootstrapIgnoresNonHMDDevices(t *testing.T) {
	t.Parallel()
	s := newTestSensorForBootstrap(t)
	st := &DeviceState{GravityErrorDeg: 0, CapturePose: rigid.Identity()}
	s.maybeBootstrap(1, st, rigid.Identity())
	assert.False(t, s.haveCameraPose)
}

func TestMaybeBootstrapRejectsExcessiveGravityError(t *testing.T) {
	t.Parallel()
	s := newTestSensorForBootstrap(t)
	st := &DeviceState{GravityErrorDeg: s.cfg.BootstrapGravityThresholdDeg, CapturePose: rigid.Identity()}
	s.maybeBootstrap(0, st, rigid.Identity())
	assert.False(t, s.haveCameraPose)
}

func TestMaybeBootstrapRejectsUnnormalizedOrientation(t *testing.T) {
	t.Parallel()
	s := newTestSensorForBootstrap(t)
	st := &DeviceState{
		GravityErrorDeg: 0,
		CapturePose:     rigid.Pose{Orient: quat.Number{Real: 0.5}},
	}
	s.maybeBootstrap(0, st, rigid.Identity())
	assert.False(t, s.haveCameraPose)
}

func TestMaybeBootstrapInstallsCameraPoseOnce(t *testing.T) {
	t.Parallel()
	s := newTestSensorForBootstrap(t)

	capture := rigid.Pose{Orient: rigid.Identity().Orient, Pos: rigid.Vec3{X: 1, Y: 2, Z: 3}}
	st := &DeviceState{GravityErrorDeg: 0, CapturePose: capture}
	candidate := rigid.Pose{Orient: rigid.Identity().Orient, Pos: rigid.Vec3{X: 0, Y: 0, Z: 0}}

	s.maybeBootstrap(0, st, candidate)
	require.True(t, s.haveCameraPose)
	assert.InDelta(t, 1, s.cameraPose.Pos.X, 1e-9)

	t.Run("a later bootstrap attempt is ignored once set", func(t *testing.T) {
		other := rigid.Pose{Orient: rigid.Identity().Orient, Pos: rigid.Vec3{X: 99}}
		s.maybeBootstrap(0, st, other)
		assert.InDelta(t, 1, s.cameraPose.Pos.X, 1e-9, "bootstrap must not re-fire once installed")
	})
}

func TestDeviceFusionToModelDefaultsToIdentityForUnknownDevice(t *testing.T) {
	t.Parallel()
	s := newTestSensorForBootstrap(t)
	assert.Equal(t, rigid.Identity(), s.deviceFusionToModel(7))
}
