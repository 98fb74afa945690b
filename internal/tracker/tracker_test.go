package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/riftcore/tracker/internal/rigid"
)

// fakeSensor is a minimal sensorHandle test double recording broadcast calls.
type fakeSensor struct {
	exposures []*ExposureInfo
	added     []int
}

func (f *fakeSensor) OnExposureUpdated(info *ExposureInfo) {
	f.exposures = append(f.exposures, info)
}

func (f *fakeSensor) OnDeviceAdded(id int) {
	f.added = append(f.added, id)
}

func TestNewTrackerRejectsInvalidConfig(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.MaxTrackedDevices = 0
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestNewTrackerDefaultsConfig(t *testing.T) {
	t.Parallel()
	trk, err := New(nil)
	require.NoError(t, err)
	assert.NotNil(t, trk.cfg)
}

func TestRegisterDeviceBroadcastsToSensors(t *testing.T) {
	t.Parallel()

	trk, err := New(DefaultConfig())
	require.NoError(t, err)

	sensor := &fakeSensor{}
	require.NoError(t, trk.AttachSensor(sensor))

	dev, err := trk.RegisterDevice(&fakeFilter{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, dev.ID)
	assert.Equal(t, []int{0}, sensor.added)
	assert.Equal(t, 1, trk.NumDevices())
}

func TestRegisterDeviceEnforcesCapacity(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig().WithMaxTrackedDevices(1)
	trk, err := New(cfg)
	require.NoError(t, err)

	_, err = trk.RegisterDevice(&fakeFilter{}, nil)
	require.NoError(t, err)

	_, err = trk.RegisterDevice(&fakeFilter{}, nil)
	assert.Error(t, err)
}

func TestAttachSensorEnforcesCapacity(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig().WithMaxSensors(1)
	trk, err := New(cfg)
	require.NoError(t, err)

	require.NoError(t, trk.AttachSensor(&fakeSensor{}))
	assert.Error(t, trk.AttachSensor(&fakeSensor{}))
}

func TestUpdateExposureBroadcastsAndDedupes(t *testing.T) {
	t.Parallel()

	trk, err := New(DefaultConfig())
	require.NoError(t, err)

	sensor := &fakeSensor{}
	require.NoError(t, trk.AttachSensor(sensor))

	filter := &fakeFilter{}
	_, err = trk.RegisterDevice(filter, nil)
	require.NoError(t, err)

	trk.UpdateExposure(1000, 1000, 1, 0)
	require.Len(t, sensor.exposures, 1)
	assert.True(t, trk.CurrentExposure().Valid())

	t.Run("a duplicate count is ignored", func(t *testing.T) {
		trk.UpdateExposure(2000, 2000, 1, 0)
		assert.Len(t, sensor.exposures, 1, "same count should not re-broadcast")
	})

	t.Run("an advancing count broadcasts again", func(t *testing.T) {
		trk.UpdateExposure(3000, 3000, 2, 1)
		assert.Len(t, sensor.exposures, 2)
	})
}

func TestClaimAndReleaseFrame(t *testing.T) {
	t.Parallel()

	trk, err := New(DefaultConfig())
	require.NoError(t, err)
	filter := &fakeFilter{}
	_, err = trk.RegisterDevice(filter, nil)
	require.NoError(t, err)

	trk.UpdateExposure(100, 100, 1, 0)
	info := trk.CurrentExposure()
	require.True(t, info.Valid())

	trk.ClaimFrame(info)
	trk.ReleaseFrame(info)

	assert.Contains(t, filter.released, info.Devices[0].FusionSlotID)
}

func TestReleaseFrameHandlesNilAndInvalid(t *testing.T) {
	t.Parallel()

	trk, err := New(DefaultConfig())
	require.NoError(t, err)
	trk.ReleaseFrame(nil)
	trk.ReleaseFrame(&ExposureInfo{})
}

func TestPatchExposureMovesSlotClaims(t *testing.T) {
	t.Parallel()

	trk, err := New(DefaultConfig())
	require.NoError(t, err)
	filter := &fakeFilter{}
	_, err = trk.RegisterDevice(filter, nil)
	require.NoError(t, err)

	trk.UpdateExposure(100, 100, 1, 0)
	oldInfo := trk.CurrentExposure()

	trk.UpdateExposure(200, 200, 2, 0)
	newInfo := trk.CurrentExposure()

	out := trk.PatchExposure(oldInfo, newInfo)
	require.Len(t, out, 1)
}

func TestDeviceAndNumDevicesBounds(t *testing.T) {
	t.Parallel()

	trk, err := New(DefaultConfig())
	require.NoError(t, err)
	assert.Nil(t, trk.Device(0))
	assert.Nil(t, trk.Device(-1))

	_, err = trk.RegisterDevice(&fakeFilter{}, nil)
	require.NoError(t, err)
	assert.NotNil(t, trk.Device(0))
	assert.Nil(t, trk.Device(1))
}

func TestViewPoseAndModelPoseDelegateToDevice(t *testing.T) {
	t.Parallel()

	trk, err := New(DefaultConfig())
	require.NoError(t, err)

	_, ok := trk.ViewPose(0)
	assert.False(t, ok, "unregistered device has no pose")

	filter := &fakeFilter{pose: rigid.Pose{Orient: rigid.Identity().Orient, Pos: rigid.Vec3{X: 4}}}
	_, err = trk.RegisterDevice(filter, nil)
	require.NoError(t, err)
	trk.Device(HMDDeviceID).clock.Advance(1000)

	pose, ok := trk.ViewPose(HMDDeviceID)
	require.True(t, ok)
	assert.Equal(t, 4.0, pose.Pos.X)

	modelPose, ok := trk.ModelPose(HMDDeviceID)
	require.True(t, ok)
	assert.Equal(t, -4.0, modelPose.Pos.X, "HMD model pose mirrors X")
}

func TestSubmitDevicePoseFlushesIMU(t *testing.T) {
	t.Parallel()

	trk, err := New(DefaultConfig())
	require.NoError(t, err)
	filter := &fakeFilter{}
	sink := &fakeSink{connected: true}
	_, err = trk.RegisterDevice(filter, sink)
	require.NoError(t, err)

	dev := trk.Device(0)
	dev.IMUUpdate(100, 0.01, rigid.Vec3{}, rigid.Vec3{}, rigid.Vec3{})
	require.Len(t, dev.pendingIMU, 1)

	trk.SubmitDevicePose(0, 1000, rigid.Identity(), -1)

	assert.Empty(t, dev.pendingIMU, "submitting a pose should flush pending IMU samples")
	assert.True(t, dev.havePose)
}

func TestSubmitDevicePoseIgnoresUnknownDevice(t *testing.T) {
	t.Parallel()
	trk, err := New(DefaultConfig())
	require.NoError(t, err)
	trk.SubmitDevicePose(5, 1000, rigid.Identity(), 0)
}
