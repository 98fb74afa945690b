package rigid

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/num/quat"
)

func quaternionsClose(t *testing.T, a, b quat.Number, tol float64) {
	t.Helper()
	assert.InDelta(t, a.Real, b.Real, tol)
	assert.InDelta(t, a.Imag, b.Imag, tol)
	assert.InDelta(t, a.Jmag, b.Jmag, tol)
	assert.InDelta(t, a.Kmag, b.Kmag, tol)
}

func TestComposeInverseRoundTrip(t *testing.T) {
	t.Parallel()

	t.Run("compose then apply-inverse recovers the original local pose", func(t *testing.T) {
		camera := Pose{
			Orient: Normalize(quat.Number{Real: 1, Imag: 0.2, Jmag: 0.1}),
			Pos:    Vec3{X: 1, Y: 2, Z: 3},
		}
		local := Pose{
			Orient: Normalize(quat.Number{Real: 1, Jmag: 0.4}),
			Pos:    Vec3{X: 0.5, Y: -0.25, Z: 0.1},
		}

		world := Compose(local, camera)
		recovered := ApplyInverse(world, camera)

		assert.InDelta(t, local.Pos.X, recovered.Pos.X, 1e-9)
		assert.InDelta(t, local.Pos.Y, recovered.Pos.Y, 1e-9)
		assert.InDelta(t, local.Pos.Z, recovered.Pos.Z, 1e-9)
		quaternionsClose(t, local.Orient, recovered.Orient, 1e-9)
	})

	t.Run("inverse of identity is identity", func(t *testing.T) {
		inv := Inverse(Identity())
		quaternionsClose(t, Identity().Orient, inv.Orient, 1e-12)
		assert.Equal(t, Vec3{}, inv.Pos)
	})
}

func TestDecomposeSwingTwist(t *testing.T) {
	t.Parallel()

	t.Run("pure twist about the axis decomposes to zero swing", func(t *testing.T) {
		axis := Vec3{X: 0, Y: 1, Z: 0}
		twist := quat.Number{Real: math.Cos(math.Pi / 8), Jmag: math.Sin(math.Pi / 8)}

		swing, recoveredTwist := DecomposeSwingTwist(twist, axis)

		assert.InDelta(t, 0, AngleBetween(Identity().Orient, swing), 1e-6)
		quaternionsClose(t, twist, recoveredTwist, 1e-6)
	})

	t.Run("degenerate zero axis returns the input unchanged as swing", func(t *testing.T) {
		q := Normalize(quat.Number{Real: 1, Imag: 0.3})
		swing, twist := DecomposeSwingTwist(q, Vec3{})
		quaternionsClose(t, q, swing, 1e-12)
		quaternionsClose(t, Identity().Orient, twist, 1e-12)
	})
}

func TestAngleBetween(t *testing.T) {
	t.Parallel()

	ninety := quat.Number{Real: math.Cos(math.Pi / 4), Jmag: math.Sin(math.Pi / 4)}
	got := AngleBetween(Identity().Orient, ninety)
	require.InDelta(t, math.Pi/2, got, 1e-9)
}

func TestMirrorXZIsInvolution(t *testing.T) {
	t.Parallel()

	p := Pose{
		Orient: Normalize(quat.Number{Real: 1, Imag: 0.3, Jmag: -0.1, Kmag: 0.2}),
		Pos:    Vec3{X: 1, Y: 2, Z: 3},
	}
	mirrored := MirrorXZ(p)
	back := MirrorXZ(mirrored)

	assert.InDelta(t, p.Pos.X, back.Pos.X, 1e-12)
	assert.InDelta(t, p.Pos.Y, back.Pos.Y, 1e-12)
	assert.InDelta(t, p.Pos.Z, back.Pos.Z, 1e-12)
	quaternionsClose(t, p.Orient, back.Orient, 1e-12)
}

func TestLerp(t *testing.T) {
	t.Parallel()

	t.Run("t=0 returns a, t=1 returns b", func(t *testing.T) {
		a := Identity().Orient
		b := Normalize(quat.Number{Real: 1, Jmag: 1})
		quaternionsClose(t, a, Lerp(a, b, 0), 1e-9)
		quaternionsClose(t, b, Lerp(a, b, 1), 1e-9)
	})

	t.Run("takes the shorter path across the double-cover seam", func(t *testing.T) {
		a := Identity().Orient
		b := quat.Scale(-1, Identity().Orient) // same rotation, opposite sign
		got := Lerp(a, b, 0.5)
		quaternionsClose(t, a, got, 1e-9)
	})
}

func TestMax(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 10.0, Max(2*3, 10))
	assert.Equal(t, 24.0, Max(2*12, 10))
}
