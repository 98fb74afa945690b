// Package rigid implements the rigid-transform and quaternion algebra used
// throughout the tracking core: pose composition/inversion, vector rotation,
// and the swing/twist decomposition needed by the gravity-aligned
// correspondence search (spec §4.3).
//
// Orientation is represented with gonum's quat.Number rather than a
// hand-rolled quaternion type, matching the rest of the pack's use of
// gonum.org/v1/gonum for numerical types.
package rigid

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Vec3 is a 3D vector (position, angular error, gravity direction, ...).
type Vec3 struct {
	X, Y, Z float64
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }
func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}
func (v Vec3) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Pose is a rigid transform: orientation (unit quaternion) plus translation.
type Pose struct {
	Orient quat.Number
	Pos    Vec3
}

// Identity returns the identity transform.
func Identity() Pose {
	return Pose{Orient: quat.Number{Real: 1}}
}

// Normalize returns q scaled to unit length. The zero quaternion is returned
// unchanged (callers check Length() separately, e.g. the bootstrap gate in
// §4.5 which requires |q| > 0.9 before trusting an orientation).
func Normalize(q quat.Number) quat.Number {
	l := quat.Abs(q)
	if l == 0 {
		return q
	}
	return quat.Scale(1/l, q)
}

// Length returns the quaternion's norm, used by the bootstrap gate (§4.5,
// "the HMD's fusion-provided capture orientation has been normalized").
func Length(q quat.Number) float64 {
	return quat.Abs(q)
}

// rotate applies unit quaternion q to vector v: q * v * conj(q).
func rotate(q quat.Number, v Vec3) Vec3 {
	vq := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, vq), quat.Conj(q))
	return Vec3{r.Imag, r.Jmag, r.Kmag}
}

// Rotate rotates v by the orientation q (no translation is applied).
func Rotate(q quat.Number, v Vec3) Vec3 {
	return rotate(q, v)
}

// Inverse returns the inverse of a rigid transform: world->local becomes
// local->world and vice versa.
func Inverse(p Pose) Pose {
	inv := quat.Conj(p.Orient)
	if l := quat.Abs(p.Orient); l != 0 && math.Abs(l-1) > 1e-9 {
		inv = quat.Scale(1/(l*l), inv)
	}
	return Pose{
		Orient: inv,
		Pos:    rotate(inv, p.Pos).Scale(-1),
	}
}

// Compose returns the transform that takes a point through a, then through
// b: result = b ∘ a (mirrors OpenHMD's oposef_apply(a, b, &result), which
// takes an object->frame1 pose `a` and a frame1->frame2 pose `b` and
// produces the object->frame2 pose).
func Compose(a, b Pose) Pose {
	return Pose{
		Orient: quat.Mul(b.Orient, a.Orient),
		Pos:    rotate(b.Orient, a.Pos).Add(b.Pos),
	}
}

// ApplyInverse composes a with the inverse of b: result = inverse(b) ∘ a.
// Mirrors oposef_apply_inverse, used to turn an object->world pose into an
// object->camera pose given a camera->world pose.
func ApplyInverse(a, b Pose) Pose {
	return Compose(a, Inverse(b))
}

// DecomposeSwingTwist splits q's rotation into a swing component
// (perpendicular to axis) and a twist component (about axis), following the
// standard swing-twist decomposition: twist = normalize(projection of q's
// vector part onto axis, w kept), swing = q * conj(twist).
func DecomposeSwingTwist(q quat.Number, axis Vec3) (swing, twist quat.Number) {
	al := axis.Length()
	if al == 0 {
		return q, Identity().Orient
	}
	axis = axis.Scale(1 / al)

	qv := Vec3{q.Imag, q.Jmag, q.Kmag}
	dot := qv.X*axis.X + qv.Y*axis.Y + qv.Z*axis.Z
	proj := axis.Scale(dot)

	twist = Normalize(quat.Number{Real: q.Real, Imag: proj.X, Jmag: proj.Y, Kmag: proj.Z})
	swing = quat.Mul(q, quat.Conj(twist))
	return swing, twist
}

// AngleBetween returns the angle in radians between two unit quaternions'
// rotations, used to measure how far a candidate orientation deviates from
// a prior (the aligned-search tolerance check in §4.3).
func AngleBetween(a, b quat.Number) float64 {
	rel := quat.Mul(quat.Conj(a), b)
	w := rel.Real
	if w > 1 {
		w = 1
	} else if w < -1 {
		w = -1
	}
	return 2 * math.Acos(math.Abs(w))
}

// MirrorXZ applies the HMD's axis-convention mirror: a 180-degree rotation
// about Y, expressed as negating the X/Z position and the X/Z quaternion
// components. This is a proper rotation (determinant +1), not a reflection,
// and is applied symmetrically on submit and on read-back (§11 of
// SPEC_FULL.md) for device id 0 only.
func MirrorXZ(p Pose) Pose {
	return Pose{
		Orient: quat.Number{Real: p.Orient.Real, Imag: -p.Orient.Imag, Jmag: p.Orient.Jmag, Kmag: -p.Orient.Kmag},
		Pos:    Vec3{X: -p.Pos.X, Y: p.Pos.Y, Z: -p.Pos.Z},
	}
}

// Lerp linearly interpolates between two unit quaternions and renormalizes,
// taking the shorter path (negating b if it is more than 90 degrees from a).
// Used for the device output smoother's single-pole exponential filter
// (spec §4.8).
func Lerp(a, b quat.Number, t float64) quat.Number {
	if quat.Mul(quat.Conj(a), b).Real < 0 {
		b = quat.Scale(-1, b)
	}
	return Normalize(quat.Number{
		Real: a.Real*(1-t) + b.Real*t,
		Imag: a.Imag*(1-t) + b.Imag*t,
		Jmag: a.Jmag*(1-t) + b.Jmag*t,
		Kmag: a.Kmag*(1-t) + b.Kmag*t,
	})
}

// DegToRad converts degrees to radians.
func DegToRad(deg float64) float64 { return deg * math.Pi / 180 }

// RadToDeg converts radians to degrees.
func RadToDeg(rad float64) float64 { return rad * 180 / math.Pi }

// Max returns the larger of a and b, used by the aligned-search tolerance
// computation (max(2*sigma_gravity, 10 degrees)).
func Max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
