package utils

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// QuatToEuler returns XYZ euler angles in radians.
func QuatToEuler(q mgl64.Quat) (e mgl64.Vec3) {
	sinr_cosp := 2 * (q.W*q.X() + q.Y()*q.Z())
	cosr_cosp := 1 - 2*(q.X()*q.X()+q.Y()*q.Y())
	e[0] = math.Atan2(sinr_cosp, cosr_cosp)

	sinp := 2 * (q.W*q.Y() - q.Z()*q.X())
	if math.Abs(sinp) >= 1 {
		e[1] = math.Copysign(math.Pi/2, sinp)
	} else {
		e[1] = math.Asin(sinp)
	}

	siny_cosp := 2 * (q.W*q.Z() + q.X()*q.Y())
	cosy_cosp := 1 - 2*(q.Y()*q.Y()+q.Z()*q.Z())
	e[2] = math.Atan2(siny_cosp, cosy_cosp)

	return e
}

// EulerToQuat is the inverse of QuatToEuler, input in radians.
func EulerToQuat(v mgl64.Vec3) mgl64.Quat {
	return mgl64.AnglesToQuat(v[2], v[1], v[0], mgl64.ZYX).Normalize()
}

func RadiansToDegreeV3(v mgl64.Vec3) mgl64.Vec3 {
	return v.Mul(180.0 / math.Pi)
}
