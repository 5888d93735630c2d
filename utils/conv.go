package utils

import (
	"github.com/go-gl/mathgl/mgl64"
)

func Vec3To64(v [3]float32) mgl64.Vec3 {
	return mgl64.Vec3{float64(v[0]), float64(v[1]), float64(v[2])}
}

func Vec3To32(v mgl64.Vec3) [3]float32 {
	return [3]float32{float32(v[0]), float32(v[1]), float32(v[2])}
}

// QuatToXYZW converts to the x, y, z, w layout used by scene formats.
func QuatToXYZW(q mgl64.Quat) [4]float32 {
	return [4]float32{float32(q.V[0]), float32(q.V[1]), float32(q.V[2]), float32(q.W)}
}

func QuatFromXYZW(v [4]float32) mgl64.Quat {
	return mgl64.Quat{W: float64(v[3]), V: mgl64.Vec3{float64(v[0]), float64(v[1]), float64(v[2])}}
}

func Mat4To64(m [16]float32) (out mgl64.Mat4) {
	for i, v := range m {
		out[i] = float64(v)
	}
	return out
}
