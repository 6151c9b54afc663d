package navfusion

import "math"

// Small dense linear-algebra helpers over 3-vectors and 3x3 matrices,
// stored column-major (fortran convention), the same layout
// common.go keeps its flat-array routines. The Kalman filter's larger
// 15-dimensional matrices use gonum instead (see kalman.go) — this file
// only ever deals with 3x3/3x1 quantities, exactly the size its
// own MatMul/Dot/Cross3 were written for.

// Vec3 is a 3-element vector.
type Vec3 [3]float64

// Mat3 is a 3x3 matrix stored column-major.
type Mat3 [9]float64

func dot3(a, b Vec3) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func norm3(a Vec3) float64 {
	return math.Sqrt(dot3(a, a))
}

func cross3(a, b Vec3) Vec3 {
	return Vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func addVec3(a, b Vec3) Vec3 {
	return Vec3{a[0] + b[0], a[1] + b[1], a[2] + b[2]}
}

func subVec3(a, b Vec3) Vec3 {
	return Vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func scaleVec3(a Vec3, s float64) Vec3 {
	return Vec3{a[0] * s, a[1] * s, a[2] * s}
}

// mulVec3 computes A*v for a column-major 3x3 matrix.
func mulVec3(a Mat3, v Vec3) Vec3 {
	var out Vec3
	for i := 0; i < 3; i++ {
		s := 0.0
		for k := 0; k < 3; k++ {
			s += a[i+k*3] * v[k]
		}
		out[i] = s
	}
	return out
}

// mulMat3 computes A*B for column-major 3x3 matrices.
func mulMat3(a, b Mat3) Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			s := 0.0
			for k := 0; k < 3; k++ {
				s += a[i+k*3] * b[k+j*3]
			}
			out[i+j*3] = s
		}
	}
	return out
}

func transposeMat3(a Mat3) Mat3 {
	var out Mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[j+i*3] = a[i+j*3]
		}
	}
	return out
}

func identityMat3() Mat3 {
	return Mat3{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// skew returns the skew-symmetric cross-product matrix of x.
func skew(x Vec3) Mat3 {
	return Mat3{
		0, x[2], -x[1],
		-x[2], 0, x[0],
		x[1], -x[0], 0,
	}
}

// skewInertialEarth returns the skew-symmetric matrix of the Earth's
// rotation rate vector expressed at the given latitude.
func skewInertialEarth(lat float64) Mat3 {
	wie := Vec3{0, earthRotationRate * math.Cos(lat), earthRotationRate * math.Sin(lat)}
	return skew(wie)
}

func nanToZero(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return x
}

func mat3NanToZero(m Mat3) Mat3 {
	for i := range m {
		m[i] = nanToZero(m[i])
	}
	return m
}
