package navfusion

import "math"

// Frames implements the pure, stateless coordinate-frame conversions and
// attitude rotation matrices. It is grounded on
// Ecef2Pos/Pos2Ecef/XYZ2Enu/Ecef2Enu/Enu2Ecef (common.go) for the general
// iterative/rotation-matrix shape, with the exact WGS-84 formulas and
// rotation conventions taken from the original program's frames.cpp where
// a simpler fixed-point iteration does not match the
// Bowring-style fixed point this domain requires.

const (
	wgsSemiMajorA   = 6378137.0
	wgsSemiMinorB   = 6356752.3142
	wgsEcc          = 0.08181919084261345
	wgsEccSecond    = 0.0820944379497174
	gEquator        = 9.78032677
	gPoles          = 9.83218636
	earthRotationRate = 7.2921150e-5

	piConst          = math.Pi
	pi16             = int(piConst * 65536)
	adjustAngleMargin = 0.001
)

// llh2ecef converts geodetic {lat,lon,h} (rad,rad,m) to ECEF {x,y,z} (m)
// using the standard WGS-84 closed form.
func llh2ecef(llh Vec3) Vec3 {
	phi, lambda, h := llh[0], llh[1], llh[2]
	n := wgsSemiMajorA / math.Sqrt(1+(1-wgsEcc*wgsEcc)*math.Tan(phi)*math.Tan(phi))
	x := math.Cos(lambda)*n + h*math.Cos(lambda)*math.Cos(phi)
	y := math.Sin(lambda)*n + h*math.Sin(lambda)*math.Cos(phi)
	z := wgsSemiMajorA * (1 - wgsEcc*wgsEcc) * math.Sin(phi)
	z /= math.Sqrt(1 - wgsEcc*wgsEcc*math.Sin(phi)*math.Sin(phi))
	z += h * math.Sin(phi)
	return Vec3{x, y, z}
}

// ecef2llh converts ECEF {x,y,z} (m) to geodetic {lat,lon,h} (rad,rad,m)
// via the Bowring-style fixed point on tan(u), iterating until the change
// in tan(u) falls below 1e-12. The quadrant handling for longitude and the
// pole-proximity branch for height use integer-scaled comparisons, exactly
// as the source program does, rather than a tolerance-based float compare.
func ecef2llh(ecef Vec3) Vec3 {
	p := math.Hypot(ecef[0], ecef[1])
	var tanU float64
	if p > 0 {
		tanU = (ecef[2] / p) * wgsSemiMajorA / wgsSemiMinorB
	}

	var tanPhi, phi float64
	diffTanU := 1.0
	for math.Abs(diffTanU) > 1e-12 {
		var cos2u float64
		if p > 0 {
			cos2u = 1 / (1 + tanU*tanU)
		}
		sin2u := 1 - cos2u
		tanPhi = ecef[2] + wgsEccSecond*wgsEccSecond*wgsSemiMinorB*math.Pow(math.Sqrt(sin2u), 3)
		tanPhi /= p - wgsEcc*wgsEcc*wgsSemiMajorA*math.Pow(math.Sqrt(cos2u), 3)
		prevTanU := tanU
		tanU = wgsSemiMinorB / wgsSemiMajorA * tanPhi
		diffTanU = prevTanU - tanU
	}
	phi = math.Atan(tanPhi)
	n := wgsSemiMajorA / math.Sqrt(1-wgsEcc*wgsEcc*math.Sin(phi)*math.Sin(phi))

	var h float64
	if int(math.Abs(phi)*256) != int(90.0*(piConst/180.0)*256) {
		h = p/math.Cos(phi) - n
	} else if int(math.Abs(phi)*256) != 0 {
		h = ecef[2]/math.Sin(phi) - n + wgsEcc*wgsEcc*n
	}

	var lambda float64
	x256, y256 := int(ecef[0]*256), int(ecef[1]*256)
	switch {
	case x256 >= 0:
		lambda = math.Atan(ecef[1] / ecef[0])
	case x256 < 0 && y256 >= 0:
		lambda = 180*(piConst/180.0) + math.Atan(ecef[1]/ecef[0])
	default:
		lambda = -180*(piConst/180.0) + math.Atan(ecef[1]/ecef[0])
	}

	return Vec3{phi, lambda, h}
}

// matrixEcef2Enu returns the rotation matrix from ECEF into the local ENU
// tangent plane anchored at llh.
func matrixEcef2Enu(llh Vec3) Mat3 {
	cosLat, sinLat := math.Cos(llh[0]), math.Sin(llh[0])
	cosLon, sinLon := math.Cos(llh[1]), math.Sin(llh[1])
	// column-major literal: each line below is one column of the matrix
	return Mat3{
		-sinLon, -sinLat * cosLon, cosLat * cosLon,
		cosLon, -sinLat * sinLon, cosLat * sinLon,
		0, cosLat, sinLat,
	}
}

// ecef2enu converts an ECEF vector into the local ENU frame anchored at
// llh, relative to the shared reference xyz0.
func ecef2enu(llh, ecefVec, xyz0 Vec3) Vec3 {
	r := matrixEcef2Enu(llh)
	return mulVec3(r, subVec3(ecefVec, xyz0))
}

// enu2ecef is the inverse of ecef2enu.
func enu2ecef(llh, enu, xyz0 Vec3) Vec3 {
	r := transposeMat3(matrixEcef2Enu(llh))
	return addVec3(mulVec3(r, enu), xyz0)
}

// matrixBody2Enu is the explicit closed form used throughout; any NaN
// component is replaced by 0.
func matrixBody2Enu(rpy Vec3) Mat3 {
	roll, pitch, yaw := rpy[0], rpy[1], rpy[2]
	sy, cy := math.Sin(yaw), math.Cos(yaw)
	sp, cp := math.Sin(pitch), math.Cos(pitch)
	sr, cr := math.Sin(roll), math.Cos(roll)

	m := Mat3{
		// column-major: fill row by row using explicit indices
	}
	// row 0
	m[0+0*3] = sy * cp
	m[0+1*3] = cy*cr + sy*sp*sr
	m[0+2*3] = -cy*sr + sy*sp*cr
	// row 1
	m[1+0*3] = cy * cp
	m[1+1*3] = -sy*cr + cy*sp*sr
	m[1+2*3] = cy*sp*cr + sy*cr
	// row 2
	m[2+0*3] = sp
	m[2+1*3] = -cp * sr
	m[2+2*3] = -cp * cr

	return mat3NanToZero(m)
}

// matrixBody2H projects body-frame vectors onto the local horizontal
// plane: StdRx(roll)*StdRy(pitch), expanded directly (rather than composed
// from signed elementary-rotation helpers) to keep the column-major layout
// unambiguous.
func matrixBody2H(rpy Vec3) Mat3 {
	roll, pitch := rpy[0], rpy[1]
	sr, cr := math.Sin(roll), math.Cos(roll)
	sp, cp := math.Sin(pitch), math.Cos(pitch)

	var m Mat3
	m[0+0*3] = cp
	m[0+1*3] = 0
	m[0+2*3] = sp
	m[1+0*3] = sr * sp
	m[1+1*3] = cr
	m[1+2*3] = -sr * cp
	m[2+0*3] = -cr * sp
	m[2+1*3] = sr
	m[2+2*3] = cr * cp
	return m
}

// matrixPlatform2Body reshapes a 9-element row-major vector into a 3x3
// matrix. This is explicitly row-major (the reshape
// convention is stated, not left to the original's column-major armadillo
// default — see DESIGN.md for the resolved discrepancy).
func matrixPlatform2Body(v9 [9]float64) Mat3 {
	var m Mat3
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			m[row+col*3] = v9[row*3+col]
		}
	}
	return m
}

// matrixRateAttitudeDynamics returns M such that RPY_dot = M * omega_body.
func matrixRateAttitudeDynamics(rpy Vec3) Mat3 {
	roll, pitch := rpy[0], rpy[1]
	sr, cr := math.Sin(roll), math.Cos(roll)
	tp := math.Tan(pitch)
	cp := math.Cos(pitch)

	m := Mat3{}
	m[0+0*3] = 1
	m[0+1*3] = sr * tp
	m[0+2*3] = cr * tp
	m[1+1*3] = cr
	m[1+2*3] = -sr
	m[2+1*3] = sr / cp
	m[2+2*3] = cr / cp

	return mat3NanToZero(m)
}

// adjustRollPitch clamps roll/pitch overflow to -pi/2 on both the positive
// and negative overflow branches. This mirrors the original program
// exactly: a known asymmetric clamp, preserved as-is rather than "fixed".
func adjustRollPitch(x float64) float64 {
	if x > piConst/2 {
		return -piConst / 2
	}
	if x < -piConst/2 {
		return -piConst / 2
	}
	return x
}

// adjustYaw wraps yaw into [0, 2*pi) using the integer-scaled modulo the
// original program performs, snapping to the exact endpoints when within
// adjustAngleMargin of them.
func adjustYaw(yaw float64) float64 {
	yawInt := int(yaw * 65536)
	switch {
	case yaw > 2*piConst:
		if math.Abs(yaw-2*piConst) < adjustAngleMargin {
			return 2 * piConst
		}
		yawInt %= 2 * pi16
		return float64(yawInt) / 65536
	case yaw < 0:
		if math.Abs(yaw) < adjustAngleMargin {
			return 0
		}
		yawInt += 2 * pi16
		yawInt %= 2 * pi16
		return float64(yawInt) / 65536
	default:
		return yaw
	}
}

// gravityCorrectionForComponentZ returns the Somigliana local gravity at
// the given height and latitude, matching the call-site argument order of
// the original program: (height, latitude) — see DESIGN.md.
func gravityCorrectionForComponentZ(height, lat float64) float64 {
	k := (wgsSemiMinorB * gPoles) / (wgsSemiMajorA * gEquator)
	k -= 1
	g0 := gEquator * (1 + k*math.Sin(lat)*math.Sin(lat)) / math.Sqrt(1-wgsEcc*wgsEcc*math.Sin(lat)*math.Sin(lat))
	b := math.Pow(wgsSemiMajorA/(wgsSemiMajorA+height), 2)
	return g0 * b
}
