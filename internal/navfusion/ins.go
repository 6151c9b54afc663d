package navfusion

import "math"

// InsPipeline runs attitude propagation plus
// trapezoidal mechanization of velocity and position. vDotPrev is held as
// per-instance persistent state mirroring the original program's `static`
// previous-acceleration variable.
type InsPipeline struct {
	attitude *AttitudeEstimator
	vDotPrev Vec3
}

func NewInsPipeline() *InsPipeline {
	return &InsPipeline{attitude: NewAttitudeEstimator()}
}

type InsProcessArgs struct {
	ACC, GYR, MAG    Vec3
	RPYInput         Vec3
	RPYCols          [3]int
	AttitudeSelector Vec3
	ProgressAngles   bool
	ModeMechanicsLocal bool
	FsIMU            float64
}

// Process mutates ins in place. ecefRefSet/ecefRef are the engine's shared
// monitor state; gps is the same-epoch GNSS result, consulted only to seed
// the reference the first time it becomes available.
func (p *InsPipeline) Process(ins *InsState, gps *GpsState, ecefRefSet bool, ecefRef Vec3, a InsProcessArgs) {
	// 1. seed ECEF_REF/LLH from GNSS once the reference has just become
	// available and INS has not yet observed it.
	if ecefRefSet && math.IsNaN(ins.ECEFRef[0]) {
		ins.ECEFRef = ecefRef
		ins.LLH = gps.LLH
	}

	// 2. attitude propagation: once the estimator holds an initial attitude,
	// gyro-driven propagation continues from the current INS attitude.
	rpyIn := a.RPYInput
	if a.ProgressAngles && p.attitude.isRpySet {
		rpyIn = ins.RPY
	}
	ins.RPY, ins.RPYDot = p.attitude.Process(rpyIn, a.RPYCols, a.ACC, a.GYR, a.MAG, a.AttitudeSelector, a.ProgressAngles, a.FsIMU)

	// 3. clamp roll/pitch/yaw
	ins.RPY[0] = adjustRollPitch(ins.RPY[0])
	ins.RPY[1] = adjustRollPitch(ins.RPY[1])
	ins.RPY[2] = adjustYaw(ins.RPY[2])

	rb2n := matrixBody2Enu(scaleVec3Elemwise(ins.RPY, a.AttitudeSelector))
	lat := ins.LLH[0]
	skewIe := skewInertialEarth(lat)

	dt := 1.0 / a.FsIMU
	if a.ModeMechanicsLocal {
		vDot := subVec3(mulVec3(rb2n, a.ACC), scaleVec3(mulVec3(skewIe, ins.V), 2))
		ins.VDot = vDot
		ins.V = addVec3(ins.V, scaleVec3(addVec3(ins.VDot, p.vDotPrev), 0.5*dt))
	} else {
		coriolis := mulVec3(transposeMat3(rb2n), scaleVec3(mulVec3(skewIe, ins.V), -2))
		ins.VDot = addVec3(ins.VDot, addVec3(a.ACC, coriolis))
		ins.V = mulVec3(rb2n, scaleVec3(addVec3(ins.VDot, p.vDotPrev), 0.5*dt))
	}
	p.vDotPrev = ins.VDot

	// 6. position
	ins.ENU = addVec3(ins.ENU, scaleVec3(ins.V, dt))

	// 7. round-trip through ECEF/LLH
	if !math.IsNaN(ins.ECEFRef[0]) {
		ins.ECEF = enu2ecef(ins.LLH, ins.ENU, ins.ECEFRef)
		ins.LLH = ecef2llh(ins.ECEF)
	}
}
