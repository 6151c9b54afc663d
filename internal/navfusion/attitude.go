package navfusion

import "math"

// AttitudeEstimator reconciles provided RPY with accelerometer-derived
// roll/pitch and magnetometer-derived yaw. rpyRatePrev
// is held as per-instance state mirroring the `static` previous-rate
// variable in the original program's AttitudeAngles::calculateAttitudeDynamics
// treated as per-component persistent state across epochs.
type AttitudeEstimator struct {
	rpyRatePrev Vec3
	isRpySet    bool
}

func NewAttitudeEstimator() *AttitudeEstimator {
	return &AttitudeEstimator{}
}

func available(rpyCol int, value float64) bool {
	return rpyCol >= 0 && !math.IsNaN(value)
}

// Process dispatches between gyro-driven
// propagation and direct recomputation from ACC/MAG. It returns the
// propagated RPY and the angular rate used to propagate it (zero when
// falling back to directCompute, which has no rate to report).
func (ae *AttitudeEstimator) Process(rpy Vec3, rpyCols [3]int, acc, gyr, mag Vec3, attitudeSelector Vec3, progressAngles bool, fsImu float64) (Vec3, Vec3) {
	if progressAngles && ae.isRpySet {
		rpyRate := mulVec3(matrixRateAttitudeDynamics(rpy), gyr)
		rpyRate = scaleVec3Elemwise(rpyRate, attitudeSelector)
		out := addVec3(rpy, scaleVec3(addVec3(rpyRate, ae.rpyRatePrev), 0.5/fsImu))
		ae.rpyRatePrev = rpyRate
		return out, rpyRate
	}

	out := ae.directCompute(rpy, rpyCols, acc, mag, attitudeSelector)
	if progressAngles && !ae.isRpySet {
		ae.isRpySet = true
	}
	return out, Vec3{}
}

func (ae *AttitudeEstimator) directCompute(rpy Vec3, rpyCols [3]int, acc, mag Vec3, attitudeSelector Vec3) Vec3 {
	var roll, pitch, yaw float64

	if available(rpyCols[0], rpy[0]) {
		roll = rpy[0]
	} else {
		roll = math.Atan(-acc[1] / acc[2])
	}
	roll = nanToZero(roll)

	if available(rpyCols[1], rpy[1]) {
		pitch = rpy[1]
	} else {
		pitch = math.Atan(-acc[0] / acc[2])
	}
	pitch = nanToZero(pitch)

	if available(rpyCols[2], rpy[2]) {
		yaw = rpy[2]
	} else {
		sr, cr := math.Sin(roll), math.Cos(roll)
		sp, cp := math.Sin(pitch), math.Cos(pitch)
		num := mag[1]*cr + mag[2]*sr
		den := mag[0]*cp + mag[1]*sp*sr - mag[2]*cr*sr
		yaw = math.Atan2(num, den)
	}
	yaw = nanToZero(yaw)

	return scaleVec3Elemwise(Vec3{roll, pitch, yaw}, attitudeSelector)
}
