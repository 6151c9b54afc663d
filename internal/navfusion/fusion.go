package navfusion

import "math"

// FusionPipeline seeds from INS, calls the EKF,
// apply the estimated error state as corrections, and convert back to
// LLH.
type FusionPipeline struct {
	kf *KalmanFilter
}

func NewFusionPipeline(kf *KalmanFilter) *FusionPipeline {
	return &FusionPipeline{kf: kf}
}

type FusionProcessArgs struct {
	Rb2n               Mat3
	Acc                Vec3
	RPYDot             Vec3
	Lat                float64
	ModeMechanicsLocal bool
	AttitudeSelector   Vec3
	BodySelector       Vec3
	FsIMU              float64
	IsGpsDataNew       bool
	IsGpsDataValid     bool
	GpsOffMin, GpsOffMax float64
	EpochSeconds       float64
}

// IsKfUpdatable evaluates the GPS-off interval gate
// with the boundary semantics from original_source (strict < / >, not
// <=/>=, so the interval endpoints themselves remain updatable).
func IsKfUpdatable(isGpsDataNew, isGpsDataValid bool, gpsOffMin, gpsOffMax, epochSeconds float64) bool {
	if !isGpsDataNew || !isGpsDataValid {
		return false
	}
	if gpsOffMin < 0 && gpsOffMax < 0 {
		return true
	}
	inGpsOffWindow := epochSeconds > gpsOffMin && epochSeconds < gpsOffMax
	return !inGpsOffWindow
}

// Process mutates fusion in place and returns a non-nil error only when
// the EKF update was attempted and its innovation covariance was
// singular (reported as KfUpdateNonInvertible).
func (fp *FusionPipeline) Process(fusion *FusionState, ins *InsState, gps *GpsState, ecefRefSet bool, ecefRef Vec3, a FusionProcessArgs) error {
	fusion.ENU = ins.ENU
	fusion.RPY = ins.RPY
	fusion.RPYDot = ins.RPYDot
	fusion.V = ins.V

	if math.IsNaN(fusion.ECEFRef[0]) && ecefRefSet {
		fusion.ECEFRef = ecefRef
		fusion.LLH = gps.LLH
	}

	isUpdatable := IsKfUpdatable(a.IsGpsDataNew, a.IsGpsDataValid, a.GpsOffMin, a.GpsOffMax, a.EpochSeconds)

	r := identityMat3()
	if !a.ModeMechanicsLocal {
		r = a.Rb2n
	}

	fp.kf.Predict(PredictArgs{
		ModeMechanicsLocal: a.ModeMechanicsLocal,
		Rb2n:               a.Rb2n,
		Acc:                a.Acc,
		RPYDot:             a.RPYDot,
		RPY:                fusion.RPY,
		Lat:                a.Lat,
		AttitudeSelector:   a.AttitudeSelector,
		BodySelector:       a.BodySelector,
		FsIMU:              a.FsIMU,
	})

	var updateErr error
	if isUpdatable {
		z := subVec3(gps.ENU, fusion.ENU)
		updateErr = fp.kf.Update(z, a.AttitudeSelector, a.BodySelector)
	}

	fusion.ENU = addVec3(fusion.ENU, fp.kf.PositionError())
	fusion.V = addVec3(fusion.V, mulVec3(r, fp.kf.VelocityError()))

	attErr := fp.kf.AttitudeError()
	fusion.RPY = addVec3(fusion.RPY, attErr)
	fusion.RPY[0] = adjustRollPitch(fusion.RPY[0])
	fusion.RPY[1] = adjustRollPitch(fusion.RPY[1])
	fusion.RPY[2] = adjustYaw(fusion.RPY[2])

	if !math.IsNaN(fusion.ECEFRef[0]) {
		fusion.ECEF = enu2ecef(fusion.LLH, fusion.ENU, fusion.ECEFRef)
		fusion.LLH = ecef2llh(fusion.ECEF)
	}

	return updateErr
}
