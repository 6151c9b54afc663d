package navfusion

import "math"

// GpsFrame is the shared navigation-frame shape (ECEF/ENU/LLH/reference)
// common to every pipeline. Modeled as composition rather than
// inheritance.
type GpsFrame struct {
	ECEF    Vec3
	ENU     Vec3
	LLH     Vec3
	ECEFRef Vec3
}

func newGpsFrame() GpsFrame {
	nan := math.NaN()
	return GpsFrame{
		LLH:     Vec3{nan, nan, nan},
		ECEFRef: Vec3{nan, nan, nan},
	}
}

// GpsState is the GNSS pipeline's navigation solution.
type GpsState struct {
	GpsFrame
}

func newGpsState() GpsState { return GpsState{newGpsFrame()} }

// InsState extends GpsFrame with velocity and attitude, for the INS
// dead-reckoning pipeline.
type InsState struct {
	GpsFrame
	V      Vec3
	VDot   Vec3
	RPY    Vec3
	RPYDot Vec3
}

func newInsState() InsState { return InsState{GpsFrame: newGpsFrame()} }

// FusionState has the same shape as InsState (the corrected solution).
type FusionState struct {
	InsState
}

func newFusionState() FusionState { return FusionState{newInsState()} }

// getENU/getRPY/getRPYDot implement the minimal capability set
// needed on the EKF's prediction carrier (LLH is read from the field
// directly); GpsState only needs getENU as the "observation carrier".
func (f GpsFrame) getENU() Vec3 { return f.ENU }
func (s InsState) getRPY() Vec3 { return s.RPY }
func (s InsState) getRPYDot() Vec3 { return s.RPYDot }

// NavInputs holds both the CSV column indices (−1 = absent) and the
// current converted values for one epoch's sensor vector.
type NavInputs struct {
	GPSCols [2]int
	ACCCols [3]int
	GYRCols [3]int
	MAGCols [3]int
	RPYCols [3]int
	HDOPCol int
	HeightCol int

	GPS Vec3 // lat, lon (rad after conversion), and height placeholder held separately
	ACC Vec3
	GYR Vec3
	MAG Vec3
	RPY Vec3
	HDOP float64
	Height float64

	prevGPS Vec3
	isGpsDataNew bool
	isGpsDataValid bool
	isRpySet bool
}

func newNavInputs() *NavInputs {
	return &NavInputs{
		GPSCols: [2]int{-1, -1}, ACCCols: [3]int{-1, -1, -1}, GYRCols: [3]int{-1, -1, -1},
		MAGCols: [3]int{-1, -1, -1}, RPYCols: [3]int{-1, -1, -1}, HDOPCol: -1, HeightCol: -1,
		prevGPS: Vec3{math.NaN(), math.NaN(), math.NaN()},
	}
}
