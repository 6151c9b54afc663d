package navfusion

import "math"

// NavData holds the per-epoch sensor vector and performs the conditioning
// sequence applied to every sensor row. The column-id/holder pairing for
// {GPS,ACC,GYR,MAG,RPY,HDOP} is carried over from the original
// program's MapInputMonitorStruct (original_source/interface_navdata.h),
// expressed here as short loops over the fixed-size column-index arrays.
type NavData struct {
	in *NavInputs

	accRest, gyrRest         Vec3
	plat2Body                Mat3
	bodySelector             Vec3
	attitudeSelector         Vec3
	quantFactor              float64
	heightVal                float64
	inputAnglesInRadians     bool
	horizontalAlignment      bool
	gravityCorrection        bool
	feedbackBias             bool
}

func NewNavData(cfg *Config) *NavData {
	return &NavData{
		in:                   newNavInputs(),
		accRest:              cfg.ACCRest,
		gyrRest:              cfg.GYRRest,
		plat2Body:            matrixPlatform2Body(cfg.Plat2Body),
		bodySelector:         cfg.BodySelector,
		attitudeSelector:     cfg.AttitudeSelector,
		quantFactor:          cfg.QuantFactor,
		heightVal:            cfg.HeightVal,
		inputAnglesInRadians: cfg.InputAnglesInRadians,
		horizontalAlignment:  cfg.HorizontalAlignment,
		gravityCorrection:    cfg.GravityCorrection,
		feedbackBias:         cfg.FeedbackBias,
	}
}

func colValue(row []float64, col int, previous float64) float64 {
	if col < 0 {
		return previous
	}
	if col >= len(row) {
		return math.NaN()
	}
	return row[col]
}

func quantize(x, q float64) float64 {
	return math.Trunc(x*q) / q
}

// Update runs the conditioning sequence against one CSV
// data row, given the previous epoch's INS RPY (for optional horizontal
// alignment / gravity correction) and the previous epoch's KF bias
// estimate (for optional feedback). Returns an OutOfRange *Fault if a
// mandatory column id points outside the row.
func (nd *NavData) Update(row []float64, gpsCols [2]int, accCols, gyrCols, magCols, rpyCols [3]int, hdopCol, heightCol int, prevInsRPY Vec3, prevBiasAcc, prevBiasGyro Vec3) error {
	in := nd.in

	for _, cols := range [][]int{gpsCols[:], accCols[:], gyrCols[:], magCols[:], rpyCols[:], {hdopCol}} {
		for _, col := range cols {
			if col >= len(row) {
				return NewFault(OutOfRange, "input column index out of range")
			}
		}
	}

	// 1. populate holder vectors from column ids; absent (-1) retains the
	// previous value (not reset to NaN), per interface_navdata.cpp.
	for i := 0; i < 2; i++ {
		in.GPS[i] = colValue(row, gpsCols[i], in.GPS[i])
	}
	for i := 0; i < 3; i++ {
		in.ACC[i] = colValue(row, accCols[i], in.ACC[i])
		in.GYR[i] = colValue(row, gyrCols[i], in.GYR[i])
		in.MAG[i] = colValue(row, magCols[i], in.MAG[i])
		in.RPY[i] = colValue(row, rpyCols[i], in.RPY[i])
	}
	in.HDOP = colValue(row, hdopCol, in.HDOP)

	// height substitution if the GPS-height column is absent
	if heightCol < 0 {
		in.Height = nd.heightVal
	} else if heightCol < len(row) {
		in.Height = row[heightCol]
	} else {
		return NewFault(OutOfRange, "GPS height column index out of range")
	}

	// 2. subtract configured rest biases (platform frame)
	in.ACC = subVec3(in.ACC, nd.accRest)
	in.GYR = subVec3(in.GYR, nd.gyrRest)

	// 3. quantize ACC/GYR/MAG/RPY by truncation (GPS is not quantized)
	for i := 0; i < 3; i++ {
		in.ACC[i] = quantize(in.ACC[i], nd.quantFactor)
		in.GYR[i] = quantize(in.GYR[i], nd.quantFactor)
		in.MAG[i] = quantize(in.MAG[i], nd.quantFactor)
		in.RPY[i] = quantize(in.RPY[i], nd.quantFactor)
	}

	// 4. platform-to-body rotation applied to ACC only (not GYR) — this
	// asymmetry is intentional, not an oversight.
	in.ACC = mulVec3(nd.plat2Body, in.ACC)

	// 5. bias feedback from the previous epoch's KF state
	if nd.feedbackBias {
		in.ACC = addVec3(in.ACC, prevBiasAcc)
		in.GYR = addVec3(in.GYR, prevBiasGyro)
	}

	// 6. unit conversion: RPY only if configured in degrees; GPS lat/lon
	// unconditionally converted to radians regardless of the flag.
	if !nd.inputAnglesInRadians {
		for i := 0; i < 3; i++ {
			in.RPY[i] = in.RPY[i] * math.Pi / 180
		}
	}
	in.GPS[0] = in.GPS[0] * math.Pi / 180
	in.GPS[1] = in.GPS[1] * math.Pi / 180

	// 7. freshness/validity flags
	in.isGpsDataNew = in.GPS != in.prevGPS
	in.isGpsDataValid = !math.IsNaN(in.GPS[0]) && !math.IsNaN(in.GPS[1])
	in.prevGPS = in.GPS

	// 8. mask ACC/MAG by bodySelector, GYR by attitudeSelector
	in.ACC = scaleVec3Elemwise(in.ACC, nd.bodySelector)
	in.MAG = scaleVec3Elemwise(in.MAG, nd.bodySelector)
	in.GYR = scaleVec3Elemwise(in.GYR, nd.attitudeSelector)

	// 9. optional horizontal-plane alignment using the *previous* INS
	// attitude
	if nd.horizontalAlignment {
		b2h := matrixBody2H(prevInsRPY)
		in.ACC = mulVec3(b2h, in.ACC)
		in.GYR = mulVec3(b2h, in.GYR)
	}

	// 10. optional gravity correction
	if nd.gravityCorrection {
		gz := gravityCorrectionForComponentZ(in.Height, in.GPS[0])
		gl := Vec3{0, 0, gz}
		b2e := matrixBody2Enu(prevInsRPY)
		in.ACC = subVec3(in.ACC, mulVec3(b2e, gl))
	}

	return nil
}

func (nd *NavData) IsGpsDataNew() bool   { return nd.in.isGpsDataNew }
func (nd *NavData) IsGpsDataValid() bool { return nd.in.isGpsDataValid }
func (nd *NavData) GPS() Vec3            { return Vec3{nd.in.GPS[0], nd.in.GPS[1], nd.in.Height} }
func (nd *NavData) ACC() Vec3            { return nd.in.ACC }
func (nd *NavData) GYR() Vec3            { return nd.in.GYR }
func (nd *NavData) MAG() Vec3            { return nd.in.MAG }
func (nd *NavData) RPY() Vec3            { return nd.in.RPY }
