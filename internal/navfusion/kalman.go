package navfusion

import (
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// KalmanFilter is the 15-state error-state EKF, modeled on
// Valkyrie/internal/fusion/ekf.go's dense fixed-size EKF built on
// gonum.org/v1/gonum/mat, the idiomatic choice for dense linear algebra
// at this dimension.
//
// State ordering: [0:3) position error (ENU), [3:6) velocity error,
// [6:9) attitude error (R,P,Y), [9:12) accelerometer bias,
// [12:15) gyroscope bias.
const kfDim = 15

type KalmanFilter struct {
	X *mat.VecDense // state, 15x1
	S *mat.SymDense // covariance, 15x15

	u [15]float64 // per-state process-noise std
	w [3]float64  // per-measurement variance

	H *mat.Dense // 3x15, fixed [I3|0]
	tau float64

	attitudeSelector Vec3
	bodySelector     Vec3
}

// ParseKfStd parses the 15 comma-separated standard-deviation values per
// 3 leading slots, 3 acc-bias, 3 acc-noise,
// 3 gyro-bias, 3 gyro-noise, 3 GPS-DOP. The first 12 populate u[3..14]
// (u[0..2] stay zero); the last 3 populate w[0..2] squared into variances. The comma count
// must be exactly 14 (15 values) or this fails with KfStdLengthMismatch,
// mirroring proc_kf.cpp::initialize()'s exact validation.
func ParseKfStd(raw string) ([15]float64, [3]float64, error) {
	var u [15]float64
	var w [3]float64

	parts := strings.Split(raw, ",")
	if len(parts) != 15 {
		return u, w, NewFault(KfStdLengthMismatch, "KF STD length: expected 15 comma-separated values, got "+strconv.Itoa(len(parts)))
	}
	vals := make([]float64, 15)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return u, w, WrapFault(OutOfRange, "parsing KF std value", err)
		}
		vals[i] = f
	}
	// vals[0:12] fill u[3..14] in order, so the leading slots vals[0:3]
	// seed u[3..5]; the position-error slots u[0..2] are left at zero.
	copy(u[3:15], vals[0:12])
	for i := 0; i < 3; i++ {
		w[i] = vals[12+i] * vals[12+i]
	}
	return u, w, nil
}

// NewKalmanFilter builds the filter with H = [I3|0], S = 0.1*I15, and u
// masked on [6:9) and [12:15) by the attitude selector and on [9:12) by
// the body selector, per the filter's std-deviation configuration layout.
func NewKalmanFilter(u [15]float64, w [3]float64, tau float64, attitudeSelector, bodySelector Vec3) *KalmanFilter {
	kf := &KalmanFilter{
		X:                mat.NewVecDense(kfDim, nil),
		S:                mat.NewSymDense(kfDim, nil),
		u:                u,
		w:                w,
		tau:              tau,
		attitudeSelector: attitudeSelector,
		bodySelector:     bodySelector,
	}
	for i := 0; i < kfDim; i++ {
		kf.S.SetSym(i, i, 0.1)
	}

	// mask u[6:9) by attitude selector, u[9:12) by body selector,
	// u[12:15) by attitude selector
	for i := 0; i < 3; i++ {
		kf.u[6+i] *= attitudeSelector[i]
		kf.u[9+i] *= bodySelector[i]
		kf.u[12+i] *= attitudeSelector[i]
	}

	h := mat.NewDense(3, kfDim, nil)
	for i := 0; i < 3; i++ {
		h.Set(i, i, 1)
	}
	kf.H = h
	return kf
}

// buildContinuousF builds the continuous-time state-transition Jacobian
// per the discretized process model.
func buildContinuousF(r, rb2n Mat3, acc, rpyDot Vec3, rpyMasked Vec3, skewIe Mat3, attitudeSelector Vec3, tau float64) *mat.Dense {
	f := mat.NewDense(kfDim, kfDim, nil)
	setBlock3(f, 0, 3, r)

	f.Set(5, 2, 2*gEquator/wgsSemiMajorA)

	rT := transposeMat3(r)
	negRtSkewIe2 := scaleMat3(mulMat3(rT, skewIe), -2)
	setBlock3(f, 3, 3, negRtSkewIe2)

	skewAcc := skew(mulVec3(rb2n, acc))
	negRtSkewAcc := scaleMat3(mulMat3(rT, skewAcc), -1)
	setBlock3(f, 3, 6, negRtSkewAcc)

	rtRb2n := mulMat3(rT, rb2n)
	setBlock3(f, 3, 9, rtRb2n)

	setBlock3(f, 6, 6, skew(scaleVec3Elemwise(rpyDot, attitudeSelector)))
	mAtt := matrixRateAttitudeDynamics(rpyMasked)
	setBlock3(f, 6, 12, mAtt)

	for i := 0; i < 3; i++ {
		f.Set(9+i, 9+i, -1/tau)
		f.Set(12+i, 12+i, -1/tau)
	}
	return f
}

func scaleVec3Elemwise(a, b Vec3) Vec3 {
	return Vec3{a[0] * b[0], a[1] * b[1], a[2] * b[2]}
}

func scaleMat3(m Mat3, s float64) Mat3 {
	for i := range m {
		m[i] *= s
	}
	return m
}

func setBlock3(dst *mat.Dense, row, col int, m Mat3) {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			dst.Set(row+i, col+j, m[i+j*3])
		}
	}
}

// buildNoiseGain builds G: identity except G[3:6,3:6] = R^T*Rb2n and
// G[6:9,6:9] = M.
func buildNoiseGain(r, rb2n Mat3, rpyMasked Vec3) *mat.Dense {
	g := mat.NewDense(kfDim, kfDim, nil)
	for i := 0; i < kfDim; i++ {
		g.Set(i, i, 1)
	}
	rtRb2n := mulMat3(transposeMat3(r), rb2n)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			g.Set(3+i, 3+j, rtRb2n[i+j*3])
		}
	}
	mAtt := matrixRateAttitudeDynamics(rpyMasked)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			g.Set(6+i, 6+j, mAtt[i+j*3])
		}
	}
	return g
}

// PredictArgs carries the per-epoch quantities the continuous-time model
// needs, computed by the Fusion/INS pipelines.
type PredictArgs struct {
	ModeMechanicsLocal bool
	Rb2n               Mat3
	Acc                Vec3
	RPYDot             Vec3
	RPY                Vec3
	Lat                float64
	AttitudeSelector   Vec3
	BodySelector       Vec3
	FsIMU              float64
}

// Predict advances the filter one epoch: forms F/G, discretizes, masks,
// predicts X and S. This matches proc_kf.cpp::process()'s predict-only
// call order (stateTransitionMatrix -> discretize -> componentSelection
// -> predictState).
func (kf *KalmanFilter) Predict(a PredictArgs) {
	r := identityMat3()
	if !a.ModeMechanicsLocal {
		r = a.Rb2n
	}
	skewIe := skewInertialEarth(a.Lat)
	rpyMasked := scaleVec3Elemwise(a.RPY, a.AttitudeSelector)

	f := buildContinuousF(r, a.Rb2n, a.Acc, a.RPYDot, rpyMasked, skewIe, a.AttitudeSelector, kf.tau)
	g := buildNoiseGain(r, a.Rb2n, rpyMasked)

	dt := 1.0 / a.FsIMU
	fk := mat.NewDense(kfDim, kfDim, nil)
	fk.Scale(dt, f)
	for i := 0; i < kfDim; i++ {
		fk.Set(i, i, fk.At(i, i)+1)
	}

	q := mat.NewDiagDense(kfDim, nil)
	for i := 0; i < kfDim; i++ {
		q.SetDiag(i, kf.u[i]*kf.u[i])
	}
	var gq, qk mat.Dense
	gq.Mul(g, q)
	qk.Mul(&gq, g.T())
	qk.Scale(dt, &qk)

	// component selection: zero columns of Fk/Qk for masked-out axes
	maskColumns(fk, a.AttitudeSelector, a.BodySelector)
	maskColumnsDense(&qk, a.AttitudeSelector, a.BodySelector)

	var xNew mat.VecDense
	xNew.MulVec(fk, kf.X)
	kf.X = &xNew

	var sTmp, sTmp2 mat.Dense
	sTmp.Mul(fk, kf.S)
	sTmp2.Mul(&sTmp, fk.T())
	var sPlusQ mat.Dense
	sPlusQ.Add(&sTmp2, &qk)
	kf.S = denseToSym(&sPlusQ)

	kf.remaskX(a.AttitudeSelector, a.BodySelector)
}

func maskColumns(m *mat.Dense, attitudeSelector, bodySelector Vec3) {
	for i := 0; i < 3; i++ {
		scaleColumn(m, 6+i, attitudeSelector[i])
		scaleColumn(m, 9+i, bodySelector[i])
		scaleColumn(m, 12+i, attitudeSelector[i])
	}
}

func maskColumnsDense(m *mat.Dense, attitudeSelector, bodySelector Vec3) {
	maskColumns(m, attitudeSelector, bodySelector)
}

func scaleColumn(m *mat.Dense, col int, s float64) {
	r, _ := m.Dims()
	for i := 0; i < r; i++ {
		m.Set(i, col, m.At(i, col)*s)
	}
}

func (kf *KalmanFilter) remaskX(attitudeSelector, bodySelector Vec3) {
	for i := 0; i < 3; i++ {
		kf.X.SetVec(6+i, kf.X.AtVec(6+i)*attitudeSelector[i])
		kf.X.SetVec(9+i, kf.X.AtVec(9+i)*bodySelector[i])
		kf.X.SetVec(12+i, kf.X.AtVec(12+i)*attitudeSelector[i])
	}
}

func denseToSym(d *mat.Dense) *mat.SymDense {
	n, _ := d.Dims()
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			avg := (d.At(i, j) + d.At(j, i)) / 2
			s.SetSym(i, j, avg)
		}
	}
	return s
}

// Update applies the GPS-ENU vs INS-ENU innovation when isKfUpdatable,
// per the discretized process model. z is GPS_ENU - INS_ENU.
func (kf *KalmanFilter) Update(z Vec3, attitudeSelector, bodySelector Vec3) error {
	zVec := mat.NewVecDense(3, []float64{z[0], z[1], z[2]})

	var hx mat.VecDense
	hx.MulVec(kf.H, kf.X)
	var innov mat.VecDense
	innov.SubVec(zVec, &hx)

	r := mat.NewDiagDense(3, []float64{kf.w[0], kf.w[1], kf.w[2]})

	var hs, hsht mat.Dense
	hs.Mul(kf.H, kf.S)
	hsht.Mul(&hs, kf.H.T())
	var v mat.Dense
	v.Add(&hsht, r)

	var vInv mat.Dense
	if err := vInv.Inverse(&v); err != nil {
		return NewFault(Unknown, "KfUpdateNonInvertible")
	}

	var sht mat.Dense
	sht.Mul(kf.S, kf.H.T())
	var k mat.Dense
	k.Mul(&sht, &vInv)

	var kInnov mat.VecDense
	kInnov.MulVec(&k, &innov)
	var xNew mat.VecDense
	xNew.AddVec(kf.X, &kInnov)
	kf.X = &xNew

	identity := mat.NewDiagDense(kfDim, nil)
	for i := 0; i < kfDim; i++ {
		identity.SetDiag(i, 1)
	}
	var kh mat.Dense
	kh.Mul(&k, kf.H)
	var imKh mat.Dense
	imKh.Sub(identity, &kh)
	var sNew mat.Dense
	sNew.Mul(&imKh, kf.S)
	kf.S = denseToSym(&sNew)

	kf.remaskX(attitudeSelector, bodySelector)
	return nil
}

// CovarianceTrace returns the trace (sum of the diagonal) of S, used by the
// EKF-gate testable property and the metrics side-car.
func (kf *KalmanFilter) CovarianceTrace() float64 {
	trace := 0.0
	for i := 0; i < kfDim; i++ {
		trace += kf.S.At(i, i)
	}
	return trace
}

// BiasAcc and BiasGyro expose the feedback-eligible slices of X for
// NavData's bias-feedback step.
func (kf *KalmanFilter) BiasAcc() Vec3 {
	return Vec3{kf.X.AtVec(9), kf.X.AtVec(10), kf.X.AtVec(11)}
}

func (kf *KalmanFilter) BiasGyro() Vec3 {
	return Vec3{kf.X.AtVec(12), kf.X.AtVec(13), kf.X.AtVec(14)}
}

func (kf *KalmanFilter) PositionError() Vec3 {
	return Vec3{kf.X.AtVec(0), kf.X.AtVec(1), kf.X.AtVec(2)}
}

func (kf *KalmanFilter) VelocityError() Vec3 {
	return Vec3{kf.X.AtVec(3), kf.X.AtVec(4), kf.X.AtVec(5)}
}

func (kf *KalmanFilter) AttitudeError() Vec3 {
	return Vec3{kf.X.AtVec(6), kf.X.AtVec(7), kf.X.AtVec(8)}
}
