package navfusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_ParseKfStd_requiresExactly15Values(t *testing.T) {
	assert := assert.New(t)
	_, _, err := ParseKfStd("1,2,3")
	assert.Error(err)
	fault, ok := err.(*Fault)
	assert.True(ok)
	assert.Equal(KfStdLengthMismatch, fault.Kind)
}

func Test_ParseKfStd_splitsUUntoWCorrectly(t *testing.T) {
	assert := assert.New(t)
	raw := "1,2,3,4,5,6,7,8,9,10,11,12,2,3,4"
	u, w, err := ParseKfStd(raw)
	assert.NoError(err)
	assert.Equal(0.0, u[0])
	assert.Equal(0.0, u[1])
	assert.Equal(0.0, u[2])
	assert.Equal(1.0, u[3])
	assert.Equal(12.0, u[14])
	assert.Equal(4.0, w[0])
	assert.Equal(9.0, w[1])
	assert.Equal(16.0, w[2])
}

func Test_KalmanFilter_Predict_growsCovarianceTrace(t *testing.T) {
	assert := assert.New(t)
	u, w, err := ParseKfStd("0.01,0.01,0.01,0.01,0.01,0.01,0.001,0.001,0.001,0.0001,0.0001,0.0001,1,1,1")
	assert.NoError(err)
	kf := NewKalmanFilter(u, w, 100, Vec3{1, 1, 1}, Vec3{1, 1, 1})

	before := kf.CovarianceTrace()
	kf.Predict(PredictArgs{
		ModeMechanicsLocal: true,
		Rb2n:               identityMat3(),
		Acc:                Vec3{0, 0, 9.8},
		RPYDot:             Vec3{},
		RPY:                Vec3{},
		Lat:                0.7,
		AttitudeSelector:   Vec3{1, 1, 1},
		BodySelector:       Vec3{1, 1, 1},
		FsIMU:              100,
	})
	after := kf.CovarianceTrace()
	assert.True(after >= before)
}

func Test_KalmanFilter_Update_shrinksCovarianceTrace(t *testing.T) {
	assert := assert.New(t)
	u, w, err := ParseKfStd("0.01,0.01,0.01,0.01,0.01,0.01,0.001,0.001,0.001,0.0001,0.0001,0.0001,1,1,1")
	assert.NoError(err)
	kf := NewKalmanFilter(u, w, 100, Vec3{1, 1, 1}, Vec3{1, 1, 1})

	before := kf.CovarianceTrace()
	err = kf.Update(Vec3{0.1, 0.1, 0.1}, Vec3{1, 1, 1}, Vec3{1, 1, 1})
	assert.NoError(err)
	after := kf.CovarianceTrace()
	assert.True(after <= before)
}

func Test_KalmanFilter_Predict_tenConsecutiveEpochsGrowCovarianceMonotonically(t *testing.T) {
	assert := assert.New(t)
	u, w, err := ParseKfStd("0.01,0.01,0.01,0.01,0.01,0.01,0.001,0.001,0.001,0.0001,0.0001,0.0001,1,1,1")
	assert.NoError(err)
	kf := NewKalmanFilter(u, w, 100, Vec3{1, 1, 1}, Vec3{1, 1, 1})

	prev := kf.CovarianceTrace()
	for i := 0; i < 10; i++ {
		kf.Predict(PredictArgs{
			ModeMechanicsLocal: true,
			Rb2n:               identityMat3(),
			Acc:                Vec3{0, 0, 9.8},
			RPYDot:             Vec3{},
			RPY:                Vec3{},
			Lat:                0.7,
			AttitudeSelector:   Vec3{1, 1, 1},
			BodySelector:       Vec3{1, 1, 1},
			FsIMU:              100,
		})
		trace := kf.CovarianceTrace()
		assert.True(trace >= prev, "covariance trace must not shrink without an update")
		prev = trace
	}
}

func Test_KalmanFilter_Update_singularInnovationCovarianceReturnsFault(t *testing.T) {
	assert := assert.New(t)
	u, w, err := ParseKfStd("0.01,0.01,0.01,0.01,0.01,0.01,0.001,0.001,0.001,0.0001,0.0001,0.0001,0,0,0")
	assert.NoError(err)
	kf := NewKalmanFilter(u, w, 100, Vec3{1, 1, 1}, Vec3{1, 1, 1})
	// zero the position block so H*S*Hᵀ+R is the zero matrix: singular.
	for i := 0; i < 3; i++ {
		kf.S.SetSym(i, i, 0)
	}

	err = kf.Update(Vec3{0.1, 0.1, 0.1}, Vec3{1, 1, 1}, Vec3{1, 1, 1})
	assert.Error(err)
	fault, ok := err.(*Fault)
	assert.True(ok)
	assert.Equal(Unknown, fault.Kind)
}

func Test_KalmanFilter_Update_consistentMeasurementLeavesConvergedBiasUnchanged(t *testing.T) {
	assert := assert.New(t)
	u, w, err := ParseKfStd("0.01,0.01,0.01,0.01,0.01,0.01,0.001,0.001,0.001,0.0001,0.0001,0.0001,1,1,1")
	assert.NoError(err)
	kf := NewKalmanFilter(u, w, 1e6, Vec3{1, 1, 1}, Vec3{1, 1, 1})

	// seed a converged acc-bias estimate
	kf.X.SetVec(9, 0.05)
	before := kf.BiasAcc()

	for i := 0; i < 20; i++ {
		kf.Predict(PredictArgs{
			ModeMechanicsLocal: true,
			Rb2n:               identityMat3(),
			Acc:                Vec3{0.05, 0, 0},
			RPYDot:             Vec3{},
			RPY:                Vec3{},
			Lat:                0,
			AttitudeSelector:   Vec3{1, 1, 1},
			BodySelector:       Vec3{1, 1, 1},
			FsIMU:              100,
		})
		// feed back exactly what H observes, so the innovation is zero and
		// the update cannot move the state.
		z := Vec3{kf.X.AtVec(0), kf.X.AtVec(1), kf.X.AtVec(2)}
		err := kf.Update(z, Vec3{1, 1, 1}, Vec3{1, 1, 1})
		assert.NoError(err)
	}

	after := kf.BiasAcc()
	assert.InDelta(before[0], after[0], 1e-6)
	assert.InDelta(0.05, after[0], 0.05*0.05)
}

func Test_KalmanFilter_maskedAxisStaysZeroAcrossPredict(t *testing.T) {
	assert := assert.New(t)
	u, w, err := ParseKfStd("0.01,0.01,0.01,0.01,0.01,0.01,0.001,0.001,0.001,0.0001,0.0001,0.0001,1,1,1")
	assert.NoError(err)
	// mask out the Y attitude axis entirely
	kf := NewKalmanFilter(u, w, 100, Vec3{1, 0, 1}, Vec3{1, 1, 1})
	assert.Equal(0.0, kf.u[7])

	kf.Predict(PredictArgs{
		ModeMechanicsLocal: true,
		Rb2n:               identityMat3(),
		Acc:                Vec3{1, 1, 1},
		RPYDot:             Vec3{0.2, 0.3, 0.1},
		RPY:                Vec3{0.1, 0.2, 0.3},
		Lat:                0.5,
		AttitudeSelector:   Vec3{1, 0, 1},
		BodySelector:       Vec3{1, 1, 1},
		FsIMU:              100,
	})
	assert.Equal(0.0, kf.X.AtVec(7))
}
