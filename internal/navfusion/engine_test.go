package navfusion

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func engineTestConfig() *Config {
	cfg := baseTestConfig()
	cfg.KfStdCfg = "0.01,0.01,0.01,0.01,0.01,0.01,0.001,0.001,0.001,0.0001,0.0001,0.0001,1,1,1"
	return cfg
}

func Test_Engine_ProcessEpoch_runsFullPipelineWithoutError(t *testing.T) {
	require := require.New(t)
	cfg := engineTestConfig()
	e, err := NewEngine(cfg, nil, nil)
	require.NoError(err)

	row := []float64{40 * 0.0174533, -105 * 0.0174533, 0.01, 0.02, 9.8, 0.001, 0.002, 0.003}
	result, err := e.ProcessEpoch(row)
	require.NoError(err)
	assert.NotNil(t, result)
	assert.Equal(t, 1, e.Epoch)
}

func Test_Engine_ProcessEpoch_seedsEcefRefOnFirstValidFix(t *testing.T) {
	require := require.New(t)
	cfg := engineTestConfig()
	e, err := NewEngine(cfg, nil, nil)
	require.NoError(err)

	assert.False(t, e.EcefRefSet)
	row := []float64{40 * 0.0174533, -105 * 0.0174533, 0.01, 0.02, 9.8, 0.001, 0.002, 0.003}
	_, err = e.ProcessEpoch(row)
	require.NoError(err)
	assert.True(t, e.EcefRefSet)
}

func Test_Engine_ProcessEpoch_multipleEpochsAdvanceCounter(t *testing.T) {
	require := require.New(t)
	cfg := engineTestConfig()
	e, err := NewEngine(cfg, nil, nil)
	require.NoError(err)

	row := []float64{40 * 0.0174533, -105 * 0.0174533, 0.01, 0.02, 9.8, 0.001, 0.002, 0.003}
	for i := 0; i < 5; i++ {
		_, err := e.ProcessEpoch(row)
		require.NoError(err)
	}
	assert.Equal(t, 5, e.Epoch)
}

func Test_Engine_ProcessEpoch_gyroPropagationSetsNonzeroRpyDot(t *testing.T) {
	require := require.New(t)
	cfg := engineTestConfig()
	e, err := NewEngine(cfg, nil, nil)
	require.NoError(err)

	row := []float64{40 * 0.0174533, -105 * 0.0174533, 0.01, 0.02, 9.8, 0.05, 0.02, 0.01}
	_, err = e.ProcessEpoch(row)
	require.NoError(err)
	assert.Equal(t, Vec3{}, e.InsState.RPYDot, "first epoch has no previous attitude to propagate from")

	_, err = e.ProcessEpoch(row)
	require.NoError(err)
	assert.NotEqual(t, Vec3{}, e.InsState.RPYDot, "second epoch gyro-propagates and must report a nonzero rate")
}

// Test_Engine_ProcessEpoch_staticReceiverStaysAtOrigin pins scenario 1: a
// static receiver with zero ACC/GYR should leave GPS, INS, and fused ENU
// all at the origin, epoch after epoch.
func Test_Engine_ProcessEpoch_staticReceiverStaysAtOrigin(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	cfg := engineTestConfig()
	e, err := NewEngine(cfg, nil, nil)
	require.NoError(err)

	latDeg := 1.0 * 180 / math.Pi
	lonDeg := -0.5 * 180 / math.Pi
	row := []float64{latDeg, lonDeg, 0, 0, 0, 0, 0, 0}

	var result EpochResult
	for i := 0; i < 1000; i++ {
		result, err = e.ProcessEpoch(row)
		require.NoError(err)
	}

	assert.InDelta(0, result.Gps.ENU[0], 1e-3)
	assert.InDelta(0, result.Gps.ENU[1], 1e-3)
	assert.InDelta(0, result.Gps.ENU[2], 1e-3)
	assert.Less(vecNorm(result.Ins.ENU), 1e-3)
	assert.Less(vecNorm(result.Fusion.ENU), 1e-3)
}

// Test_Engine_ProcessEpoch_gpsOutageSkipsUpdateAndRecovers pins scenario 2:
// while GPS is NaN the update gate must stay closed (covariance only grows),
// and within a few epochs of GPS returning the covariance must shrink again.
func Test_Engine_ProcessEpoch_gpsOutageSkipsUpdateAndRecovers(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	cfg := engineTestConfig()
	e, err := NewEngine(cfg, nil, nil)
	require.NoError(err)

	latDeg := 1.0 * 180 / math.Pi
	lonDeg := -0.5 * 180 / math.Pi

	var traceAtOutageEnd float64
	for i := 0; i <= 703; i++ {
		lat, lon := latDeg, lonDeg
		inOutage := i >= 500 && i <= 700
		if inOutage {
			lat, lon = math.NaN(), math.NaN()
		}
		row := []float64{lat, lon, 0.01, 0, 0, 0, 0, 0}
		_, err := e.ProcessEpoch(row)
		require.NoError(err)

		if inOutage {
			assert.False(e.NavData.IsGpsDataValid(), "GPS must read invalid throughout the outage window")
		}
		if i == 700 {
			traceAtOutageEnd = e.Kf.CovarianceTrace()
		}
	}

	assert.Less(e.Kf.CovarianceTrace(), traceAtOutageEnd, "an update within a few epochs of recovery must shrink the covariance trace")
}

// Test_Engine_ProcessEpoch_pureHeadingRotationYawTracksInputColumn pins
// scenario 3: with gyro-driven propagation disabled and a YAW column fed
// directly, INS yaw must track the column value and translation stays at
// the origin.
func Test_Engine_ProcessEpoch_pureHeadingRotationYawTracksInputColumn(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	cfg := engineTestConfig()
	cfg.RPYCols = [3]int{-1, -1, 8}
	cfg.ProgressAngles = false

	e, err := NewEngine(cfg, nil, nil)
	require.NoError(err)

	latDeg := 1.0 * 180 / math.Pi
	lonDeg := -0.5 * 180 / math.Pi
	const yawRate = 0.1 // rad/s
	const fsIMU = 100.0
	const epochs = 1000 // 10s at 100Hz

	var result EpochResult
	for i := 1; i <= epochs; i++ {
		yaw := yawRate * float64(i) / fsIMU
		row := []float64{latDeg, lonDeg, 0, 0, 0, 0, 0, 0, yaw}
		result, err = e.ProcessEpoch(row)
		require.NoError(err)
	}

	assert.InDelta(1.0, result.Ins.RPY[2], 1e-9)
	assert.Less(vecNorm(result.Ins.ENU), 1e-9)
}

// Test_Engine_ProcessEpoch_constantAccBiasConvergesTowardTrueBias pins
// scenario 4: a constant uncorrected ACC bias on the body x-axis, fed back
// via FeedbackBias, should drive the filter's acc-bias state toward the
// true bias and keep the fused position bounded.
func Test_Engine_ProcessEpoch_constantAccBiasConvergesTowardTrueBias(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)
	cfg := engineTestConfig()
	cfg.FeedbackBias = true

	e, err := NewEngine(cfg, nil, nil)
	require.NoError(err)

	latDeg := 1.0 * 180 / math.Pi
	lonDeg := -0.5 * 180 / math.Pi
	row := []float64{latDeg, lonDeg, 0.05, 0, 0, 0, 0, 0}

	var result EpochResult
	for i := 0; i < 6000; i++ { // 60s at 100Hz
		result, err = e.ProcessEpoch(row)
		require.NoError(err)
	}

	biasMagnitude := math.Abs(e.Kf.BiasAcc()[0])
	assert.True(biasMagnitude > 0.02 && biasMagnitude < 0.08,
		"acc-bias state should trend toward the true bias magnitude of 0.05")
	assert.Less(math.Abs(result.Fusion.ENU[0]), 5.0)
}

func Test_IsKfUpdatable_gatesOnGpsOffWindowStrictBoundaries(t *testing.T) {
	assert := assert.New(t)
	assert.True(IsKfUpdatable(true, true, -1, -1, 5))
	assert.False(IsKfUpdatable(false, true, -1, -1, 5))
	assert.False(IsKfUpdatable(true, false, -1, -1, 5))

	assert.False(IsKfUpdatable(true, true, 2, 8, 5))
	assert.True(IsKfUpdatable(true, true, 2, 8, 2))
	assert.True(IsKfUpdatable(true, true, 2, 8, 8))
	assert.True(IsKfUpdatable(true, true, 2, 8, 9))
}
