package navfusion

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/nvpadron/navfusion/internal/navmetrics"
)

// Engine is the single explicit value that owns configuration and the
// sub-pipelines, replacing the original program's global singletons
// (Monitor, NavDataInterface, NavsystemsHolder, Systems).
// The "monitor bits" become the named fields EcefRefSet and Epoch (the
// progress display is driven by Epoch modulo Cfg.ProgressInterval).
type Engine struct {
	Cfg *Config

	NavData *NavData
	Gnss    *GnssPipeline
	Ins     *InsPipeline
	Fusion  *FusionPipeline
	Kf      *KalmanFilter

	GpsState    GpsState
	InsState    InsState
	FusionState FusionState

	EcefRefSet bool
	EcefRef    Vec3
	Epoch      int

	log *logrus.Logger

	// prevBiasAcc/prevBiasGyro carry the *previous* epoch's KF bias
	// estimate into this epoch's NavData.Update, per the ordering
	// guarantee that bias feedback uses the EKF state from
	// the previous epoch".
	prevBiasAcc, prevBiasGyro Vec3

	metrics *navmetrics.RunMetrics
}

// NewEngine builds an Engine from a parsed Config. The KF std string is
// parsed here so a malformed -K value fails fast before any epoch runs.
func NewEngine(cfg *Config, log *logrus.Logger, metrics *navmetrics.RunMetrics) (*Engine, error) {
	u, w, err := ParseKfStd(cfg.KfStdCfg)
	if err != nil {
		return nil, err
	}
	kf := NewKalmanFilter(u, w, cfg.Tau, cfg.AttitudeSelector, cfg.BodySelector)

	e := &Engine{
		Cfg:         cfg,
		NavData:     NewNavData(cfg),
		Gnss:        NewGnssPipeline(),
		Ins:         NewInsPipeline(),
		Fusion:      NewFusionPipeline(kf),
		Kf:          kf,
		GpsState:    newGpsState(),
		InsState:    newInsState(),
		FusionState: newFusionState(),
		log:         log,
		metrics:     metrics,
	}
	return e, nil
}

// EpochResult is what the orchestrator needs to emit one output row.
type EpochResult struct {
	Gps    GpsState
	Ins    InsState
	Fusion FusionState
}

// ProcessEpoch runs one full NavData -> GNSS -> INS -> Fusion pass over a
// single CSV row, in strict pipeline order. It returns an
// OutOfRange *Fault if a mandatory field is missing from the row, or the
// Fusion pipeline's singular-covariance fault if the EKF update failed.
func (e *Engine) ProcessEpoch(row []float64) (EpochResult, error) {
	cfg := e.Cfg

	if err := e.NavData.Update(row, cfg.GPSCols, cfg.ACCCols, cfg.GYRCols, cfg.MAGCols, cfg.RPYCols, cfg.HDOPCol, cfg.HeightCol,
		e.InsState.RPY, e.prevBiasAcc, e.prevBiasGyro); err != nil {
		return EpochResult{}, err
	}

	e.Gnss.Process(&e.GpsState, e.NavData.GPS(), &e.EcefRefSet, &e.EcefRef)

	e.Ins.Process(&e.InsState, &e.GpsState, e.EcefRefSet, e.EcefRef, InsProcessArgs{
		ACC: e.NavData.ACC(), GYR: e.NavData.GYR(), MAG: e.NavData.MAG(),
		RPYInput: e.NavData.RPY(), RPYCols: cfg.RPYCols,
		AttitudeSelector:   cfg.AttitudeSelector,
		ProgressAngles:     cfg.ProgressAngles,
		ModeMechanicsLocal: cfg.MechanicsLocal,
		FsIMU:              cfg.FsImu,
	})

	lat := e.InsState.LLH[0]
	rb2n := matrixBody2Enu(scaleVec3Elemwise(e.InsState.RPY, cfg.AttitudeSelector))
	epochSeconds := float64(e.Epoch) / cfg.FsImu

	updateErr := e.Fusion.Process(&e.FusionState, &e.InsState, &e.GpsState, e.EcefRefSet, e.EcefRef, FusionProcessArgs{
		Rb2n: rb2n, Acc: e.NavData.ACC(), RPYDot: e.InsState.RPYDot, Lat: lat,
		ModeMechanicsLocal: cfg.MechanicsLocal,
		AttitudeSelector:   cfg.AttitudeSelector,
		BodySelector:       cfg.BodySelector,
		FsIMU:              cfg.FsImu,
		IsGpsDataNew:       e.NavData.IsGpsDataNew(),
		IsGpsDataValid:     e.NavData.IsGpsDataValid(),
		GpsOffMin:          cfg.GpsOffMin, GpsOffMax: cfg.GpsOffMax,
		EpochSeconds: epochSeconds,
	})
	if updateErr != nil {
		return EpochResult{}, updateErr
	}

	e.prevBiasAcc = e.Kf.BiasAcc()
	e.prevBiasGyro = e.Kf.BiasGyro()

	if e.metrics != nil {
		e.metrics.EpochsProcessed.Inc()
		if IsKfUpdatable(e.NavData.IsGpsDataNew(), e.NavData.IsGpsDataValid(), cfg.GpsOffMin, cfg.GpsOffMax, epochSeconds) {
			e.metrics.KfUpdates.Inc()
		} else {
			e.metrics.KfGateSkips.Inc()
		}
		e.metrics.CovarianceTrace.Set(e.Kf.CovarianceTrace())
	}

	e.Epoch++
	if e.log != nil {
		e.log.WithFields(logrus.Fields{"epoch": e.Epoch}).Debug("epoch processed")
		if e.Epoch%e.Cfg.ProgressInterval == 0 {
			e.log.WithFields(logrus.Fields{"epoch": e.Epoch}).Info("progress")
		}
	}

	return EpochResult{Gps: e.GpsState, Ins: e.InsState, Fusion: e.FusionState}, nil
}

func vecNorm(v Vec3) float64 { return math.Sqrt(dot3(v, v)) }
