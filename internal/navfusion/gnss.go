package navfusion

import "math"

// GnssPipeline seeds ECEF_REF on first valid fix and places the GPS
// sample into the shared local ENU frame.
type GnssPipeline struct{}

func NewGnssPipeline() *GnssPipeline { return &GnssPipeline{} }

// Process mutates gps in place. ecefRefSet/ecefRef are the engine's shared
// monitor bit and reference, mirroring original_source's
// GnssMain::process() call order exactly: assign LLH, compute ECEF, seed
// the reference on first valid fix, compute ENU, then round-trip ECEF and
// LLH through ENU so LLH is normalised to the value recoverable from ENU.
func (g *GnssPipeline) Process(gps *GpsState, llh Vec3, ecefRefSet *bool, ecefRef *Vec3) {
	gps.LLH = llh
	gps.ECEF = llh2ecef(gps.LLH)

	if !*ecefRefSet && !math.IsNaN(gps.ECEF[0]) && !math.IsNaN(gps.ECEF[1]) && !math.IsNaN(gps.ECEF[2]) {
		*ecefRef = gps.ECEF
		*ecefRefSet = true
	}
	gps.ECEFRef = *ecefRef

	if *ecefRefSet {
		gps.ENU = ecef2enu(gps.LLH, gps.ECEF, *ecefRef)
		gps.ECEF = enu2ecef(gps.LLH, gps.ENU, *ecefRef)
		gps.LLH = ecef2llh(gps.ECEF)
	}
}
