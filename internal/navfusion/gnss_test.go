package navfusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_GnssPipeline_Process_seedsEcefRefOnFirstValidFix(t *testing.T) {
	assert := assert.New(t)
	g := NewGnssPipeline()
	gps := newGpsState()
	var ecefRefSet bool
	var ecefRef Vec3

	llh := Vec3{40 * piConst / 180, -105 * piConst / 180, 1500}
	g.Process(&gps, llh, &ecefRefSet, &ecefRef)

	assert.True(ecefRefSet)
	assert.Equal(llh2ecef(llh), ecefRef)
	assert.InDelta(0, gps.ENU[0], 1e-6)
	assert.InDelta(0, gps.ENU[1], 1e-6)
	assert.InDelta(0, gps.ENU[2], 1e-6)
}

// Test_GnssPipeline_Process_enuUsesCurrentEpochLLHNotFixedReference pins the
// rotation-matrix anchor to the current epoch's LLH (not the LLH derived
// from ECEF_REF), matching the per-epoch ecef2enu/enu2ecef anchor used
// throughout the rest of the fix. A receiver that has moved a few hundred
// meters from ECEF_REF sits at a measurably different latitude/longitude,
// so the two anchors produce different ENU rotations whenever the anchor
// choice actually matters.
func Test_GnssPipeline_Process_enuUsesCurrentEpochLLHNotFixedReference(t *testing.T) {
	assert := assert.New(t)
	g := NewGnssPipeline()
	gps := newGpsState()
	var ecefRefSet bool
	var ecefRef Vec3

	refLLH := Vec3{40 * piConst / 180, -105 * piConst / 180, 1500}
	g.Process(&gps, refLLH, &ecefRefSet, &ecefRef)
	assert.True(ecefRefSet)

	movedECEF := addVec3(ecefRef, Vec3{300, -150, 80})
	movedLLH := ecef2llh(movedECEF)
	g.Process(&gps, movedLLH, &ecefRefSet, &ecefRef)

	wantENU := ecef2enu(movedLLH, llh2ecef(movedLLH), ecefRef)
	assert.InDelta(wantENU[0], gps.ENU[0], 1e-6)
	assert.InDelta(wantENU[1], gps.ENU[1], 1e-6)
	assert.InDelta(wantENU[2], gps.ENU[2], 1e-6)

	badENU := ecef2enu(ecef2llh(ecefRef), llh2ecef(movedLLH), ecefRef)
	assert.NotInDelta(badENU[0], gps.ENU[0], 1e-6)
}
