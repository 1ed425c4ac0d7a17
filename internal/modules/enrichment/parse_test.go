package enrichment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseVehicleAnalysis(t *testing.T) {
	text := `1. **Type**: FOUR_WHEELER
2. **Number**: KA 01 AB 1234
3. **Make & Model**: Maruti Suzuki Swift
4. **Generation/Year**: 2018
5. **Damage Detection**: Dent on the rear bumper
6. **Tire Wear**: Moderate
7. **Damaged Parts**: Rear Bumper`

	got := ParseVehicleAnalysis(text)
	assert.Equal(t, Analysis{
		VehicleType:     "FOUR_WHEELER",
		VehicleNumber:   "KA 01 AB 1234",
		GenerationYear:  "2018",
		MakeModel:       "Maruti Suzuki Swift",
		DamageDetection: "Dent on the rear bumper",
		TireWear:        "Moderate",
		DamagedParts:    "Rear Bumper",
	}, got)
}

func TestParseVehicleAnalysisPlainLines(t *testing.T) {
	got := ParseVehicleAnalysis("Type: TWO_WHEELER\nNumber: UNKNOWN\n")
	assert.Equal(t, "TWO_WHEELER", got.VehicleType)
	assert.Equal(t, "UNKNOWN", got.VehicleNumber)
	assert.Empty(t, got.MakeModel)
}

func TestParseVehicleAnalysisKeywordFallback(t *testing.T) {
	got := ParseVehicleAnalysis("This looks like a FOUR_WHEELER hatchback parked on the road.")
	assert.Equal(t, VehicleFourWheeler, got.VehicleType)

	got = ParseVehicleAnalysis("Type: UNKNOWN\nprobably a TWO_WHEELER")
	assert.Equal(t, VehicleTwoWheeler, got.VehicleType)
}

func TestKnown(t *testing.T) {
	assert.Equal(t, "", known("  "))
	assert.Equal(t, "", known("unknown"))
	assert.Equal(t, "", known("UNKNOWN"))
	assert.Equal(t, "5 year(s) old", known(" 5 year(s) old "))
}

func TestImageFormat(t *testing.T) {
	assert.Equal(t, "png", imageFormat("image/png"))
	assert.Equal(t, "jpeg", imageFormat("IMAGE/JPEG; charset=binary"))
	assert.Equal(t, "jpeg", imageFormat(""))
	assert.Equal(t, "jpeg", imageFormat("application/octet-stream"))
}
