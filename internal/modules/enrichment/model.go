// README: Vehicle enrichment input and best-effort result.
package enrichment

import (
	"errors"
	"strings"
)

// ErrExternalService wraps collaborator failures. It never leaves this package.
var ErrExternalService = errors.New("external service error")

const (
	VehicleTwoWheeler  = "TWO_WHEELER"
	VehicleFourWheeler = "FOUR_WHEELER"
	unknownValue       = "UNKNOWN"
)

type Image struct {
	Data     []byte
	MIMEType string
}

// Input carries what the requester supplied; both parts are optional.
type Input struct {
	VehicleNumber string
	Image         *Image
}

func (in Input) hasImage() bool {
	return in.Image != nil && len(in.Image.Data) > 0
}

// Result holds independently optional vehicle facts. Empty means unknown.
type Result struct {
	VehicleType     string `json:"vehicle_type,omitempty"`
	VehicleNumber   string `json:"vehicle_number,omitempty"`
	EstimatedAge    string `json:"estimated_age,omitempty"`
	MakeModel       string `json:"make_model,omitempty"`
	DamageDetection string `json:"damage_detection,omitempty"`
	TireWear        string `json:"tire_wear,omitempty"`
	DamagedParts    string `json:"damaged_parts,omitempty"`
}

func (r Result) IsZero() bool {
	return r == Result{}
}

// known drops blank and "unknown" answers.
func known(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, unknownValue) {
		return ""
	}
	return v
}
