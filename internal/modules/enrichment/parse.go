// README: Parser for the vision model's "Key: Value" vehicle analysis.
package enrichment

import "strings"

// Analysis is the raw answer of the image path before it is merged.
type Analysis struct {
	VehicleType     string
	VehicleNumber   string
	GenerationYear  string
	MakeModel       string
	DamageDetection string
	TireWear        string
	DamagedParts    string
}

var analysisKeys = []struct {
	prefix string
	set    func(a *Analysis, v string)
}{
	{"Type:", func(a *Analysis, v string) { a.VehicleType = v }},
	{"Number:", func(a *Analysis, v string) { a.VehicleNumber = v }},
	{"Generation/Year:", func(a *Analysis, v string) { a.GenerationYear = v }},
	{"Make & Model:", func(a *Analysis, v string) { a.MakeModel = v }},
	{"Damage Detection:", func(a *Analysis, v string) { a.DamageDetection = v }},
	{"Tire Wear:", func(a *Analysis, v string) { a.TireWear = v }},
	{"Damaged Parts:", func(a *Analysis, v string) { a.DamagedParts = v }},
}

// ParseVehicleAnalysis reads one "Key: Value" pair per line. Markdown bold
// markers and list numbering are ignored. When no Type line is found the
// vehicle class is taken from a TWO_WHEELER/FOUR_WHEELER keyword anywhere in
// the text.
func ParseVehicleAnalysis(text string) Analysis {
	var a Analysis
	for _, line := range strings.Split(text, "\n") {
		clean := strings.TrimSpace(strings.ReplaceAll(line, "**", ""))
		clean = strings.TrimLeft(clean, "0123456789.-* ")
		for _, k := range analysisKeys {
			if strings.HasPrefix(clean, k.prefix) {
				k.set(&a, strings.TrimSpace(clean[len(k.prefix):]))
				break
			}
		}
	}
	if known(a.VehicleType) == "" {
		switch {
		case strings.Contains(text, VehicleTwoWheeler):
			a.VehicleType = VehicleTwoWheeler
		case strings.Contains(text, VehicleFourWheeler):
			a.VehicleType = VehicleFourWheeler
		}
	}
	return a
}

const imagePrompt = `Analyze this image with the following objectives. Respond with each item on a new line in 'Key: Value' format.
1. Type: Identify if it is a 'TWO_WHEELER' or 'FOUR_WHEELER'.
2. Number: Extract the vehicle license plate number. Use 'UNKNOWN' if not visible.
3. Make & Model: Identify the make and model (e.g., 'Maruti Suzuki Swift').
4. Generation/Year: Estimate the production year or generation based on design cues.
5. Damage Detection: List any visible damage like dents, scratches, or broken parts.
6. Tire Wear: Briefly assess tire condition if visible.
7. Damaged Parts: Identify specific damaged parts (e.g., 'Left Front Fender').`

func agePrompt(vehicleNumber string) string {
	return "Based on the Indian vehicle registration number '" + vehicleNumber + "', what is the estimated age of the vehicle? " +
		"Please provide only a concise string like '5 year(s) old' or 'less than a year old'. " +
		"If the age cannot be determined from the number, just return 'unknown'."
}
