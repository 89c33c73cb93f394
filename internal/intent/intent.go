// Package intent classifies a user message into structured intents with
// per-intent parameters via a constrained-output LLM call.
package intent

import "errors"

// ErrParse means the classifier output could not be read as the expected
// JSON schema. Callers fall back to the intent-less conversational path
// rather than failing the request.
var ErrParse = errors.New("intent analysis output did not parse")

const (
	HousingSearch = "housing_search"
	LocationInfo  = "location_info"
	StudentInfo   = "student_info"
	General       = "general"
)

type HousingParams struct {
	Location     string   `json:"location"`
	PriceRange   []int    `json:"price_range"`
	Bedrooms     int      `json:"bedrooms"`
	PropertyType string   `json:"property_type"`
	Amenities    []string `json:"amenities"`
	RadiusMiles  float64  `json:"radius_miles"`
}

type LocationParams struct {
	SearchType   string   `json:"search_type"`
	Location     string   `json:"location"`
	RadiusMeters int      `json:"radius_meters"`
	Keywords     []string `json:"keywords"`
	OpenNow      bool     `json:"open_now"`
}

type StudentInfoParams struct {
	Topic        string `json:"topic"`
	Subtopic     string `json:"subtopic"`
	VisaType     string `json:"visa_type"`
	DocumentType string `json:"document_type"`
}

// Parameters always carries all three blocks, empty when the matching
// intent is absent, so dispatch code stays uniform.
type Parameters struct {
	Housing     HousingParams     `json:"housing"`
	Location    LocationParams    `json:"location"`
	StudentInfo StudentInfoParams `json:"student_info"`
}

type Analysis struct {
	Intents    []string   `json:"intents"`
	Parameters Parameters `json:"parameters"`
}

func (a Analysis) Has(name string) bool {
	for _, it := range a.Intents {
		if it == name {
			return true
		}
	}
	return false
}

// Actionable reports whether any intent maps to a retrieval branch.
func (a Analysis) Actionable() bool {
	return a.Has(HousingSearch) || a.Has(LocationInfo) || a.Has(StudentInfo)
}
