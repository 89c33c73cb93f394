package geo

// Point is a WGS84 coordinate pair used for map markers.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DefaultPoint is downtown Chicago, the fallback when a listing or place
// comes back without usable coordinates.
var DefaultPoint = Point{Lat: 41.8781, Lng: -87.6298}
