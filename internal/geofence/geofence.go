package geofence

import "math"

const (
	earthRadiusMeters  = 6371000
	elevationTolerance = 10 // meters
)

// Zone is a circular region around a campus location where attendance
// submissions are accepted.
type Zone struct {
	Name      string  `json:"name"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Elevation float64 `json:"elevation"`
	Radius    float64 `json:"radius"`
}

// Match is the result of evaluating a claimed position against the zone set.
type Match struct {
	Allowed  bool
	ZoneName string
}

// Evaluator checks claimed coordinates against a fixed, ordered zone list.
// It is pure: no clock, no store, no side effects.
type Evaluator struct {
	zones []Zone
}

// New creates an evaluator over the given zones. Zone order matters: the
// first matching zone wins.
func New(zones []Zone) *Evaluator {
	return &Evaluator{zones: zones}
}

// Evaluate reports whether the claimed position falls inside any zone.
// elevation may be nil; a zone is then checked on distance alone, with the
// elevation difference treated as zero against that zone's own elevation.
func (e *Evaluator) Evaluate(lat, lng float64, elevation *float64) Match {
	for _, z := range e.zones {
		d := haversine(lat, lng, z.Lat, z.Lng)
		claimed := z.Elevation
		if elevation != nil {
			claimed = *elevation
		}
		if d <= z.Radius && math.Abs(claimed-z.Elevation) <= elevationTolerance {
			return Match{Allowed: true, ZoneName: z.Name}
		}
	}
	return Match{}
}

// haversine returns the great-circle distance in meters between two points.
func haversine(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLng := radians(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMeters * c
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// DefaultZones returns the campus zone set used when no override is configured.
func DefaultZones() []Zone {
	return []Zone{
		{Name: "My Location", Lat: 21.09509835312697, Lng: 79.07928090334806, Elevation: 242, Radius: 25},
		{Name: "PS Location", Lat: 21.096123, Lng: 79.080123, Elevation: 245, Radius: 20},
		{Name: "403 Test", Lat: 21.176865486, Lng: 79.061328692, Elevation: 288.80, Radius: 50},
		{Name: "Mech Building", Lat: 21.094001, Lng: 79.078001, Elevation: 240, Radius: 50},
		{Name: "DT-701", Lat: 21.097555, Lng: 79.081555, Elevation: 250, Radius: 10},
	}
}
