package listing

import "math"

const (
	earthRadiusKm   = 6371.0
	DefaultRadiusKm = 10.0
)

// HaversineKm is the great-circle distance between two points in kilometres.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }

// BoundingBox is a coarse prefilter; it always contains the radius circle.
type BoundingBox struct {
	MinLat, MaxLat float64
	MinLon, MaxLon float64
}

// slack keeps points sitting exactly on the circle inside the box after rounding.
const boxSlackDeg = 1e-6

func boundingBox(lat, lon, radiusKm float64) BoundingBox {
	delta := radiusKm / earthRadiusKm
	latRad := toRad(lat)

	box := BoundingBox{
		MinLat: math.Max(lat-toDeg(delta)-boxSlackDeg, -90),
		MaxLat: math.Min(lat+toDeg(delta)+boxSlackDeg, 90),
		MinLon: -180,
		MaxLon: 180,
	}
	if latRad-delta <= -math.Pi/2 || latRad+delta >= math.Pi/2 {
		// the circle covers a pole
		return box
	}

	ratio := math.Sin(delta) / math.Cos(latRad)
	if ratio >= 1 {
		return box
	}
	dLon := toDeg(math.Asin(ratio)) + boxSlackDeg
	if lon-dLon < -180 || lon+dLon > 180 {
		// crosses the antimeridian; keep the full longitude range
		return box
	}
	box.MinLon = lon - dLon
	box.MaxLon = lon + dLon
	return box
}

func toDeg(rad float64) float64 { return rad * 180 / math.Pi }
