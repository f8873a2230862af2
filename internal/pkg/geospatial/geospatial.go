package geospatial

import "math"

const (
	earthRadiusKm   = 6371.0
	metersPerDegLat = 111320.0
)

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c * 1000 // meters
}

// BoundingBox returns a bounding box around a point with the given radius in
// meters. Used as an index-friendly prefilter before exact Haversine checks.
func BoundingBox(lat, lon, radiusMeters float64) (minLat, minLon, maxLat, maxLon float64) {
	latDelta := radiusMeters / metersPerDegLat
	lonDelta := radiusMeters / (metersPerDegLat * math.Cos(toRad(lat)))

	return lat - latDelta, lon - lonDelta, lat + latDelta, lon + lonDelta
}

// ENUOffset returns the east and north displacement in meters from the
// origin point to the target. The equirectangular approximation is accurate
// well beyond anchor rendering range (tens of meters).
func ENUOffset(originLat, originLon, lat, lon float64) (east, north float64) {
	north = (lat - originLat) * metersPerDegLat
	east = (lon - originLon) * metersPerDegLat * math.Cos(toRad(originLat))
	return east, north
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
