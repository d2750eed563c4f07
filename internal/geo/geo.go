// Package geo computes geohash keys and the prefix ranges that cover a circular
// search area. Ranges are compatible with geofire-common's geohashQueryBounds, so
// documents keyed by clients using geofire are found by the same queries.
package geo

import (
	"math"
	"strings"

	"github.com/mmcloughlin/geohash"
	"github.com/pkg/errors"
)

const (
	Precision = 10

	base32             = "0123456789bcdefghjkmnpqrstuvwxyz"
	bitsPerChar        = 5
	maxBitsPrecision   = 22 * bitsPerChar
	maxQueryBits       = 12 * bitsPerChar
	earthMeriCircumf   = 40007860.0
	metersPerDegreeLat = 110574.0
	earthEqRadius      = 6378137.0
	earthMeanRadius    = 6371008.8
	e2                 = 0.00669447819799
	epsilon            = 1e-12
)

type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

func (p Point) Validate() error {
	if math.IsNaN(p.Latitude) || p.Latitude < -90 || p.Latitude > 90 {
		return errors.Errorf("latitude %v out of range [-90, 90]", p.Latitude)
	}
	if math.IsNaN(p.Longitude) || p.Longitude < -180 || p.Longitude > 180 {
		return errors.Errorf("longitude %v out of range [-180, 180]", p.Longitude)
	}
	return nil
}

// Range is an inclusive [Start, End] interval of geohash strings.
type Range struct {
	Start string
	End   string
}

func (r Range) Contains(hash string) bool {
	return hash >= r.Start && hash <= r.End
}

func (r Range) MarshalJSON() ([]byte, error) {
	return []byte(`["` + r.Start + `","` + r.End + `"]`), nil
}

// Encode returns the geohash of p at the stored precision.
func Encode(p Point) string {
	return geohash.EncodeWithPrecision(p.Latitude, p.Longitude, Precision)
}

// QueryRanges returns the geohash ranges covering a disk of radiusMeters around
// center. The union is a superset of the disk: callers needing exact results
// filter matches with Distance.
func QueryRanges(center Point, radiusMeters float64) []Range {
	queryBits := boundingBoxBits(center, radiusMeters)
	if queryBits < 1 {
		queryBits = 1
	}
	// mmcloughlin/geohash кодирует не больше 64 бит
	if queryBits > maxQueryBits {
		queryBits = maxQueryBits
	}
	precision := uint(math.Ceil(float64(queryBits) / bitsPerChar))

	coords := boundingBoxCoordinates(center, radiusMeters)
	out := make([]Range, 0, len(coords))
	seen := make(map[Range]struct{}, len(coords))
	for _, c := range coords {
		r := hashQuery(geohash.EncodeWithPrecision(c.Latitude, c.Longitude, precision), queryBits)
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	return out
}

// Distance is the great-circle distance between a and b in meters.
func Distance(a, b Point) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := lat2 - lat1
	dLng := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthMeanRadius * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func hashQuery(hash string, bits int) Range {
	precision := int(math.Ceil(float64(bits) / bitsPerChar))
	if len(hash) < precision {
		return Range{Start: hash, End: hash + "~"}
	}
	hash = hash[:precision]
	base := hash[:len(hash)-1]
	lastValue := strings.IndexByte(base32, hash[len(hash)-1])
	significantBits := bits - len(base)*bitsPerChar
	unusedBits := bitsPerChar - significantBits

	startValue := (lastValue >> unusedBits) << unusedBits
	endValue := startValue + (1 << unusedBits)
	if endValue > 31 {
		return Range{Start: base + string(base32[startValue]), End: base + "~"}
	}
	return Range{Start: base + string(base32[startValue]), End: base + string(base32[endValue])}
}

func boundingBoxBits(center Point, size float64) int {
	latDelta := size / metersPerDegreeLat
	latNorth := math.Min(90, center.Latitude+latDelta)
	latSouth := math.Max(-90, center.Latitude-latDelta)

	bitsLat := int(math.Floor(latitudeBitsForResolution(size))) * 2
	bitsLngNorth := int(math.Floor(longitudeBitsForResolution(size, latNorth)))*2 - 1
	bitsLngSouth := int(math.Floor(longitudeBitsForResolution(size, latSouth)))*2 - 1

	return min(bitsLat, bitsLngNorth, bitsLngSouth, maxBitsPrecision)
}

func boundingBoxCoordinates(center Point, radius float64) []Point {
	latDegrees := radius / metersPerDegreeLat
	latNorth := math.Min(90, center.Latitude+latDegrees)
	latSouth := math.Max(-90, center.Latitude-latDegrees)
	lngDegs := math.Max(metersToLongitudeDegrees(radius, latNorth), metersToLongitudeDegrees(radius, latSouth))

	west := wrapLongitude(center.Longitude - lngDegs)
	east := wrapLongitude(center.Longitude + lngDegs)
	return []Point{
		{center.Latitude, center.Longitude},
		{center.Latitude, west},
		{center.Latitude, east},
		{latNorth, center.Longitude},
		{latNorth, west},
		{latNorth, east},
		{latSouth, center.Longitude},
		{latSouth, west},
		{latSouth, east},
	}
}

func metersToLongitudeDegrees(distance, latitude float64) float64 {
	rad := toRadians(latitude)
	num := math.Cos(rad) * earthEqRadius * math.Pi / 180
	denom := 1 / math.Sqrt(1-e2*math.Sin(rad)*math.Sin(rad))
	deltaDeg := num * denom
	if deltaDeg < epsilon {
		if distance > 0 {
			return 360
		}
		return 0
	}
	return math.Min(360, distance/deltaDeg)
}

func longitudeBitsForResolution(resolution, latitude float64) float64 {
	degs := metersToLongitudeDegrees(resolution, latitude)
	if math.Abs(degs) > 0.000001 {
		return math.Max(1, math.Log2(360/degs))
	}
	return 1
}

func latitudeBitsForResolution(resolution float64) float64 {
	return math.Min(math.Log2(earthMeriCircumf/2/resolution), maxBitsPrecision)
}

func wrapLongitude(lng float64) float64 {
	if lng <= 180 && lng >= -180 {
		return lng
	}
	adjusted := lng + 180
	if adjusted > 0 {
		return math.Mod(adjusted, 360) - 180
	}
	return 180 - math.Mod(-adjusted, 360)
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
