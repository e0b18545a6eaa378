package entries

import (
	"maps"
	"math"
	"slices"
	"sort"
	"sync"

	"github.com/golang/geo/s2"
	"github.com/mmcloughlin/geohash"
	"github.com/samber/lo"
)

const (
	EarthRadiusMeters = 6372797.560856
	GeohashPrecision  = 11

	MinLongitude = -180.0
	MaxLongitude = 180.0
	MinLatitude  = -85.05112878
	MaxLatitude  = 85.05112878
)

type GeoPoint struct {
	Longitude float64
	Latitude  float64
}

func (p GeoPoint) Valid() bool {
	return p.Longitude >= MinLongitude && p.Longitude <= MaxLongitude &&
		p.Latitude >= MinLatitude && p.Latitude <= MaxLatitude
}

func (p GeoPoint) latLng() s2.LatLng {
	return s2.LatLngFromDegrees(p.Latitude, p.Longitude)
}

// Great circle distance in meters
func (p GeoPoint) DistanceTo(other GeoPoint) float64 {
	return p.latLng().Distance(other.latLng()).Radians() * EarthRadiusMeters
}

func (p GeoPoint) Geohash() string {
	return geohash.EncodeWithPrecision(p.Latitude, p.Longitude, GeohashPrecision)
}

type GeoMatch struct {
	Member   string
	Point    GeoPoint
	Distance float64
}

type GeoEntry struct {
	metadata
	mutex  sync.RWMutex
	points map[string]GeoPoint
}

func NewGeo(key string, points map[string]GeoPoint) *GeoEntry {
	entry := &GeoEntry{points: make(map[string]GeoPoint, len(points))}
	entry.init(key)
	maps.Copy(entry.points, points)
	return entry
}

func (g *GeoEntry) Type() EntryType {
	return GeospatialType
}

func (g *GeoEntry) Clone(key string) Entry {
	clone := NewGeo(key, g.Points())
	clone.copyFrom(&g.metadata, key)
	return clone
}

// Returns true when member is new
func (g *GeoEntry) Add(member string, point GeoPoint) bool {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	_, exists := g.points[member]
	g.points[member] = point
	return !exists
}

func (g *GeoEntry) Position(member string) (GeoPoint, bool) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	point, exists := g.points[member]
	return point, exists
}

func (g *GeoEntry) Hash(member string) (string, bool) {
	point, exists := g.Position(member)
	if !exists {
		return "", false
	}
	return point.Geohash(), true
}

func (g *GeoEntry) Distance(from, to string) (float64, bool) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	origin, okFrom := g.points[from]
	target, okTo := g.points[to]
	if !okFrom || !okTo {
		return 0, false
	}
	return origin.DistanceTo(target), true
}

func (g *GeoEntry) Len() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.points)
}

func (g *GeoEntry) Points() map[string]GeoPoint {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return maps.Clone(g.points)
}

func (g *GeoEntry) Members() []string {
	members := lo.Keys(g.Points())
	slices.Sort(members)
	return members
}

// Members within radius meters of center, nearest first
func (g *GeoEntry) SearchRadius(center GeoPoint, radius float64) []GeoMatch {
	return g.search(center, func(match GeoMatch) bool {
		return match.Distance <= radius
	})
}

// Members inside a width x height meters box centered on center, nearest first
func (g *GeoEntry) SearchBox(center GeoPoint, width, height float64) []GeoMatch {
	return g.search(center, func(match GeoMatch) bool {
		sameMeridian := GeoPoint{Longitude: center.Longitude, Latitude: match.Point.Latitude}
		northSouth := center.DistanceTo(sameMeridian)
		eastWest := sameMeridian.DistanceTo(match.Point)
		return northSouth <= height/2 && eastWest <= width/2
	})
}

func (g *GeoEntry) search(center GeoPoint, keep func(GeoMatch) bool) []GeoMatch {
	matches := lo.FilterMap(lo.Entries(g.Points()), func(item lo.Entry[string, GeoPoint], _ int) (GeoMatch, bool) {
		match := GeoMatch{
			Member:   item.Key,
			Point:    item.Value,
			Distance: center.DistanceTo(item.Value),
		}
		return match, !math.IsNaN(match.Distance) && keep(match)
	})

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Distance != matches[j].Distance {
			return matches[i].Distance < matches[j].Distance
		}
		return matches[i].Member < matches[j].Member
	})
	return matches
}
