package commands

import (
	"context"
	"slices"
	"strconv"

	"github.com/samber/lo"

	"pyrocache/internal/pyrocache/entries"
	"pyrocache/internal/pyrocache/protocol"
	"pyrocache/pkg/utils"
)

var distanceUnits = map[string]float64{
	"M":  1,
	"KM": 1000,
	"MI": 1609.34,
	"FT": 0.3048,
}

func unitFactor(token string) (float64, bool) {
	factor, ok := distanceUnits[upper(token)]
	return factor, ok
}

// GEOADD key longitude latitude member [longitude latitude member ...]
func handleGeoadd(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	index, ok := create(engine, request.Args[0], newGeo)
	if !ok {
		return protocol.Int(0)
	}

	added := 0
	for i := 1; i+2 < len(request.Args); i += 3 {
		longitude, _ := strconv.ParseFloat(request.Args[i], 64)
		latitude, _ := strconv.ParseFloat(request.Args[i+1], 64)
		if index.Add(request.Args[i+2], entries.GeoPoint{Longitude: longitude, Latitude: latitude}) {
			added++
		}
	}
	return protocol.Int(added)
}

func coordinatesReply(point entries.GeoPoint) protocol.Reply {
	return protocol.Array(
		protocol.Bulk(utils.FormatFloat(point.Longitude, 6)),
		protocol.Bulk(utils.FormatFloat(point.Latitude, 6)),
	)
}

func handleGeopos(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	index, found := lookup[*entries.GeoEntry](engine, request, request.Args[0])
	return protocol.Array(lo.Map(request.Args[1:], func(member string, _ int) protocol.Reply {
		if !found {
			return protocol.Nil()
		}
		point, ok := index.Position(member)
		return lo.Ternary(ok, coordinatesReply(point), protocol.Nil())
	})...)
}

func handleGeohash(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	index, found := lookup[*entries.GeoEntry](engine, request, request.Args[0])
	return protocol.Array(lo.Map(request.Args[1:], func(member string, _ int) protocol.Reply {
		if !found {
			return protocol.Nil()
		}
		hash, ok := index.Hash(member)
		return lo.Ternary(ok, protocol.Bulk(hash), protocol.Nil())
	})...)
}

// GEODIST key member1 member2 [M|KM|FT|MI]
func handleGeodist(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	factor := 1.0
	if len(request.Args) == 4 {
		factor, _ = unitFactor(request.Args[3])
	}

	index, ok := lookup[*entries.GeoEntry](engine, request, request.Args[0])
	if !ok {
		return protocol.Nil()
	}
	distance, ok := index.Distance(request.Args[1], request.Args[2])
	if !ok {
		return protocol.Nil()
	}
	return protocol.Bulk(utils.FormatFloat(distance/factor, 4))
}

func validateGeodist(args []string) error {
	if len(args) == 4 {
		if _, ok := unitFactor(args[3]); !ok {
			return ErrorSyntax
		}
	}
	return nil
}

type geoSearch struct {
	source string

	fromMember string
	fromPoint  *entries.GeoPoint

	byBox  bool
	radius float64
	width  float64
	height float64
	factor float64

	descending bool
	count      int
	withCoord  bool
	withDist   bool
	withHash   bool
	storeDist  bool
}

func parseFloats(tokens ...string) ([]float64, error) {
	values := make([]float64, len(tokens))
	for i, token := range tokens {
		value, err := utils.FromStringToFloat64(token)
		if err != nil {
			return nil, ErrorSyntax
		}
		values[i] = value
	}
	return values, nil
}

// Unit following args[i] when there is one, meters otherwise. Returns the
// factor and the position of the last consumed argument.
func optionalUnit(args []string, i int) (float64, int) {
	if i+1 < len(args) {
		if factor, ok := unitFactor(args[i+1]); ok {
			return factor, i + 1
		}
	}
	return 1, i
}

// Options shared by GEOSEARCH and GEOSEARCHSTORE, starting after the source key:
// FROMMEMBER member | FROMLONLAT longitude latitude,
// BYRADIUS radius [unit] | BYBOX width height [unit],
// [ASC|DESC] [COUNT count] [WITHCOORD] [WITHDIST] [WITHHASH], and STOREDIST when storing.
func parseGeoSearch(args []string, source int, storing bool) (geoSearch, error) {
	search := geoSearch{count: -1}
	if len(args) <= source {
		return search, ErrorParameterCount
	}
	search.source = args[source]

	hasFrom, hasBy := false, false
	for i := source + 1; i < len(args); i++ {
		remaining := len(args) - i - 1

		switch args[i] {
		case "FROMMEMBER":
			if hasFrom || remaining < 1 {
				return search, ErrorSyntax
			}
			search.fromMember, hasFrom = args[i+1], true
			i++
		case "FROMLONLAT":
			if hasFrom || remaining < 2 {
				return search, ErrorSyntax
			}
			values, err := parseFloats(args[i+1], args[i+2])
			if err != nil {
				return search, ErrorCoordinates
			}
			point := entries.GeoPoint{Longitude: values[0], Latitude: values[1]}
			if !point.Valid() {
				return search, ErrorCoordinates
			}
			search.fromPoint, hasFrom = &point, true
			i += 2
		case "BYRADIUS":
			if hasBy || remaining < 1 {
				return search, ErrorSyntax
			}
			radius, err := utils.FromStringToFloat64(args[i+1])
			if err != nil || radius < 0 {
				return search, ErrorSyntax
			}
			i++
			search.factor, i = optionalUnit(args, i)
			search.radius, hasBy = radius*search.factor, true
		case "BYBOX":
			if hasBy || remaining < 2 {
				return search, ErrorSyntax
			}
			width, errWidth := utils.FromStringToFloat64(args[i+1])
			height, errHeight := utils.FromStringToFloat64(args[i+2])
			if errWidth != nil || errHeight != nil || width < 0 || height < 0 {
				return search, ErrorSyntax
			}
			i += 2
			search.factor, i = optionalUnit(args, i)
			search.byBox, hasBy = true, true
			search.width, search.height = width*search.factor, height*search.factor
		case "ASC":
			search.descending = false
		case "DESC":
			search.descending = true
		case "COUNT":
			if remaining < 1 {
				return search, ErrorSyntax
			}
			count, err := strconv.Atoi(args[i+1])
			if err != nil || count < 1 {
				return search, ErrorCount
			}
			search.count = count
			i++
		case "WITHCOORD":
			search.withCoord = true
		case "WITHDIST":
			search.withDist = true
		case "WITHHASH":
			search.withHash = true
		case "STOREDIST":
			if !storing {
				return search, ErrorSyntax
			}
			search.storeDist = true
		default:
			return search, ErrorSyntax
		}
	}

	if !hasFrom || !hasBy {
		return search, ErrorSyntax
	}
	if storing && (search.withCoord || search.withDist || search.withHash) {
		return search, ErrorSyntax
	}
	return search, nil
}

func runGeoSearch(engine *Engine, request *Request, search geoSearch) []entries.GeoMatch {
	index, ok := lookup[*entries.GeoEntry](engine, request, search.source)
	if !ok {
		return []entries.GeoMatch{}
	}

	var center entries.GeoPoint
	if search.fromPoint != nil {
		center = *search.fromPoint
	} else if center, ok = index.Position(search.fromMember); !ok {
		return []entries.GeoMatch{}
	}

	var matches []entries.GeoMatch
	if search.byBox {
		matches = index.SearchBox(center, search.width, search.height)
	} else {
		matches = index.SearchRadius(center, search.radius)
	}

	if search.descending {
		slices.Reverse(matches)
	}
	if search.count > 0 && search.count < len(matches) {
		matches = matches[:search.count]
	}
	return matches
}

func handleGeosearch(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	search, _ := parseGeoSearch(request.Args, 0, false)
	matches := runGeoSearch(engine, request, search)

	if !search.withCoord && !search.withDist && !search.withHash {
		return protocol.Strings(lo.Map(matches, func(match entries.GeoMatch, _ int) string {
			return match.Member
		}))
	}

	return protocol.Array(lo.Map(matches, func(match entries.GeoMatch, _ int) protocol.Reply {
		fields := []protocol.Reply{protocol.Bulk(match.Member)}
		if search.withDist {
			fields = append(fields, protocol.Bulk(utils.FormatFloat(match.Distance/search.factor, 4)))
		}
		if search.withHash {
			fields = append(fields, protocol.Bulk(match.Point.Geohash()))
		}
		if search.withCoord {
			fields = append(fields, coordinatesReply(match.Point))
		}
		return protocol.Array(fields...)
	})...)
}

// GEOSEARCHSTORE destination source ... [STOREDIST]
//
// Stores a geo index, or with STOREDIST a sorted set scored by distance in
// the requested unit.
func handleGeosearchstore(_ context.Context, engine *Engine, request *Request) protocol.Reply {
	search, _ := parseGeoSearch(request.Args, 1, true)
	matches := runGeoSearch(engine, request, search)
	destination := request.Args[0]

	if search.storeDist {
		scored := lo.Map(matches, func(match entries.GeoMatch, _ int) entries.ScoredMember {
			return entries.ScoredMember{Member: match.Member, Score: match.Distance / search.factor}
		})
		return storeResult(engine, destination, entries.NewSortedSet(destination, scored...), len(scored))
	}

	points := lo.SliceToMap(matches, func(match entries.GeoMatch) (string, entries.GeoPoint) {
		return match.Member, match.Point
	})
	return storeResult(engine, destination, entries.NewGeo(destination, points), len(points))
}
