package entries

import (
	"fmt"
	"math"
	"strings"

	"pyrocache/pkg/utils"
)

// Score interval endpoint. "(" prefix makes it exclusive.
type ScoreBound struct {
	Value     float64
	Exclusive bool
}

func ParseScoreBound(raw string) (ScoreBound, error) {
	bound := ScoreBound{}
	if strings.HasPrefix(raw, "(") {
		bound.Exclusive = true
		raw = raw[1:]
	}

	value, err := utils.FromStringToFloat64(raw)
	if err != nil || math.IsNaN(value) {
		return ScoreBound{}, fmt.Errorf("min or max is not a float")
	}
	bound.Value = value
	return bound, nil
}

func (b ScoreBound) aboveMin(score float64) bool {
	if b.Exclusive {
		return score > b.Value
	}
	return score >= b.Value
}

func (b ScoreBound) belowMax(score float64) bool {
	if b.Exclusive {
		return score < b.Value
	}
	return score <= b.Value
}

// Lexicographic endpoint: "-" and "+" are the open ends,
// "[" is inclusive and "(" exclusive.
type LexBound struct {
	Value     string
	Exclusive bool
	Infinite  int
}

func ParseLexBound(raw string) (LexBound, error) {
	switch {
	case raw == "-":
		return LexBound{Infinite: -1}, nil
	case raw == "+":
		return LexBound{Infinite: 1}, nil
	case strings.HasPrefix(raw, "["):
		return LexBound{Value: raw[1:]}, nil
	case strings.HasPrefix(raw, "("):
		return LexBound{Value: raw[1:], Exclusive: true}, nil
	}
	return LexBound{}, fmt.Errorf("min or max not valid string range item")
}

func (b LexBound) aboveMin(member string) bool {
	switch b.Infinite {
	case -1:
		return true
	case 1:
		return false
	}
	if b.Exclusive {
		return member > b.Value
	}
	return member >= b.Value
}

func (b LexBound) belowMax(member string) bool {
	switch b.Infinite {
	case -1:
		return false
	case 1:
		return true
	}
	if b.Exclusive {
		return member < b.Value
	}
	return member <= b.Value
}
