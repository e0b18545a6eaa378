package utils

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

var ErrorNotANumber = errors.New("value.notANumber")

// Converts string value to int64
func FromStringToInt64(value string) (int64, error) {
	return strconv.ParseInt(value, 10, 64)
}

// Converts string value to float64, accepting the +inf and -inf spellings
func FromStringToFloat64(value string) (float64, error) {
	switch strings.ToLower(value) {
	case "+inf", "inf":
		return math.Inf(1), nil
	case "-inf":
		return math.Inf(-1), nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(parsed) {
		return 0, ErrorNotANumber
	}
	return parsed, nil
}

// Parses a range index. The +inf and -inf sentinels map to the widest int values.
func FromStringToIndex(value string) (int, error) {
	switch strings.ToLower(value) {
	case "+inf", "inf":
		return math.MaxInt, nil
	case "-inf":
		return math.MinInt, nil
	}
	index, err := strconv.ParseInt(value, 10, 64)
	return int(index), err
}

// Renders a sorted set score in fixed point
func FormatScore(score float64) string {
	switch {
	case math.IsInf(score, 1):
		return "inf"
	case math.IsInf(score, -1):
		return "-inf"
	}
	return strconv.FormatFloat(score, 'f', 2, 64)
}

// Renders a coordinate or distance with the given number of decimals
func FormatFloat(value float64, decimals int) string {
	return strconv.FormatFloat(value, 'f', decimals, 64)
}

// Clamps a possibly negative inclusive [start, stop] range against length.
// Returns ok=false when the range is empty.
func NormalizeRange(start, stop, length int) (int, int, bool) {
	if start < 0 {
		if start < -length {
			start = 0
		} else {
			start += length
		}
	}
	if stop < 0 {
		if stop < -length {
			return 0, 0, false
		}
		stop += length
	}
	if stop >= length {
		stop = length - 1
	}
	if start > stop || start >= length {
		return 0, 0, false
	}
	return start, stop, true
}
