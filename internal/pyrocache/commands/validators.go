package commands

import (
	"errors"
	"math"
	"strconv"
	"time"

	"pyrocache/internal/pyrocache/entries"
	"pyrocache/pkg/utils"
)

const (
	MaxKeyLength   = 1024
	MaxValueLength = 512 * 1024 * 1024
)

// Messages returned to the client verbatim when validation fails.
var (
	ErrorParameterCount     = errors.New("Incorrect number of parameters.")
	ErrorKeyTooLong         = errors.New("Cache key exceeds maximum limit of 1KB.")
	ErrorValueTooLong       = errors.New("String value exceeds maximum limit of 512MB.")
	ErrorSeconds            = errors.New("Seconds must be an integer.")
	ErrorMilliseconds       = errors.New("Milliseconds must be an integer.")
	ErrorTimestamp          = errors.New("Timestamp must be an integer.")
	ErrorUnpairedParameters = errors.New("Parameters count should be divisible by 2.")
	ErrorStartIndex         = errors.New("Start index should be a whole number.")
	ErrorEndIndex           = errors.New("End index should be a whole number.")
	ErrorIndex              = errors.New("Index should be a whole number.")
	ErrorOffset             = errors.New("Offset should be a whole number.")
	ErrorExpiry             = errors.New("Expiry should be an integer.")
	ErrorIncrement          = errors.New("Increment should be an integer.")
	ErrorFloatIncrement     = errors.New("Increment should be a number.")
	ErrorScore              = errors.New("Score should be a number.")
	ErrorTimeout            = errors.New("Timeout should be a non negative number.")
	ErrorNumKeys            = errors.New("Number of keys should be a positive integer.")
	ErrorCount              = errors.New("Count should be a positive integer.")
	ErrorCoordinates        = errors.New("Invalid longitude,latitude pair.")
	ErrorSyntax             = errors.New("Syntax error.")
)

// Checks the parameters that follow the command name.
type Validator func(args []string) error

func validate(rules ...Validator) Validator {
	return func(args []string) error {
		for _, rule := range rules {
			if err := rule(args); err != nil {
				return err
			}
		}
		return nil
	}
}

// maximum < 0 means unbounded
func arity(minimum, maximum int) Validator {
	return func(args []string) error {
		if len(args) < minimum || (maximum >= 0 && len(args) > maximum) {
			return ErrorParameterCount
		}
		return nil
	}
}

func exactly(count int) Validator {
	return arity(count, count)
}

func atLeast(count int) Validator {
	return arity(count, -1)
}

func keysAt(positions ...int) Validator {
	return func(args []string) error {
		for _, position := range positions {
			if position < len(args) && len(args[position]) > MaxKeyLength {
				return ErrorKeyTooLong
			}
		}
		return nil
	}
}

// Every step-th argument from start is a key
func keysEvery(start, step int) Validator {
	return func(args []string) error {
		for position := start; position < len(args); position += step {
			if len(args[position]) > MaxKeyLength {
				return ErrorKeyTooLong
			}
		}
		return nil
	}
}

func keysFrom(start int) Validator {
	return keysEvery(start, 1)
}

func valuesEvery(start, step int) Validator {
	return func(args []string) error {
		for position := start; position < len(args); position += step {
			if len(args[position]) > MaxValueLength {
				return ErrorValueTooLong
			}
		}
		return nil
	}
}

func valueAt(position int) Validator {
	return func(args []string) error {
		if position < len(args) && len(args[position]) > MaxValueLength {
			return ErrorValueTooLong
		}
		return nil
	}
}

func integerAt(position int, failure error) Validator {
	return func(args []string) error {
		if position >= len(args) {
			return nil
		}
		if _, err := utils.FromStringToInt64(args[position]); err != nil {
			return failure
		}
		return nil
	}
}

// Integer amount of unit that still fits a time.Duration either way
func durationAt(position int, unit time.Duration, failure error) Validator {
	return func(args []string) error {
		if position >= len(args) {
			return nil
		}
		amount, err := utils.FromStringToInt64(args[position])
		if err != nil {
			return failure
		}
		if !fitsDuration(amount, unit) {
			return ErrorExpiry
		}
		return nil
	}
}

func fitsDuration(amount int64, unit time.Duration) bool {
	limit := int64(math.MaxInt64 / unit)
	return amount <= limit && amount >= -limit
}

// Non negative offset bounded by the largest string value
func offsetAt(position int) Validator {
	return func(args []string) error {
		if position >= len(args) {
			return nil
		}
		offset, err := utils.FromStringToInt64(args[position])
		if err != nil || offset < 0 {
			return ErrorOffset
		}
		if offset > MaxValueLength {
			return ErrorValueTooLong
		}
		return nil
	}
}

// Integer whose negation is representable
func negatableAt(position int, failure error) Validator {
	return func(args []string) error {
		if position >= len(args) {
			return nil
		}
		value, err := utils.FromStringToInt64(args[position])
		if err != nil || value == math.MinInt64 {
			return failure
		}
		return nil
	}
}

func integersEvery(start, step int, failure error) Validator {
	return func(args []string) error {
		for position := start; position < len(args); position += step {
			if _, err := utils.FromStringToInt64(args[position]); err != nil {
				return failure
			}
		}
		return nil
	}
}

func indexAt(position int, failure error) Validator {
	return func(args []string) error {
		if position >= len(args) {
			return nil
		}
		if _, err := utils.FromStringToIndex(args[position]); err != nil {
			return failure
		}
		return nil
	}
}

func floatsEvery(start, step int, failure error) Validator {
	return func(args []string) error {
		for position := start; position < len(args); position += step {
			if _, err := utils.FromStringToFloat64(args[position]); err != nil {
				return failure
			}
		}
		return nil
	}
}

func floatAt(position int, failure error) Validator {
	return func(args []string) error {
		if position >= len(args) {
			return nil
		}
		return floatsEvery(position, len(args), failure)(args)
	}
}

// Optional strictly positive count at position
func countAt(position int) Validator {
	return func(args []string) error {
		if position >= len(args) {
			return nil
		}
		count, err := strconv.Atoi(args[position])
		if err != nil || count < 1 {
			return ErrorCount
		}
		return nil
	}
}

// Arguments from start come in groups of size
func groupedFrom(start, size int, failure error) Validator {
	return func(args []string) error {
		if len(args) <= start || (len(args)-start)%size != 0 {
			return failure
		}
		return nil
	}
}

func pairedFrom(start int) Validator {
	return groupedFrom(start, 2, ErrorUnpairedParameters)
}

func oneOf(position int, options ...string) Validator {
	return func(args []string) error {
		if position >= len(args) {
			return nil
		}
		for _, option := range options {
			if args[position] == option {
				return nil
			}
		}
		return ErrorSyntax
	}
}

func timeoutAt(position int) Validator {
	return func(args []string) error {
		if position < 0 {
			position += len(args)
		}
		if position < 0 || position >= len(args) {
			return ErrorParameterCount
		}
		seconds, err := utils.FromStringToFloat64(args[position])
		if err != nil || seconds < 0 || seconds > float64(math.MaxInt64/time.Second) {
			return ErrorTimeout
		}
		return nil
	}
}

// args[position] announces how many keys follow it
func numKeysAt(position int) Validator {
	return func(args []string) error {
		if position >= len(args) {
			return ErrorParameterCount
		}
		count, err := strconv.Atoi(args[position])
		if err != nil || count < 1 {
			return ErrorNumKeys
		}
		if len(args) < position+1+count {
			return ErrorParameterCount
		}
		return keysEvery(position+1, 1)(args[:position+1+count])
	}
}

// Splits numkeys prefixed arguments into keys and trailing options.
// The arguments are assumed validated by numKeysAt.
func splitNumKeys(args []string, position int) ([]string, []string) {
	count, _ := strconv.Atoi(args[position])
	end := position + 1 + count
	return args[position+1 : end], args[end:]
}

// Longitude, latitude, member triples from start
func coordinatesFrom(start int) Validator {
	return func(args []string) error {
		if err := groupedFrom(start, 3, ErrorParameterCount)(args); err != nil {
			return err
		}
		for position := start; position+1 < len(args); position += 3 {
			longitude, errLongitude := strconv.ParseFloat(args[position], 64)
			latitude, errLatitude := strconv.ParseFloat(args[position+1], 64)
			if errLongitude != nil || errLatitude != nil {
				return ErrorCoordinates
			}
			if !(entries.GeoPoint{Longitude: longitude, Latitude: latitude}).Valid() {
				return ErrorCoordinates
			}
		}
		return nil
	}
}

// Adapts an option parser into a validator
func parsed[T any](parse func(args []string) (T, error)) Validator {
	return func(args []string) error {
		_, err := parse(args)
		return err
	}
}
