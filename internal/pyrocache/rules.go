package pyrocache

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"pyrocache/internal/pyrocache/errors"
)

// Save after Interval when at least Changes writes happened since the last save
type SaveRule struct {
	Interval time.Duration
	Changes  int64
}

func (rule SaveRule) Triggered(elapsed time.Duration, changes int64) bool {
	return changes > 0 && changes >= rule.Changes && elapsed >= rule.Interval
}

// Parses "seconds changes" pairs such as "900 1"
func ParseSaveRules(raw []string) ([]SaveRule, error) {
	rules := make([]SaveRule, 0, len(raw))

	for _, text := range lo.Compact(lo.Map(raw, func(text string, _ int) string {
		return strings.TrimSpace(text)
	})) {
		fields := strings.Fields(text)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%w: %q", errors.ErrorInvalidSaveRule, text)
		}

		seconds, errSeconds := strconv.ParseInt(fields[0], 10, 64)
		changes, errChanges := strconv.ParseInt(fields[1], 10, 64)
		if errSeconds != nil || errChanges != nil || seconds <= 0 || changes <= 0 {
			return nil, fmt.Errorf("%w: %q", errors.ErrorInvalidSaveRule, text)
		}

		rules = append(rules, SaveRule{Interval: time.Duration(seconds) * time.Second, Changes: changes})
	}
	return rules, nil
}
