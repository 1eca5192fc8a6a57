package domain

import (
	"math"
	"regexp"
	"strconv"
	"time"

	"github.com/reshetovitsme/guild-activity-bot/internal/shared/errors"
	"github.com/samber/oops"
)

var windowPattern = regexp.MustCompile(`^(?:(\d+)d)?(?:(\d+)h)?(?:(\d+)m)?(?:(\d+)s)?$`)

var windowUnits = [...]time.Duration{24 * time.Hour, time.Hour, time.Minute, time.Second}

// ParseDuration converts a "#d#h#m#s" string into a lookback duration.
// Components are optional but must appear in that order, and at least one
// is required.
func ParseDuration(spec string) (time.Duration, error) {
	if spec == DefaultWindow {
		return 24 * time.Hour, nil
	}

	groups := windowPattern.FindStringSubmatch(spec)
	if spec == "" || groups == nil {
		return 0, oops.Code("invalid_duration").With("window", spec).Wrap(errors.ErrInvalidDuration)
	}

	var total time.Duration
	for i, unit := range windowUnits {
		digits := groups[i+1]
		if digits == "" {
			continue
		}
		n, err := strconv.ParseInt(digits, 10, 64)
		if err != nil || n > int64(math.MaxInt64/unit) {
			return 0, oops.Code("invalid_duration").With("window", spec).Wrap(errors.ErrInvalidDuration)
		}
		part := time.Duration(n) * unit
		if total > math.MaxInt64-part {
			return 0, oops.Code("invalid_duration").With("window", spec).Wrap(errors.ErrInvalidDuration)
		}
		total += part
	}

	if total <= 0 {
		return 0, oops.Code("invalid_duration").With("window", spec).Wrapf(errors.ErrInvalidDuration, "window must be positive")
	}
	return total, nil
}
