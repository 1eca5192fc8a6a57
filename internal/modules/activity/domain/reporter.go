package domain

import (
	"github.com/samber/lo"
	"github.com/samber/oops"
)

// Report reduces an accumulator to the single metric of its mode. For
// per-author mode that is the number of authors with at least threshold
// messages; a threshold of 0 behaves like 1.
func Report(acc Accumulator, mode Mode, threshold uint) (uint, error) {
	switch mode {
	case ModeCount:
		count, ok := acc.(*ScalarCount)
		if !ok {
			return 0, reportMismatch(acc, mode)
		}
		return count.N, nil
	case ModePerAuthor:
		freq, ok := acc.(*FrequencyMap)
		if !ok {
			return 0, reportMismatch(acc, mode)
		}
		active := lo.CountBy(lo.Values(freq.Counts), func(n uint) bool {
			return n >= threshold
		})
		return uint(active), nil
	default:
		return 0, oops.Code("invalid_mode").With("mode", mode).Wrap(ErrInvalidMode)
	}
}

func reportMismatch(acc Accumulator, mode Mode) error {
	builder := oops.Code("accumulator_mismatch").With("mode", mode)
	if acc != nil {
		builder = builder.With("accumulator_mode", acc.Mode())
	}
	return builder.Errorf("accumulator does not match mode")
}
