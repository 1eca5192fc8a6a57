package domain

import (
	messageDomain "github.com/reshetovitsme/guild-activity-bot/internal/modules/message/domain"
	"github.com/samber/oops"
)

// Accumulator is the running fold of an aggregation. It is either a
// *ScalarCount or a *FrequencyMap and only ever grows.
type Accumulator interface {
	Mode() Mode
	Add(msg *messageDomain.Message)
	// Merge folds other into the receiver. Both shapes are commutative and
	// associative, so merge order never changes the result.
	Merge(other Accumulator) error
	isAccumulator()
}

// ScalarCount counts every message
type ScalarCount struct {
	N uint `json:"n"`
}

func (c *ScalarCount) Mode() Mode { return ModeCount }

func (c *ScalarCount) Add(*messageDomain.Message) { c.N++ }

func (c *ScalarCount) Merge(other Accumulator) error {
	o, ok := other.(*ScalarCount)
	if !ok {
		return mismatch(c, other)
	}
	c.N += o.N
	return nil
}

func (*ScalarCount) isAccumulator() {}

// FrequencyMap counts messages per human author
type FrequencyMap struct {
	Counts map[int64]uint `json:"counts"`
}

func NewFrequencyMap() *FrequencyMap {
	return &FrequencyMap{Counts: make(map[int64]uint)}
}

func (f *FrequencyMap) Mode() Mode { return ModePerAuthor }

// Add ignores messages written by bot accounts
func (f *FrequencyMap) Add(msg *messageDomain.Message) {
	if msg.AuthorIsBot {
		return
	}
	f.Counts[msg.AuthorID]++
}

func (f *FrequencyMap) Merge(other Accumulator) error {
	o, ok := other.(*FrequencyMap)
	if !ok {
		return mismatch(f, other)
	}
	for author, n := range o.Counts {
		f.Counts[author] += n
	}
	return nil
}

func (*FrequencyMap) isAccumulator() {}

// NewAccumulator returns an empty accumulator of the shape mode folds into
func NewAccumulator(mode Mode) (Accumulator, error) {
	switch mode {
	case ModeCount:
		return &ScalarCount{}, nil
	case ModePerAuthor:
		return NewFrequencyMap(), nil
	default:
		return nil, oops.Code("invalid_mode").With("mode", mode).Wrap(ErrInvalidMode)
	}
}

func mismatch(dst, src Accumulator) error {
	return oops.
		Code("accumulator_mismatch").
		With("dst_mode", dst.Mode(), "src_mode", src.Mode()).
		Errorf("cannot merge accumulators of different shapes")
}
