//go:generate go run github.com/abice/go-enum --file=$GOFILE --names --nocase

package domain

// Mode selects the accumulator shape an aggregation folds into
// ENUM(count,per_author)
type Mode string
