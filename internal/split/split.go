// Package split validates itemized splits of a single payment.
package split

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cleared-dev/pocketledger/internal/money"
)

var (
	ErrSplitMismatch        = errors.New("split amounts do not match total")
	ErrEmptySplit           = errors.New("split has no lines")
	ErrInvalidSplitCategory = errors.New("invalid split category")
)

// Line is one itemized portion of a payment.
type Line struct {
	CategoryID string
	Amount     money.Amount
	Memo       string
}

// CategoryChecker resolves a category reference.
type CategoryChecker interface {
	CategoryExists(id string) bool
}

// Validate checks lines against total and returns a copy whose amounts sum
// to total exactly. A difference of one cent is absorbed by the last line;
// anything larger fails with ErrSplitMismatch. checker may be nil.
func Validate(total money.Amount, lines []Line, checker CategoryChecker) ([]Line, error) {
	if len(lines) == 0 {
		return nil, ErrEmptySplit
	}

	out := make([]Line, len(lines))
	var sum money.Amount
	for i, l := range lines {
		l.CategoryID = strings.TrimSpace(l.CategoryID)
		if l.CategoryID == "" {
			return nil, fmt.Errorf("%w: line %d has no category", ErrInvalidSplitCategory, i+1)
		}
		if checker != nil && !checker.CategoryExists(l.CategoryID) {
			return nil, fmt.Errorf("%w: line %d category %q not found", ErrInvalidSplitCategory, i+1, l.CategoryID)
		}
		if !l.Amount.IsPositive() {
			return nil, fmt.Errorf("%w: line %d amount %s must be positive", money.ErrInvalidAmount, i+1, l.Amount)
		}
		sum += l.Amount
		out[i] = l
	}

	if !money.NearlyEqual(sum, total) {
		return nil, fmt.Errorf("%w: lines sum to %s, total is %s", ErrSplitMismatch, sum, total)
	}

	last := &out[len(out)-1]
	last.Amount += total - sum
	if !last.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: last line absorbs rounding to %s", ErrSplitMismatch, last.Amount)
	}
	return out, nil
}
