// Package share splits a shared expense into the part the payer keeps
// and the part owed back by others.
package share

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/pocketledger/internal/money"
)

// Method selects how the personal portion is derived.
type Method string

const (
	MethodFixed      Method = "FIXED"
	MethodPercentage Method = "PERCENTAGE"
	MethodEqual      Method = "EQUAL"
)

var (
	ErrShareExceedsTotal  = errors.New("share exceeds total")
	ErrInvalidPercentage  = errors.New("invalid percentage")
	ErrInvalidEqualCount  = errors.New("invalid equal-split count")
	ErrInvalidShareMethod = errors.New("invalid share method")
)

var hundred = decimal.NewFromInt(100)

// Config describes one share. Value is an amount for FIXED, 0..100 for
// PERCENTAGE, and a head count for EQUAL.
type Config struct {
	Method Method
	Value  decimal.Decimal
	// PersonalAmount bypasses Method when set (legacy requests).
	PersonalAmount *money.Amount
}

// ParseMethod normalizes a method name from a request.
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case MethodFixed, MethodPercentage, MethodEqual:
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidShareMethod, s)
}

// Result holds the two halves of a shared expense. Personal+Reimbursable
// always equals the total.
type Result struct {
	Personal     money.Amount
	Reimbursable money.Amount
}

// Calculate splits total according to cfg.
func Calculate(total money.Amount, cfg Config) (Result, error) {
	if !total.IsPositive() {
		return Result{}, fmt.Errorf("%w: share total must be positive, got %s", money.ErrInvalidAmount, total)
	}

	if cfg.PersonalAmount != nil {
		return fixed(total, *cfg.PersonalAmount)
	}

	switch cfg.Method {
	case MethodFixed:
		v, err := money.FromDecimal(cfg.Value)
		if err != nil {
			return Result{}, err
		}
		return fixed(total, v)

	case MethodPercentage:
		if cfg.Value.IsNegative() || cfg.Value.GreaterThan(hundred) {
			return Result{}, fmt.Errorf("%w: %s not in [0,100]", ErrInvalidPercentage, cfg.Value)
		}
		personal := total.MulDecimal(cfg.Value.Div(hundred))
		return Result{Personal: personal, Reimbursable: total - personal}, nil

	case MethodEqual:
		if !cfg.Value.IsInteger() || cfg.Value.LessThan(decimal.NewFromInt(1)) {
			return Result{}, fmt.Errorf("%w: %s", ErrInvalidEqualCount, cfg.Value)
		}
		personal, err := money.FromDecimal(total.Decimal().Div(cfg.Value))
		if err != nil {
			return Result{}, err
		}
		return Result{Personal: personal, Reimbursable: total - personal}, nil
	}

	return Result{}, fmt.Errorf("%w: %q", ErrInvalidShareMethod, cfg.Method)
}

func fixed(total, personal money.Amount) (Result, error) {
	if personal.IsNegative() {
		return Result{}, fmt.Errorf("%w: personal amount %s is negative", money.ErrInvalidAmount, personal)
	}
	if personal > total {
		return Result{}, fmt.Errorf("%w: %s > %s", ErrShareExceedsTotal, personal, total)
	}
	return Result{Personal: personal, Reimbursable: total - personal}, nil
}
