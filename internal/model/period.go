package model

import (
	"fmt"
	"time"
)

const periodFormat = "2006-01"

// Period is a calendar month, the unit budgets and rollovers are kept in.
type Period struct {
	Year  int
	Month time.Month
}

// NewPeriod returns the period for year and month, normalizing overflow.
func NewPeriod(year int, month time.Month) Period {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Period{Year: t.Year(), Month: t.Month()}
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// ParsePeriod parses "YYYY-MM".
func ParsePeriod(s string) (Period, error) {
	t, err := time.Parse(periodFormat, s)
	if err != nil {
		return Period{}, fmt.Errorf("invalid period %q: %w", s, err)
	}
	return PeriodOf(t), nil
}

// String formats as "YYYY-MM".
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// IsZero reports whether p is unset.
func (p Period) IsZero() bool { return p.Year == 0 && p.Month == 0 }

// Start is the first day of the month at 00:00 UTC.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End is the last day of the month at 00:00 UTC.
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, -1)
}

// Days returns the number of days in the month.
func (p Period) Days() int { return p.End().Day() }

// Contains reports whether t falls in the month.
func (p Period) Contains(t time.Time) bool {
	return t.Year() == p.Year && t.Month() == p.Month
}

func (p Period) Next() Period { return NewPeriod(p.Year, p.Month+1) }
func (p Period) Prev() Period { return NewPeriod(p.Year, p.Month-1) }

// Add moves n months forward (or back when negative).
func (p Period) Add(n int) Period { return NewPeriod(p.Year, p.Month+time.Month(n)) }

func (p Period) index() int { return p.Year*12 + int(p.Month) - 1 }

// MonthsUntil returns the number of months from p to o (negative if o is earlier).
func (p Period) MonthsUntil(o Period) int { return o.index() - p.index() }

func (p Period) Before(o Period) bool { return p.index() < o.index() }
func (p Period) After(o Period) bool  { return p.index() > o.index() }

// MarshalText implements encoding.TextMarshaler.
func (p Period) MarshalText() ([]byte, error) {
	if p.IsZero() {
		return []byte{}, nil
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Period) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*p = Period{}
		return nil
	}
	v, err := ParsePeriod(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
