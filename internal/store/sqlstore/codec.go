package sqlstore

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/pocketledger/internal/model"
)

const (
	dateLayout = "2006-01-02"
	// Fixed width so timestamps compare correctly as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// Dates and timestamps are stored as ISO text so both dialects sort and
// compare them the same way. The zero time is stored as "".

func fmtDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func fmtPeriod(p model.Period) string {
	if p.IsZero() {
		return ""
	}
	return p.String()
}

func parsePeriod(s string) (model.Period, error) {
	if s == "" {
		return model.Period{}, nil
	}
	return model.ParsePeriod(s)
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return model.DefaultRolloverPercentage, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return d, nil
}

// textDecoder collects the first conversion error across several fields.
type textDecoder struct{ err error }

func (d *textDecoder) date(s string) time.Time {
	t, err := parseDate(s)
	if err != nil && d.err == nil {
		d.err = err
	}
	return t
}

func (d *textDecoder) time(s string) time.Time {
	t, err := parseTime(s)
	if err != nil && d.err == nil {
		d.err = err
	}
	return t
}

func (d *textDecoder) period(s string) model.Period {
	p, err := parsePeriod(s)
	if err != nil && d.err == nil {
		d.err = err
	}
	return p
}

func (d *textDecoder) decimal(s string) decimal.Decimal {
	v, err := parseDecimal(s)
	if err != nil && d.err == nil {
		d.err = err
	}
	return v
}
