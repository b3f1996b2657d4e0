package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/cleared-dev/pocketledger/internal/money"
)

// ChaseParser parses Chase bank checking CSV exports.
type ChaseParser struct{}

const (
	chaseDateFormat = "01/02/2006"
	chaseNumFields  = 7
	chaseColDate    = 1
	chaseColDesc    = 2
	chaseColAmount  = 3
)

var chaseHeader = []string{"details", "posting date", "description", "amount", "type", "balance", "check or slip #"}

// Format returns the parser name.
func (p *ChaseParser) Format() string { return "chase" }

// Matches reports whether header is a Chase checking export header.
func (p *ChaseParser) Matches(header []string) bool {
	return slices.Equal(normalizeHeader(header), chaseHeader)
}

// Parse reads a Chase CSV. Rows carry no category.
func (p *ChaseParser) Parse(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = chaseNumFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading chase CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var rows []Row
	for i, rec := range records[1:] {
		row, err := parseChaseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		row.Line = i + 2
		rows = append(rows, row)
	}
	return rows, nil
}

func parseChaseRow(rec []string) (Row, error) {
	date, err := time.Parse(chaseDateFormat, strings.TrimSpace(rec[chaseColDate]))
	if err != nil {
		return Row{}, fmt.Errorf("parsing date %q: %w", rec[chaseColDate], err)
	}

	amount, err := money.Parse(strings.TrimSpace(rec[chaseColAmount]))
	if err != nil {
		return Row{}, fmt.Errorf("parsing amount %q: %w", rec[chaseColAmount], err)
	}

	return Row{
		Date:        date,
		Description: strings.TrimSpace(rec[chaseColDesc]),
		Amount:      amount,
	}, nil
}
