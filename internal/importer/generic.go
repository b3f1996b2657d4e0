package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/cleared-dev/pocketledger/internal/money"
)

// GenericParser reads Date,Description,Amount,Category[,ExternalID] files
// with ISO dates. Column order follows the header.
type GenericParser struct{}

var genericRequired = []string{"date", "description", "amount", "category"}

func (p *GenericParser) Format() string { return "generic" }

func (p *GenericParser) Matches(header []string) bool {
	_, err := genericColumns(header)
	return err == nil
}

type columns struct {
	date, desc, amount, category, external int
}

func genericColumns(header []string) (columns, error) {
	idx := map[string]int{}
	for i, h := range normalizeHeader(header) {
		idx[strings.ReplaceAll(h, "_", "")] = i
	}
	c := columns{external: -1}
	for i, name := range genericRequired {
		pos, ok := idx[name]
		if !ok {
			return c, fmt.Errorf("missing column %q", name)
		}
		switch i {
		case 0:
			c.date = pos
		case 1:
			c.desc = pos
		case 2:
			c.amount = pos
		case 3:
			c.category = pos
		}
	}
	if pos, ok := idx["externalid"]; ok {
		c.external = pos
	}
	return c, nil
}

// Parse reads the file. Amounts may use a leading minus or parentheses
// for money out.
func (p *GenericParser) Parse(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading generic CSV: %w", err)
	}
	cols, err := genericColumns(header)
	if err != nil {
		return nil, err
	}

	var rows []Row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		if blank(rec) {
			continue
		}
		row, err := parseGenericRow(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}
		row.Line = line
		rows = append(rows, row)
	}
	return rows, nil
}

func parseGenericRow(rec []string, c columns) (Row, error) {
	field := func(i int) string {
		if i < 0 || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	date, err := time.Parse(time.DateOnly, field(c.date))
	if err != nil {
		return Row{}, fmt.Errorf("parsing date %q: %w", field(c.date), err)
	}

	raw := strings.ReplaceAll(field(c.amount), ",", "")
	neg := strings.HasPrefix(raw, "(") && strings.HasSuffix(raw, ")")
	if neg {
		raw = "-" + strings.Trim(raw, "()")
	}
	amount, err := money.Parse(raw)
	if err != nil {
		return Row{}, fmt.Errorf("parsing amount %q: %w", field(c.amount), err)
	}

	return Row{
		Date:        date,
		Description: field(c.desc),
		Amount:      amount,
		Category:    field(c.category),
		ExternalID:  field(c.external),
	}, nil
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
