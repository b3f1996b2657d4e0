package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// HistoryEntry is one row in the import log.
type HistoryEntry struct {
	Timestamp  time.Time
	PartyID    string
	File       string
	Format     string
	Posted     int
	Duplicates int
	Errors     int
}

// HistoryHeader is the CSV header for import-log.csv.
const HistoryHeader = "timestamp,party_id,file,format,posted,duplicates,errors"

const (
	historyFields = 7
	historyDir    = "logs"
	historyFile   = "logs/import-log.csv"
	colTimestamp  = 0
	colParty      = 1
	colFile       = 2
	colFormat     = 3
	colPosted     = 4
	colDuplicates = 5
	colErrors     = 6
)

// NewHistoryEntry records a summary imported at ts.
func NewHistoryEntry(ts time.Time, partyID string, s Summary) HistoryEntry {
	return HistoryEntry{
		Timestamp:  ts.UTC(),
		PartyID:    partyID,
		File:       s.File,
		Format:     s.Format,
		Posted:     s.Posted,
		Duplicates: s.Duplicates,
		Errors:     len(s.Errors),
	}
}

// MarshalHistory converts an entry to a CSV row.
func MarshalHistory(e HistoryEntry) []string {
	row := make([]string, historyFields)
	row[colTimestamp] = e.Timestamp.Format(time.RFC3339)
	row[colParty] = e.PartyID
	row[colFile] = e.File
	row[colFormat] = e.Format
	row[colPosted] = strconv.Itoa(e.Posted)
	row[colDuplicates] = strconv.Itoa(e.Duplicates)
	row[colErrors] = strconv.Itoa(e.Errors)
	return row
}

// UnmarshalHistory converts a CSV row to an entry.
func UnmarshalHistory(record []string) (HistoryEntry, error) {
	if len(record) != historyFields {
		return HistoryEntry{}, fmt.Errorf("expected %d fields, got %d", historyFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return HistoryEntry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}
	var counts [3]int
	for i, col := range []int{colPosted, colDuplicates, colErrors} {
		if counts[i], err = strconv.Atoi(record[col]); err != nil {
			return HistoryEntry{}, fmt.Errorf("parsing count %q: %w", record[col], err)
		}
	}

	return HistoryEntry{
		Timestamp:  ts,
		PartyID:    record[colParty],
		File:       record[colFile],
		Format:     record[colFormat],
		Posted:     counts[0],
		Duplicates: counts[1],
		Errors:     counts[2],
	}, nil
}

// AppendHistory writes entries to <root>/logs/import-log.csv, creating the
// file and header if needed.
func AppendHistory(root string, entries []HistoryEntry) error {
	if err := os.MkdirAll(filepath.Join(root, historyDir), 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	path := filepath.Join(root, historyFile)
	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening import log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if needsHeader {
		if err := cw.Write(strings.Split(HistoryHeader, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for i, e := range entries {
		if err := cw.Write(MarshalHistory(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadHistory returns all entries from <root>/logs/import-log.csv, or nil
// if the file does not exist.
func ReadHistory(root string) ([]HistoryEntry, error) {
	f, err := os.Open(filepath.Join(root, historyFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening import log: %w", err)
	}
	defer f.Close()

	return readHistory(f)
}

func readHistory(r io.Reader) ([]HistoryEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = historyFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading import log CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	entries := make([]HistoryEntry, 0, len(records)-1)
	for i, rec := range records[1:] {
		e, err := UnmarshalHistory(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
