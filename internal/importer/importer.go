// Package importer reads bank and spreadsheet CSV exports and posts each
// row through the journal.
package importer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/cleared-dev/pocketledger/internal/money"
)

// Row is one parsed line. Negative amounts are money out.
type Row struct {
	Line        int
	Date        time.Time
	Description string
	Amount      money.Amount
	Category    string // account name; "" = importer default
	ExternalID  string // "" = derived from the row
}

// Parser converts a CSV export into Rows.
type Parser interface {
	Parse(r io.Reader) ([]Row, error)
	Format() string
	// Matches reports whether a header row belongs to this format.
	Matches(header []string) bool
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
	order   []string
}

// FileInfo describes a CSV file in the import directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
	r.order = append(r.order, key)
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// Formats lists registered formats in registration order.
func (r *Registry) Formats() []string {
	return slices.Clone(r.order)
}

// Detect returns the first registered parser whose Matches accepts header.
func (r *Registry) Detect(header []string) Parser {
	for _, key := range r.order {
		if p := r.parsers[key]; p.Matches(header) {
			return p
		}
	}
	return nil
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&ChaseParser{})
	r.Register(&GenericParser{})
	return r
}

// ProcessedDir is the subdirectory imported files are moved into.
const ProcessedDir = "processed"

// Scan returns the CSV files directly inside dir.
func Scan(dir string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading import dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name()), ".csv") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	return files, nil
}

// MarkProcessed moves dir/fileName to dir/processed/fileName.
func MarkProcessed(dir, fileName string) error {
	src := filepath.Join(dir, fileName)
	dstDir := filepath.Join(dir, ProcessedDir)

	if err := os.MkdirAll(dstDir, 0o755); err != nil {
		return fmt.Errorf("creating processed dir: %w", err)
	}

	dst := filepath.Join(dstDir, fileName)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("moving %s to processed: %w", fileName, err)
	}
	return nil
}

func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		out[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}
	return out
}
