package id

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const legSep = "#"

// New returns a fresh random identifier.
func New() string {
	return uuid.NewString()
}

// Valid reports whether s is a well-formed identifier.
func Valid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// FormatLegID returns an entry ID like "<txn>#a" (leg 0='a', 1='b', etc.).
func FormatLegID(txnID string, leg int) string {
	return txnID + legSep + string(rune('a'+leg))
}

// ParseLegID splits "<txn>#c" into the transaction ID and leg index 2.
func ParseLegID(legID string) (txnID string, leg int, err error) {
	i := strings.LastIndex(legID, legSep)
	if i <= 0 || i != len(legID)-2 {
		return "", 0, fmt.Errorf("invalid leg ID format: %q", legID)
	}
	c := legID[len(legID)-1]
	if c < 'a' || c > 'z' {
		return "", 0, fmt.Errorf("invalid leg suffix in %q", legID)
	}
	return legID[:i], int(c - 'a'), nil
}

// TransactionOf strips the leg suffix from an entry ID.
// "<txn>#a" -> "<txn>"
func TransactionOf(legID string) string {
	if i := strings.LastIndex(legID, legSep); i >= 0 {
		return legID[:i]
	}
	return legID
}
