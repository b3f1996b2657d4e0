package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cleared-dev/pocketledger/internal/journal"
	"github.com/cleared-dev/pocketledger/internal/log"
	"github.com/cleared-dev/pocketledger/internal/money"
	"github.com/cleared-dev/pocketledger/internal/recurring"
	"github.com/cleared-dev/pocketledger/internal/rollover"
	"github.com/cleared-dev/pocketledger/internal/share"
	"github.com/cleared-dev/pocketledger/internal/split"
	"github.com/cleared-dev/pocketledger/internal/store"
)

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

var statusByError = []struct {
	err    error
	status int
}{
	{errBadRequest, http.StatusBadRequest},
	{money.ErrInvalidAmount, http.StatusBadRequest},
	{journal.ErrZeroAmount, http.StatusBadRequest},
	{split.ErrEmptySplit, http.StatusBadRequest},
	{share.ErrInvalidPercentage, http.StatusBadRequest},
	{share.ErrInvalidEqualCount, http.StatusBadRequest},
	{share.ErrInvalidShareMethod, http.StatusBadRequest},
	{rollover.ErrInvalidPolicy, http.StatusBadRequest},
	{rollover.ErrInvalidSettings, http.StatusBadRequest},
	{recurring.ErrInvalidTemplate, http.StatusBadRequest},

	{store.ErrNotFound, http.StatusNotFound},
	{rollover.ErrBudgetNotFound, http.StatusNotFound},

	{journal.ErrDuplicateTransaction, http.StatusConflict},
	{journal.ErrTransactionVoided, http.StatusConflict},
	{recurring.ErrTemplateInactive, http.StatusConflict},

	{journal.ErrUnbalancedTransaction, http.StatusUnprocessableEntity},
	{journal.ErrInvalidEntries, http.StatusUnprocessableEntity},
	{journal.ErrNoDefaultAccount, http.StatusUnprocessableEntity},
	{journal.ErrAccountNotOwned, http.StatusUnprocessableEntity},
	{journal.ErrAccountTypeMismatch, http.StatusUnprocessableEntity},
	{journal.ErrCategoryInactive, http.StatusUnprocessableEntity},
	{journal.ErrSameAccount, http.StatusUnprocessableEntity},
	{split.ErrSplitMismatch, http.StatusUnprocessableEntity},
	{split.ErrInvalidSplitCategory, http.StatusUnprocessableEntity},
	{share.ErrShareExceedsTotal, http.StatusUnprocessableEntity},
	{recurring.ErrUnresolvedSeason, http.StatusUnprocessableEntity},
	{rollover.ErrNotExpenseBudget, http.StatusUnprocessableEntity},
}

// statusFor maps a domain error to an HTTP status.
func statusFor(err error) int {
	for _, e := range statusByError {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return http.StatusInternalServerError
}

// fail writes err as a JSON error body. Internal errors are logged and
// their detail withheld from the client.
func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.logger.ErrorContext(c.Request.Context(), "internal error",
			log.FieldPath, c.FullPath(), log.FieldError, err)
		msg = http.StatusText(status)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}
