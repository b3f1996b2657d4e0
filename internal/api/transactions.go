package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/pocketledger/internal/journal"
	"github.com/cleared-dev/pocketledger/internal/model"
	"github.com/cleared-dev/pocketledger/internal/money"
	"github.com/cleared-dev/pocketledger/internal/share"
	"github.com/cleared-dev/pocketledger/internal/split"
)

type splitLineRequest struct {
	CategoryID string       `json:"category_id"`
	Amount     money.Amount `json:"amount"`
	Memo       string       `json:"memo"`
}

type shareRequest struct {
	Method         string          `json:"method"`
	Value          decimal.Decimal `json:"value"`
	PersonalAmount *money.Amount   `json:"personal_amount"`
}

// transactionRequest is a tagged variant; Type selects which fields apply.
type transactionRequest struct {
	Type        string `json:"type" binding:"required,oneof=simple transfer split shared"`
	Date        string `json:"date"`
	Description string `json:"description"`
	ExternalID  string `json:"external_id"`

	// simple
	Direction  string       `json:"direction"`
	CategoryID string       `json:"category_id"`
	AccountID  string       `json:"account_id"`
	Amount     money.Amount `json:"amount"`

	// transfer
	FromAccountID string `json:"from_account_id"`
	ToAccountID   string `json:"to_account_id"`

	// split and shared
	SourceAccountID string             `json:"source_account_id"`
	Total           money.Amount       `json:"total"`
	Lines           []splitLineRequest `json:"lines"`
	Share           *shareRequest      `json:"share"`
}

func (r transactionRequest) intent(partyID string) (journal.Intent, error) {
	date, err := parseDate("date", r.Date)
	if err != nil {
		return nil, err
	}
	h := journal.Header{
		PartyID:     partyID,
		Date:        date,
		Description: strings.TrimSpace(r.Description),
		ExternalID:  strings.TrimSpace(r.ExternalID),
	}

	switch r.Type {
	case "simple":
		dir := journal.Direction(strings.ToLower(r.Direction))
		if dir != "" && dir != journal.DirectionExpense && dir != journal.DirectionIncome {
			return nil, badRequest("direction must be expense or income, got %q", r.Direction)
		}
		if r.CategoryID == "" {
			return nil, badRequest("category_id is required")
		}
		return journal.Simple{Header: h, Direction: dir, CategoryID: r.CategoryID, AccountID: r.AccountID, Amount: r.Amount}, nil

	case "transfer":
		if r.FromAccountID == "" || r.ToAccountID == "" {
			return nil, badRequest("from_account_id and to_account_id are required")
		}
		return journal.Transfer{Header: h, FromAccountID: r.FromAccountID, ToAccountID: r.ToAccountID, Amount: r.Amount}, nil

	case "split":
		lines := make([]split.Line, len(r.Lines))
		for i, l := range r.Lines {
			lines[i] = split.Line{CategoryID: l.CategoryID, Amount: l.Amount, Memo: l.Memo}
		}
		return journal.Split{Header: h, SourceAccountID: r.SourceAccountID, Total: r.Total, Lines: lines}, nil

	case "shared":
		if r.CategoryID == "" {
			return nil, badRequest("category_id is required")
		}
		if r.Share == nil {
			return nil, badRequest("share is required")
		}
		cfg := share.Config{Value: r.Share.Value, PersonalAmount: r.Share.PersonalAmount}
		if r.Share.PersonalAmount == nil {
			m, err := share.ParseMethod(r.Share.Method)
			if err != nil {
				return nil, err
			}
			cfg.Method = m
		}
		return journal.Shared{Header: h, SourceAccountID: r.SourceAccountID, CategoryID: r.CategoryID, Total: r.Total, Share: cfg}, nil
	}
	return nil, badRequest("unknown transaction type %q", r.Type)
}

type entryResponse struct {
	ID         string       `json:"id"`
	AccountID  string       `json:"account_id"`
	Amount     money.Amount `json:"amount"`
	Reportable bool         `json:"reportable"`
	Memo       string       `json:"memo,omitempty"`
}

type transactionResponse struct {
	ID                  string          `json:"id"`
	PartyID             string          `json:"party_id"`
	Date                string          `json:"date"`
	Description         string          `json:"description"`
	ExternalID          string          `json:"external_id,omitempty"`
	RecurringTemplateID string          `json:"recurring_template_id,omitempty"`
	Kind                string          `json:"kind"`
	Status              string          `json:"status"`
	Entries             []entryResponse `json:"entries"`
	CreatedAt           time.Time       `json:"created_at"`
}

func newTransactionResponse(t model.Transaction) transactionResponse {
	out := transactionResponse{
		ID:                  t.ID,
		PartyID:             t.PartyID,
		Date:                t.Date.Format(time.DateOnly),
		Description:         t.Description,
		ExternalID:          t.ExternalID,
		RecurringTemplateID: t.RecurringTemplateID,
		Kind:                string(t.Kind),
		Status:              string(t.Status),
		Entries:             make([]entryResponse, len(t.Entries)),
		CreatedAt:           t.CreatedAt,
	}
	for i, e := range t.Entries {
		out.Entries[i] = entryResponse{ID: e.ID, AccountID: e.AccountID, Amount: e.Amount, Reportable: e.Reportable, Memo: e.Memo}
	}
	return out
}

func (s *Server) postTransaction(c *gin.Context) {
	var req transactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, badRequest("%v", err))
		return
	}
	intent, err := req.intent(partyID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	txn, err := s.svc.Journal.Post(c.Request.Context(), intent)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, newTransactionResponse(txn))
}

func (s *Server) voidTransaction(c *gin.Context) {
	txn, err := s.svc.Journal.Void(c.Request.Context(), partyID(c), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newTransactionResponse(txn))
}

func (s *Server) listAccounts(c *gin.Context) {
	accts, err := s.svc.Accounts.List(c.Request.Context(), partyID(c))
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]gin.H, len(accts))
	for i, a := range accts {
		out[i] = gin.H{
			"id":        a.ID,
			"name":      a.Name,
			"type":      a.Type,
			"parent_id": a.ParentID,
			"active":    a.Active,
		}
	}
	c.JSON(http.StatusOK, gin.H{"accounts": out})
}

func (s *Server) accountBalance(c *gin.Context) {
	asOf, err := parseDate("as_of", c.Query("as_of"))
	if err != nil {
		s.fail(c, err)
		return
	}
	bal, err := s.svc.Journal.Balance(c.Request.Context(), partyID(c), c.Param("id"), asOf)
	if err != nil {
		s.fail(c, err)
		return
	}
	resp := gin.H{"account_id": c.Param("id"), "balance": bal}
	if !asOf.IsZero() {
		resp["as_of"] = asOf.Format(time.DateOnly)
	}
	c.JSON(http.StatusOK, resp)
}

// parseDate reads an optional YYYY-MM-DD value.
func parseDate(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, badRequest("%s must be YYYY-MM-DD, got %q", field, s)
	}
	return t, nil
}

func parsePeriod(field, s string) (model.Period, error) {
	if strings.TrimSpace(s) == "" {
		return model.Period{}, nil
	}
	p, err := model.ParsePeriod(strings.TrimSpace(s))
	if err != nil {
		return model.Period{}, badRequest("%s must be YYYY-MM, got %q", field, s)
	}
	return p, nil
}
