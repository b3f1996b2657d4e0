// Package accounts manages a party's chart of accounts.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cleared-dev/pocketledger/internal/id"
	"github.com/cleared-dev/pocketledger/internal/log"
	"github.com/cleared-dev/pocketledger/internal/model"
	"github.com/cleared-dev/pocketledger/internal/store"
)

var (
	ErrInvalidType    = errors.New("invalid account type")
	ErrInvalidRole    = errors.New("invalid account role")
	ErrTypeImmutable  = errors.New("account type cannot change")
	ErrDuplicateName  = errors.New("account name already in use")
	ErrInvalidChart   = errors.New("invalid chart of accounts")
	ErrParentMismatch = errors.New("parent account must have the same type")
)

// Service creates and maintains parties and their accounts.
type Service struct {
	store  store.Store
	logger *log.Logger
	now    func() time.Time
}

// NewService creates an accounts Service. logger may be nil.
func NewService(st store.Store, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	return &Service{store: st, logger: logger.WithComponent(log.ComponentAccounts), now: time.Now}
}

func (s *Service) SetClock(now func() time.Time) { s.now = now }

// SeedParty creates a party and its chart in one unit of work and
// designates the default and reimbursable accounts named by their roles.
func (s *Service) SeedParty(ctx context.Context, name string, typ model.PartyType, chart []ChartEntry) (model.Party, []model.Account, error) {
	if strings.TrimSpace(name) == "" {
		return model.Party{}, nil, fmt.Errorf("%w: party name is required", ErrInvalidChart)
	}
	if typ == "" {
		typ = model.PartyTypeUser
	}
	now := s.now().UTC()
	party := model.Party{ID: id.New(), Type: typ, Name: name, CreatedAt: now}

	accounts, err := resolveChart(party, chart, now)
	if err != nil {
		return model.Party{}, nil, err
	}
	for i, e := range chart {
		switch e.Role {
		case RoleDefault:
			party.DefaultAccountID = accounts[i].ID
		case RoleReimbursable:
			party.ReimbursableAccountID = accounts[i].ID
		}
	}

	err = s.store.InTx(ctx, func(tx store.Tx) error {
		if err := tx.CreateParty(ctx, party); err != nil {
			return err
		}
		for _, a := range accounts {
			if err := tx.CreateAccount(ctx, a); err != nil {
				return fmt.Errorf("create account %q: %w", a.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		return model.Party{}, nil, err
	}
	s.logger.InfoContext(ctx, "party seeded", log.FieldParty, party.ID, log.FieldCount, len(accounts))
	return party, accounts, nil
}

// resolveChart turns chart entries into accounts, resolving parent keys.
func resolveChart(party model.Party, chart []ChartEntry, now time.Time) ([]model.Account, error) {
	byKey := make(map[string]int, len(chart))
	names := make(map[string]bool, len(chart))
	accounts := make([]model.Account, len(chart))
	var roles [2]int

	for i, e := range chart {
		if _, dup := byKey[e.Key]; dup || e.Key == "" {
			return nil, fmt.Errorf("%w: duplicate or empty key %q", ErrInvalidChart, e.Key)
		}
		if names[strings.ToLower(e.Name)] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, e.Name)
		}
		if !e.Type.Valid() {
			return nil, fmt.Errorf("%w: %q for %s", ErrInvalidType, e.Type, e.Key)
		}
		switch e.Role {
		case RoleNone:
		case RoleDefault, RoleReimbursable:
			r := 0
			if e.Role == RoleReimbursable {
				r = 1
			}
			roles[r]++
			if roles[r] > 1 {
				return nil, fmt.Errorf("%w: more than one %s account", ErrInvalidRole, e.Role)
			}
			if e.Role == RoleDefault && !e.Type.HoldsValue() || e.Role == RoleReimbursable && e.Type != model.AccountTypeAsset {
				return nil, fmt.Errorf("%w: %s account %s cannot be %s", ErrInvalidRole, e.Role, e.Key, e.Type)
			}
		default:
			return nil, fmt.Errorf("%w: %q", ErrInvalidRole, e.Role)
		}
		byKey[e.Key] = i
		names[strings.ToLower(e.Name)] = true
		accounts[i] = model.Account{
			ID:        id.New(),
			PartyID:   party.ID,
			Name:      e.Name,
			Type:      e.Type,
			Active:    true,
			CreatedAt: now,
		}
	}

	for i, e := range chart {
		if e.ParentKey == "" {
			continue
		}
		p, ok := byKey[e.ParentKey]
		if !ok || p == i {
			return nil, fmt.Errorf("%w: unknown parent %q for %s", ErrInvalidChart, e.ParentKey, e.Key)
		}
		if chart[p].Type != e.Type {
			return nil, fmt.Errorf("%w: %s under %s", ErrParentMismatch, e.Key, e.ParentKey)
		}
		accounts[i].ParentID = accounts[p].ID
	}
	return accounts, nil
}

// Chart exports the party's accounts as a chart, keyed by account ID.
func (s *Service) Chart(ctx context.Context, partyID string) ([]ChartEntry, error) {
	var (
		party    model.Party
		accounts []model.Account
	)
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		if party, err = getParty(ctx, tx, partyID); err != nil {
			return err
		}
		accounts, err = tx.ListAccounts(ctx, partyID)
		return err
	})
	if err != nil {
		return nil, err
	}

	entries := make([]ChartEntry, 0, len(accounts))
	for _, a := range accounts {
		e := ChartEntry{Key: a.ID, Name: a.Name, Type: a.Type, ParentKey: a.ParentID}
		switch a.ID {
		case party.DefaultAccountID:
			e.Role = RoleDefault
		case party.ReimbursableAccountID:
			e.Role = RoleReimbursable
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// List returns the party's accounts ordered by name.
func (s *Service) List(ctx context.Context, partyID string) ([]model.Account, error) {
	var accounts []model.Account
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := getParty(ctx, tx, partyID); err != nil {
			return err
		}
		var err error
		accounts, err = tx.ListAccounts(ctx, partyID)
		return err
	})
	return accounts, err
}

// CreateAccount adds an account to the party's chart.
func (s *Service) CreateAccount(ctx context.Context, partyID, name string, typ model.AccountType, parentID string) (model.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Account{}, fmt.Errorf("%w: account name is required", ErrInvalidChart)
	}
	if !typ.Valid() {
		return model.Account{}, fmt.Errorf("%w: %q", ErrInvalidType, typ)
	}
	a := model.Account{
		ID:        id.New(),
		PartyID:   partyID,
		Name:      name,
		Type:      typ,
		ParentID:  parentID,
		Active:    true,
		CreatedAt: s.now().UTC(),
	}
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := getParty(ctx, tx, partyID); err != nil {
			return err
		}
		if err := checkName(ctx, tx, partyID, "", name); err != nil {
			return err
		}
		if err := checkParent(ctx, tx, a); err != nil {
			return err
		}
		return tx.CreateAccount(ctx, a)
	})
	if err != nil {
		return model.Account{}, err
	}
	return a, nil
}

// AccountUpdate lists the fields to change; nil fields are left alone.
type AccountUpdate struct {
	Name     *string
	ParentID *string
	Active   *bool
	Type     *model.AccountType
}

// UpdateAccount applies u to one of the party's accounts. Changing the
// type fails with ErrTypeImmutable.
func (s *Service) UpdateAccount(ctx context.Context, partyID, accountID string, u AccountUpdate) (model.Account, error) {
	var a model.Account
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		a, err = tx.GetAccount(ctx, accountID)
		if errors.Is(err, store.ErrNotFound) || (err == nil && a.PartyID != partyID) {
			return model.NewEntityError("account", accountID, store.ErrNotFound)
		}
		if err != nil {
			return err
		}
		if u.Type != nil && *u.Type != a.Type {
			return model.NewEntityError("account", accountID, ErrTypeImmutable)
		}
		if u.Name != nil {
			name := strings.TrimSpace(*u.Name)
			if name == "" {
				return fmt.Errorf("%w: account name is required", ErrInvalidChart)
			}
			if err := checkName(ctx, tx, partyID, a.ID, name); err != nil {
				return err
			}
			a.Name = name
		}
		if u.ParentID != nil {
			a.ParentID = *u.ParentID
			if err := checkParent(ctx, tx, a); err != nil {
				return err
			}
		}
		if u.Active != nil {
			a.Active = *u.Active
		}
		return tx.UpdateAccount(ctx, a)
	})
	if err != nil {
		return model.Account{}, err
	}
	return a, nil
}

func getParty(ctx context.Context, tx store.Tx, partyID string) (model.Party, error) {
	p, err := tx.GetParty(ctx, partyID)
	if errors.Is(err, store.ErrNotFound) {
		return p, model.NewEntityError("party", partyID, err)
	}
	return p, err
}

func checkName(ctx context.Context, tx store.Tx, partyID, selfID, name string) error {
	existing, err := tx.FindAccountByName(ctx, partyID, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID != selfID {
		return fmt.Errorf("%w: %q", ErrDuplicateName, name)
	}
	return nil
}

func checkParent(ctx context.Context, tx store.Tx, a model.Account) error {
	if a.ParentID == "" {
		return nil
	}
	if a.ParentID == a.ID {
		return fmt.Errorf("%w: account cannot be its own parent", ErrInvalidChart)
	}
	p, err := tx.GetAccount(ctx, a.ParentID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && p.PartyID != a.PartyID) {
		return model.NewEntityError("account", a.ParentID, store.ErrNotFound)
	}
	if err != nil {
		return err
	}
	if p.Type != a.Type {
		return fmt.Errorf("%w: %s under %s", ErrParentMismatch, a.Type, p.Type)
	}
	return nil
}
