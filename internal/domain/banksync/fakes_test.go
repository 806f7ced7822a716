package banksync

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"finhealth/internal/domain/ledger"
	"finhealth/internal/domain/transaction"
	"finhealth/internal/infrastructure/aggregator"
	"finhealth/internal/shared/apperr"
)

// MockClient implements aggregator.ClientInterface
type MockClient struct {
	CreateLinkTokenFunc     func(ctx context.Context, userID string) (*aggregator.LinkTokenResponse, error)
	ExchangePublicTokenFunc func(ctx context.Context, publicToken string) (*aggregator.ExchangeResponse, error)
	GetItemFunc             func(ctx context.Context, accessToken string) (*aggregator.ItemResponse, error)
	GetAccountsFunc         func(ctx context.Context, accessToken string) (*aggregator.AccountsResponse, error)
	GetTransactionsFunc     func(ctx context.Context, accessToken, startDate, endDate string) (*aggregator.TransactionsResponse, error)
	RemoveItemFunc          func(ctx context.Context, accessToken string) error

	mu           sync.Mutex
	removed      []string
	transactions int
}

func (m *MockClient) CreateLinkToken(ctx context.Context, userID string) (*aggregator.LinkTokenResponse, error) {
	if m.CreateLinkTokenFunc != nil {
		return m.CreateLinkTokenFunc(ctx, userID)
	}
	return &aggregator.LinkTokenResponse{LinkToken: "link-" + userID}, nil
}

func (m *MockClient) ExchangePublicToken(ctx context.Context, publicToken string) (*aggregator.ExchangeResponse, error) {
	if m.ExchangePublicTokenFunc != nil {
		return m.ExchangePublicTokenFunc(ctx, publicToken)
	}
	return &aggregator.ExchangeResponse{AccessToken: "access-" + publicToken, ItemID: "item-" + publicToken}, nil
}

func (m *MockClient) GetItem(ctx context.Context, accessToken string) (*aggregator.ItemResponse, error) {
	if m.GetItemFunc != nil {
		return m.GetItemFunc(ctx, accessToken)
	}
	return &aggregator.ItemResponse{Item: aggregator.Item{InstitutionID: "ins_1"}}, nil
}

func (m *MockClient) GetAccounts(ctx context.Context, accessToken string) (*aggregator.AccountsResponse, error) {
	if m.GetAccountsFunc != nil {
		return m.GetAccountsFunc(ctx, accessToken)
	}
	return &aggregator.AccountsResponse{}, nil
}

func (m *MockClient) GetTransactions(ctx context.Context, accessToken, startDate, endDate string) (*aggregator.TransactionsResponse, error) {
	m.mu.Lock()
	m.transactions++
	m.mu.Unlock()
	if m.GetTransactionsFunc != nil {
		return m.GetTransactionsFunc(ctx, accessToken, startDate, endDate)
	}
	return &aggregator.TransactionsResponse{}, nil
}

func (m *MockClient) RemoveItem(ctx context.Context, accessToken string) error {
	m.mu.Lock()
	m.removed = append(m.removed, accessToken)
	m.mu.Unlock()
	if m.RemoveItemFunc != nil {
		return m.RemoveItemFunc(ctx, accessToken)
	}
	return nil
}

type stubCipher struct{}

func (stubCipher) Encrypt(p string) (string, error) { return "sealed:" + p, nil }

func (stubCipher) Decrypt(c string) (string, error) {
	if !strings.HasPrefix(c, "sealed:") {
		return "", fmt.Errorf("not sealed")
	}
	return strings.TrimPrefix(c, "sealed:"), nil
}

func (stubCipher) Fingerprint(s string) string { return fmt.Sprintf("fp%04d", len(s)) }

type memLinks struct {
	mu    sync.Mutex
	seq   int
	links map[string]*Link

	// uncommitted hides existing links from FindActiveByInstitution, as a
	// concurrent exchange that has not committed yet would be.
	uncommitted bool
}

func newMemLinks() *memLinks { return &memLinks{links: map[string]*Link{}} }

func (r *memLinks) put(l Link) *Link {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l.ID == "" {
		r.seq++
		l.ID = fmt.Sprintf("link-%d", r.seq)
	}
	r.links[l.ID] = &l
	return &l
}

func (r *memLinks) Create(ctx context.Context, p CreateLinkParams) (*Link, error) {
	r.mu.Lock()
	for _, l := range r.links {
		if l.ItemID == p.ItemID {
			r.mu.Unlock()
			return nil, apperr.Conflict(apperr.CodeDuplicateLink, "item already linked")
		}
		if l.UserID == p.UserID && l.InstitutionID == p.InstitutionID && l.Status != StatusDisconnected {
			r.mu.Unlock()
			return nil, apperr.Conflict(apperr.CodeDuplicateLink, "institution is already linked")
		}
	}
	r.mu.Unlock()
	return r.put(Link{
		UserID:           p.UserID,
		ItemID:           p.ItemID,
		AccessToken:      p.AccessToken,
		TokenFingerprint: p.TokenFingerprint,
		InstitutionID:    p.InstitutionID,
		InstitutionName:  p.InstitutionName,
		Status:           StatusActive,
	}), nil
}

func (r *memLinks) get(id string) *Link {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.links[id]; ok {
		cp := *l
		return &cp
	}
	return nil
}

func (r *memLinks) GetByID(ctx context.Context, userID, id string) (*Link, error) {
	l := r.get(id)
	if l == nil || l.UserID != userID {
		return nil, apperr.NotFound("link")
	}
	return l, nil
}

func (r *memLinks) GetByItemID(ctx context.Context, itemID string) (*Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.links {
		if l.ItemID == itemID {
			cp := *l
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("link")
}

func (r *memLinks) FindActiveByInstitution(ctx context.Context, userID, institutionID string) (*Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.uncommitted {
		return nil, nil
	}
	for _, l := range r.links {
		if l.UserID == userID && l.InstitutionID == institutionID && l.Status != StatusDisconnected {
			cp := *l
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memLinks) ListByUser(ctx context.Context, userID string) ([]*Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Link
	for _, l := range r.links {
		if l.UserID == userID {
			cp := *l
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memLinks) UpdateStatus(ctx context.Context, id string, status Status, errorCode *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[id]
	if !ok {
		return apperr.NotFound("link")
	}
	l.Status = status
	l.ErrorCode = errorCode
	return nil
}

func (r *memLinks) MarkSynced(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.links[id]; ok {
		l.LastSyncedAt = &at
	}
	return nil
}

type memAccounts struct {
	mu       sync.Mutex
	accounts map[string]*Account
}

func newMemAccounts() *memAccounts { return &memAccounts{accounts: map[string]*Account{}} }

func (r *memAccounts) Upsert(ctx context.Context, a *Account) (*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	if existing, ok := r.accounts[a.ExternalAccountID]; ok {
		cp.ID = existing.ID
	} else {
		cp.ID = "acct-" + a.ExternalAccountID
	}
	r.accounts[a.ExternalAccountID] = &cp
	return &cp, nil
}

func (r *memAccounts) ListByLink(ctx context.Context, userID, linkID string) ([]*Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Account
	for _, a := range r.accounts {
		if a.UserID == userID && a.LinkID == linkID {
			out = append(out, a)
		}
	}
	return out, nil
}

type memEvents struct {
	mu     sync.Mutex
	events []*Event
}

func (r *memEvents) Record(ctx context.Context, e *Event) (*Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *e
	cp.ID = fmt.Sprintf("evt-%d", len(r.events)+1)
	r.events = append(r.events, &cp)
	out := cp
	return &out, nil
}

func (r *memEvents) GetByID(ctx context.Context, id string) (*Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.ID == id {
			cp := *e
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("webhook event")
}

func (r *memEvents) MarkProcessed(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.ID == id {
			e.Processed = true
			e.ProcessedAt = &at
		}
	}
	return nil
}

func (r *memEvents) ListUnprocessed(ctx context.Context, limit int) ([]*Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Event
	for _, e := range r.events {
		if !e.Processed && len(out) < limit {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// fakeLedger applies the same external-id and duplicate rules as the real
// ledger over an in-memory slice.
type fakeLedger struct {
	mu      sync.Mutex
	rows    []*transaction.Transaction
	flagged int
	seq     int
}

func (l *fakeLedger) seed(t transaction.Transaction) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	t.ID = fmt.Sprintf("tx-%d", l.seq)
	l.rows = append(l.rows, &t)
}

func (l *fakeLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rows)
}

func (l *fakeLedger) IngestTransaction(ctx context.Context, userID string, p transaction.CreateParams) (*ledger.IngestResult, error) {
	return l.ingest(userID, p, true)
}

func (l *fakeLedger) AcceptIngest(ctx context.Context, userID string, p transaction.CreateParams) (*ledger.IngestResult, error) {
	return l.ingest(userID, p, false)
}

func (l *fakeLedger) ingest(userID string, p transaction.CreateParams, detect bool) (*ledger.IngestResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, r := range l.rows {
		if r.UserID == userID && r.ExternalID != nil && p.ExternalID != nil && *r.ExternalID == *p.ExternalID {
			return &ledger.IngestResult{Status: ledger.IngestAlreadyIngested, Transaction: r}, nil
		}
	}

	candidate := &transaction.Transaction{
		UserID:      userID,
		Amount:      p.Amount,
		Direction:   p.Direction,
		Category:    p.Category,
		Description: p.Description,
		Account:     p.Account,
		Date:        p.Date,
		Origin:      p.Origin,
		ExternalID:  p.ExternalID,
	}
	var mine []*transaction.Transaction
	for _, r := range l.rows {
		if r.UserID == userID {
			mine = append(mine, r)
		}
	}
	if match := transaction.FindDuplicate(candidate, mine); detect && match != nil {
		l.flagged++
		candidate.PossibleDuplicate = true
		return &ledger.IngestResult{Status: ledger.IngestFlagged, Transaction: candidate, Match: match}, nil
	}

	l.seq++
	candidate.ID = fmt.Sprintf("tx-%d", l.seq)
	l.rows = append(l.rows, candidate)
	return &ledger.IngestResult{Status: ledger.IngestAppended, Transaction: candidate}, nil
}

func (l *fakeLedger) DeleteByExternalIDs(ctx context.Context, userID string, ids []string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	drop := map[string]bool{}
	for _, id := range ids {
		drop[id] = true
	}
	kept := l.rows[:0]
	removed := 0
	for _, r := range l.rows {
		if r.UserID == userID && r.ExternalID != nil && drop[*r.ExternalID] {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	l.rows = kept
	return removed, nil
}

type memHeld struct {
	mu   sync.Mutex
	seq  int
	rows []*HeldTransaction
}

func (r *memHeld) Hold(ctx context.Context, h *HeldTransaction) (*HeldTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.UserID == h.UserID && row.ExternalID == h.ExternalID {
			cp := *row
			return &cp, nil
		}
	}
	r.seq++
	cp := *h
	cp.ID = fmt.Sprintf("held-%d", r.seq)
	r.rows = append(r.rows, &cp)
	out := cp
	return &out, nil
}

func (r *memHeld) GetByID(ctx context.Context, userID, id string) (*HeldTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ID == id && row.UserID == userID {
			cp := *row
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("held transaction")
}

func (r *memHeld) ListPending(ctx context.Context, userID string) ([]*HeldTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*HeldTransaction{}
	for _, row := range r.rows {
		if row.UserID == userID && row.Status == HeldPending {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memHeld) Resolve(ctx context.Context, userID, id string, status HeldStatus, at time.Time) (*HeldTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.ID != id || row.UserID != userID {
			continue
		}
		if row.Status != HeldPending {
			return nil, apperr.Conflict(apperr.CodeConflict, "held transaction is already "+string(row.Status))
		}
		row.Status = status
		row.ResolvedAt = &at
		cp := *row
		return &cp, nil
	}
	return nil, apperr.NotFound("held transaction")
}
