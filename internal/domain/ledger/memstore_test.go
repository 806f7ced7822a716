package ledger

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"finhealth/internal/domain/budget"
	"finhealth/internal/domain/goal"
	"finhealth/internal/domain/transaction"
	"finhealth/internal/shared/apperr"
)

// memState is an in-memory stand-in for the Postgres repositories. WithinTx
// serializes transactions and restores a snapshot when fn fails.
type memState struct {
	txMu   sync.Mutex
	mu     sync.Mutex
	seq    int
	txns   map[string]*transaction.Transaction
	cats   map[string]*budget.Category
	goals  map[string]*goal.Goal
	failOn string
	now    time.Time
}

func newMemState() *memState {
	return &memState{
		txns:  map[string]*transaction.Transaction{},
		cats:  map[string]*budget.Category{},
		goals: map[string]*goal.Goal{},
		now:   time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC),
	}
}

var errInjected = errors.New("injected failure")

func (m *memState) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapTxns, snapCats, snapGoals := m.snapshot()
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.txns, m.cats, m.goals = snapTxns, snapCats, snapGoals
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memState) snapshot() (map[string]*transaction.Transaction, map[string]*budget.Category, map[string]*goal.Goal) {
	txns := make(map[string]*transaction.Transaction, len(m.txns))
	for k, v := range m.txns {
		c := *v
		txns[k] = &c
	}
	cats := make(map[string]*budget.Category, len(m.cats))
	for k, v := range m.cats {
		c := *v
		cats[k] = &c
	}
	goals := make(map[string]*goal.Goal, len(m.goals))
	for k, v := range m.goals {
		c := *v
		c.History = append([]goal.Contribution(nil), v.History...)
		goals[k] = &c
	}
	return txns, cats, goals
}

func (m *memState) nextID(prefix string) string {
	m.seq++
	return prefix + "-" + strconv.Itoa(m.seq)
}

func (m *memState) tick() time.Time {
	m.now = m.now.Add(time.Second)
	return m.now
}

type memTxns struct{ *memState }

func (r memTxns) Create(ctx context.Context, userID string, p transaction.CreateParams) (*transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn == "create" {
		return nil, errInjected
	}
	now := r.tick()
	t := &transaction.Transaction{
		ID: r.nextID("txn"), UserID: userID, Amount: p.Amount, Direction: p.Direction,
		Category: p.Category, SubCategory: p.SubCategory, Description: p.Description,
		Account: p.Account, Date: p.Date, Origin: p.Origin, ExternalID: p.ExternalID,
		PossibleDuplicate: p.PossibleDuplicate, Notes: p.Notes, CreatedAt: now, UpdatedAt: now,
	}
	r.txns[t.ID] = t
	c := *t
	return &c, nil
}

func (r memTxns) GetByID(ctx context.Context, userID, id string) (*transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txns[id]
	if !ok || t.UserID != userID {
		return nil, apperr.NotFound("transaction")
	}
	c := *t
	return &c, nil
}

func (r memTxns) GetByExternalID(ctx context.Context, userID, externalID string) (*transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.txns {
		if t.UserID == userID && t.ExternalID != nil && *t.ExternalID == externalID {
			c := *t
			return &c, nil
		}
	}
	return nil, nil
}

func (r memTxns) List(ctx context.Context, userID string, f transaction.ListFilter) ([]*transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*transaction.Transaction
	for _, t := range r.txns {
		if t.UserID != userID {
			continue
		}
		if f.Category != "" && t.Category != f.Category {
			continue
		}
		if f.OnlyDuplicates && !t.PossibleDuplicate {
			continue
		}
		c := *t
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memTxns) ListInDateRange(ctx context.Context, userID, from, to string) ([]*transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*transaction.Transaction
	for _, t := range r.txns {
		if t.UserID == userID && t.Date >= from && t.Date <= to {
			c := *t
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r memTxns) Update(ctx context.Context, t *transaction.Transaction) (*transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.txns[t.ID]
	if !ok || cur.UserID != t.UserID {
		return nil, apperr.NotFound("transaction")
	}
	c := *t
	c.UpdatedAt = r.tick()
	r.txns[t.ID] = &c
	out := c
	return &out, nil
}

func (r memTxns) Delete(ctx context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txns[id]
	if !ok || t.UserID != userID {
		return apperr.NotFound("transaction")
	}
	delete(r.txns, id)
	return nil
}

func (r memTxns) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, t := range r.txns {
		if t.UserID == userID {
			delete(r.txns, id)
			n++
		}
	}
	return n, nil
}

func (r memTxns) SumExpenses(ctx context.Context, userID, category, period string) (decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sumLocked(userID, category, period), nil
}

func (m *memState) sumLocked(userID, category, period string) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range m.txns {
		if t.UserID != userID || t.Direction != transaction.DirectionExpense || t.Category != category {
			continue
		}
		if period != "" && !strings.HasPrefix(t.Date, period+"-") {
			continue
		}
		sum = sum.Add(t.Amount)
	}
	return sum
}

func (r memTxns) SetPossibleDuplicate(ctx context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txns[id]
	if !ok || t.UserID != userID {
		return apperr.NotFound("transaction")
	}
	t.PossibleDuplicate = true
	return nil
}

func (r memTxns) DismissDuplicate(ctx context.Context, userID, id string, at time.Time) (*transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txns[id]
	if !ok || t.UserID != userID {
		return nil, apperr.NotFound("transaction")
	}
	t.PossibleDuplicate = false
	t.DuplicateDismissedAt = &at
	c := *t
	return &c, nil
}

func (r memTxns) ListUserIDs(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, t := range r.txns {
		if !seen[t.UserID] {
			seen[t.UserID] = true
			out = append(out, t.UserID)
		}
	}
	sort.Strings(out)
	return out, nil
}

type memBudgets struct{ *memState }

func (r memBudgets) Create(ctx context.Context, userID string, p budget.CreateParams, spent decimal.Decimal) (*budget.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.cats {
		if c.UserID == userID && c.Name == p.Name {
			return nil, apperr.Conflict(apperr.CodeDuplicateCategory, "category already exists")
		}
	}
	c := &budget.Category{ID: r.nextID("cat"), UserID: userID, Name: p.Name, Budgeted: p.Budgeted, AmountSpent: spent, Period: p.Period}
	r.cats[c.ID] = c
	out := *c
	return &out, nil
}

func (r memBudgets) GetByID(ctx context.Context, userID, id string) (*budget.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cats[id]
	if !ok || c.UserID != userID {
		return nil, apperr.NotFound("category")
	}
	out := *c
	return &out, nil
}

func (r memBudgets) byName(userID, name string) *budget.Category {
	for _, c := range r.cats {
		if c.UserID == userID && c.Name == name {
			return c
		}
	}
	return nil
}

func (r memBudgets) List(ctx context.Context, userID string) ([]*budget.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*budget.Category
	for _, c := range r.cats {
		if c.UserID == userID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r memBudgets) Update(ctx context.Context, userID, id string, p budget.UpdateParams) (*budget.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cats[id]
	if !ok || c.UserID != userID {
		return nil, apperr.NotFound("category")
	}
	if p.Name != nil {
		if other := r.byName(userID, *p.Name); other != nil && other.ID != id {
			return nil, apperr.Conflict(apperr.CodeDuplicateCategory, "category already exists")
		}
		c.Name = *p.Name
	}
	if p.Budgeted != nil {
		c.Budgeted = *p.Budgeted
	}
	if p.Period != nil {
		c.Period = *p.Period
	}
	out := *c
	return &out, nil
}

func (r memBudgets) Delete(ctx context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cats[id]
	if !ok || c.UserID != userID {
		return apperr.NotFound("category")
	}
	delete(r.cats, id)
	return nil
}

func (r memBudgets) AddSpent(ctx context.Context, userID, name, month string, delta decimal.Decimal) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn == "addSpent" {
		return false, errInjected
	}
	c := r.byName(userID, name)
	if c == nil || !c.Covers(month) {
		return false, nil
	}
	c.AmountSpent = c.AmountSpent.Add(delta)
	return true, nil
}

func (r memBudgets) SetSpent(ctx context.Context, userID, id string, spent decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cats[id]
	if !ok || c.UserID != userID {
		return apperr.NotFound("category")
	}
	c.AmountSpent = spent
	return nil
}

func (r memBudgets) ResetSpent(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.cats {
		if c.UserID == userID {
			c.AmountSpent = decimal.Zero
		}
	}
	return nil
}

type memGoals struct{ *memState }

func (r memGoals) Create(ctx context.Context, userID string, p goal.CreateParams) (*goal.Goal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g := &goal.Goal{ID: r.nextID("goal"), UserID: userID, Name: p.Name, TargetAmount: p.TargetAmount, CurrentAmount: p.CurrentAmount, TargetDate: p.TargetDate, History: []goal.Contribution{}}
	r.goals[g.ID] = g
	out := *g
	return &out, nil
}

func (r memGoals) GetByID(ctx context.Context, userID, id string) (*goal.Goal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.goals[id]
	if !ok || g.UserID != userID {
		return nil, apperr.NotFound("goal")
	}
	out := *g
	out.History = append([]goal.Contribution(nil), g.History...)
	return &out, nil
}

func (r memGoals) List(ctx context.Context, userID string) ([]*goal.Goal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*goal.Goal
	for _, g := range r.goals {
		if g.UserID == userID {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r memGoals) Update(ctx context.Context, userID, id string, p goal.UpdateParams) (*goal.Goal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.goals[id]
	if !ok || g.UserID != userID {
		return nil, apperr.NotFound("goal")
	}
	if p.Name != nil {
		g.Name = *p.Name
	}
	if p.TargetAmount != nil {
		g.TargetAmount = *p.TargetAmount
	}
	if p.CurrentAmount != nil {
		g.CurrentAmount = *p.CurrentAmount
	}
	if p.TargetDate != nil {
		g.TargetDate = p.TargetDate
	}
	out := *g
	return &out, nil
}

func (r memGoals) Delete(ctx context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.goals[id]
	if !ok || g.UserID != userID {
		return apperr.NotFound("goal")
	}
	delete(r.goals, id)
	return nil
}

func (r memGoals) AddContribution(ctx context.Context, userID, id, month string, amount decimal.Decimal) (*goal.Goal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.goals[id]
	if !ok || g.UserID != userID {
		return nil, apperr.NotFound("goal")
	}
	g.CurrentAmount = g.CurrentAmount.Add(amount)
	merged := false
	for i := range g.History {
		if g.History[i].Month == month {
			g.History[i].Amount = g.History[i].Amount.Add(amount)
			merged = true
		}
	}
	if !merged {
		g.History = append(g.History, goal.Contribution{Month: month, Amount: amount})
		sort.Slice(g.History, func(i, j int) bool { return g.History[i].Month < g.History[j].Month })
	}
	out := *g
	out.History = append([]goal.Contribution(nil), g.History...)
	return &out, nil
}

type countingInvalidator struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func (c *countingInvalidator) Invalidate(ctx context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == nil {
		c.calls = map[string]int{}
	}
	c.calls[userID]++
	return c.err
}
