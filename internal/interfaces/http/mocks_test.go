package http

import (
	"context"

	"finhealth/internal/domain/banksync"
	"finhealth/internal/domain/budget"
	"finhealth/internal/domain/goal"
	"finhealth/internal/domain/ledger"
	"finhealth/internal/domain/score"
	"finhealth/internal/domain/transaction"
	"finhealth/internal/infrastructure/aggregator"
)

// MockLedger implements TransactionService, CategoryService and GoalService.
type MockLedger struct {
	ListTransactionsFunc   func(ctx context.Context, userID string, filter transaction.ListFilter) ([]*transaction.Transaction, error)
	GetTransactionFunc     func(ctx context.Context, userID, id string) (*transaction.Transaction, error)
	CreateTransactionFunc  func(ctx context.Context, userID string, params transaction.CreateParams) (*transaction.Transaction, error)
	UpdateTransactionFunc  func(ctx context.Context, userID, id string, patch transaction.Patch) (*transaction.Transaction, error)
	DeleteTransactionFunc  func(ctx context.Context, userID, id string) error
	ClearTransactionsFunc  func(ctx context.Context, userID string) (int64, error)
	MarkNotDuplicateFunc   func(ctx context.Context, userID, id string) (*transaction.Transaction, error)
	ImportTransactionsFunc func(ctx context.Context, userID string, rows []transaction.CreateParams) (*ledger.ImportResult, error)

	ListCategoriesFunc func(ctx context.Context, userID string) ([]*budget.Category, error)
	GetCategoryFunc    func(ctx context.Context, userID, id string) (*budget.Category, error)
	CreateCategoryFunc func(ctx context.Context, userID string, params budget.CreateParams) (*budget.Category, error)
	UpdateCategoryFunc func(ctx context.Context, userID, id string, params budget.UpdateParams) (*budget.Category, error)
	DeleteCategoryFunc func(ctx context.Context, userID, id string) error

	ListGoalsFunc  func(ctx context.Context, userID string) ([]*goal.Goal, error)
	GetGoalFunc    func(ctx context.Context, userID, id string) (*goal.Goal, error)
	CreateGoalFunc func(ctx context.Context, userID string, params goal.CreateParams) (*goal.Goal, error)
	UpdateGoalFunc func(ctx context.Context, userID, id string, params goal.UpdateParams) (*goal.Goal, error)
	DeleteGoalFunc func(ctx context.Context, userID, id string) error
	ContributeFunc func(ctx context.Context, userID, id string, params goal.ContributeParams) (*goal.Goal, error)
}

func (m *MockLedger) ListTransactions(ctx context.Context, userID string, filter transaction.ListFilter) ([]*transaction.Transaction, error) {
	if m.ListTransactionsFunc != nil {
		return m.ListTransactionsFunc(ctx, userID, filter)
	}
	return nil, nil
}

func (m *MockLedger) GetTransaction(ctx context.Context, userID, id string) (*transaction.Transaction, error) {
	if m.GetTransactionFunc != nil {
		return m.GetTransactionFunc(ctx, userID, id)
	}
	return nil, nil
}

func (m *MockLedger) CreateTransaction(ctx context.Context, userID string, params transaction.CreateParams) (*transaction.Transaction, error) {
	if m.CreateTransactionFunc != nil {
		return m.CreateTransactionFunc(ctx, userID, params)
	}
	return nil, nil
}

func (m *MockLedger) UpdateTransaction(ctx context.Context, userID, id string, patch transaction.Patch) (*transaction.Transaction, error) {
	if m.UpdateTransactionFunc != nil {
		return m.UpdateTransactionFunc(ctx, userID, id, patch)
	}
	return nil, nil
}

func (m *MockLedger) DeleteTransaction(ctx context.Context, userID, id string) error {
	if m.DeleteTransactionFunc != nil {
		return m.DeleteTransactionFunc(ctx, userID, id)
	}
	return nil
}

func (m *MockLedger) ClearTransactions(ctx context.Context, userID string) (int64, error) {
	if m.ClearTransactionsFunc != nil {
		return m.ClearTransactionsFunc(ctx, userID)
	}
	return 0, nil
}

func (m *MockLedger) MarkNotDuplicate(ctx context.Context, userID, id string) (*transaction.Transaction, error) {
	if m.MarkNotDuplicateFunc != nil {
		return m.MarkNotDuplicateFunc(ctx, userID, id)
	}
	return nil, nil
}

func (m *MockLedger) ImportTransactions(ctx context.Context, userID string, rows []transaction.CreateParams) (*ledger.ImportResult, error) {
	if m.ImportTransactionsFunc != nil {
		return m.ImportTransactionsFunc(ctx, userID, rows)
	}
	return &ledger.ImportResult{}, nil
}

func (m *MockLedger) ListCategories(ctx context.Context, userID string) ([]*budget.Category, error) {
	if m.ListCategoriesFunc != nil {
		return m.ListCategoriesFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockLedger) GetCategory(ctx context.Context, userID, id string) (*budget.Category, error) {
	if m.GetCategoryFunc != nil {
		return m.GetCategoryFunc(ctx, userID, id)
	}
	return nil, nil
}

func (m *MockLedger) CreateCategory(ctx context.Context, userID string, params budget.CreateParams) (*budget.Category, error) {
	if m.CreateCategoryFunc != nil {
		return m.CreateCategoryFunc(ctx, userID, params)
	}
	return nil, nil
}

func (m *MockLedger) UpdateCategory(ctx context.Context, userID, id string, params budget.UpdateParams) (*budget.Category, error) {
	if m.UpdateCategoryFunc != nil {
		return m.UpdateCategoryFunc(ctx, userID, id, params)
	}
	return nil, nil
}

func (m *MockLedger) DeleteCategory(ctx context.Context, userID, id string) error {
	if m.DeleteCategoryFunc != nil {
		return m.DeleteCategoryFunc(ctx, userID, id)
	}
	return nil
}

func (m *MockLedger) ListGoals(ctx context.Context, userID string) ([]*goal.Goal, error) {
	if m.ListGoalsFunc != nil {
		return m.ListGoalsFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockLedger) GetGoal(ctx context.Context, userID, id string) (*goal.Goal, error) {
	if m.GetGoalFunc != nil {
		return m.GetGoalFunc(ctx, userID, id)
	}
	return nil, nil
}

func (m *MockLedger) CreateGoal(ctx context.Context, userID string, params goal.CreateParams) (*goal.Goal, error) {
	if m.CreateGoalFunc != nil {
		return m.CreateGoalFunc(ctx, userID, params)
	}
	return nil, nil
}

func (m *MockLedger) UpdateGoal(ctx context.Context, userID, id string, params goal.UpdateParams) (*goal.Goal, error) {
	if m.UpdateGoalFunc != nil {
		return m.UpdateGoalFunc(ctx, userID, id, params)
	}
	return nil, nil
}

func (m *MockLedger) DeleteGoal(ctx context.Context, userID, id string) error {
	if m.DeleteGoalFunc != nil {
		return m.DeleteGoalFunc(ctx, userID, id)
	}
	return nil
}

func (m *MockLedger) Contribute(ctx context.Context, userID, id string, params goal.ContributeParams) (*goal.Goal, error) {
	if m.ContributeFunc != nil {
		return m.ContributeFunc(ctx, userID, id, params)
	}
	return nil, nil
}

type MockScoreService struct {
	GetFunc       func(ctx context.Context, userID string) (*score.Score, error)
	RecomputeFunc func(ctx context.Context, userID string) (*score.Score, error)
}

func (m *MockScoreService) Get(ctx context.Context, userID string) (*score.Score, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockScoreService) Recompute(ctx context.Context, userID string) (*score.Score, error) {
	if m.RecomputeFunc != nil {
		return m.RecomputeFunc(ctx, userID)
	}
	return nil, nil
}

type MockLinkService struct {
	CreateLinkHandleFunc func(ctx context.Context, userID string) (*aggregator.LinkTokenResponse, error)
	ExchangeTokenFunc    func(ctx context.Context, userID string, params banksync.ExchangeParams) (*banksync.Link, []*banksync.Account, error)
	ListLinksFunc        func(ctx context.Context, userID string) ([]*banksync.Link, error)
	ListAccountsFunc     func(ctx context.Context, userID, linkID string) ([]*banksync.Account, error)
	RemoveLinkFunc       func(ctx context.Context, userID, linkID string) error
	RefreshLinkFunc      func(ctx context.Context, userID, linkID string) (*banksync.SyncResult, error)
	ListHeldFunc         func(ctx context.Context, userID string) ([]*banksync.HeldTransaction, error)
	AcceptHeldFunc       func(ctx context.Context, userID, id string) (*banksync.AcceptResult, error)
	DismissHeldFunc      func(ctx context.Context, userID, id string) (*banksync.HeldTransaction, error)
}

func (m *MockLinkService) CreateLinkHandle(ctx context.Context, userID string) (*aggregator.LinkTokenResponse, error) {
	if m.CreateLinkHandleFunc != nil {
		return m.CreateLinkHandleFunc(ctx, userID)
	}
	return &aggregator.LinkTokenResponse{}, nil
}

func (m *MockLinkService) ExchangeToken(ctx context.Context, userID string, params banksync.ExchangeParams) (*banksync.Link, []*banksync.Account, error) {
	if m.ExchangeTokenFunc != nil {
		return m.ExchangeTokenFunc(ctx, userID, params)
	}
	return nil, nil, nil
}

func (m *MockLinkService) ListLinks(ctx context.Context, userID string) ([]*banksync.Link, error) {
	if m.ListLinksFunc != nil {
		return m.ListLinksFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockLinkService) ListAccounts(ctx context.Context, userID, linkID string) ([]*banksync.Account, error) {
	if m.ListAccountsFunc != nil {
		return m.ListAccountsFunc(ctx, userID, linkID)
	}
	return nil, nil
}

func (m *MockLinkService) RemoveLink(ctx context.Context, userID, linkID string) error {
	if m.RemoveLinkFunc != nil {
		return m.RemoveLinkFunc(ctx, userID, linkID)
	}
	return nil
}

func (m *MockLinkService) RefreshLink(ctx context.Context, userID, linkID string) (*banksync.SyncResult, error) {
	if m.RefreshLinkFunc != nil {
		return m.RefreshLinkFunc(ctx, userID, linkID)
	}
	return &banksync.SyncResult{}, nil
}

func (m *MockLinkService) ListHeld(ctx context.Context, userID string) ([]*banksync.HeldTransaction, error) {
	if m.ListHeldFunc != nil {
		return m.ListHeldFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockLinkService) AcceptHeld(ctx context.Context, userID, id string) (*banksync.AcceptResult, error) {
	if m.AcceptHeldFunc != nil {
		return m.AcceptHeldFunc(ctx, userID, id)
	}
	return &banksync.AcceptResult{}, nil
}

func (m *MockLinkService) DismissHeld(ctx context.Context, userID, id string) (*banksync.HeldTransaction, error) {
	if m.DismissHeldFunc != nil {
		return m.DismissHeldFunc(ctx, userID, id)
	}
	return &banksync.HeldTransaction{}, nil
}

type MockWebhookReceiver struct {
	ReceiveWebhookFunc func(ctx context.Context, raw []byte) (*banksync.Event, error)
}

func (m *MockWebhookReceiver) ReceiveWebhook(ctx context.Context, raw []byte) (*banksync.Event, error) {
	if m.ReceiveWebhookFunc != nil {
		return m.ReceiveWebhookFunc(ctx, raw)
	}
	return &banksync.Event{}, nil
}

type MockDispatcher struct {
	DispatchFunc func(ctx context.Context, eventID, itemID string) error
}

func (m *MockDispatcher) Dispatch(ctx context.Context, eventID, itemID string) error {
	if m.DispatchFunc != nil {
		return m.DispatchFunc(ctx, eventID, itemID)
	}
	return nil
}
