package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"finhealth/internal/domain/ledger"
	"finhealth/internal/domain/transaction"
	"finhealth/internal/shared/apperr"
	"finhealth/internal/shared/middleware"
)

func newRequest(t *testing.T, method, target string, body any, userID string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	if userID != "" {
		req = req.WithContext(middleware.WithUserID(req.Context(), userID))
	}
	return req
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp
}

func TestHandleListTransactions(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		userID         string
		expectedStatus int
		checkFilter    func(t *testing.T, f transaction.ListFilter)
	}{
		{
			name:           "Success with filters",
			query:          "?category=Groceries&direction=expense&from=2025-03-01&to=2025-03-31&duplicates=true&limit=10&offset=20",
			userID:         "user-1",
			expectedStatus: http.StatusOK,
			checkFilter: func(t *testing.T, f transaction.ListFilter) {
				if f.Category != "Groceries" || f.Direction != transaction.DirectionExpense {
					t.Errorf("unexpected filter %+v", f)
				}
				if !f.OnlyDuplicates || f.Limit != 10 || f.Offset != 20 {
					t.Errorf("unexpected paging/duplicates %+v", f)
				}
			},
		},
		{name: "Unauthenticated", userID: "", expectedStatus: http.StatusUnauthorized},
		{name: "Unknown direction", query: "?direction=sideways", userID: "user-1", expectedStatus: http.StatusBadRequest},
		{name: "Invalid date", query: "?from=2025-02-30", userID: "user-1", expectedStatus: http.StatusBadRequest},
		{name: "Negative limit", query: "?limit=-1", userID: "user-1", expectedStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockLedger{
				ListTransactionsFunc: func(ctx context.Context, userID string, filter transaction.ListFilter) ([]*transaction.Transaction, error) {
					if userID != tt.userID {
						t.Errorf("userID = %q, want %q", userID, tt.userID)
					}
					if tt.checkFilter != nil {
						tt.checkFilter(t, filter)
					}
					return nil, nil
				},
			}
			handler := NewTransactionHandler(svc)

			rr := httptest.NewRecorder()
			handler.HandleListTransactions(rr, newRequest(t, http.MethodGet, "/api/transactions"+tt.query, nil, tt.userID))

			if rr.Code != tt.expectedStatus {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.expectedStatus, rr.Body.String())
			}
			if rr.Code == http.StatusOK && rr.Body.String() != "[]\n" {
				t.Errorf("empty list should encode as [], got %q", rr.Body.String())
			}
		})
	}
}

func TestHandleCreateTransaction(t *testing.T) {
	tests := []struct {
		name           string
		body           any
		mockErr        error
		expectedStatus int
		expectedCode   string
	}{
		{
			name: "Success",
			body: map[string]any{
				"amount":      "42.50",
				"direction":   "expense",
				"category":    "Groceries",
				"description": "Whole Foods",
				"date":        "2025-03-15",
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "Validation error from ledger",
			body:           map[string]any{"amount": 0, "direction": "expense", "category": "x", "date": "2025-03-15"},
			mockErr:        apperr.Validation("amount must be greater than zero"),
			expectedStatus: http.StatusBadRequest,
			expectedCode:   apperr.CodeValidation,
		},
		{
			name:           "Malformed body",
			body:           "{not json",
			expectedStatus: http.StatusBadRequest,
			expectedCode:   apperr.CodeValidation,
		},
		{
			name:           "Storage failure hides detail",
			body:           map[string]any{"amount": 1, "direction": "income", "category": "Salary", "date": "2025-03-15"},
			mockErr:        errors.New("pq: connection refused"),
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   apperr.CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockLedger{
				CreateTransactionFunc: func(ctx context.Context, userID string, params transaction.CreateParams) (*transaction.Transaction, error) {
					if params.Origin != transaction.OriginManual {
						t.Errorf("origin = %q, want manual", params.Origin)
					}
					if tt.mockErr != nil {
						return nil, tt.mockErr
					}
					return &transaction.Transaction{ID: "tx-1", Amount: params.Amount, Date: params.Date}, nil
				},
			}
			handler := NewTransactionHandler(svc)

			rr := httptest.NewRecorder()
			handler.HandleCreateTransaction(rr, newRequest(t, http.MethodPost, "/api/transactions", tt.body, "user-1"))

			if rr.Code != tt.expectedStatus {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.expectedStatus, rr.Body.String())
			}
			if tt.expectedCode != "" {
				resp := decodeError(t, rr)
				if resp.Code != tt.expectedCode {
					t.Errorf("code = %q, want %q", resp.Code, tt.expectedCode)
				}
				if tt.expectedCode == apperr.CodeInternal && resp.Message != "internal server error" {
					t.Errorf("internal detail leaked: %q", resp.Message)
				}
			}
		})
	}
}

func TestHandleCreateTransaction_AmountPrecision(t *testing.T) {
	var got decimal.Decimal
	svc := &MockLedger{
		CreateTransactionFunc: func(ctx context.Context, userID string, params transaction.CreateParams) (*transaction.Transaction, error) {
			got = params.Amount
			return &transaction.Transaction{ID: "tx-1"}, nil
		},
	}
	handler := NewTransactionHandler(svc)

	body := `{"amount":19.99,"direction":"expense","category":"Dining","date":"2025-03-15"}`
	rr := httptest.NewRecorder()
	handler.HandleCreateTransaction(rr, newRequest(t, http.MethodPost, "/api/transactions", body, "user-1"))

	if !got.Equal(decimal.RequireFromString("19.99")) {
		t.Errorf("amount = %s, want 19.99", got)
	}
}

func TestHandleTransactionByID(t *testing.T) {
	notFound := func(ctx context.Context, userID, id string) (*transaction.Transaction, error) {
		return nil, apperr.NotFound("transaction")
	}

	tests := []struct {
		name           string
		method         string
		body           any
		svc            *MockLedger
		call           func(h *TransactionHandler) http.HandlerFunc
		expectedStatus int
	}{
		{
			name:   "Get found",
			method: http.MethodGet,
			svc: &MockLedger{GetTransactionFunc: func(ctx context.Context, userID, id string) (*transaction.Transaction, error) {
				return &transaction.Transaction{ID: id, UserID: userID}, nil
			}},
			call:           func(h *TransactionHandler) http.HandlerFunc { return h.HandleGetTransaction },
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Get foreign or missing",
			method:         http.MethodGet,
			svc:            &MockLedger{GetTransactionFunc: notFound},
			call:           func(h *TransactionHandler) http.HandlerFunc { return h.HandleGetTransaction },
			expectedStatus: http.StatusNotFound,
		},
		{
			name:   "Update",
			method: http.MethodPut,
			body:   map[string]any{"category": "Dining"},
			svc: &MockLedger{UpdateTransactionFunc: func(ctx context.Context, userID, id string, patch transaction.Patch) (*transaction.Transaction, error) {
				if patch.Category == nil || *patch.Category != "Dining" {
					t.Errorf("patch category not decoded: %+v", patch)
				}
				if patch.Amount != nil {
					t.Errorf("absent amount should stay nil")
				}
				return &transaction.Transaction{ID: id, Category: *patch.Category}, nil
			}},
			call:           func(h *TransactionHandler) http.HandlerFunc { return h.HandleUpdateTransaction },
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Delete",
			method:         http.MethodDelete,
			svc:            &MockLedger{},
			call:           func(h *TransactionHandler) http.HandlerFunc { return h.HandleDeleteTransaction },
			expectedStatus: http.StatusNoContent,
		},
		{
			name:   "Delete missing",
			method: http.MethodDelete,
			svc: &MockLedger{DeleteTransactionFunc: func(ctx context.Context, userID, id string) error {
				return apperr.NotFound("transaction")
			}},
			call:           func(h *TransactionHandler) http.HandlerFunc { return h.HandleDeleteTransaction },
			expectedStatus: http.StatusNotFound,
		},
		{
			name:   "Not duplicate",
			method: http.MethodPost,
			svc: &MockLedger{MarkNotDuplicateFunc: func(ctx context.Context, userID, id string) (*transaction.Transaction, error) {
				return &transaction.Transaction{ID: id}, nil
			}},
			call:           func(h *TransactionHandler) http.HandlerFunc { return h.HandleNotDuplicate },
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewTransactionHandler(tt.svc)
			req := newRequest(t, tt.method, "/api/transactions/tx-1", tt.body, "user-1")
			req.SetPathValue("id", "tx-1")

			rr := httptest.NewRecorder()
			tt.call(handler)(rr, req)

			if rr.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d: %s", rr.Code, tt.expectedStatus, rr.Body.String())
			}
		})
	}
}

func TestHandleClearTransactions(t *testing.T) {
	svc := &MockLedger{
		ClearTransactionsFunc: func(ctx context.Context, userID string) (int64, error) {
			return 7, nil
		},
	}
	handler := NewTransactionHandler(svc)

	rr := httptest.NewRecorder()
	handler.HandleClearTransactions(rr, newRequest(t, http.MethodDelete, "/api/transactions", nil, "user-1"))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp ClearResponse
	json.NewDecoder(rr.Body).Decode(&resp)
	if resp.Deleted != 7 {
		t.Errorf("deleted = %d, want 7", resp.Deleted)
	}
}

func TestHandleImport(t *testing.T) {
	tests := []struct {
		name           string
		body           any
		expectedStatus int
		expectedRows   int
	}{
		{
			name: "Rows forwarded as imported",
			body: ImportRequest{Transactions: []TransactionRequest{
				{Amount: decimal.NewFromInt(10), Direction: transaction.DirectionExpense, Category: "Dining", Date: "2025-03-01"},
				{Amount: decimal.NewFromInt(20), Direction: transaction.DirectionIncome, Category: "Salary", Date: "2025-03-02"},
			}},
			expectedStatus: http.StatusOK,
			expectedRows:   2,
		},
		{
			name:           "Empty import",
			body:           ImportRequest{},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var rowsSeen int
			svc := &MockLedger{
				ImportTransactionsFunc: func(ctx context.Context, userID string, rows []transaction.CreateParams) (*ledger.ImportResult, error) {
					rowsSeen = len(rows)
					for _, r := range rows {
						if r.Origin != transaction.OriginImported {
							t.Errorf("origin = %q, want imported", r.Origin)
						}
					}
					return &ledger.ImportResult{Created: len(rows), Errors: []ledger.RowError{}}, nil
				},
			}
			handler := NewTransactionHandler(svc)

			rr := httptest.NewRecorder()
			handler.HandleImport(rr, newRequest(t, http.MethodPost, "/api/transactions/import", tt.body, "user-1"))

			if rr.Code != tt.expectedStatus {
				t.Fatalf("status = %d, want %d: %s", rr.Code, tt.expectedStatus, rr.Body.String())
			}
			if rowsSeen != tt.expectedRows {
				t.Errorf("rows = %d, want %d", rowsSeen, tt.expectedRows)
			}
		})
	}
}
