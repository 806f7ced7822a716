package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"finhealth/internal/domain/budget"
	"finhealth/internal/domain/goal"
	"finhealth/internal/shared/apperr"
)

func TestHandleCreateCategory(t *testing.T) {
	tests := []struct {
		name           string
		mockErr        error
		expectedStatus int
		expectedCode   string
	}{
		{name: "Success", expectedStatus: http.StatusCreated},
		{
			name:           "Duplicate name",
			mockErr:        apperr.Conflict(apperr.CodeDuplicateCategory, "category already exists"),
			expectedStatus: http.StatusConflict,
			expectedCode:   apperr.CodeDuplicateCategory,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockLedger{
				CreateCategoryFunc: func(ctx context.Context, userID string, params budget.CreateParams) (*budget.Category, error) {
					if tt.mockErr != nil {
						return nil, tt.mockErr
					}
					return &budget.Category{
						ID:          "cat-1",
						Name:        params.Name,
						Budgeted:    params.Budgeted,
						AmountSpent: decimal.RequireFromString("120"),
					}, nil
				},
			}
			handler := NewCategoryHandler(svc)

			body := map[string]any{"name": "Groceries", "budgeted": "500"}
			rr := httptest.NewRecorder()
			handler.HandleCreateCategory(rr, newRequest(t, http.MethodPost, "/api/categories", body, "user-1"))

			if rr.Code != tt.expectedStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.expectedStatus)
			}
			if tt.expectedCode != "" {
				if got := decodeError(t, rr).Code; got != tt.expectedCode {
					t.Errorf("code = %q, want %q", got, tt.expectedCode)
				}
				return
			}

			var resp struct {
				Name      string          `json:"name"`
				Remaining decimal.Decimal `json:"remaining"`
			}
			json.NewDecoder(rr.Body).Decode(&resp)
			if resp.Name != "Groceries" || !resp.Remaining.Equal(decimal.RequireFromString("380")) {
				t.Errorf("unexpected response %+v", resp)
			}
		})
	}
}

func TestHandleCategoryByID(t *testing.T) {
	t.Run("Update passes only present fields", func(t *testing.T) {
		svc := &MockLedger{
			UpdateCategoryFunc: func(ctx context.Context, userID, id string, params budget.UpdateParams) (*budget.Category, error) {
				if params.Name == nil || *params.Name != "Food" {
					t.Errorf("name not forwarded: %+v", params)
				}
				if params.Budgeted != nil {
					t.Errorf("budgeted should be nil")
				}
				return &budget.Category{ID: id, Name: *params.Name}, nil
			},
		}
		req := newRequest(t, http.MethodPut, "/api/categories/cat-1", map[string]any{"name": "Food"}, "user-1")
		req.SetPathValue("id", "cat-1")

		rr := httptest.NewRecorder()
		NewCategoryHandler(svc).HandleUpdateCategory(rr, req)
		if rr.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", rr.Code)
		}
	})

	t.Run("Get missing", func(t *testing.T) {
		svc := &MockLedger{
			GetCategoryFunc: func(ctx context.Context, userID, id string) (*budget.Category, error) {
				return nil, apperr.NotFound("category")
			},
		}
		req := newRequest(t, http.MethodGet, "/api/categories/nope", nil, "user-1")
		req.SetPathValue("id", "nope")

		rr := httptest.NewRecorder()
		NewCategoryHandler(svc).HandleGetCategory(rr, req)
		if rr.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rr.Code)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		var deleted string
		svc := &MockLedger{
			DeleteCategoryFunc: func(ctx context.Context, userID, id string) error {
				deleted = id
				return nil
			},
		}
		req := newRequest(t, http.MethodDelete, "/api/categories/cat-9", nil, "user-1")
		req.SetPathValue("id", "cat-9")

		rr := httptest.NewRecorder()
		NewCategoryHandler(svc).HandleDeleteCategory(rr, req)
		if rr.Code != http.StatusNoContent || deleted != "cat-9" {
			t.Errorf("status = %d deleted = %q", rr.Code, deleted)
		}
	})
}

func TestHandleListCategories_Empty(t *testing.T) {
	rr := httptest.NewRecorder()
	NewCategoryHandler(&MockLedger{}).HandleListCategories(rr, newRequest(t, http.MethodGet, "/api/categories", nil, "user-1"))
	if rr.Body.String() != "[]\n" {
		t.Errorf("body = %q, want []", rr.Body.String())
	}
}

func TestHandleGoals(t *testing.T) {
	t.Run("Create reports progress", func(t *testing.T) {
		svc := &MockLedger{
			CreateGoalFunc: func(ctx context.Context, userID string, params goal.CreateParams) (*goal.Goal, error) {
				return &goal.Goal{
					ID:            "g-1",
					Name:          params.Name,
					TargetAmount:  params.TargetAmount,
					CurrentAmount: params.CurrentAmount,
				}, nil
			},
		}
		body := map[string]any{"name": "Emergency fund", "targetAmount": "1000", "currentAmount": "250"}
		rr := httptest.NewRecorder()
		NewGoalHandler(svc).HandleCreateGoal(rr, newRequest(t, http.MethodPost, "/api/goals", body, "user-1"))

		if rr.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201", rr.Code)
		}
		var resp struct {
			Progress  float64 `json:"progress"`
			Completed bool    `json:"completed"`
		}
		json.NewDecoder(rr.Body).Decode(&resp)
		if resp.Progress != 25 || resp.Completed {
			t.Errorf("unexpected response %+v", resp)
		}
	})

	t.Run("Contribute forwards month", func(t *testing.T) {
		svc := &MockLedger{
			ContributeFunc: func(ctx context.Context, userID, id string, params goal.ContributeParams) (*goal.Goal, error) {
				if params.Month != "2025-03" || !params.Amount.Equal(decimal.NewFromInt(50)) {
					t.Errorf("unexpected params %+v", params)
				}
				return &goal.Goal{ID: id, TargetAmount: decimal.NewFromInt(100), CurrentAmount: decimal.NewFromInt(100)}, nil
			},
		}
		req := newRequest(t, http.MethodPost, "/api/goals/g-1/contribute", map[string]any{"amount": 50, "month": "2025-03"}, "user-1")
		req.SetPathValue("id", "g-1")

		rr := httptest.NewRecorder()
		NewGoalHandler(svc).HandleContribute(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rr.Code)
		}
		var resp GoalResponse
		json.NewDecoder(rr.Body).Decode(&resp)
		if !resp.Completed {
			t.Errorf("goal at target should be completed")
		}
	})

	t.Run("Contribute rejected", func(t *testing.T) {
		svc := &MockLedger{
			ContributeFunc: func(ctx context.Context, userID, id string, params goal.ContributeParams) (*goal.Goal, error) {
				return nil, apperr.Validation("contribution must be greater than zero")
			},
		}
		req := newRequest(t, http.MethodPost, "/api/goals/g-1/contribute", map[string]any{"amount": -5}, "user-1")
		req.SetPathValue("id", "g-1")

		rr := httptest.NewRecorder()
		NewGoalHandler(svc).HandleContribute(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rr.Code)
		}
	})

	t.Run("Unauthenticated", func(t *testing.T) {
		rr := httptest.NewRecorder()
		NewGoalHandler(&MockLedger{}).HandleListGoals(rr, newRequest(t, http.MethodGet, "/api/goals", nil, ""))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rr.Code)
		}
	})
}
