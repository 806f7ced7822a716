package http

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"finhealth/internal/domain/budget"
)

type CategoryService interface {
	ListCategories(ctx context.Context, userID string) ([]*budget.Category, error)
	GetCategory(ctx context.Context, userID, id string) (*budget.Category, error)
	CreateCategory(ctx context.Context, userID string, params budget.CreateParams) (*budget.Category, error)
	UpdateCategory(ctx context.Context, userID, id string, params budget.UpdateParams) (*budget.Category, error)
	DeleteCategory(ctx context.Context, userID, id string) error
}

type CategoryHandler struct {
	svc CategoryService
}

func NewCategoryHandler(svc CategoryService) *CategoryHandler {
	return &CategoryHandler{svc: svc}
}

type CreateCategoryRequest struct {
	Name     string          `json:"name"`
	Budgeted decimal.Decimal `json:"budgeted"`
	Period   string          `json:"period,omitempty"`
}

type UpdateCategoryRequest struct {
	Name     *string          `json:"name,omitempty"`
	Budgeted *decimal.Decimal `json:"budgeted,omitempty"`
	Period   *string          `json:"period,omitempty"`
}

// CategoryResponse adds the derived remaining amount to a category.
type CategoryResponse struct {
	*budget.Category
	Remaining decimal.Decimal `json:"remaining"`
}

func toCategoryResponse(c *budget.Category) CategoryResponse {
	return CategoryResponse{Category: c, Remaining: c.Remaining()}
}

func (h *CategoryHandler) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	cats, err := h.svc.ListCategories(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := make([]CategoryResponse, 0, len(cats))
	for _, c := range cats {
		resp = append(resp, toCategoryResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *CategoryHandler) HandleCreateCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req CreateCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	c, err := h.svc.CreateCategory(r.Context(), userID, budget.CreateParams{
		Name:     req.Name,
		Budgeted: req.Budgeted,
		Period:   req.Period,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryResponse(c))
}

func (h *CategoryHandler) HandleGetCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	c, err := h.svc.GetCategory(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryResponse(c))
}

func (h *CategoryHandler) HandleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req UpdateCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	c, err := h.svc.UpdateCategory(r.Context(), userID, r.PathValue("id"), budget.UpdateParams{
		Name:     req.Name,
		Budgeted: req.Budgeted,
		Period:   req.Period,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryResponse(c))
}

func (h *CategoryHandler) HandleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteCategory(r.Context(), userID, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
