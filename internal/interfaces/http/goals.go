package http

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"finhealth/internal/domain/goal"
)

type GoalService interface {
	ListGoals(ctx context.Context, userID string) ([]*goal.Goal, error)
	GetGoal(ctx context.Context, userID, id string) (*goal.Goal, error)
	CreateGoal(ctx context.Context, userID string, params goal.CreateParams) (*goal.Goal, error)
	UpdateGoal(ctx context.Context, userID, id string, params goal.UpdateParams) (*goal.Goal, error)
	DeleteGoal(ctx context.Context, userID, id string) error
	Contribute(ctx context.Context, userID, id string, params goal.ContributeParams) (*goal.Goal, error)
}

type GoalHandler struct {
	svc GoalService
}

func NewGoalHandler(svc GoalService) *GoalHandler {
	return &GoalHandler{svc: svc}
}

type CreateGoalRequest struct {
	Name          string          `json:"name"`
	TargetAmount  decimal.Decimal `json:"targetAmount"`
	CurrentAmount decimal.Decimal `json:"currentAmount"`
	TargetDate    *string         `json:"targetDate,omitempty"`
}

type UpdateGoalRequest struct {
	Name          *string          `json:"name,omitempty"`
	TargetAmount  *decimal.Decimal `json:"targetAmount,omitempty"`
	CurrentAmount *decimal.Decimal `json:"currentAmount,omitempty"`
	// An empty string clears the target date.
	TargetDate *string `json:"targetDate,omitempty"`
}

type ContributeRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Month  string          `json:"month,omitempty"`
}

type GoalResponse struct {
	*goal.Goal
	Progress  float64 `json:"progress"`
	Completed bool    `json:"completed"`
}

func toGoalResponse(g *goal.Goal) GoalResponse {
	return GoalResponse{Goal: g, Progress: g.Progress(), Completed: g.Completed()}
}

func (h *GoalHandler) HandleListGoals(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	goals, err := h.svc.ListGoals(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := make([]GoalResponse, 0, len(goals))
	for _, g := range goals {
		resp = append(resp, toGoalResponse(g))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *GoalHandler) HandleCreateGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req CreateGoalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	g, err := h.svc.CreateGoal(r.Context(), userID, goal.CreateParams{
		Name:          req.Name,
		TargetAmount:  req.TargetAmount,
		CurrentAmount: req.CurrentAmount,
		TargetDate:    req.TargetDate,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGoalResponse(g))
}

func (h *GoalHandler) HandleGetGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	g, err := h.svc.GetGoal(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalResponse(g))
}

func (h *GoalHandler) HandleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req UpdateGoalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	g, err := h.svc.UpdateGoal(r.Context(), userID, r.PathValue("id"), goal.UpdateParams{
		Name:          req.Name,
		TargetAmount:  req.TargetAmount,
		CurrentAmount: req.CurrentAmount,
		TargetDate:    req.TargetDate,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalResponse(g))
}

func (h *GoalHandler) HandleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteGoal(r.Context(), userID, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *GoalHandler) HandleContribute(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req ContributeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	g, err := h.svc.Contribute(r.Context(), userID, r.PathValue("id"), goal.ContributeParams{
		Amount: req.Amount,
		Month:  req.Month,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalResponse(g))
}
