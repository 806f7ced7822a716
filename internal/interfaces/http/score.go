package http

import (
	"context"
	"net/http"

	"finhealth/internal/domain/score"
)

type ScoreService interface {
	Get(ctx context.Context, userID string) (*score.Score, error)
	Recompute(ctx context.Context, userID string) (*score.Score, error)
}

type ScoreHandler struct {
	svc ScoreService
}

func NewScoreHandler(svc ScoreService) *ScoreHandler {
	return &ScoreHandler{svc: svc}
}

// HandleGetScore returns the cached score, computing it when absent.
func (h *ScoreHandler) HandleGetScore(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	s, err := h.svc.Get(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *ScoreHandler) HandleRecompute(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	s, err := h.svc.Recompute(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}
