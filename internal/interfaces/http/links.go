package http

import (
	"context"
	"net/http"

	"finhealth/internal/domain/banksync"
	"finhealth/internal/infrastructure/aggregator"
	"finhealth/internal/shared/apperr"
)

// LinkService is the part of banksync.Service behind the link endpoints.
type LinkService interface {
	CreateLinkHandle(ctx context.Context, userID string) (*aggregator.LinkTokenResponse, error)
	ExchangeToken(ctx context.Context, userID string, params banksync.ExchangeParams) (*banksync.Link, []*banksync.Account, error)
	ListLinks(ctx context.Context, userID string) ([]*banksync.Link, error)
	ListAccounts(ctx context.Context, userID, linkID string) ([]*banksync.Account, error)
	RemoveLink(ctx context.Context, userID, linkID string) error
	RefreshLink(ctx context.Context, userID, linkID string) (*banksync.SyncResult, error)
	ListHeld(ctx context.Context, userID string) ([]*banksync.HeldTransaction, error)
	AcceptHeld(ctx context.Context, userID, id string) (*banksync.AcceptResult, error)
	DismissHeld(ctx context.Context, userID, id string) (*banksync.HeldTransaction, error)
}

type LinkHandler struct {
	svc LinkService
}

func NewLinkHandler(svc LinkService) *LinkHandler {
	return &LinkHandler{svc: svc}
}

type LinkTokenResponse struct {
	LinkToken  string `json:"linkToken"`
	Expiration string `json:"expiration"`
}

type ExchangeRequest struct {
	PublicToken     string `json:"publicToken"`
	InstitutionID   string `json:"institutionId"`
	InstitutionName string `json:"institutionName"`
}

type LinkResponse struct {
	*banksync.Link
	Accounts []*banksync.Account `json:"accounts"`
}

func (h *LinkHandler) HandleCreateToken(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	tok, err := h.svc.CreateLinkHandle(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, LinkTokenResponse{LinkToken: tok.LinkToken, Expiration: tok.Expiration})
}

func (h *LinkHandler) HandleExchange(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req ExchangeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.PublicToken == "" {
		writeError(w, r, apperr.Validation("publicToken is required"))
		return
	}

	link, accounts, err := h.svc.ExchangeToken(r.Context(), userID, banksync.ExchangeParams{
		PublicToken:     req.PublicToken,
		InstitutionID:   req.InstitutionID,
		InstitutionName: req.InstitutionName,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if accounts == nil {
		accounts = []*banksync.Account{}
	}
	writeJSON(w, http.StatusCreated, LinkResponse{Link: link, Accounts: accounts})
}

// HandleListLinks returns every link with its accounts.
func (h *LinkHandler) HandleListLinks(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	links, err := h.svc.ListLinks(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]LinkResponse, 0, len(links))
	for _, l := range links {
		accounts, err := h.svc.ListAccounts(r.Context(), userID, l.ID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if accounts == nil {
			accounts = []*banksync.Account{}
		}
		resp = append(resp, LinkResponse{Link: l, Accounts: accounts})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *LinkHandler) HandleRemoveLink(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.svc.RemoveLink(r.Context(), userID, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LinkHandler) HandleRefreshLink(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	result, err := h.svc.RefreshLink(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleListHeld returns synced transactions waiting for duplicate review.
func (h *LinkHandler) HandleListHeld(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	held, err := h.svc.ListHeld(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if held == nil {
		held = []*banksync.HeldTransaction{}
	}
	writeJSON(w, http.StatusOK, held)
}

func (h *LinkHandler) HandleAcceptHeld(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	result, err := h.svc.AcceptHeld(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *LinkHandler) HandleDismissHeld(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	held, err := h.svc.DismissHeld(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, held)
}
