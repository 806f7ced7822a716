package http

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"finhealth/internal/domain/ledger"
	"finhealth/internal/domain/transaction"
	"finhealth/internal/shared/apperr"
)

const maxImportRows = 5000

// TransactionService is the part of ledger.Service the transaction
// endpoints use.
type TransactionService interface {
	ListTransactions(ctx context.Context, userID string, filter transaction.ListFilter) ([]*transaction.Transaction, error)
	GetTransaction(ctx context.Context, userID, id string) (*transaction.Transaction, error)
	CreateTransaction(ctx context.Context, userID string, params transaction.CreateParams) (*transaction.Transaction, error)
	UpdateTransaction(ctx context.Context, userID, id string, patch transaction.Patch) (*transaction.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, id string) error
	ClearTransactions(ctx context.Context, userID string) (int64, error)
	MarkNotDuplicate(ctx context.Context, userID, id string) (*transaction.Transaction, error)
	ImportTransactions(ctx context.Context, userID string, rows []transaction.CreateParams) (*ledger.ImportResult, error)
}

type TransactionHandler struct {
	svc TransactionService
}

func NewTransactionHandler(svc TransactionService) *TransactionHandler {
	return &TransactionHandler{svc: svc}
}

type TransactionRequest struct {
	Amount      decimal.Decimal       `json:"amount"`
	Direction   transaction.Direction `json:"direction"`
	Category    string                `json:"category"`
	SubCategory *string               `json:"subCategory,omitempty"`
	Description string                `json:"description"`
	Account     string                `json:"account"`
	Date        string                `json:"date"`
	Notes       string                `json:"notes,omitempty"`
}

func (req TransactionRequest) params(origin transaction.Origin) transaction.CreateParams {
	return transaction.CreateParams{
		Amount:      req.Amount,
		Direction:   req.Direction,
		Category:    req.Category,
		SubCategory: req.SubCategory,
		Description: req.Description,
		Account:     req.Account,
		Date:        req.Date,
		Origin:      origin,
		Notes:       req.Notes,
	}
}

type ImportRequest struct {
	Transactions []TransactionRequest `json:"transactions"`
}

type ClearResponse struct {
	Deleted int64 `json:"deleted"`
}

// HandleListTransactions supports category, direction, origin, from, to,
// duplicates, limit and offset query parameters.
func (h *TransactionHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := transaction.ListFilter{
		Category:       q.Get("category"),
		Direction:      transaction.Direction(q.Get("direction")),
		Origin:         transaction.Origin(q.Get("origin")),
		From:           q.Get("from"),
		To:             q.Get("to"),
		OnlyDuplicates: q.Get("duplicates") == "true",
	}
	if filter.Direction != "" && !filter.Direction.Valid() {
		writeError(w, r, apperr.Validation("unknown direction %q", filter.Direction))
		return
	}
	for _, d := range []string{filter.From, filter.To} {
		if d == "" {
			continue
		}
		if err := transaction.ValidateDate(d); err != nil {
			writeError(w, r, err)
			return
		}
	}

	var err error
	if filter.Limit, err = queryInt(r, "limit", 0); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.Offset, err = queryInt(r, "offset", 0); err != nil {
		writeError(w, r, err)
		return
	}

	txns, err := h.svc.ListTransactions(r.Context(), userID, filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if txns == nil {
		txns = []*transaction.Transaction{}
	}
	writeJSON(w, http.StatusOK, txns)
}

func (h *TransactionHandler) HandleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req TransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	t, err := h.svc.CreateTransaction(r.Context(), userID, req.params(transaction.OriginManual))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *TransactionHandler) HandleGetTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	t, err := h.svc.GetTransaction(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TransactionHandler) HandleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var patch transaction.Patch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}

	t, err := h.svc.UpdateTransaction(r.Context(), userID, r.PathValue("id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TransactionHandler) HandleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteTransaction(r.Context(), userID, r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleClearTransactions deletes the caller's whole ledger.
func (h *TransactionHandler) HandleClearTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	n, err := h.svc.ClearTransactions(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ClearResponse{Deleted: n})
}

func (h *TransactionHandler) HandleNotDuplicate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	t, err := h.svc.MarkNotDuplicate(r.Context(), userID, r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TransactionHandler) HandleImport(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req ImportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if len(req.Transactions) == 0 {
		writeError(w, r, apperr.Validation("transactions must not be empty"))
		return
	}
	if len(req.Transactions) > maxImportRows {
		writeError(w, r, apperr.Validation("at most %d transactions per import", maxImportRows))
		return
	}

	rows := make([]transaction.CreateParams, len(req.Transactions))
	for i, t := range req.Transactions {
		rows[i] = t.params(transaction.OriginImported)
	}

	result, err := h.svc.ImportTransactions(r.Context(), userID, rows)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
