package ledger

import (
	"context"
	"fmt"

	"finhealth/internal/domain/transaction"
	"finhealth/internal/shared/apperr"
)

func (s *Service) GetTransaction(ctx context.Context, userID, id string) (*transaction.Transaction, error) {
	return s.txns.GetByID(ctx, userID, id)
}

func (s *Service) ListTransactions(ctx context.Context, userID string, filter transaction.ListFilter) ([]*transaction.Transaction, error) {
	return s.txns.List(ctx, userID, filter)
}

// CreateTransaction appends a manual or imported transaction. A possible
// duplicate is still recorded, with its flag raised.
func (s *Service) CreateTransaction(ctx context.Context, userID string, params transaction.CreateParams) (*transaction.Transaction, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	var created *transaction.Transaction
	err := s.mutate(ctx, userID, "create transaction", func(ctx context.Context) error {
		var err error
		created, err = s.create(ctx, userID, params)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Service) create(ctx context.Context, userID string, params transaction.CreateParams) (*transaction.Transaction, error) {
	match, err := s.findDuplicate(ctx, userID, params)
	if err != nil {
		return nil, err
	}
	params.PossibleDuplicate = match != nil

	created, err := s.txns.Create(ctx, userID, params)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}
	if err := s.applySpentChange(ctx, userID, nil, created); err != nil {
		return nil, fmt.Errorf("failed to update category spending: %w", err)
	}
	return created, nil
}

func (s *Service) findDuplicate(ctx context.Context, userID string, params transaction.CreateParams) (*transaction.Transaction, error) {
	from, to, err := transaction.DuplicateWindow(params.Date)
	if err != nil {
		return nil, err
	}
	window, err := s.txns.ListInDateRange(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to load duplicate window: %w", err)
	}
	candidate := &transaction.Transaction{
		Amount:      params.Amount,
		Description: params.Description,
		Date:        params.Date,
	}
	return transaction.FindDuplicate(candidate, window), nil
}

type IngestStatus string

const (
	IngestAppended        IngestStatus = "appended"
	IngestAlreadyIngested IngestStatus = "already_ingested"
	IngestFlagged         IngestStatus = "flagged"
)

// IngestResult reports what happened to one aggregator transaction. For
// flagged candidates Transaction is the unsaved candidate with
// PossibleDuplicate set and Match is the ledger row it collided with.
type IngestResult struct {
	Status      IngestStatus
	Transaction *transaction.Transaction
	Match       *transaction.Transaction
}

// IngestTransaction is the bank-sync entry point. Re-deliveries of an
// aggregator id are ignored; candidates the duplicate detector flags are
// reported and not appended.
func (s *Service) IngestTransaction(ctx context.Context, userID string, params transaction.CreateParams) (*IngestResult, error) {
	return s.ingest(ctx, userID, params, "ingest transaction", true)
}

// AcceptIngest appends a bank-sync candidate the user reviewed after the
// detector held it back. The detector is skipped; an aggregator id that is
// already in the ledger still makes it a no-op.
func (s *Service) AcceptIngest(ctx context.Context, userID string, params transaction.CreateParams) (*IngestResult, error) {
	return s.ingest(ctx, userID, params, "accept held transaction", false)
}

func (s *Service) ingest(ctx context.Context, userID string, params transaction.CreateParams, op string, detect bool) (*IngestResult, error) {
	params.Origin = transaction.OriginBankSync
	params.PossibleDuplicate = false
	if err := params.Validate(); err != nil {
		return nil, err
	}

	var result *IngestResult
	err := s.mutate(ctx, userID, op, func(ctx context.Context) error {
		if params.ExternalID != nil {
			existing, err := s.txns.GetByExternalID(ctx, userID, *params.ExternalID)
			if err != nil {
				return fmt.Errorf("failed to look up external id: %w", err)
			}
			if existing != nil {
				result = &IngestResult{Status: IngestAlreadyIngested, Transaction: existing}
				return nil
			}
		}

		if detect {
			match, err := s.findDuplicate(ctx, userID, params)
			if err != nil {
				return err
			}
			if match != nil {
				result = &IngestResult{
					Status:      IngestFlagged,
					Transaction: candidateFrom(userID, params),
					Match:       match,
				}
				return nil
			}
		}

		created, err := s.txns.Create(ctx, userID, params)
		if err != nil {
			return fmt.Errorf("failed to create transaction: %w", err)
		}
		if err := s.applySpentChange(ctx, userID, nil, created); err != nil {
			return fmt.Errorf("failed to update category spending: %w", err)
		}
		result = &IngestResult{Status: IngestAppended, Transaction: created}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func candidateFrom(userID string, p transaction.CreateParams) *transaction.Transaction {
	return &transaction.Transaction{
		UserID:            userID,
		Amount:            p.Amount,
		Direction:         p.Direction,
		Category:          p.Category,
		SubCategory:       p.SubCategory,
		Description:       p.Description,
		Account:           p.Account,
		Date:              p.Date,
		Origin:            p.Origin,
		ExternalID:        p.ExternalID,
		PossibleDuplicate: true,
	}
}

// RowError describes an import row that was rejected.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

type ImportResult struct {
	Created int        `json:"created"`
	Flagged int        `json:"flagged"`
	Errors  []RowError `json:"errors"`
}

// ImportTransactions appends already-parsed rows with origin "imported".
// Invalid rows are reported and skipped; a storage failure stops the batch.
func (s *Service) ImportTransactions(ctx context.Context, userID string, rows []transaction.CreateParams) (*ImportResult, error) {
	result := &ImportResult{Errors: []RowError{}}
	var imported bool
	defer func() {
		if imported {
			s.invalidateScore(ctx, userID, "import transactions")
		}
	}()

	for i, row := range rows {
		row.Origin = transaction.OriginImported
		if err := row.Validate(); err != nil {
			result.Errors = append(result.Errors, RowError{Row: i + 1, Message: err.Error()})
			continue
		}

		unlock := s.locks.lock(userID)
		var created *transaction.Transaction
		err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
			var err error
			created, err = s.create(ctx, userID, row)
			return err
		})
		unlock()
		if err != nil {
			if apperr.IsValidation(err) {
				result.Errors = append(result.Errors, RowError{Row: i + 1, Message: err.Error()})
				continue
			}
			return result, fmt.Errorf("import stopped at row %d: %w", i+1, err)
		}

		imported = true
		result.Created++
		if created.PossibleDuplicate {
			result.Flagged++
		}
	}
	return result, nil
}

// UpdateTransaction applies patch and moves the spending contribution in
// the same storage transaction.
func (s *Service) UpdateTransaction(ctx context.Context, userID, id string, patch transaction.Patch) (*transaction.Transaction, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	var updated *transaction.Transaction
	err := s.mutate(ctx, userID, "update transaction", func(ctx context.Context) error {
		before, err := s.txns.GetByID(ctx, userID, id)
		if err != nil {
			return err
		}
		next := patch.Apply(*before)
		updated, err = s.txns.Update(ctx, &next)
		if err != nil {
			return fmt.Errorf("failed to update transaction: %w", err)
		}
		return s.applySpentChange(ctx, userID, before, updated)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Service) DeleteTransaction(ctx context.Context, userID, id string) error {
	return s.mutate(ctx, userID, "delete transaction", func(ctx context.Context) error {
		before, err := s.txns.GetByID(ctx, userID, id)
		if err != nil {
			return err
		}
		if err := s.txns.Delete(ctx, userID, id); err != nil {
			return err
		}
		return s.applySpentChange(ctx, userID, before, nil)
	})
}

// DeleteByExternalIDs removes bank-sync rows the aggregator withdrew.
// Unknown ids are skipped.
func (s *Service) DeleteByExternalIDs(ctx context.Context, userID string, externalIDs []string) (int, error) {
	if len(externalIDs) == 0 {
		return 0, nil
	}

	removed := 0
	err := s.mutate(ctx, userID, "remove synced transactions", func(ctx context.Context) error {
		for _, extID := range externalIDs {
			t, err := s.txns.GetByExternalID(ctx, userID, extID)
			if err != nil {
				return err
			}
			if t == nil {
				continue
			}
			if err := s.txns.Delete(ctx, userID, t.ID); err != nil {
				if apperr.IsNotFound(err) {
					continue
				}
				return err
			}
			if err := s.applySpentChange(ctx, userID, t, nil); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}

// ClearTransactions deletes the user's whole ledger and zeroes every
// category's spending.
func (s *Service) ClearTransactions(ctx context.Context, userID string) (int64, error) {
	var deleted int64
	err := s.mutate(ctx, userID, "clear transactions", func(ctx context.Context) error {
		var err error
		deleted, err = s.txns.DeleteAllForUser(ctx, userID)
		if err != nil {
			return fmt.Errorf("failed to delete transactions: %w", err)
		}
		return s.budgets.ResetSpent(ctx, userID)
	})
	return deleted, err
}

// MarkNotDuplicate clears the duplicate flag and records the dismissal.
func (s *Service) MarkNotDuplicate(ctx context.Context, userID, id string) (*transaction.Transaction, error) {
	var t *transaction.Transaction
	err := s.mutate(ctx, userID, "dismiss duplicate", func(ctx context.Context) error {
		var err error
		t, err = s.txns.DismissDuplicate(ctx, userID, id, s.now().UTC())
		return err
	})
	return t, err
}
