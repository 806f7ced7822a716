package transaction

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const DefaultWorkerCount = 4

// DuplicateCheckResult summarizes a re-check run.
type DuplicateCheckResult struct {
	TransactionsChecked int
	DuplicatesFound     int
	DuplicatesMarked    int
	Errors              []string
}

func (r *DuplicateCheckResult) merge(o *DuplicateCheckResult) {
	r.TransactionsChecked += o.TransactionsChecked
	r.DuplicatesFound += o.DuplicatesFound
	r.DuplicatesMarked += o.DuplicatesMarked
	r.Errors = append(r.Errors, o.Errors...)
}

// DuplicateCheckService re-runs the duplicate detector over a user's whole
// ledger. It only ever raises flags. A dismissed transaction is flagged
// again only by a match created after the dismissal.
type DuplicateCheckService struct {
	repo        Repository
	workerCount int
	log         zerolog.Logger
}

func NewDuplicateCheckService(repo Repository, log zerolog.Logger) *DuplicateCheckService {
	return &DuplicateCheckService{repo: repo, workerCount: DefaultWorkerCount, log: log}
}

func NewDuplicateCheckServiceWithWorkers(repo Repository, log zerolog.Logger, workerCount int) *DuplicateCheckService {
	if workerCount <= 0 {
		workerCount = DefaultWorkerCount
	}
	return &DuplicateCheckService{repo: repo, workerCount: workerCount, log: log}
}

// CheckUser flags every unflagged transaction of userID that has a match.
func (s *DuplicateCheckService) CheckUser(ctx context.Context, userID string) (*DuplicateCheckResult, error) {
	txns, err := s.repo.List(ctx, userID, ListFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	byDate := make(map[string][]*Transaction, len(txns))
	for _, t := range txns {
		byDate[t.Date] = append(byDate[t.Date], t)
	}

	result := &DuplicateCheckResult{TransactionsChecked: len(txns)}
	var toMark []*Transaction
	for _, t := range txns {
		if t.PossibleDuplicate {
			continue
		}
		if findRecheckMatch(t, byDate) != nil {
			result.DuplicatesFound++
			toMark = append(toMark, t)
		}
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workerCount)
	for _, t := range toMark {
		g.Go(func() error {
			err := s.repo.SetPossibleDuplicate(gctx, userID, t.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("transaction %s: %v", t.ID, err))
				return nil
			}
			result.DuplicatesMarked++
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}

	s.log.Info().
		Str("user_id", userID).
		Int("checked", result.TransactionsChecked).
		Int("found", result.DuplicatesFound).
		Int("marked", result.DuplicatesMarked).
		Msg("duplicate check complete")
	return result, nil
}

// CheckUsers runs CheckUser for each user, collecting per-user failures.
func (s *DuplicateCheckService) CheckUsers(ctx context.Context, userIDs []string) *DuplicateCheckResult {
	total := &DuplicateCheckResult{}
	for _, id := range userIDs {
		if ctx.Err() != nil {
			total.Errors = append(total.Errors, ctx.Err().Error())
			break
		}
		r, err := s.CheckUser(ctx, id)
		if err != nil {
			total.Errors = append(total.Errors, fmt.Sprintf("user %s: %v", id, err))
			continue
		}
		total.merge(r)
	}
	return total
}

func findRecheckMatch(t *Transaction, byDate map[string][]*Transaction) *Transaction {
	from, to, err := DuplicateWindow(t.Date)
	if err != nil {
		return nil
	}
	for _, day := range []string{from, t.Date, to} {
		for _, other := range byDate[day] {
			if other.ID == t.ID {
				continue
			}
			if t.DuplicateDismissedAt != nil && !other.CreatedAt.After(*t.DuplicateDismissedAt) {
				continue
			}
			if Matches(t, other) {
				return other
			}
		}
	}
	return nil
}
