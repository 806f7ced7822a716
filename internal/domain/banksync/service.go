package banksync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"finhealth/internal/domain/ledger"
	"finhealth/internal/domain/transaction"
	"finhealth/internal/infrastructure/aggregator"
	"finhealth/internal/shared/apperr"
)

// Ledger is the write path bank-sync rows go through.
type Ledger interface {
	IngestTransaction(ctx context.Context, userID string, params transaction.CreateParams) (*ledger.IngestResult, error)
	AcceptIngest(ctx context.Context, userID string, params transaction.CreateParams) (*ledger.IngestResult, error)
	DeleteByExternalIDs(ctx context.Context, userID string, externalIDs []string) (int, error)
}

// Cipher seals access credentials at rest.
type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
	Fingerprint(secret string) string
}

type Config struct {
	LookbackDays   int
	SignConvention SignConvention
}

type Service struct {
	client   aggregator.ClientInterface
	links    LinkRepository
	accounts AccountRepository
	events   EventRepository
	held     HeldRepository
	ledger   Ledger
	cipher   Cipher
	cfg      Config
	now      func() time.Time
	log      zerolog.Logger
}

func NewService(
	client aggregator.ClientInterface,
	links LinkRepository,
	accounts AccountRepository,
	events EventRepository,
	held HeldRepository,
	ledger Ledger,
	cipher Cipher,
	cfg Config,
	log zerolog.Logger,
) *Service {
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 30
	}
	if cfg.SignConvention == "" {
		cfg.SignConvention = OutflowPositive
	}
	return &Service{
		client:   client,
		links:    links,
		accounts: accounts,
		events:   events,
		held:     held,
		ledger:   ledger,
		cipher:   cipher,
		cfg:      cfg,
		now:      time.Now,
		log:      log.With().Str("component", "banksync").Logger(),
	}
}

func (s *Service) CreateLinkHandle(ctx context.Context, userID string) (*aggregator.LinkTokenResponse, error) {
	return s.client.CreateLinkToken(ctx, userID)
}

type ExchangeParams struct {
	PublicToken     string `json:"publicToken"`
	InstitutionID   string `json:"institutionId,omitempty"`
	InstitutionName string `json:"institutionName,omitempty"`
}

// ExchangeToken completes the link handshake. The one-time token is
// exchanged exactly once; a second link to the same institution is
// rejected with DUPLICATE_LINK and the fresh item is revoked.
func (s *Service) ExchangeToken(ctx context.Context, userID string, params ExchangeParams) (*Link, []*Account, error) {
	if strings.TrimSpace(params.PublicToken) == "" {
		return nil, nil, apperr.Validation("publicToken is required")
	}

	if params.InstitutionID != "" {
		if err := s.ensureNotLinked(ctx, userID, params.InstitutionID); err != nil {
			return nil, nil, err
		}
	}

	exch, err := s.client.ExchangePublicToken(ctx, params.PublicToken)
	if err != nil {
		return nil, nil, err
	}
	fingerprint := s.cipher.Fingerprint(exch.AccessToken)

	item, err := s.client.GetItem(ctx, exch.AccessToken)
	if err != nil {
		s.revokeQuietly(ctx, exch.AccessToken, fingerprint)
		return nil, nil, err
	}
	institutionID := item.Item.InstitutionID

	if err := s.ensureNotLinked(ctx, userID, institutionID); err != nil {
		s.revokeQuietly(ctx, exch.AccessToken, fingerprint)
		return nil, nil, err
	}

	sealed, err := s.cipher.Encrypt(exch.AccessToken)
	if err != nil {
		s.revokeQuietly(ctx, exch.AccessToken, fingerprint)
		return nil, nil, fmt.Errorf("failed to seal access token: %w", err)
	}

	link, err := s.links.Create(ctx, CreateLinkParams{
		UserID:           userID,
		ItemID:           exch.ItemID,
		AccessToken:      sealed,
		TokenFingerprint: fingerprint,
		InstitutionID:    institutionID,
		InstitutionName:  params.InstitutionName,
	})
	if err != nil {
		// A concurrent exchange for the same institution can pass both checks
		// above; the store's unique index decides and the loser's item is revoked.
		s.revokeQuietly(ctx, exch.AccessToken, fingerprint)
		if apperr.IsConflict(err) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("failed to store link: %w", err)
	}

	s.log.Info().
		Str("user_id", userID).
		Str("link_id", link.ID).
		Str("item_id", link.ItemID).
		Str("institution_id", institutionID).
		Str("token_fp", fingerprint).
		Msg("Account link established")

	resp, err := s.client.GetAccounts(ctx, exch.AccessToken)
	if err != nil {
		s.log.Warn().Err(err).Str("link_id", link.ID).Msg("Initial account fetch failed; accounts will refresh on next sync")
		return link, nil, nil
	}
	accounts, err := s.upsertAccounts(ctx, link, resp.Accounts)
	if err != nil {
		s.log.Warn().Err(err).Str("link_id", link.ID).Msg("Failed to store linked accounts")
	}
	return link, accounts, nil
}

func (s *Service) ensureNotLinked(ctx context.Context, userID, institutionID string) error {
	existing, err := s.links.FindActiveByInstitution(ctx, userID, institutionID)
	if err != nil {
		return fmt.Errorf("failed to check existing links: %w", err)
	}
	if existing != nil {
		return apperr.Conflict(apperr.CodeDuplicateLink, "institution is already linked")
	}
	return nil
}

func (s *Service) revokeQuietly(ctx context.Context, accessToken, fingerprint string) {
	if err := s.client.RemoveItem(ctx, accessToken); err != nil {
		s.log.Warn().Err(err).Str("token_fp", fingerprint).Msg("Failed to revoke rejected item")
	}
}

func (s *Service) upsertAccounts(ctx context.Context, link *Link, remote []aggregator.Account) ([]*Account, error) {
	out := make([]*Account, 0, len(remote))
	for _, ra := range remote {
		a, err := s.accounts.Upsert(ctx, &Account{
			LinkID:            link.ID,
			UserID:            link.UserID,
			ExternalAccountID: ra.AccountID,
			Name:              ra.Name,
			OfficialName:      ra.OfficialName,
			Type:              ra.Type,
			Subtype:           ra.Subtype,
			Mask:              ra.Mask,
			AvailableBalance:  ra.Balances.Available,
			CurrentBalance:    ra.Balances.Current,
			Currency:          ra.Balances.ISOCurrencyCode,
		})
		if err != nil {
			return out, fmt.Errorf("failed to upsert account %s: %w", ra.AccountID, err)
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Service) ListLinks(ctx context.Context, userID string) ([]*Link, error) {
	return s.links.ListByUser(ctx, userID)
}

func (s *Service) ListAccounts(ctx context.Context, userID, linkID string) ([]*Account, error) {
	if _, err := s.links.GetByID(ctx, userID, linkID); err != nil {
		return nil, err
	}
	return s.accounts.ListByLink(ctx, userID, linkID)
}

// RemoveLink revokes the credential with the aggregator and marks the link
// disconnected. Rows are kept.
func (s *Service) RemoveLink(ctx context.Context, userID, linkID string) error {
	link, err := s.links.GetByID(ctx, userID, linkID)
	if err != nil {
		return err
	}
	if link.Status == StatusDisconnected {
		return nil
	}

	token, err := s.cipher.Decrypt(link.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to open access token: %w", err)
	}
	if err := s.client.RemoveItem(ctx, token); err != nil {
		var ext *apperr.ExternalServiceError
		if !errors.As(err, &ext) || ext.ErrorCode != "ITEM_NOT_FOUND" {
			return err
		}
	}

	if err := s.links.UpdateStatus(ctx, link.ID, StatusDisconnected, nil); err != nil {
		return fmt.Errorf("failed to disconnect link: %w", err)
	}
	s.log.Info().Str("user_id", userID).Str("link_id", link.ID).Str("token_fp", link.TokenFingerprint).Msg("Account link removed")
	return nil
}

// RefreshLink runs a sync for one of the user's links on request.
func (s *Service) RefreshLink(ctx context.Context, userID, linkID string) (*SyncResult, error) {
	link, err := s.links.GetByID(ctx, userID, linkID)
	if err != nil {
		return nil, err
	}
	if link.Status == StatusDisconnected {
		return nil, apperr.Conflict(apperr.CodeConflict, "link is disconnected")
	}
	return s.SyncLink(ctx, link)
}

type SyncResult struct {
	LinkID          string             `json:"linkId"`
	Fetched         int                `json:"fetched"`
	Appended        int                `json:"appended"`
	AlreadyIngested int                `json:"alreadyIngested"`
	SkippedPending  int                `json:"skippedPending"`
	Held            []*HeldTransaction `json:"held"`
	Errors          []string           `json:"errors"`
}

// SyncLink pulls the lookback window and feeds every posted transaction
// through the ledger. Mapping failures are reported per row; storage
// failures abort so the triggering event can be replayed.
func (s *Service) SyncLink(ctx context.Context, link *Link) (*SyncResult, error) {
	token, err := s.cipher.Decrypt(link.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to open access token: %w", err)
	}

	end := s.now().UTC()
	start := end.AddDate(0, 0, -s.cfg.LookbackDays)
	resp, err := s.client.GetTransactions(ctx, token, start.Format(time.DateOnly), end.Format(time.DateOnly))
	if err != nil {
		return nil, err
	}

	if _, err := s.upsertAccounts(ctx, link, resp.Accounts); err != nil {
		s.log.Warn().Err(err).Str("link_id", link.ID).Msg("Account refresh failed during sync")
	}
	names := make(map[string]string, len(resp.Accounts))
	for _, a := range resp.Accounts {
		names[a.AccountID] = a.Name
	}

	result := &SyncResult{
		LinkID:  link.ID,
		Fetched: len(resp.Transactions),
		Held:    []*HeldTransaction{},
		Errors:  []string{},
	}

	for _, rt := range resp.Transactions {
		if rt.Pending {
			result.SkippedPending++
			continue
		}
		params, err := MapTransaction(rt, names, s.cfg.SignConvention)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", rt.TransactionID, err))
			continue
		}

		res, err := s.ledger.IngestTransaction(ctx, link.UserID, params)
		if err != nil {
			if apperr.IsValidation(err) {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", rt.TransactionID, err))
				continue
			}
			return result, fmt.Errorf("failed to ingest %s: %w", rt.TransactionID, err)
		}
		switch res.Status {
		case ledger.IngestAppended:
			result.Appended++
		case ledger.IngestAlreadyIngested:
			result.AlreadyIngested++
		case ledger.IngestFlagged:
			h, err := s.hold(ctx, link, res)
			if err != nil {
				return result, err
			}
			if h != nil {
				result.Held = append(result.Held, h)
			}
		}
	}

	if err := s.links.MarkSynced(ctx, link.ID, s.now()); err != nil {
		return result, fmt.Errorf("failed to mark link synced: %w", err)
	}

	s.log.Info().
		Str("user_id", link.UserID).
		Str("link_id", link.ID).
		Str("token_fp", link.TokenFingerprint).
		Int("fetched", result.Fetched).
		Int("appended", result.Appended).
		Int("already_ingested", result.AlreadyIngested).
		Int("held", len(result.Held)).
		Int("errors", len(result.Errors)).
		Msg("Link sync complete")

	return result, nil
}
