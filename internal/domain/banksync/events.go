package banksync

import (
	"context"
	"fmt"

	"finhealth/internal/shared/apperr"
)

// ReceiveWebhook stores the raw payload unprocessed before parsing it.
// Callers dispatch ProcessEvent afterwards. A body that does not parse is
// still recorded, with whatever identifiers could be read, and returned
// together with its validation error; it must not be dispatched.
func (s *Service) ReceiveWebhook(ctx context.Context, raw []byte) (*Event, error) {
	itemID, webhookType, webhookCode := peekHeader(raw)

	ev, err := s.events.Record(ctx, &Event{
		ItemID:      itemID,
		WebhookType: webhookType,
		WebhookCode: webhookCode,
		Payload:     raw,
		ReceivedAt:  s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record webhook: %w", err)
	}

	if _, err := ParsePayload(raw); err != nil {
		s.log.Warn().Err(err).Str("event_id", ev.ID).Str("item_id", itemID).Msg("Recorded malformed webhook")
		return ev, err
	}
	return ev, nil
}

// ProcessEvent applies a recorded event once. An error leaves the event
// unprocessed.
func (s *Service) ProcessEvent(ctx context.Context, eventID string) error {
	ev, err := s.events.GetByID(ctx, eventID)
	if err != nil {
		return err
	}
	if ev.Processed {
		return nil
	}

	p, err := ParsePayload(ev.Payload)
	if err != nil {
		return err
	}
	if err := s.apply(ctx, Classify(p)); err != nil {
		return err
	}

	if err := s.events.MarkProcessed(ctx, ev.ID, s.now()); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

func (s *Service) apply(ctx context.Context, notice Notice) error {
	if u, ok := notice.(Unhandled); ok {
		s.log.Info().Str("item_id", u.ItemID).Str("webhook_type", u.WebhookType).Str("webhook_code", u.WebhookCode).Msg("Unhandled webhook")
		return nil
	}

	link, err := s.links.GetByItemID(ctx, notice.Item())
	if err != nil {
		if apperr.IsNotFound(err) {
			s.log.Warn().Str("item_id", notice.Item()).Msg("Webhook for unknown item ignored")
			return nil
		}
		return err
	}

	switch n := notice.(type) {
	case TransactionsAvailable:
		if link.Status == StatusDisconnected {
			s.log.Info().Str("link_id", link.ID).Msg("Skipping sync for disconnected link")
			return nil
		}
		_, err := s.SyncLink(ctx, link)
		return err
	case TransactionsRemoved:
		removed, err := s.ledger.DeleteByExternalIDs(ctx, link.UserID, n.TransactionIDs)
		if err != nil {
			return err
		}
		s.log.Info().Str("link_id", link.ID).Int("requested", len(n.TransactionIDs)).Int("removed", removed).Msg("Removed withdrawn transactions")
		return nil
	case ItemError:
		code := n.ErrorCode
		return s.transition(ctx, link, StatusError, &code)
	case PermissionRevoked:
		return s.transition(ctx, link, StatusDisconnected, nil)
	case PendingExpiration:
		return s.transition(ctx, link, StatusPendingExpiration, nil)
	case LoginRepaired:
		return s.transition(ctx, link, StatusActive, nil)
	}
	return nil
}

// transition applies a lifecycle change. Illegal moves are logged and
// dropped.
func (s *Service) transition(ctx context.Context, link *Link, next Status, errorCode *string) error {
	if link.Status == next {
		return nil
	}
	if !link.Status.CanTransition(next) {
		s.log.Warn().
			Str("link_id", link.ID).
			Str("from", string(link.Status)).
			Str("to", string(next)).
			Msg("Illegal link transition ignored")
		return nil
	}
	if err := s.links.UpdateStatus(ctx, link.ID, next, errorCode); err != nil {
		return fmt.Errorf("failed to update link status: %w", err)
	}
	s.log.Info().Str("link_id", link.ID).Str("from", string(link.Status)).Str("to", string(next)).Msg("Link status changed")
	link.Status = next
	link.ErrorCode = errorCode
	return nil
}

type ReplayResult struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// ReplayPending processes up to limit unprocessed events, oldest first.
// One failing event does not stop the rest.
func (s *Service) ReplayPending(ctx context.Context, limit int) (*ReplayResult, error) {
	pending, err := s.events.ListUnprocessed(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unprocessed events: %w", err)
	}

	result := &ReplayResult{}
	for _, ev := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := s.ProcessEvent(ctx, ev.ID); err != nil {
			result.Failed++
			s.log.Error().Err(err).Str("event_id", ev.ID).Str("webhook_code", ev.WebhookCode).Msg("Webhook replay failed")
			continue
		}
		result.Processed++
	}
	return result, nil
}
