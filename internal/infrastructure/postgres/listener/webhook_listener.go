// Package listener turns PostgreSQL notifications about newly recorded
// webhook events into processing calls.
package listener

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

const (
	ChannelName       = "webhook_recorded"
	reconnectInterval = 5 * time.Second
	pingInterval      = 90 * time.Second
)

// Notification is the payload sent by the webhook_events insert trigger.
type Notification struct {
	EventID string `json:"event_id"`
	ItemID  string `json:"item_id"`
}

// Handler receives each recorded event.
type Handler func(ctx context.Context, n Notification)

type WebhookListener struct {
	connStr    string
	handle     Handler
	log        zerolog.Logger
	shutdownCh chan struct{}
	done       chan struct{}
}

func NewWebhookListener(connStr string, handle Handler, log zerolog.Logger) *WebhookListener {
	return &WebhookListener{
		connStr:    connStr,
		handle:     handle,
		log:        log.With().Str("component", "webhook_listener").Logger(),
		shutdownCh: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (l *WebhookListener) Start(ctx context.Context) {
	go l.listen(ctx)
	l.log.Info().Str("channel", ChannelName).Msg("Webhook listener started")
}

func (l *WebhookListener) Stop() {
	close(l.shutdownCh)
	<-l.done
	l.log.Info().Msg("Webhook listener stopped")
}

func (l *WebhookListener) listen(ctx context.Context) {
	defer close(l.done)

	for {
		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		default:
			l.connectAndListen(ctx)
		}

		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(reconnectInterval):
			l.log.Info().Msg("Reconnecting to PostgreSQL for notifications")
		}
	}
}

func (l *WebhookListener) connectAndListen(ctx context.Context) {
	pl := pq.NewListener(l.connStr, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			l.log.Info().Msg("Connected to notification channel")
		case pq.ListenerEventDisconnected:
			l.log.Warn().Err(err).Msg("Disconnected from notification channel")
		case pq.ListenerEventReconnected:
			l.log.Info().Msg("Reconnected to notification channel")
		case pq.ListenerEventConnectionAttemptFailed:
			l.log.Error().Err(err).Msg("Notification connection attempt failed")
		}
	})
	defer pl.Close()

	if err := pl.Listen(ChannelName); err != nil {
		l.log.Error().Err(err).Str("channel", ChannelName).Msg("Failed to listen")
		return
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		case n := <-pl.Notify:
			if n == nil {
				// connection lost; reconnect
				return
			}
			l.dispatch(ctx, n.Extra)
		case <-ticker.C:
			if err := pl.Ping(); err != nil {
				l.log.Warn().Err(err).Msg("Listener ping failed")
			}
		}
	}
}

func (l *WebhookListener) dispatch(ctx context.Context, extra string) {
	var n Notification
	if err := json.Unmarshal([]byte(extra), &n); err != nil || n.EventID == "" {
		l.log.Warn().Str("payload", extra).Msg("Ignoring malformed notification")
		return
	}
	l.handle(ctx, n)
}
