package aggregator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"finhealth/internal/shared/apperr"
)

const (
	defaultTimeout      = 15 * time.Second
	defaultBackoff      = 250 * time.Millisecond
	transactionsPerPage = 500

	linkTokenCreatePath     = "/link/token/create"
	publicTokenExchangePath = "/item/public_token/exchange"
	itemGetPath             = "/item/get"
	itemRemovePath          = "/item/remove"
	accountsGetPath         = "/accounts/get"
	transactionsGetPath     = "/transactions/get"

	clientIDHeader = "PLAID-CLIENT-ID"
	secretHeader   = "PLAID-SECRET"
)

type Config struct {
	BaseURL     string
	ClientID    string
	Secret      string
	ClientName  string
	RedirectURI string
	WebhookURL  string
	Timeout     time.Duration
	MaxRetries  int
}

// Client talks to the bank aggregator over JSON POSTs. Only read calls are
// retried; token exchange and item removal are attempted once.
type Client struct {
	httpClient *http.Client
	cfg        Config
	backoff    time.Duration
}

var _ ClientInterface = (*Client)(nil)

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cfg:     cfg,
		backoff: defaultBackoff,
	}
}

func (c *Client) CreateLinkToken(ctx context.Context, userID string) (*LinkTokenResponse, error) {
	req := linkTokenCreateRequest{
		ClientName:   c.cfg.ClientName,
		Language:     "en",
		CountryCodes: []string{"US"},
		User:         linkUser{ClientUserID: userID},
		Products:     []string{"transactions"},
		Webhook:      c.cfg.WebhookURL,
		RedirectURI:  c.cfg.RedirectURI,
	}
	var resp LinkTokenResponse
	if err := c.post(ctx, "link/token/create", linkTokenCreatePath, req, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (*ExchangeResponse, error) {
	var resp ExchangeResponse
	if err := c.post(ctx, "item/public_token/exchange", publicTokenExchangePath, publicTokenExchangeRequest{PublicToken: publicToken}, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetItem(ctx context.Context, accessToken string) (*ItemResponse, error) {
	var resp ItemResponse
	if err := c.post(ctx, "item/get", itemGetPath, accessTokenRequest{AccessToken: accessToken}, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetAccounts(ctx context.Context, accessToken string) (*AccountsResponse, error) {
	var resp AccountsResponse
	if err := c.post(ctx, "accounts/get", accountsGetPath, accessTokenRequest{AccessToken: accessToken}, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetTransactions pages through every transaction dated within
// [startDate, endDate].
func (c *Client) GetTransactions(ctx context.Context, accessToken, startDate, endDate string) (*TransactionsResponse, error) {
	var all *TransactionsResponse
	offset := 0
	for {
		req := transactionsGetRequest{
			AccessToken: accessToken,
			StartDate:   startDate,
			EndDate:     endDate,
			Options:     transactionsGetOptions{Count: transactionsPerPage, Offset: offset},
		}
		var page TransactionsResponse
		if err := c.post(ctx, "transactions/get", transactionsGetPath, req, &page, true); err != nil {
			return nil, err
		}

		if all == nil {
			all = &page
		} else {
			all.Transactions = append(all.Transactions, page.Transactions...)
		}
		offset += len(page.Transactions)
		if len(page.Transactions) == 0 || offset >= page.TotalTransactions {
			return all, nil
		}
	}
}

func (c *Client) RemoveItem(ctx context.Context, accessToken string) error {
	var resp removeResponse
	return c.post(ctx, "item/remove", itemRemovePath, accessTokenRequest{AccessToken: accessToken}, &resp, false)
}

func (c *Client) post(ctx context.Context, op, path string, payload, out any, retryable bool) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", op, err)
	}

	attempts := 1
	if retryable {
		attempts += c.cfg.MaxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			wait := c.backoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return &apperr.ExternalServiceError{Operation: op, Err: ctx.Err()}
			case <-time.After(wait):
			}
		}

		lastErr = c.do(ctx, op, path, body, out)
		if lastErr == nil {
			return nil
		}
		var ext *apperr.ExternalServiceError
		if !errors.As(lastErr, &ext) || !ext.Retryable {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) do(ctx context.Context, op, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(clientIDHeader, c.cfg.ClientID)
	req.Header.Set(secretHeader, c.cfg.Secret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &apperr.ExternalServiceError{Operation: op, Retryable: ctx.Err() == nil, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &apperr.ExternalServiceError{Operation: op, StatusCode: resp.StatusCode, Retryable: true, Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		ext := &apperr.ExternalServiceError{
			Operation:  op,
			StatusCode: resp.StatusCode,
			Retryable:  resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests,
		}
		var eb ErrorBody
		if err := json.Unmarshal(respBody, &eb); err == nil {
			ext.ErrorType = eb.ErrorType
			ext.ErrorCode = eb.ErrorCode
			ext.ErrorMessage = eb.ErrorMessage
			ext.RequestID = eb.RequestID
		}
		return ext
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &apperr.ExternalServiceError{Operation: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to unmarshal response: %w", err)}
	}
	return nil
}
