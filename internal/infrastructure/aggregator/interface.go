package aggregator

import "context"

// ClientInterface is the subset of the aggregator API the sync reconciler uses.
type ClientInterface interface {
	CreateLinkToken(ctx context.Context, userID string) (*LinkTokenResponse, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (*ExchangeResponse, error)
	GetItem(ctx context.Context, accessToken string) (*ItemResponse, error)
	GetAccounts(ctx context.Context, accessToken string) (*AccountsResponse, error)
	GetTransactions(ctx context.Context, accessToken, startDate, endDate string) (*TransactionsResponse, error)
	RemoveItem(ctx context.Context, accessToken string) error
}
