package aggregator

import (
	"time"

	"github.com/shopspring/decimal"
)

type linkUser struct {
	ClientUserID string `json:"client_user_id"`
}

type linkTokenCreateRequest struct {
	ClientName   string   `json:"client_name"`
	Language     string   `json:"language"`
	CountryCodes []string `json:"country_codes"`
	User         linkUser `json:"user"`
	Products     []string `json:"products"`
	Webhook      string   `json:"webhook,omitempty"`
	RedirectURI  string   `json:"redirect_uri,omitempty"`
}

type LinkTokenResponse struct {
	LinkToken  string    `json:"link_token"`
	Expiration time.Time `json:"expiration"`
	RequestID  string    `json:"request_id"`
}

type publicTokenExchangeRequest struct {
	PublicToken string `json:"public_token"`
}

type ExchangeResponse struct {
	AccessToken string `json:"access_token"`
	ItemID      string `json:"item_id"`
	RequestID   string `json:"request_id"`
}

type accessTokenRequest struct {
	AccessToken string `json:"access_token"`
}

type Item struct {
	ItemID        string     `json:"item_id"`
	InstitutionID string     `json:"institution_id"`
	Webhook       string     `json:"webhook"`
	Error         *ErrorBody `json:"error"`
}

type ItemResponse struct {
	Item      Item   `json:"item"`
	RequestID string `json:"request_id"`
}

type Balances struct {
	Available       *decimal.Decimal `json:"available"`
	Current         *decimal.Decimal `json:"current"`
	ISOCurrencyCode *string          `json:"iso_currency_code"`
}

type Account struct {
	AccountID    string   `json:"account_id"`
	Name         string   `json:"name"`
	OfficialName *string  `json:"official_name"`
	Type         string   `json:"type"`
	Subtype      *string  `json:"subtype"`
	Mask         *string  `json:"mask"`
	Balances     Balances `json:"balances"`
}

type AccountsResponse struct {
	Accounts  []Account `json:"accounts"`
	Item      Item      `json:"item"`
	RequestID string    `json:"request_id"`
}

type PersonalFinanceCategory struct {
	Primary  string `json:"primary"`
	Detailed string `json:"detailed"`
}

// Transaction is one posted or pending bank transaction. Amount keeps the
// aggregator's sign; interpreting it is the caller's job.
type Transaction struct {
	TransactionID           string                   `json:"transaction_id"`
	AccountID               string                   `json:"account_id"`
	Amount                  decimal.Decimal          `json:"amount"`
	ISOCurrencyCode         *string                  `json:"iso_currency_code"`
	Date                    string                   `json:"date"`
	AuthorizedDate          *string                  `json:"authorized_date"`
	Name                    string                   `json:"name"`
	MerchantName            *string                  `json:"merchant_name"`
	Category                []string                 `json:"category"`
	PersonalFinanceCategory *PersonalFinanceCategory `json:"personal_finance_category"`
	Pending                 bool                     `json:"pending"`
	PendingTransactionID    *string                  `json:"pending_transaction_id"`
}

type transactionsGetOptions struct {
	Count  int `json:"count"`
	Offset int `json:"offset"`
}

type transactionsGetRequest struct {
	AccessToken string                 `json:"access_token"`
	StartDate   string                 `json:"start_date"`
	EndDate     string                 `json:"end_date"`
	Options     transactionsGetOptions `json:"options"`
}

type TransactionsResponse struct {
	Accounts          []Account     `json:"accounts"`
	Transactions      []Transaction `json:"transactions"`
	TotalTransactions int           `json:"total_transactions"`
	Item              Item          `json:"item"`
	RequestID         string        `json:"request_id"`
}

type removeResponse struct {
	RequestID string `json:"request_id"`
}

// ErrorBody is the aggregator's error envelope.
type ErrorBody struct {
	ErrorType      string  `json:"error_type"`
	ErrorCode      string  `json:"error_code"`
	ErrorMessage   string  `json:"error_message"`
	DisplayMessage *string `json:"display_message"`
	RequestID      string  `json:"request_id"`
}
