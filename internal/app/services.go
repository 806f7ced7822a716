// Package app assembles the repositories and domain services shared by the
// binaries under cmd/.
package app

import (
	"fmt"

	"github.com/rs/zerolog"

	"finhealth/internal/domain/banksync"
	"finhealth/internal/domain/ledger"
	"finhealth/internal/domain/score"
	"finhealth/internal/domain/transaction"
	"finhealth/internal/infrastructure/aggregator"
	"finhealth/internal/infrastructure/crypto"
	"finhealth/internal/infrastructure/postgres"
	"finhealth/internal/shared/config"
)

type Services struct {
	DB *postgres.DB

	Transactions *postgres.TransactionRepository

	Ledger     *ledger.Service
	Scores     *score.Service
	BankSync   *banksync.Service
	Duplicates *transaction.DuplicateCheckService
}

// New connects to the database and builds every service. The caller owns
// Close.
func New(cfg *config.Config, log zerolog.Logger) (*Services, error) {
	db, err := postgres.New(cfg.Database.ConnectionString())
	if err != nil {
		return nil, err
	}

	svcs, err := build(db, cfg, log)
	if err != nil {
		db.Close()
		return nil, err
	}
	return svcs, nil
}

func build(db *postgres.DB, cfg *config.Config, log zerolog.Logger) (*Services, error) {
	encryptor, err := crypto.NewEncryptor(cfg.Encryption.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to create encryptor: %w", err)
	}
	conv, err := banksync.ParseSignConvention(cfg.Aggregator.SignConvention)
	if err != nil {
		return nil, err
	}

	txnRepo := postgres.NewTransactionRepository(db)
	budgetRepo := postgres.NewBudgetRepository(db)
	goalRepo := postgres.NewGoalRepository(db)

	scores := score.NewService(postgres.NewScoreRepository(db), budgetRepo, goalRepo, txnRepo, log.With().Str("component", "score").Logger())
	ledgerSvc := ledger.NewService(db, txnRepo, budgetRepo, goalRepo, scores, log.With().Str("component", "ledger").Logger())

	client := aggregator.NewClient(aggregator.Config{
		BaseURL:     cfg.Aggregator.BaseURL,
		ClientID:    cfg.Aggregator.ClientID,
		Secret:      cfg.Aggregator.Secret,
		ClientName:  cfg.Aggregator.ClientName,
		RedirectURI: cfg.Aggregator.RedirectURI,
		WebhookURL:  cfg.Aggregator.WebhookURL,
		Timeout:     cfg.Aggregator.Timeout,
		MaxRetries:  cfg.Aggregator.MaxRetries,
	})
	bankSync := banksync.NewService(
		client,
		postgres.NewLinkRepository(db),
		postgres.NewAccountRepository(db),
		postgres.NewWebhookRepository(db),
		postgres.NewHeldRepository(db),
		ledgerSvc,
		encryptor,
		banksync.Config{LookbackDays: cfg.Aggregator.LookbackDays, SignConvention: conv},
		log,
	)

	return &Services{
		DB:           db,
		Transactions: txnRepo,
		Ledger:       ledgerSvc,
		Scores:       scores,
		BankSync:     bankSync,
		Duplicates:   transaction.NewDuplicateCheckService(txnRepo, log.With().Str("component", "duplicates").Logger()),
	}, nil
}

func (s *Services) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}
