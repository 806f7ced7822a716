package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"finhealth/internal/app"
	"finhealth/internal/domain/transaction"
	"finhealth/internal/infrastructure/postgres"
	"finhealth/internal/shared/config"
	"finhealth/internal/shared/logger"
)

const usage = `finhealth admin CLI

Usage:
  admin <command> [options]

Commands:
  migrate               Apply or revert database migrations (up|down|version)
  duplicate-check       Re-run duplicate detection over existing transactions
  reconcile-aggregates  Recompute category spending from the ledger and repair drift
  replay-webhooks       Apply recorded webhook events that were never processed
  recompute-scores      Recompute cached financial-health scores

Examples:
  admin migrate up
  admin duplicate-check --user-id=6f1c2a,90be11
  admin reconcile-aggregates --all --workers=8
  admin replay-webhooks --limit=500
  admin recompute-scores --all --timeout=10m
`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	var err error
	switch cmd := os.Args[1]; cmd {
	case "migrate":
		err = runMigrate(os.Args[2:])
	case "duplicate-check":
		err = runDuplicateCheck(os.Args[2:])
	case "reconcile-aggregates":
		err = runReconcile(os.Args[2:])
	case "replay-webhooks":
		err = runReplay(os.Args[2:])
	case "recompute-scores":
		err = runRecomputeScores(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Println(usage)
	default:
		fmt.Printf("Unknown command: %s\n\n", cmd)
		fmt.Println(usage)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	return logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format}).
		With().Str("service", "admin").Logger()
}

func runMigrate(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: admin migrate up|down|version")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := newLogger(cfg)

	switch args[0] {
	case postgres.MigrateUp, postgres.MigrateDown:
		if err := postgres.RunMigrations(cfg.Database.URL(), args[0]); err != nil {
			return err
		}
		log.Info().Str("direction", args[0]).Msg("Migrations complete")
	case "version":
		version, dirty, err := postgres.MigrationVersion(cfg.Database.URL())
		if err != nil {
			return err
		}
		fmt.Printf("version=%d dirty=%v\n", version, dirty)
	default:
		return fmt.Errorf("unknown migrate direction %q", args[0])
	}
	return nil
}

// userFlags are shared by the per-user maintenance commands.
type userFlags struct {
	fs       *flag.FlagSet
	userIDs  *string
	all      *bool
	workers  *int
	timeout  *time.Duration
	examples []string
}

func newUserFlags(name string, examples ...string) *userFlags {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	uf := &userFlags{
		fs:       fs,
		userIDs:  fs.String("user-id", "", "User ID(s) to process (comma-separated for multiple)"),
		all:      fs.Bool("all", false, "Process every user with transactions"),
		workers:  fs.Int("workers", transaction.DefaultWorkerCount, "Number of concurrent workers"),
		timeout:  fs.Duration("timeout", 30*time.Minute, "Timeout for the operation (e.g., 5m, 1h)"),
		examples: examples,
	}
	fs.Usage = func() {
		fmt.Printf("Usage: admin %s [options]\n\nOptions:\n", name)
		fs.PrintDefaults()
		fmt.Println("\nExamples:")
		for _, e := range uf.examples {
			fmt.Println("  " + e)
		}
	}
	return uf
}

func (uf *userFlags) parse(args []string) error {
	if err := uf.fs.Parse(args); err != nil {
		return err
	}
	if *uf.userIDs == "" && !*uf.all {
		uf.fs.Usage()
		return fmt.Errorf("must specify --user-id or --all")
	}
	return nil
}

func (uf *userFlags) resolve(ctx context.Context, svcs *app.Services) ([]string, error) {
	if *uf.all {
		return svcs.Transactions.ListUserIDs(ctx)
	}
	var ids []string
	for _, p := range strings.Split(*uf.userIDs, ",") {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	return ids, nil
}

// withServices loads config, connects, and runs fn under the command timeout.
func withServices(timeout time.Duration, fn func(ctx context.Context, svcs *app.Services, log zerolog.Logger) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := newLogger(cfg)

	svcs, err := app.New(cfg, log)
	if err != nil {
		return err
	}
	defer svcs.Close()
	log.Info().Msg("Connected to database")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	err = fn(ctx, svcs, log)
	log.Info().Dur("elapsed", time.Since(start)).Msg("Done")
	return err
}

// forEachUser runs fn for every user with at most workers in flight and
// collects per-user failures instead of stopping at the first.
func forEachUser(ctx context.Context, userIDs []string, workers int, fn func(ctx context.Context, userID string) error) map[string]error {
	var mu sync.Mutex
	failures := map[string]error{}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for _, id := range userIDs {
		g.Go(func() error {
			if err := fn(ctx, id); err != nil {
				mu.Lock()
				failures[id] = err
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()
	return failures
}

func runDuplicateCheck(args []string) error {
	uf := newUserFlags("duplicate-check",
		"admin duplicate-check --user-id=6f1c2a",
		"admin duplicate-check --all --workers=8 --timeout=1h")
	if err := uf.parse(args); err != nil {
		return err
	}

	return withServices(*uf.timeout, func(ctx context.Context, svcs *app.Services, log zerolog.Logger) error {
		userIDs, err := uf.resolve(ctx, svcs)
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}
		if len(userIDs) == 0 {
			log.Info().Msg("No users to process")
			return nil
		}

		log.Info().Int("users", len(userIDs)).Int("workers", *uf.workers).Msg("Starting duplicate check")
		dup := transaction.NewDuplicateCheckServiceWithWorkers(svcs.Transactions, log, *uf.workers)
		printDuplicateResult(dup.CheckUsers(ctx, userIDs))
		return nil
	})
}

func printDuplicateResult(result *transaction.DuplicateCheckResult) {
	fmt.Printf("  Transactions checked: %d\n", result.TransactionsChecked)
	fmt.Printf("  Duplicates found:     %d\n", result.DuplicatesFound)
	fmt.Printf("  Duplicates marked:    %d\n", result.DuplicatesMarked)
	printErrors(result.Errors)
}

func printErrors(errs []string) {
	if len(errs) == 0 {
		return
	}
	fmt.Printf("  Errors:               %d\n", len(errs))
	for i, e := range errs {
		if i >= 5 {
			fmt.Printf("    ... and %d more errors\n", len(errs)-5)
			break
		}
		fmt.Printf("    - %s\n", e)
	}
}

func failureList(failures map[string]error) []string {
	out := make([]string, 0, len(failures))
	for id, err := range failures {
		out = append(out, fmt.Sprintf("user %s: %v", id, err))
	}
	return out
}

func runReconcile(args []string) error {
	uf := newUserFlags("reconcile-aggregates",
		"admin reconcile-aggregates --user-id=6f1c2a",
		"admin reconcile-aggregates --all --workers=8")
	if err := uf.parse(args); err != nil {
		return err
	}

	return withServices(*uf.timeout, func(ctx context.Context, svcs *app.Services, log zerolog.Logger) error {
		userIDs, err := uf.resolve(ctx, svcs)
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}

		var mu sync.Mutex
		var checked, repaired int
		failures := forEachUser(ctx, userIDs, *uf.workers, func(ctx context.Context, userID string) error {
			res, err := svcs.Ledger.ReconcileAggregates(ctx, userID)
			if err != nil {
				return err
			}
			mu.Lock()
			checked += res.Checked
			repaired += res.Repaired
			mu.Unlock()
			return nil
		})

		fmt.Printf("  Users:                %d\n", len(userIDs))
		fmt.Printf("  Categories checked:   %d\n", checked)
		fmt.Printf("  Categories repaired:  %d\n", repaired)
		printErrors(failureList(failures))
		return nil
	})
}

func runRecomputeScores(args []string) error {
	uf := newUserFlags("recompute-scores",
		"admin recompute-scores --user-id=6f1c2a,90be11",
		"admin recompute-scores --all --timeout=10m")
	if err := uf.parse(args); err != nil {
		return err
	}

	return withServices(*uf.timeout, func(ctx context.Context, svcs *app.Services, log zerolog.Logger) error {
		userIDs, err := uf.resolve(ctx, svcs)
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}

		failures := forEachUser(ctx, userIDs, *uf.workers, func(ctx context.Context, userID string) error {
			s, err := svcs.Scores.Recompute(ctx, userID)
			if err != nil {
				return err
			}
			log.Debug().Str("user_id", userID).Int("score", s.Value).Msg("Score recomputed")
			return nil
		})

		fmt.Printf("  Scores recomputed:    %d\n", len(userIDs)-len(failures))
		printErrors(failureList(failures))
		return nil
	})
}

func runReplay(args []string) error {
	fs := flag.NewFlagSet("replay-webhooks", flag.ExitOnError)
	limit := fs.Int("limit", 100, "Maximum number of events to replay")
	timeout := fs.Duration("timeout", 10*time.Minute, "Timeout for the operation")
	if err := fs.Parse(args); err != nil {
		return err
	}

	return withServices(*timeout, func(ctx context.Context, svcs *app.Services, log zerolog.Logger) error {
		res, err := svcs.BankSync.ReplayPending(ctx, *limit)
		if err != nil {
			return err
		}
		fmt.Printf("  Events processed:     %d\n", res.Processed)
		fmt.Printf("  Events failed:        %d\n", res.Failed)
		return nil
	})
}
