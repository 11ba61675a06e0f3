package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"booksync/internal/bookings"
	"booksync/internal/checkout"
	"booksync/internal/config"
	"booksync/internal/credentials"
	"booksync/internal/export"
	"booksync/internal/google"
	"booksync/internal/models"
	"booksync/internal/syncer"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "booksync",
		Usage: "Reconcile consultation bookings with Google Calendar and drive checkout.",
		Commands: []*cli.Command{
			authCommand(),
			syncCommand(),
			exportCommand(),
			payCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authorize calendar access through the backend handshake.",
		Action: func(c *cli.Context) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			tracker := credentials.NewTracker(logger, credentials.NewFileStore(cfg.CredentialFile), 0)
			authClient := google.NewAuthClient(logger, cfg.BackendURL)

			authURL, err := authClient.RequestAccess(c.Context, cfg.UserEmail)
			if err != nil {
				return fmt.Errorf("failed to start authorization: %w", err)
			}
			fmt.Printf("Go to the following link in your browser and approve access:\n%v\n", authURL)

			reader := bufio.NewReader(os.Stdin)
			fmt.Print("Enter the code from the redirect: ")
			code, _ := reader.ReadString('\n')
			fmt.Print("Enter the state from the redirect: ")
			state, _ := reader.ReadString('\n')

			token, err := authClient.CompleteCallback(c.Context, strings.TrimSpace(code), strings.TrimSpace(state))
			if err != nil {
				return fmt.Errorf("authorization callback failed: %w", err)
			}
			if err := tracker.SetCredential(token); err != nil {
				return fmt.Errorf("failed to store credential: %w", err)
			}

			logger.Info("Calendar access authorized.", "file", cfg.CredentialFile)
			return nil
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Produce the merged booking view.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "once", Usage: "Run one sync cycle and exit."},
			&cli.IntFlag{Name: "watch", Value: 300, Usage: "Run sync every N seconds. Overrides --once."},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			s, store, tracker, err := buildSyncer(c.Context, cfg, logger)
			if err != nil {
				return err
			}
			tracker.Start(c.Context)

			if err := store.SeedIfEmpty(); err != nil {
				return fmt.Errorf("failed to seed booking store: %w", err)
			}

			// --watch flag takes precedence
			if c.IsSet("watch") {
				interval := time.Duration(c.Int("watch")) * time.Second
				logger.Info("Starting watcher.", "interval", interval)
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for ; true; <-ticker.C {
					runSync(c.Context, logger, s)
				}
				return nil
			}

			logger.Info("Running a single sync cycle.")
			view, err := s.Sync(c.Context)
			if err != nil {
				return describeSyncError(err)
			}
			printView(view)
			return nil
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export the merged booking view as an iCalendar file.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Value: "bookings.ics", Usage: "Output file path."},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			s, store, _, err := buildSyncer(c.Context, cfg, logger)
			if err != nil {
				return err
			}
			if err := store.SeedIfEmpty(); err != nil {
				return fmt.Errorf("failed to seed booking store: %w", err)
			}

			view, err := s.Sync(c.Context)
			if err != nil {
				return describeSyncError(err)
			}

			f, err := os.Create(c.String("out"))
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer f.Close()

			if err := export.WriteCalendar(f, view); err != nil {
				return fmt.Errorf("export failed: %w", err)
			}
			logger.Info("Exported merged view.", "file", c.String("out"), "bookings", len(view))
			return nil
		},
	}
}

func payCommand() *cli.Command {
	return &cli.Command{
		Name:  "pay",
		Usage: "Drive a checkout session for a consultation payment.",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "amount", Value: 375, Usage: "Amount in major currency units."},
			&cli.StringFlag{Name: "currency", Value: "USD"},
			&cli.StringFlag{Name: "description", Value: "30 minute consultation"},
			&cli.StringFlag{Name: "name", Required: true, Usage: "Client name."},
			&cli.StringFlag{Name: "email", Required: true, Usage: "Client email."},
			&cli.BoolFlag{Name: "manual", Usage: "Acknowledge a payment completed on the hosted page."},
		},
		Action: func(c *cli.Context) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			loader := checkout.NewScriptLoader(logger, cfg.CheckoutScriptURL, nil)
			params := checkout.DefaultParams()
			params.HostedPageURL = cfg.HostedPageURL

			session := checkout.NewSession(logger, loader, checkout.Config{
				PublicKey:   cfg.CheckoutPublicKey,
				AmountMinor: checkout.MinorUnits(c.Float64("amount")),
				Currency:    c.String("currency"),
				Description: c.String("description"),
				Customer:    checkout.Customer{Name: c.String("name"), Email: c.String("email")},
			}, params)
			defer session.Close()

			if url := session.HostedPageURL(); url != "" {
				fmt.Printf("Secure payment page: %v\n", url)
			}

			session.Start()
			if c.Bool("manual") {
				session.ManualComplete()
			}

			out := <-session.Done()
			switch out.Status {
			case checkout.StatusSucceeded:
				fmt.Printf("Payment complete: %s\n", out.PaymentID)
				return nil
			case checkout.StatusCancelled:
				logger.Info("Payment cancelled.")
				return nil
			default:
				return fmt.Errorf("payment failed (%s): %s", out.Reason, out.Detail)
			}
		},
	}
}

// runSync logs failures instead of stopping the watcher; a sync error is
// never fatal and the next tick retries.
func runSync(ctx context.Context, logger *slog.Logger, s *syncer.Syncer) {
	view, err := s.Sync(ctx)
	if err != nil {
		logger.Error("Sync cycle failed", "error", describeSyncError(err))
		return
	}
	printView(view)
}

// describeSyncError keeps the two failure classes distinct for the user:
// an expired authorization needs the auth command, anything else a retry.
func describeSyncError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, google.ErrAuthExpired) {
		return fmt.Errorf("calendar authorization expired or missing; run the 'auth' command: %w", err)
	}
	var transient *google.TransientError
	if errors.As(err, &transient) {
		return fmt.Errorf("calendar sync failed, try again: %w", err)
	}
	return err
}

func printView(view []models.Booking) {
	if len(view) == 0 {
		fmt.Println("No bookings.")
		return
	}
	fmt.Printf("%-24s %-22s %-30s %-26s %s\n", "SLOT", "NAME", "EMAIL", "PACKAGE", "STAGE")
	for _, b := range view {
		marker := ""
		if b.RemoteEventID != "" {
			marker = " *"
		}
		fmt.Printf("%-24s %-22s %-30s %-26s %s%s\n", b.Slot, b.Name, b.Email, b.Package, b.Stage, marker)
	}
	fmt.Println("\n* linked to a calendar event")
}

func buildSyncer(ctx context.Context, cfg config.App, logger *slog.Logger) (*syncer.Syncer, *bookings.Store, *credentials.Tracker, error) {
	tracker := credentials.NewTracker(logger,
		credentials.NewFileStore(cfg.CredentialFile),
		time.Duration(cfg.CredentialPollSeconds)*time.Second)

	calClient, err := google.NewClient(ctx, logger, tracker, cfg.CalendarID)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create calendar client: %w", err)
	}

	loc, err := time.LoadLocation(cfg.PrimaryTimezone)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("invalid timezone '%s': %w", cfg.PrimaryTimezone, err)
	}

	store := bookings.NewStore(logger, cfg.BookingsFile)
	return syncer.New(logger, calClient, store, loc), store, tracker, nil
}

func setup() (config.App, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.App{}, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, setupLogger(cfg.LogLevel), nil
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
