package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/rentagg/feedbot/internal/api"
	"github.com/rentagg/feedbot/internal/flow"
	"github.com/rentagg/feedbot/internal/i18n"
	"github.com/rentagg/feedbot/internal/models"
	"github.com/rentagg/feedbot/internal/notify"
	"github.com/rentagg/feedbot/internal/records"
	"github.com/rentagg/feedbot/internal/scheduler"
	"github.com/rentagg/feedbot/internal/session"
	"github.com/rentagg/feedbot/internal/sheet"
	"github.com/rentagg/feedbot/internal/telegram"
	"github.com/rentagg/feedbot/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for feedbot state data
	DefaultStateDir = "/var/lib/feedbot"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "feedbot.db"
	// DefaultAPIAddr is the default HTTP listen address
	DefaultAPIAddr = ":8080"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := run(flags); err != nil {
		slog.Error("feedbot failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("feedbot exited successfully")
}

// Config holds environment configuration
type Config struct {
	BotToken      string
	WebhookURL    string
	WebhookSecret string
	DbDriver      string
	DbDSN         string
	StateDir      string
	APIAddr       string
	DefaultLocale string
	DigestCron    string
	Debug         bool

	Admins []int64

	TwilioSID     string
	TwilioToken   string
	TwilioFrom    string
	SMSRecipients []string
}

// Flags holds command line flag values
type Flags struct {
	config Config

	stateDir   *string
	dbDriver   *string
	dbDSN      *string
	apiAddr    *string
	digestCron *string
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		BotToken:      os.Getenv("BOT_TOKEN"),
		WebhookURL:    os.Getenv("WEBHOOK_URL"),
		WebhookSecret: os.Getenv("WEBHOOK_SECRET"),
		DbDriver:      os.Getenv("DB_DRIVER"),
		DbDSN:         os.Getenv("DB_DSN"),
		StateDir:      os.Getenv("FEEDBOT_STATE_DIR"),
		APIAddr:       os.Getenv("API_ADDR"),
		DefaultLocale: os.Getenv("DEFAULT_LOCALE"),
		DigestCron:    os.Getenv("DIGEST_CRON"),
		Debug:         util.ParseBoolEnv("DEBUG", false),
		Admins:        util.ParseInt64ListEnv("ADMINS"),
		TwilioSID:     os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken:   os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:    os.Getenv("TWILIO_FROM_NUMBER"),
		SMSRecipients: util.ParseStringListEnv("SMS_RECIPIENTS"),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No FEEDBOT_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.DbDriver == "" {
		config.DbDriver = "sqlite3"
	}
	if config.APIAddr == "" {
		config.APIAddr = DefaultAPIAddr
	}
	return config
}

// parseCommandLineFlags parses flags, with environment values as defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		config:     config,
		stateDir:   flag.String("state-dir", config.StateDir, "Directory for state data (SQLite database)"),
		dbDriver:   flag.String("db-driver", config.DbDriver, "Database driver: sqlite3 or postgres"),
		dbDSN:      flag.String("db-dsn", config.DbDSN, "Database DSN (default: SQLite file under state dir)"),
		apiAddr:    flag.String("api-addr", config.APIAddr, "HTTP listen address"),
		digestCron: flag.String("digest-cron", config.DigestCron, "Cron expression for the observer stats digest (empty disables)"),
	}
	flag.Parse()
	return flags
}

func run(flags Flags) error {
	config := flags.config
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Row store backend.
	dsn := *flags.dbDSN
	if dsn == "" && *flags.dbDriver == "sqlite3" {
		dsn = *flags.stateDir + "/" + DefaultDBFileName
	}
	var (
		backend sheet.Backend
		err     error
	)
	switch *flags.dbDriver {
	case "postgres":
		backend, err = sheet.NewPostgresBackend(sheet.WithDSN(dsn))
	default:
		backend, err = sheet.NewSQLiteBackend(sheet.WithDSN(dsn))
	}
	if err != nil {
		return err
	}
	defer backend.Close()

	adapter := sheet.NewAdapter(backend)
	coord := records.NewCoordinator(adapter)

	// Language preference: default locale from env, RU otherwise.
	defaultLoc := i18n.DefaultLocale
	if config.DefaultLocale != "" {
		if loc, err := models.ParseLocale(config.DefaultLocale); err == nil {
			defaultLoc = loc
		} else {
			slog.Warn("DEFAULT_LOCALE not recognized, keeping default", "value", config.DefaultLocale)
		}
	}
	langs := session.NewLanguageResolver(coord, defaultLoc)

	// Telegram transport.
	msg, err := telegram.NewService(
		telegram.WithToken(config.BotToken),
		telegram.WithWebhook(config.WebhookURL, config.WebhookSecret),
		telegram.WithDebug(config.Debug),
	)
	if err != nil {
		return err
	}
	if err := msg.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := msg.Stop(); err != nil {
			slog.Warn("Failed to stop Telegram service", "error", err)
		}
	}()

	// Observer notifications, with an optional SMS side channel.
	var sms *notify.SMSChannel
	if config.TwilioSID != "" && len(config.SMSRecipients) > 0 {
		sms, err = notify.NewSMSChannel(
			notify.WithAccountSID(config.TwilioSID),
			notify.WithAuthToken(config.TwilioToken),
			notify.WithFrom(config.TwilioFrom),
			notify.WithRecipients(config.SMSRecipients),
		)
		if err != nil {
			slog.Warn("SMS channel disabled", "error", err)
			sms = nil
		}
	}
	notifier := notify.NewNotifier(msg, config.Admins, sms)

	engine := flow.NewEngine(flow.Dependencies{
		Sessions:  session.NewMemoryStore(),
		Languages: langs,
		Messenger: msg,
		Records:   coord,
		Notifier:  notifier,
	})

	// Optional periodic stats digest to observers.
	if *flags.digestCron != "" && notifier.HasObservers() {
		sched := scheduler.NewScheduler()
		defer sched.Stop()
		if err := sched.AddJob(*flags.digestCron, func() {
			engine.Digest(context.Background())
		}); err != nil {
			return err
		}
	}

	server := api.NewServer(engine,
		api.WithAddr(*flags.apiAddr),
		api.WithWebhookSecret(config.WebhookSecret),
	)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Run() }()
	slog.Info("feedbot running", "addr", *flags.apiAddr, "driver", *flags.dbDriver, "observers", len(config.Admins))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	return server.Shutdown(context.Background())
}
