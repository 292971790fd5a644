// Package bootstrap wires configuration, storage, the ledger, notification and
// services together. The server and grievancectl share it.
package bootstrap

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"

	"surajya/clock"
	"surajya/config"
	"surajya/ledger"
	"surajya/metrics"
	"surajya/notification"
	"surajya/repository"
	"surajya/schema"
	"surajya/service"
	"surajya/worker"
)

// App holds every long-lived dependency of the grievance service.
type App struct {
	Config   *config.Config
	DB       *sql.DB
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	Grievances      *repository.GrievanceRepository
	Rules           *repository.PriorityRuleRepository
	Reconciliations *repository.ReconciliationRepository
	Audit           *repository.AuditRepository

	Ledger     ledger.Ledger
	Sender     notification.OTPSender
	Escalation *service.EscalationService
	Resolution *service.ResolutionService
	Service    *service.GrievanceService
}

// OpenDatabase opens and pings the configured database, creates missing tables
// and verifies the columns the service depends on.
func OpenDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	dialect := schema.Dialect(cfg.Driver)

	db, err := sql.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if dialect == schema.SQLite {
		// one writer at a time; sqlite serializes writes anyway
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	log.Printf("[SCHEMA] %s connection established", cfg.Driver)

	if err := schema.InitializeDatabase(db, dialect); err != nil {
		db.Close()
		return nil, err
	}
	if err := schema.ValidateRequiredColumns(db, dialect, nil); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// New builds the repositories and services on top of db. reg may be nil.
func New(cfg *config.Config, db *sql.DB, reg *prometheus.Registry) *App {
	clk := clock.Real()
	app := &App{
		Config:          cfg,
		DB:              db,
		Registry:        reg,
		Grievances:      repository.NewGrievanceRepository(db),
		Rules:           repository.NewPriorityRuleRepository(db, clk),
		Reconciliations: repository.NewReconciliationRepository(db),
		Audit:           repository.NewAuditRepository(db),
		Ledger:          NewLedger(cfg.Ledger),
		Sender:          NewOTPSender(cfg),
	}
	if reg != nil {
		app.Metrics = metrics.New(reg)
	}

	app.Escalation = service.NewEscalationService(app.Grievances, app.Audit, app.Metrics, clk, service.EscalationConfig{
		Thresholds: service.DefaultEscalationConfig().Thresholds,
		Cooldown:   cfg.Escalation.Cooldown,
		Workers:    cfg.Escalation.Workers,
	})
	app.Resolution = service.NewResolutionService(app.Grievances, app.Ledger, app.Sender, app.Reconciliations, app.Audit, app.Metrics, clk, service.ResolutionConfig{
		OTPTTL:     cfg.Resolution.OTPTTL,
		Lease:      cfg.Resolution.Lease,
		BcryptCost: cfg.Resolution.BcryptCost,
	})
	app.Service = service.NewGrievanceService(
		app.Grievances,
		app.Rules,
		app.Reconciliations,
		app.Audit,
		app.Ledger,
		app.Escalation,
		app.Resolution,
		app.Metrics,
		clk,
	)
	return app
}

// Close releases the database.
func (a *App) Close() error {
	return a.DB.Close()
}

// Workers returns the escalation timers: a primary and, unless its interval
// is zero, a backup. Both run the same pass.
func (a *App) Workers() []*worker.EscalationWorker {
	workers := []*worker.EscalationWorker{
		worker.NewEscalationWorker("primary", a.Service, a.Config.Escalation.PrimaryInterval),
	}
	if a.Config.Escalation.BackupInterval > 0 {
		workers = append(workers, worker.NewEscalationWorker("backup", a.Service, a.Config.Escalation.BackupInterval))
	}
	return workers
}

// NewLedger returns the HTTP ledger client, or an in-memory ledger when no URL is configured.
func NewLedger(cfg config.LedgerConfig) ledger.Ledger {
	if cfg.URL == "" {
		log.Printf("[LEDGER] LEDGER_URL not set, using in-memory ledger (records are lost on restart)")
		return ledger.NewMemoryLedger()
	}
	log.Printf("[LEDGER] using ledger gateway at %s", cfg.URL)
	return ledger.NewHTTPClient(cfg.URL, cfg.APIKey, cfg.Timeout)
}

// NewOTPSender returns the OTP mailer over SendGrid, or over the log sender
// when no API key is configured.
func NewOTPSender(cfg *config.Config) notification.OTPSender {
	var sender notification.Sender
	if cfg.Notification.SendGridAPIKey == "" {
		log.Printf("[OTP] SENDGRID_API_KEY not set, OTP mails are logged only")
		sender = &notification.LogSender{ShowBody: cfg.Resolution.OTPDebug}
	} else {
		shadow := ""
		if cfg.Notification.EmailMode == "shadow" {
			shadow = cfg.Notification.ShadowAddress
			log.Printf("[OTP] shadow mode: every OTP mail goes to %s", shadow)
		}
		sender = notification.NewEmailSender(notification.EmailConfig{
			APIKey:        cfg.Notification.SendGridAPIKey,
			ShadowAddress: shadow,
			FromEmail:     cfg.Notification.SendGridFromEmail,
			FromName:      cfg.Notification.SendGridFromName,
		})
	}
	return notification.NewOTPMailer(sender, cfg.Resolution.OTPTTL)
}
