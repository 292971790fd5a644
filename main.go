package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"surajya/bootstrap"
	"surajya/config"
	"surajya/routes"
	"surajya/worker"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	// Load configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.Resolution.OTPDebug {
		log.Printf("[OTP] OTP_DEBUG enabled: codes are returned in API responses. Never enable in production.")
	}

	db, err := bootstrap.OpenDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app := bootstrap.New(cfg, db, reg)

	// Escalation timers. Both run the same idempotent pass.
	workers := app.Workers()
	if cfg.Escalation.Disabled {
		log.Printf("[WORKER] escalation timers disabled (ESCALATION_WORKER_DISABLED); use the admin endpoint or grievancectl")
	} else {
		for _, w := range workers {
			w.Start()
		}
	}

	router := routes.SetupRoutes(app.Service, app.Rules, workers, routes.Options{
		JWTSecret:  cfg.Auth.JWTSecret,
		AdminToken: cfg.Auth.AdminToken,
		OTPDebug:   cfg.Resolution.OTPDebug,
		Gatherer:   reg,
	})

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           routes.WithCORS(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down...")
	stopWorkers(workers)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}

func stopWorkers(workers []*worker.EscalationWorker) {
	for _, w := range workers {
		w.Stop()
	}
}
