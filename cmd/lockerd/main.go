package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"luggage-locker-backend/config"
	"luggage-locker-backend/internal/api"
	"luggage-locker-backend/internal/db"
	"luggage-locker-backend/internal/events"
	"luggage-locker-backend/internal/facility"
	"luggage-locker-backend/internal/model"
	"luggage-locker-backend/internal/monitor"
	"luggage-locker-backend/internal/mw"
	"luggage-locker-backend/internal/notification"
	"luggage-locker-backend/internal/receipt"
	"luggage-locker-backend/internal/stats"
	"luggage-locker-backend/internal/store"
)

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "lockerd ", log.LstdFlags)

	// Secrets may live in a local .env during development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Printf("failed to read .env: %v", err)
	}

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Printf("no configuration at %s; using in-memory defaults", configPath)
		cfg = config.Default()
	case err != nil:
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	default:
		logger.Printf("configuration loaded successfully from %s", configPath)
	}

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	var appStore store.Store
	if cfg.Database.Driver == "memory" {
		appStore = store.NewMemoryStore()
		logger.Println("using in-memory store; data is lost on restart")
	} else {
		gormDB, err := db.Init(&cfg.Database)
		if err != nil {
			logger.Fatalf("failed to initialize database: %v", err)
		}
		appStore = store.NewGormStore(gormDB)
		logger.Println("database initialized successfully")
	}

	bus := events.NewBus()
	fac := facility.New(appStore, bus, facility.Options{
		TagPrefix:    cfg.Facility.TagPrefix,
		Location:     cfg.Facility.Location,
		OverdueGrace: cfg.Facility.OverdueGrace,
	})

	seeds := make([]facility.LockerInput, 0, len(cfg.Facility.Lockers))
	for _, seed := range cfg.Facility.Lockers {
		seeds = append(seeds, facility.LockerInput{
			Number:   seed.Number,
			Location: seed.Location,
			Type:     model.LockerType(seed.Type),
		})
	}
	added, err := fac.Lockers.Provision(ctx, seeds)
	if err != nil {
		logger.Fatalf("failed to provision lockers: %v", err)
	}
	logger.Printf("provisioned %d new lockers", added)

	statsSvc := stats.NewService(appStore, nil, stats.Options{
		Location:     cfg.Facility.Location,
		WindowDays:   cfg.Facility.RevenueWindowDays,
		OverdueGrace: cfg.Facility.OverdueGrace,
	})

	// Every change drops cached list and dashboard responses.
	responses := mw.NewResponseCache(cfg.Server.CacheTTL)
	bus.Subscribe(func(events.Event) { responses.Invalidate() })

	// Web push alerts when a watched locker frees up
	var webpushOptions *webpush.Options
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		if appStore.DB() != nil {
			pool := notification.NewWorkerPool(cfg.WorkerPool.Size, appStore.DB(), webpushOptions)
			pool.Start(ctx)
			bus.Subscribe(pool.HandleEvent)
			logger.Printf("push notifications enabled with %d workers", cfg.WorkerPool.Size)
		}
	} else {
		logger.Println("VAPID keys not configured; push notifications disabled")
	}

	// Receipt emails on checkout
	var emailer *receipt.Emailer
	if cfg.Email.Enabled {
		mailer, err := notification.NewSendGridMailer(cfg.Email.APIKey, cfg.Email.FromEmail, cfg.Email.FromName)
		if err != nil {
			logger.Fatalf("failed to configure email: %v", err)
		}
		emailer = receipt.NewEmailer(mailer, cfg.Facility.Location)
		bus.Subscribe(emailer.HandleEvent)
	}

	// Overdue reminders
	var sms notification.SMSSender
	if cfg.SMS.Enabled {
		twilio, err := notification.NewTwilioSMS(cfg.SMS.AccountSID, cfg.SMS.AuthToken, cfg.SMS.FromNumber)
		if err != nil {
			logger.Fatalf("failed to configure sms: %v", err)
		}
		sms = twilio
	}
	monitorSvc := monitor.NewService(cfg, appStore, bus, sms)
	go monitorSvc.Run(ctx)

	// Initialize router
	handler := api.NewHandler(fac, statsSvc, appStore, webpushOptions, cfg.Facility.Location)
	bus.Subscribe(handler.Hub().HandleEvent)
	router := api.NewRouter(handler, cfg.Server, responses)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: corsHandler.Handler(router),
	}

	// Start the server in a goroutine
	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received.
	<-stop
	logger.Println("Shutdown signal received, stopping services...")
	cancel()

	// Create a deadline to wait for.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}
	if emailer != nil {
		emailer.Wait()
	}

	logger.Println("Server gracefully stopped")
}
