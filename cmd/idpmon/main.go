package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"idpmon/config"
	"idpmon/internal/autotask"
	"idpmon/internal/correlate"
	"idpmon/internal/graphapi"
	"idpmon/internal/logger"
	"idpmon/internal/notify"
	"idpmon/internal/pipeline"
	"idpmon/internal/queue"
	"idpmon/internal/server"
	"idpmon/internal/subscription"
)

// defaultSubscriptionResource watches new alerts above low severity.
const defaultSubscriptionResource = "/security/alerts?$filter=status eq 'newAlert' and Severity ne 'Low'"

func findConfigFile(configArg string) string {
	if configArg != "" {
		path := configArg
		if _, err := os.Stat(path); err == nil {
			return path
		}
		log.Printf("Warning: config file not found at %s, trying default locations", path)
	}

	if _, err := os.Stat("idpmon.yml"); err == nil {
		return "idpmon.yml"
	}

	exePath, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exePath)
		path := filepath.Join(exeDir, "idpmon.yml")
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return "idpmon.yml"
}

func applyDefaults(cfg *config.Config) {
	if cfg.IDPMon.Server.Addr == "" {
		cfg.IDPMon.Server.Addr = ":8080"
	}

	if cfg.IDPMon.Queue.Redis.Addr == "" {
		cfg.IDPMon.Queue.Redis.Addr = "127.0.0.1:6379"
	}
	if cfg.IDPMon.Queue.Redis.BlockTimeout == 0 {
		cfg.IDPMon.Queue.Redis.BlockTimeout = 5 * time.Second
	}
	if cfg.IDPMon.Queue.Key == "" {
		cfg.IDPMon.Queue.Key = "idpmon:notifications"
	}
	if cfg.IDPMon.Queue.ProcessedTTL <= 0 {
		cfg.IDPMon.Queue.ProcessedTTL = 24 * time.Hour
	}

	if cfg.IDPMon.Pipeline.Workers <= 0 {
		cfg.IDPMon.Pipeline.Workers = 4
	}

	if cfg.IDPMon.Graph.Timeout <= 0 {
		cfg.IDPMon.Graph.Timeout = 30 * time.Second
	}
	if cfg.IDPMon.Autotask.Timeout <= 0 {
		cfg.IDPMon.Autotask.Timeout = 30 * time.Second
	}

	if cfg.IDPMon.Subscription.Resource == "" {
		cfg.IDPMon.Subscription.Resource = defaultSubscriptionResource
	}
	if cfg.IDPMon.Subscription.ClientState == "" {
		cfg.IDPMon.Subscription.ClientState = subscription.DefaultClientState
	}
	if cfg.IDPMon.Subscription.ExpirationDays <= 0 {
		cfg.IDPMon.Subscription.ExpirationDays = 7
	}
	if cfg.IDPMon.Subscription.Interval <= 0 {
		cfg.IDPMon.Subscription.Interval = 24 * time.Hour
	}

	if cfg.IDPMon.Logging.Level == "" {
		cfg.IDPMon.Logging.Level = "info"
	}
}

func main() {
	configArg := ""
	if len(os.Args) > 1 {
		configArg = os.Args[1]
	}
	configPath := findConfigFile(configArg)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	applyDefaults(cfg)

	if err := logger.Init(cfg.IDPMon.Logging.Enabled, cfg.IDPMon.Logging.Level, cfg.IDPMon.Logging.File, cfg.IDPMon.Logging.Console); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	logger.Infof("idpmon starting")
	logger.Infof("Config loaded from: %s", configPath)

	if cfg.IDPMon.Graph.TenantID == "" || cfg.IDPMon.Graph.ClientID == "" || cfg.IDPMon.Graph.ClientSecret == "" {
		log.Fatalf("Invalid app settings configured: graph tenant_id, client_id and client_secret are required")
	}
	if cfg.IDPMon.Autotask.URL == "" || cfg.IDPMon.Autotask.APIKey == "" {
		log.Fatalf("Invalid app settings configured: autotask url and api_key are required")
	}
	if cfg.IDPMon.Autotask.OrgID <= 0 {
		log.Fatalf("Invalid app settings configured: autotask org_id is required")
	}

	graphClient, err := graphapi.NewClient(graphapi.Config{
		TenantID:     cfg.IDPMon.Graph.TenantID,
		ClientID:     cfg.IDPMon.Graph.ClientID,
		ClientSecret: cfg.IDPMon.Graph.ClientSecret,
		BaseURL:      cfg.IDPMon.Graph.BaseURL,
		Timeout:      cfg.IDPMon.Graph.Timeout,
	})
	if err != nil {
		log.Fatalf("Failed to create alerting-service client: %v", err)
	}

	autotaskClient, err := autotask.NewClient(autotask.Config{
		URL:     cfg.IDPMon.Autotask.URL,
		APIKey:  cfg.IDPMon.Autotask.APIKey,
		Timeout: cfg.IDPMon.Autotask.Timeout,
	})
	if err != nil {
		log.Fatalf("Failed to create ticketing client: %v", err)
	}

	var mailer correlate.Mailer
	if m := notify.NewMailer(notify.Config{
		Endpoint:  cfg.IDPMon.Email.Endpoint,
		APIKey:    cfg.IDPMon.Email.APIKey,
		FromEmail: cfg.IDPMon.Email.FromEmail,
		FromName:  cfg.IDPMon.Email.FromName,
		ToEmail:   cfg.IDPMon.Email.ToEmail,
		ToName:    cfg.IDPMon.Email.ToName,
	}); m != nil {
		mailer = m
		logger.Infof("Unrecognized-alert email fallback enabled")
	} else {
		logger.Warnf("Email relay not fully configured; unrecognized-alert fallback disabled")
	}

	notificationQueue, err := queue.New(queue.Config{
		Addr:         cfg.IDPMon.Queue.Redis.Addr,
		Password:     cfg.IDPMon.Queue.Redis.Password,
		DB:           cfg.IDPMon.Queue.Redis.DB,
		Key:          cfg.IDPMon.Queue.Key,
		BlockTimeout: cfg.IDPMon.Queue.Redis.BlockTimeout,
		ProcessedTTL: cfg.IDPMon.Queue.ProcessedTTL,
	})
	if err != nil {
		log.Fatalf("Failed to create notification queue: %v", err)
	}

	engine := correlate.NewEngine(graphClient, autotaskClient, mailer, cfg.IDPMon.Autotask.OrgID)
	pipe := pipeline.New(notificationQueue, engine, cfg.IDPMon.Subscription.ClientState, cfg.IDPMon.Pipeline.Workers)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := pipe.Run(ctx); err != nil && err != context.Canceled {
			logger.Errorf("Pipeline error: %v", err)
		}
	}()

	if cfg.IDPMon.Subscription.NotificationURL == "" {
		logger.Warnf("Invalid notification host configured; subscription reconciliation disabled")
	} else {
		reconciler := subscription.NewReconciler(graphClient, subscription.Config{
			NotificationURL: cfg.IDPMon.Subscription.NotificationURL,
			Resource:        cfg.IDPMon.Subscription.Resource,
			ClientState:     cfg.IDPMon.Subscription.ClientState,
			ExpirationDays:  cfg.IDPMon.Subscription.ExpirationDays,
		})
		go runReconcileLoop(ctx, reconciler, cfg.IDPMon.Subscription.Interval)
	}

	intake := server.New(notificationQueue, cfg.IDPMon.Server.SecretKey)
	httpServer := &http.Server{
		Addr:    cfg.IDPMon.Server.Addr,
		Handler: intake.Routes(),
	}
	go func() {
		logger.Infof("Webhook intake listening on %s", cfg.IDPMon.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("HTTP server error: %v", err)
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Infof("Shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Error shutting down HTTP server: %v", err)
	}
	if err := notificationQueue.Close(); err != nil {
		logger.Errorf("Error closing notification queue: %v", err)
	}

	logger.Infof("idpmon stopped")
}

func runReconcileLoop(ctx context.Context, reconciler *subscription.Reconciler, interval time.Duration) {
	logger.Infof("Renewing subscription at: %s", time.Now().Format(time.RFC3339))
	if err := reconciler.Reconcile(ctx); err != nil {
		logger.Errorf("Could not update or create a new subscription: %v", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Infof("Renewing subscription at: %s", time.Now().Format(time.RFC3339))
			if err := reconciler.Reconcile(ctx); err != nil {
				logger.Errorf("Could not update or create a new subscription: %v", err)
			}
		}
	}
}
