package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"leadline/internal/admin"
	"leadline/internal/calls"
	"leadline/internal/config"
	"leadline/internal/consent"
	"leadline/internal/leads"
	"leadline/internal/notify"
	"leadline/internal/sms"
	"leadline/internal/tenant"
	"leadline/internal/tenantctx"
	"leadline/pkg/logger"
	"leadline/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown.
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Tenant-scoped persistence: every per-tenant query runs inside the
	// guard, which pins app.tenant_id on the connection for RLS.
	guard := tenantctx.NewGuard(db)

	resolver := tenant.NewResolver(tenant.NewPostgresRepo(db), rdb)

	// Outbound transports.
	var emailSender notify.EmailSender
	if cfg.Notify.SMTPHost != "" {
		emailSender = notify.NewSMTPSender(notify.SMTPConfig{
			Host:     cfg.Notify.SMTPHost,
			Port:     cfg.Notify.SMTPPort,
			From:     cfg.Notify.SMTPFrom,
			Username: cfg.Notify.SMTPUser,
			Password: cfg.Notify.SMTPPassword,
		})
	}
	smsSender := notify.NewTwilioSMSSender(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken)

	dispatcher := notify.NewDispatcher(emailSender, smsSender, cfg.Notify.Enabled, cfg.Notify.ChannelTimeout, log)

	// Domain services.
	leadSvc := leads.NewService(leads.NewPostgresRepo(guard))
	consentSvc := consent.NewService(consent.NewPostgresRepo(guard))

	smsSvc := sms.NewService(
		sms.NewPostgresRepo(guard),
		resolver,
		sms.NewPostgresOptOutStore(guard, rdb),
		consentSvc,
		leadSvc,
		dispatcher,
		smsSender,
	)
	callSvc := calls.NewService(calls.NewPostgresRepo(guard), resolver, leadSvc, dispatcher, smsSvc)

	sessions, err := admin.NewSessionManager(cfg.Admin)
	if err != nil {
		log.Error("admin session init failed", "err", err)
		os.Exit(1)
	}
	adminSvc := admin.NewService(admin.NewPostgresUsers(db), sessions)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		cfg:        cfg,
		db:         db,
		rdb:        rdb,
		guard:      guard,
		resolver:   resolver,
		calls:      callSvc,
		sms:        smsSvc,
		leads:      leadSvc,
		consents:   consentSvc,
		dispatcher: dispatcher,
		admin:      adminSvc,
		sessions:   sessions,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
