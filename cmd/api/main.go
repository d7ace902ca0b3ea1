package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"octobre.org/internal/altcha"
	"octobre.org/internal/calendar"
	"octobre.org/internal/config"
	"octobre.org/internal/email"
	"octobre.org/internal/fingerprint"
	"octobre.org/internal/httpapi"
	"octobre.org/internal/lead"
	"octobre.org/internal/mailer"
	"octobre.org/internal/note"
	"octobre.org/internal/obs"
	"octobre.org/internal/oidc"
	"octobre.org/internal/rbac"
	"octobre.org/internal/store/pg"
)

var version = "0.3.1"

func main() {
	cfg, err := config.Load()
	if err != nil {
		obs.Logger().WithError(err).Fatal("load configuration")
	}
	obs.SetLevel(cfg.LogLevel)
	log := obs.Logger()

	obs.Init()
	obs.InitBuildInfo(version, os.Getenv("OCTOBRE_COMMIT"))

	if cfg.DatabaseDSN == "" {
		log.Fatal("OCTOBRE_PG_DSN is required")
	}
	store, err := pg.Open(cfg.DatabaseDSN)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	verifier, err := oidc.Discover(ctx, cfg.IssuerURL)
	cancel()
	if err != nil {
		log.WithError(err).WithField("issuer", cfg.IssuerURL).Fatal("oidc discovery")
	}

	rbacSvc, err := rbac.NewService(store, rbac.NewRegistry(calendar.ResourceKind, "lead"))
	if err != nil {
		log.WithError(err).Fatal("rbac service")
	}

	var outbound *mailer.Mailer
	if cfg.MailConfigured() {
		outbound, err = mailer.New(mailer.Options{
			Host:      cfg.SMTPHost,
			Port:      cfg.SMTPPort,
			Username:  cfg.SMTPUser,
			Password:  cfg.SMTPPass,
			From:      cfg.MailFrom,
			DefaultTo: cfg.MailTo,
		})
		if err != nil {
			log.WithError(err).Fatal("mailer")
		}
	} else {
		log.Warn("outbound mail disabled: SMTP host or sender not configured")
	}

	var noteMailer note.Mailer
	if outbound != nil {
		noteMailer = outbound
	}
	noteSvc, err := note.NewService(store, log, noteMailer)
	if err != nil {
		log.WithError(err).Fatal("note service")
	}

	leadOpts := []lead.Option{lead.WithNoteWriter(noteSvc)}
	if outbound != nil {
		leadOpts = append(leadOpts, lead.WithNotifier(outbound))
	}
	leadSvc, err := lead.NewService(store, log, leadOpts...)
	if err != nil {
		log.WithError(err).Fatal("lead service")
	}

	calendarSvc, err := calendar.NewService(store, rbacSvc, log)
	if err != nil {
		log.WithError(err).Fatal("calendar service")
	}

	fingerprintSvc, err := fingerprint.NewService(store, log)
	if err != nil {
		log.WithError(err).Fatal("fingerprint service")
	}

	emailSvc, err := email.NewService(store, log)
	if err != nil {
		log.WithError(err).Fatal("email service")
	}

	if cfg.AltchaHMACKey == "" {
		log.Warn("OCTOBRE_ALTCHA_HMAC_KEY is empty: anonymous submissions will be rejected")
	}

	api := httpapi.New(httpapi.Options{
		Log:          log,
		Verifier:     verifier,
		RBAC:         rbacSvc,
		Leads:        leadSvc,
		Notes:        noteSvc,
		Calendars:    calendarSvc,
		Fingerprints: fingerprintSvc,
		Emails:       emailSvc,
		Altcha:       altcha.NewVerifier(cfg.AltchaHMACKey),
		Ready:        httpapi.ReadyProbe{DB: store.DB()},
		Version:      version,
	})

	handler := api.Handler()
	handler = httpapi.MaxBodyBytes(handler, cfg.MaxBodyBytes)
	handler = httpapi.RateLimit(handler, cfg.RateLimitBurst, cfg.RateLimitPerSecond)
	handler = httpapi.CORS(handler, cfg.AuthorizedOrigins)
	handler = httpapi.SecurityHeaders(handler)
	handler = httpapi.Logging(handler)
	handler = httpapi.RequestID(handler)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.WithFields(map[string]any{"addr": cfg.Addr, "version": version}).Info("starting octobre-api")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("listen")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("stopped")
}
