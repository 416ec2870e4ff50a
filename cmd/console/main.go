package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/you/napgram-console/internal/admin"
	"github.com/you/napgram-console/internal/auth"
	"github.com/you/napgram-console/internal/config"
	"github.com/you/napgram-console/internal/httpapi"
	"github.com/you/napgram-console/internal/probe"
	"github.com/you/napgram-console/internal/relay"
	"github.com/you/napgram-console/internal/store"
	"github.com/you/napgram-console/internal/transcript"
	"github.com/you/napgram-console/internal/version"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var (
		versionFlag   bool
		listenAddr    string
		relayURL      string
		sqlitePath    string
		passwordFile  string
		probeInterval string
		corsOrigins   string
		rateRPS       float64
		rateBurst     int
	)

	flag.BoolVar(&versionFlag, "version", false, "Print build version and exit")
	flag.StringVar(&listenAddr, "listen", ":8080", "HTTP listen address")
	flag.StringVar(&relayURL, "relay-url", "", "Base URL of the relay backend")
	flag.StringVar(&sqlitePath, "sqlite", "console.db", "Path to SQLite database file")
	flag.StringVar(&passwordFile, "admin-password-file", "", "Path to file containing the admin password")
	flag.StringVar(&probeInterval, "probe-interval", "", "Instance probe interval (e.g. 30s), empty to use config")
	flag.StringVar(&corsOrigins, "cors-origins", "", "Comma-separated list of allowed CORS origins")
	flag.Float64Var(&rateRPS, "rate-rps", 20, "Maximum HTTP requests per second per client")
	flag.IntVar(&rateBurst, "rate-burst", 40, "Burst size for HTTP rate limiter")
	flag.Parse()

	if versionFlag {
		fmt.Printf(
			"console version: %s (commit %s, built %s)\n",
			version.Version,
			version.Commit,
			version.BuildTime,
		)
		os.Exit(0)
	}

	overrides := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		overrides[f.Name] = true
	})

	cfg, err := config.Load()
	if err != nil && !overrides["relay-url"] {
		log.Fatalf("console: config: %v", err)
	}

	if overrides["listen"] {
		cfg.Listen = strings.TrimSpace(listenAddr)
	}
	if overrides["relay-url"] {
		cfg.Relay.BaseURL = strings.TrimSpace(relayURL)
	}
	if overrides["sqlite"] {
		cfg.Store.SQLitePath = strings.TrimSpace(sqlitePath)
	}
	if overrides["admin-password-file"] {
		cfg.Admin.PasswordFile = strings.TrimSpace(passwordFile)
	}
	if overrides["probe-interval"] {
		cfg.Probe.Interval = strings.TrimSpace(probeInterval)
	}
	if overrides["cors-origins"] {
		cfg.HTTP.CORSOrigins = nil
		for _, origin := range strings.Split(corsOrigins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.HTTP.CORSOrigins = append(cfg.HTTP.CORSOrigins, origin)
			}
		}
	}
	if overrides["rate-rps"] {
		cfg.HTTP.RateLimitRPS = rateRPS
	}
	if overrides["rate-burst"] {
		cfg.HTTP.RateLimitBurst = rateBurst
	}

	if strings.TrimSpace(cfg.Relay.BaseURL) == "" {
		log.Fatal("console: relay backend URL is required (-relay-url or NAPGRAM_RELAY_URL)")
	}
	if cfg.Relay.LegacyURLEnv != "" {
		log.Printf("console: relay URL read from legacy %s; prefer NAPGRAM_RELAY_URL", cfg.Relay.LegacyURLEnv)
	}
	if cfg.Admin.LegacyPassEnv != "" {
		log.Printf("console: admin password read from legacy %s; prefer NAPGRAM_ADMIN_PASSWORD", cfg.Admin.LegacyPassEnv)
	}

	log.Printf("%s", cfg.RedactedJSON())

	logger := slog.Default()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("console: received %s, shutting down", sig)
		cancel()
	}()

	db, err := store.Open(cfg.Store.SQLitePath)
	if err != nil {
		log.Fatalf("console: open sqlite: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("console: closing store: %v", err)
		}
	}()
	if err := db.Ping(); err != nil {
		log.Fatalf("console: ping sqlite: %v", err)
	}

	authn, err := auth.New(auth.Options{
		Password:     cfg.Admin.Password,
		PasswordFile: cfg.Admin.PasswordFile,
		JWTSecret:    cfg.Admin.JWTSecret,
		SessionTTL:   cfg.SessionTTL(),
		Logger:       logger,
	})
	if err != nil {
		log.Fatalf("console: auth: %v", err)
	}
	if err := authn.WatchPasswordFile(); err != nil {
		slog.Error("console: watch password file", "err", err)
	}

	relayClient := relay.New(cfg.Relay.BaseURL)
	assembler := transcript.NewAssembler(relayClient, logger)

	prober := probe.New(db, cfg.ProbeDialTimeout(), logger)
	if cfg.Probe.Enabled {
		if err := prober.Start(ctx, cfg.Probe.Interval); err != nil {
			log.Fatalf("console: probe schedule: %v", err)
		}
		defer prober.Stop()
		log.Printf("console: instance probe every %s", cfg.Probe.Interval)
	}

	build := httpapi.BuildInfo{Version: version.Version, Revision: version.Commit}
	if version.BuildTime != "" && version.BuildTime != "unknown" {
		if t, err := time.Parse(time.RFC3339, version.BuildTime); err == nil {
			build.BuiltAt = t
		}
	}

	api := httpapi.New(assembler, relayClient, logger, httpapi.Options{
		Addr:           cfg.Listen,
		Build:          build,
		RateLimitRPS:   cfg.HTTP.RateLimitRPS,
		RateLimitBurst: cfg.HTTP.RateLimitBurst,
		CORSOrigins:    cfg.HTTP.CORSOrigins,
	})
	admin.New(db, authn, prober, logger).Register(api.Mux())

	go func() {
		if err := api.Start(); err != nil {
			log.Fatalf("console: http api: %v", err)
		}
	}()
	log.Printf("console: ready on %s (relay=%s)", cfg.Listen, cfg.Relay.BaseURL)

	<-ctx.Done()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	if err := api.Shutdown(shutdownCtx); err != nil {
		log.Printf("console: http api shutdown: %v", err)
	}
	cancelShutdown()

	log.Printf("console: shutdown complete")
}
