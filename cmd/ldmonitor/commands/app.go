package commands

import (
	"context"
	"errors"
	"fmt"
	"ldmonitor/internal/components/chrono"
	"ldmonitor/internal/components/telemetry"
	"ldmonitor/internal/config"
	"ldmonitor/internal/credit"
	"ldmonitor/internal/fetcher"
	"ldmonitor/internal/identity"
	"ldmonitor/internal/kvstore"
	"ldmonitor/internal/monitor"
	"ldmonitor/internal/trustlevel"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
)

// app is everything a command needs, built from the config file.
type app struct {
	cfg     config.Config
	tel     telemetry.API
	otel    telemetry.Telemetry
	store   *kvstore.Store
	monitor *monitor.Monitor
}

func newApp(ctx context.Context) (*app, error) {
	cfg, source, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if source == "" {
		slog.Warn("no config file found, using defaults", "name", config.FileName)
	} else {
		slog.Debug("config loaded", "path", source)
	}
	if len(cfg.Cookies) == 0 {
		slog.Warn("no cookies configured, linux.do will treat every request as logged out")
	}

	otel, err := telemetry.Setup(ctx, "ldmonitor", cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("setup telemetry: %w", err)
	}
	tel := telemetry.NewMeteredAPI("ldmonitor", telemetry.SlogAPI{})

	store, err := kvstore.Open(ctx, cfg.DbPath, tel)
	if err != nil {
		otel.Shutdown(ctx)
		return nil, fmt.Errorf("open %s: %w", cfg.DbPath, err)
	}

	http, err := fetcher.New(fetcher.Options{
		Cookies:           cfg.Cookies,
		DiscourseHosts:    cfg.DiscourseHosts(),
		UserAgent:         cfg.UserAgent,
		RequestsPerSecond: cfg.RequestsPerSecond,
	}, tel)
	if err != nil {
		store.Close()
		otel.Shutdown(ctx)
		return nil, err
	}

	clock := chrono.NewStandardTime()
	current := &identity.Current{}

	m := monitor.New(monitor.Options{
		Pages: monitor.ForumPage{
			Fetcher:      http,
			Url:          cfg.PageUrl(),
			LocalStorage: cfg.LocalStorage,
		},
		Level: trustlevel.NewExtractor(http, clock, tel, trustlevel.Options{
			ConnectUrl: cfg.ConnectUrl,
			ForumUrl:   cfg.ForumUrl,
		}),
		Credit: credit.NewFetcher(http, current.Username, clock, tel, credit.Options{
			BaseUrl: cfg.CreditUrl,
		}),
		Store:   store,
		Clock:   clock,
		Current: current,
	}, tel)

	return &app{
		cfg:     cfg,
		tel:     tel,
		otel:    otel,
		store:   store,
		monitor: m,
	}, nil
}

// resolve finds the logged-in account, commands that only touch local state
// can skip it.
func (a *app) resolve(ctx context.Context) error {
	err := a.monitor.Init(ctx)
	if errors.Is(err, monitor.ErrNotLoggedIn) {
		return fmt.Errorf("%w, check the cookies in %s", err, config.FileName)
	}
	return err
}

func (a *app) theme() string {
	return a.monitor.Themes.Current().Key
}

func (a *app) Close() {
	a.monitor.Close()
	a.store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := a.otel.Shutdown(ctx)
	if err != nil {
		slog.Warn("telemetry shutdown", "err", err)
	}
}

// withApp builds the app for a single command run and closes it afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app) error) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
