package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"sourcewatch/internal/compare"
	"sourcewatch/internal/config"
	"sourcewatch/internal/diffrender"
	"sourcewatch/internal/fetcher"
	"sourcewatch/internal/monitor"
	"sourcewatch/internal/normalize"
	"sourcewatch/internal/notify"
	"sourcewatch/internal/state"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) openStore(ctx context.Context) (*state.PgStore, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := state.NewPool(ctx, state.PoolConfig{
		DSN:             a.Config.Database.DSN,
		MaxOpenConns:    a.Config.Database.MaxOpenConns,
		MaxIdleConns:    a.Config.Database.MaxIdleConns,
		ConnMaxLifetime: a.Config.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, err
	}

	store := state.NewPgStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newSink() notify.Sink {
	if a.Config.Telegram.Enabled {
		cfg := a.Config.Telegram
		return notify.NewTelegram(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.Timeout, a.Logger)
	}
	return notify.NewLog(a.Logger)
}

func (a *App) newRenderer() *diffrender.Renderer {
	return diffrender.New(diffrender.Options{
		ContextLines: a.Config.Render.ContextLines,
		MaxLen:       a.Config.Render.MaxLen,
	})
}

// stores groups the persistence interfaces a registry build needs. When no
// database is configured everything falls back to one shared in-memory
// store, so the engine still runs with correct (if non-durable) state.
type stores struct {
	snapshots state.Store
	changes   state.ChangeLog
	prices    state.PriceHistory
}

func (a *App) buildRegistry(st stores) (*monitor.Registry, error) {
	registry := monitor.NewRegistry(a.Logger)
	sink := a.newSink()
	renderer := a.newRenderer()

	httpFetcher := fetcher.NewHTTP(fetcher.HTTPOptions{
		Timeout:    a.Config.Fetch.Timeout,
		MaxRetries: a.Config.Fetch.MaxRetries,
		RetryDelay: a.Config.Fetch.RetryDelay,
		UserAgent:  a.Config.Fetch.UserAgent,
	}, a.Logger)

	for _, mc := range a.Config.Monitors {
		mon, err := a.buildMonitor(mc, httpFetcher, st, sink, renderer)
		if err != nil {
			return nil, err
		}
		if err := registry.Add(mon); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// buildMonitor maps a configured kind to its strategy pair. This table is
// the single registration point for source kinds.
func (a *App) buildMonitor(mc config.MonitorConfig, httpFetcher fetcher.Fetcher, st stores, sink notify.Sink, renderer *diffrender.Renderer) (*monitor.Monitor, error) {
	deps := monitor.Deps{
		Fetcher:  httpFetcher,
		Store:    st.snapshots,
		Changes:  st.changes,
		Sink:     sink,
		Renderer: renderer,
		Logger:   a.Logger,
	}

	key := compare.KeyByID
	if mc.KeyBy == "id_name" {
		key = compare.KeyByIDName
	}

	sources := make([]fetcher.Source, 0, len(mc.Sources))
	for _, sc := range mc.Sources {
		sources = append(sources, fetcher.Source{Key: sc.Key, URL: sc.URL, Header: sc.Header})
	}

	switch mc.Kind {
	case config.KindSetDiff:
		deps.Normalizer = normalize.EntryList{}
		deps.Comparator = &compare.SetDiffStrategy{Key: key}

	case config.KindMultiSource:
		deps.Normalizer = normalize.NewMultiSource(a.Logger)
		deps.Comparator = &compare.MultiSourceStrategy{Key: key}

	case config.KindPrice, config.KindOnchain:
		deps.Normalizer = normalize.Prices{}
		deps.Comparator = &compare.HysteresisStrategy{
			Tracker: compare.Tracker{
				Tolerance:   decimal.NewFromFloat(mc.Tolerance),
				GracePeriod: mc.GracePeriod,
			},
		}
		if st.prices != nil {
			deps.Recorder = &monitor.PriceRecorder{History: st.prices}
		}
		if mc.Kind == config.KindOnchain {
			deps.Fetcher = fetcher.NewOnchain(fetcher.OnchainOptions{
				RPCURL:   a.Config.Ethereum.RPCURL,
				Contract: mc.Contract,
				ItemName: mc.ItemName,
				Field:    mc.Field,
				Timeout:  a.Config.Ethereum.RequestTimeout,
			}, a.Logger)
			sources = []fetcher.Source{{Key: "onchain"}}
		}
	}

	return monitor.New(monitor.Options{
		Name:         mc.Name,
		Interval:     mc.Interval,
		StartRunning: !mc.Disabled,
		Sources:      sources,
	}, deps), nil
}

func (a *App) resolveStores(ctx context.Context) (stores, func(), error) {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return stores{}, nil, err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; state kept in memory only")
		mem := state.NewMemory()
		return stores{snapshots: mem, changes: mem, prices: mem}, func() {}, nil
	}
	return stores{snapshots: store, changes: store, prices: store}, closeStore, nil
}

// Run executes the long-running monitoring engine until interrupted.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, closeStores, err := a.resolveStores(ctx)
	if err != nil {
		return err
	}
	defer closeStores()

	registry, err := a.buildRegistry(st)
	if err != nil {
		return err
	}

	a.Logger.Info().Int("monitors", len(registry.Names())).Msg("starting monitoring engine")
	registry.Run(ctx)

	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.Logger.Info().Msg("monitoring engine stopped")
	return nil
}

// CheckOptions configure a one-shot check.
type CheckOptions struct {
	Monitor string
	All     bool
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// ExportOptions hold parameters for exporting price history.
type ExportOptions struct {
	Monitor   string
	Item      string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// SimulateOptions drive a synthetic price sequence through the hysteresis
// state machine.
type SimulateOptions struct {
	Prices      []float64
	Tolerance   float64
	GracePeriod time.Duration
	Step        time.Duration
}
