// Package app wires the cyanwatch components from settings: session, backend
// and provider clients, event bus, sync engine, location store, batch
// coordinator and the optional job history, MQTT and metrics outputs.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/tphakala/cyanwatch/internal/auth"
	"github.com/tphakala/cyanwatch/internal/backend"
	"github.com/tphakala/cyanwatch/internal/batch"
	"github.com/tphakala/cyanwatch/internal/conf"
	"github.com/tphakala/cyanwatch/internal/datastore"
	"github.com/tphakala/cyanwatch/internal/errors"
	"github.com/tphakala/cyanwatch/internal/events"
	"github.com/tphakala/cyanwatch/internal/location"
	"github.com/tphakala/cyanwatch/internal/logger"
	"github.com/tphakala/cyanwatch/internal/mqtt"
	"github.com/tphakala/cyanwatch/internal/observability"
	"github.com/tphakala/cyanwatch/internal/provider"
	"github.com/tphakala/cyanwatch/internal/store"
	"github.com/tphakala/cyanwatch/internal/syncengine"
)

const (
	busShutdownTimeout = 5 * time.Second
	mqttConnectTimeout = 10 * time.Second
)

// App holds the wired components. Fields other than Settings, Session, Bus,
// Engine, Store and Batch may be nil when disabled in settings.
type App struct {
	Settings *conf.Settings
	Session  *auth.Session
	Bus      *events.EventBus
	Metrics  *observability.Metrics
	Provider *provider.Client
	Backend  *backend.Client
	Engine   *syncengine.Engine
	Store    *store.Store
	Batch    *batch.Coordinator
	Jobs     *datastore.SQLiteStore

	mqttClient mqtt.Client
	quitChan   chan struct{}
	wg         sync.WaitGroup
	closeOnce  sync.Once
	log        logger.Logger
}

// Options tune what New starts. Overrides for transports exist for tests.
type Options struct {
	// ProviderConfig and BackendConfig, when set, replace the settings-derived ones
	ProviderConfig *provider.Config
	BackendConfig  *backend.Config
	// SkipOutputs disables MQTT and the metrics endpoint
	SkipOutputs bool
}

// New wires every component. Close releases what New started.
func New(ctx context.Context, settings *conf.Settings, opts Options) (*App, error) {
	a := &App{
		Settings: settings,
		quitChan: make(chan struct{}),
		log:      GetLogger(),
	}

	dataType, err := location.ParseDataType(settings.Sync.DataType)
	if err != nil {
		return nil, err
	}

	a.Session = auth.NewSession(settings.Backend.Token, settings.Backend.Username, time.Time{})
	a.Session.OnLogout(func(reason string) {
		a.publish(events.Notification{Message: "logged out: " + reason})
	})

	if settings.Metrics.Enabled {
		if a.Metrics, err = observability.NewMetrics(); err != nil {
			return nil, err
		}
	}

	a.Bus = events.New(events.DefaultConfig())

	providerConfig := provider.Config{
		BaseURL:           settings.Provider.BaseURL,
		Timeout:           settings.Provider.Timeout,
		RequestsPerSecond: settings.Provider.RequestsPerSecond,
		Burst:             settings.Provider.Burst,
		UserAgent:         settings.Provider.UserAgent,
	}
	if opts.ProviderConfig != nil {
		providerConfig = *opts.ProviderConfig
	}
	if a.Provider, err = provider.NewClient(providerConfig); err != nil {
		return nil, err
	}

	backendConfig := backend.Config{
		BaseURL:   settings.Backend.BaseURL,
		Timeout:   settings.Backend.Timeout,
		UserAgent: settings.Provider.UserAgent,
	}
	if opts.BackendConfig != nil {
		backendConfig = *opts.BackendConfig
	}
	if a.Backend, err = backend.NewClient(backendConfig, a.Session); err != nil {
		return nil, err
	}

	engineConfig := syncengine.Config{
		Fetcher:   a.Provider,
		Publisher: a.Bus,
		Username:  a.Session.Username,
		CacheTTL:  settings.Provider.CacheTTL,
	}
	batchConfig := batch.Config{
		Backend:   a.Backend,
		Auth:      a.Session,
		Publisher: a.Bus,
		Limits: batch.Limits{
			MaxRows:           settings.Batch.MaxRows,
			MaxFilenameLength: settings.Batch.MaxFilenameLength,
			Extension:         settings.Batch.Extension,
			Columns:           settings.Batch.Columns,
		},
		PollInterval: settings.Batch.PollInterval,
	}
	if a.Metrics != nil {
		engineConfig.Metrics = a.Metrics.Sync
		batchConfig.Metrics = a.Metrics.Batch
	}

	if a.Engine, err = syncengine.New(engineConfig); err != nil {
		return nil, err
	}
	if a.Store, err = store.New(store.Config{
		Backend:   a.Backend,
		Syncer:    a.Engine,
		Publisher: a.Bus,
		DataType:  dataType,
	}); err != nil {
		return nil, err
	}

	if settings.Datastore.Enabled {
		a.Jobs = datastore.NewSQLiteStore(settings.Datastore.Path)
		if err := a.Jobs.Open(); err != nil {
			a.log.Warn("job history disabled", logger.Error(err))
			a.Jobs = nil
		} else {
			batchConfig.Store = a.Jobs
		}
	}
	if a.Batch, err = batch.New(batchConfig); err != nil {
		a.Close()
		return nil, err
	}

	if !opts.SkipOutputs {
		a.startMQTT(ctx)
		a.startMetricsEndpoint()
	}
	return a, nil
}

// startMQTT connects the broker client and registers the forwarding
// consumer. A broker that cannot be reached only disables forwarding.
func (a *App) startMQTT(ctx context.Context) {
	s := a.Settings.MQTT
	if !s.Enabled {
		return
	}
	cfg := mqtt.ConfigFromSettings(s)
	client, err := mqtt.NewClient(cfg)
	if err != nil {
		a.log.Warn("mqtt disabled", logger.Error(err))
		return
	}
	connectCtx, cancel := context.WithTimeout(ctx, mqttConnectTimeout)
	defer cancel()
	if err := client.Connect(connectCtx); err != nil {
		a.log.Warn("mqtt broker unreachable", logger.String("broker", cfg.Broker), logger.Error(err))
		return
	}
	a.mqttClient = client
	if err := a.Bus.RegisterConsumer(mqtt.NewConsumer(client, cfg.Topic)); err != nil {
		a.log.Warn("mqtt consumer not registered", logger.Error(err))
	}
}

func (a *App) startMetricsEndpoint() {
	if a.Metrics == nil || a.Settings.Metrics.Listen == "" {
		return
	}
	endpoint, err := observability.NewEndpoint(a.Settings, a.Metrics)
	if err != nil {
		a.log.Warn("metrics endpoint disabled", logger.Error(err))
		return
	}
	endpoint.Start(&a.wg, a.quitChan)
}

// Sync loads the location collection and blocks until every enrichment
// fetch it issued has settled.
func (a *App) Sync(ctx context.Context) error {
	if !a.Session.IsAuthorized() {
		return errors.New(backend.ErrUnauthorized).
			Component("app").
			Category(errors.CategoryAuthorization).
			Build()
	}
	if err := a.Store.Load(ctx); err != nil {
		return err
	}
	return a.Engine.Wait(ctx)
}

func (a *App) publish(ev events.Event) {
	if a.Bus != nil {
		a.Bus.TryPublish(ev)
	}
}

// Close stops polling, drains the event bus and closes outputs. Safe to call
// more than once.
func (a *App) Close() {
	a.closeOnce.Do(func() {
		if a.Batch != nil {
			a.Batch.Close()
		}
		if a.Store != nil {
			a.Store.Wait()
		}
		if a.Bus != nil {
			if err := a.Bus.Shutdown(busShutdownTimeout); err != nil {
				a.log.Warn("event bus shutdown incomplete", logger.Error(err))
			}
		}
		if a.mqttClient != nil {
			a.mqttClient.Disconnect()
		}
		close(a.quitChan)
		a.wg.Wait()
		if a.Jobs != nil {
			if err := a.Jobs.Close(); err != nil {
				a.log.Warn("failed to close job history", logger.Error(err))
			}
		}
		if a.Provider != nil {
			a.Provider.Close()
		}
		if a.Backend != nil {
			a.Backend.Close()
		}
	})
}

// GetLogger returns the app module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("app")
}
