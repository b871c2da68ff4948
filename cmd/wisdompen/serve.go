package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/wisdompenai/wisdompen/internal/assistant"
	"github.com/wisdompenai/wisdompen/internal/config"
	"github.com/wisdompenai/wisdompen/internal/handlers"
	"github.com/wisdompenai/wisdompen/internal/logger"
	"github.com/wisdompenai/wisdompen/internal/relay"
	"github.com/wisdompenai/wisdompen/internal/server"
	"github.com/wisdompenai/wisdompen/internal/session"
	"github.com/wisdompenai/wisdompen/internal/stream"
	"github.com/wisdompenai/wisdompen/internal/transcript"
	"github.com/wisdompenai/wisdompen/internal/version"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideAssistantClient,
			provideSessionStore,
			provideTranscriptRegistry,
			provideEmitter,
			provideCache,
			provideOrchestrator,
			provideServerHandler(provideChatHandler),
			provideServerHandler(provideHealthHandler),
			provideServer,
		),
		fx.Invoke(
			startCacheSweeper,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideAssistantClient(log *slog.Logger, cfg config.Config) *assistant.Client {
	return assistant.NewClient(log, cfg.Assistant)
}

func provideSessionStore(log *slog.Logger, client *assistant.Client) *session.Store {
	return session.NewStore(log, client)
}

func provideTranscriptRegistry(log *slog.Logger, cfg config.Config) *transcript.Registry {
	registry := transcript.NewRegistry(log)

	if cfg.Transcript.SupadataAPIKey != "" {
		supadata := transcript.NewSupadataProvider(
			log,
			cfg.Transcript.SupadataBaseURL,
			cfg.Transcript.SupadataAPIKey,
			cfg.Transcript.PollInterval(),
			cfg.Transcript.Ceiling(),
		)
		registry.Register(transcript.SourceLongForm, supadata)
		registry.Register(transcript.SourceShortForm, supadata)
		if cfg.Transcript.EnableGeneric {
			registry.Register(transcript.SourceGeneric, supadata)
		}
	}
	if cfg.Transcript.EnableCaptionScrape {
		captions := transcript.NewCaptionProvider(log)
		if cfg.Transcript.SupadataAPIKey == "" {
			registry.Register(transcript.SourceLongForm, captions)
		} else {
			registry.SetFallback(captions)
		}
	}
	return registry
}

func provideEmitter(log *slog.Logger, cfg config.Config) *stream.Emitter {
	return stream.NewEmitter(log, cfg.Stream.ChunkDelay())
}

func provideCache(cfg config.Config) *relay.Cache {
	if !cfg.Cache.Enabled {
		return nil
	}
	return relay.NewCache(cfg.Cache.TTL())
}

func provideOrchestrator(
	log *slog.Logger,
	sessions *session.Store,
	client *assistant.Client,
	registry *transcript.Registry,
	emitter *stream.Emitter,
	cache *relay.Cache,
) *relay.Orchestrator {
	return relay.NewOrchestrator(log, sessions, client, registry, emitter, cache)
}

func provideChatHandler(log *slog.Logger, cfg config.Config, orchestrator *relay.Orchestrator) *handlers.ChatHandler {
	return handlers.NewChatHandler(log, orchestrator, cfg.Upload.MaxBytes, cfg.Upload.MaxFiles)
}

func provideHealthHandler(log *slog.Logger, cfg config.Config, client *assistant.Client, registry *transcript.Registry) *handlers.HealthHandler {
	return handlers.NewHealthHandler(log, client, registry.Backends(), cfg.Cache.Enabled)
}

func provideServer(p serverParams) *server.Server {
	return server.New(p.Logger, p.Config.Server.Addr, p.Handlers...)
}

type serverParams struct {
	fx.In

	Logger   *slog.Logger
	Config   config.Config
	Handlers []server.Handler `group:"server_handlers"`
}

// startCacheSweeper evicts expired reply cache entries every few minutes.
func startCacheSweeper(lc fx.Lifecycle, log *slog.Logger, cache *relay.Cache) {
	if cache == nil {
		return
	}
	runner := cron.New()
	if _, err := runner.AddFunc("@every 5m", func() {
		if evicted := cache.Sweep(); evicted > 0 {
			log.Debug("cache swept", slog.Int("evicted", evicted))
		}
	}); err != nil {
		log.Error("cache sweep schedule failed", slog.Any("error", err))
		return
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { runner.Start(); return nil },
		OnStop: func(ctx context.Context) error {
			<-runner.Stop().Done()
			return nil
		},
	})
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	fmt.Printf("Starting WisdomPen %s\n", version.GetInfo())
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
