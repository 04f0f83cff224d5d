package devfx

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os"
	"time"

	chimd "github.com/go-chi/chi/v5/middleware"
	"github.com/joeydtaylor/steeze-serverfn/pkg/bundlefx"
	"github.com/joeydtaylor/steeze-serverfn/pkg/codegen"
	"github.com/joeydtaylor/steeze-serverfn/pkg/config"
	"github.com/joeydtaylor/steeze-serverfn/pkg/devbridge"
	"github.com/joeydtaylor/steeze-serverfn/pkg/fn"
	"github.com/joeydtaylor/steeze-serverfn/pkg/middleware/logger"
	"github.com/joeydtaylor/steeze-serverfn/pkg/middleware/metrics"
	"github.com/joeydtaylor/steeze-serverfn/pkg/transport/httpx"
	"github.com/joeydtaylor/steeze-serverfn/pkg/watch"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Options allow per-app env keys/defaults without code duplication.
type Options struct {
	Registry      *fn.Registry
	ConfigEnv     string // e.g. "SERVERFN_CONFIG"
	DefaultConfig string // e.g. "serverfn.toml"
	TLSCertEnv    string // e.g. "SSL_SERVER_CERTIFICATE"
	TLSKeyEnv     string // e.g. "SSL_SERVER_KEY"
	NoWatch       bool   // serve and generate once, without a change notifier
}

func (o Options) withDefaults() Options {
	if o.ConfigEnv == "" {
		o.ConfigEnv = "SERVERFN_CONFIG"
	}
	if o.DefaultConfig == "" {
		o.DefaultConfig = "serverfn.toml"
	}
	if o.TLSCertEnv == "" {
		o.TLSCertEnv = "SSL_SERVER_CERTIFICATE"
	}
	if o.TLSKeyEnv == "" {
		o.TLSKeyEnv = "SSL_SERVER_KEY"
	}
	return o
}

// ---- Providers ----

func provideConfig(o Options) (config.Config, error) {
	return config.Load(envOr(o.ConfigEnv, o.DefaultConfig))
}

func provideRegistry(o Options) (*fn.Registry, error) {
	if o.Registry == nil {
		return nil, errors.New("devfx: Options.Registry is required")
	}
	return o.Registry, nil
}

func provideGenerator(cfg config.Config, zl *zap.Logger) *codegen.Generator {
	return codegen.New(cfg.OutputDir(),
		codegen.WithPackage(cfg.Package),
		codegen.WithRuntimeImport(cfg.RuntimeImport),
		codegen.WithLogger(zl),
	)
}

func provideNotifier(o Options, cfg config.Config, zl *zap.Logger) devbridge.Notifier {
	if o.NoWatch {
		return nil
	}
	return watch.New(cfg.WatchPaths(), watch.WithIgnore(cfg.OutputDir()), watch.WithLogger(zl))
}

type bridgeDeps struct {
	fx.In
	Cfg      config.Config
	Registry *fn.Registry
	Gen      *codegen.Generator
	Notifier devbridge.Notifier
	Rec      *metrics.Functions
	Log      *zap.Logger
}

func provideBridge(d bridgeDeps) *devbridge.Bridge {
	return devbridge.New(d.Registry, d.Gen,
		devbridge.WithBasePath(d.Cfg.BasePath),
		devbridge.WithLogger(d.Log),
		devbridge.WithNotifier(d.Notifier),
		devbridge.WithOrigins(d.Cfg.CORS.Origins...),
		devbridge.WithRecorder(d.Rec),
	)
}

// ---- Router ----

type routerDeps struct {
	fx.In

	LogMW   *logger.Middleware
	Metrics http.Handler `name:"metrics"`
	Bridge  *devbridge.Bridge
	R       httpx.Router
}

func provideRouter(d routerDeps) http.Handler {
	metrics.AddMetricsSkipPaths("/ping")

	d.R.Use(
		chimd.RequestID,
		chimd.RealIP,
		d.LogMW.Middleware(),
		metrics.Collect(),
		chimd.Recoverer,
		chimd.Heartbeat("/ping"),
	)
	d.R.Get("/metrics", d.Metrics)
	d.Bridge.Attach(d.R)
	return d.R.Mux()
}

// ---- Server lifecycle ----

type serverDeps struct {
	fx.In
	Opts   Options
	Cfg    config.Config
	Logger *zap.Logger
	Bridge *devbridge.Bridge
	App    http.Handler `name:"app"`
}

func registerHooks(lc fx.Lifecycle, d serverDeps) {
	fn.SetLogger(d.Logger)

	addr := d.Cfg.Listen
	cert := os.Getenv(d.Opts.TLSCertEnv)
	key := os.Getenv(d.Opts.TLSKeyEnv)

	srv := &http.Server{
		Addr:         addr,
		Handler:      d.App,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		TLSConfig:    &tls.Config{MinVersion: tls.VersionTLS13, MaxVersion: tls.VersionTLS13},
	}
	useTLS := fileExists(cert) && fileExists(key)

	watchCtx, watchCancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			// A failed first generation still serves; the next change retries.
			if err := d.Bridge.Start(watchCtx); err != nil {
				d.Logger.Error("server function bridge started with errors", zap.Error(err))
			}

			if useTLS {
				d.Logger.Info("server starting (TLS)",
					zap.String("service", d.Cfg.Service),
					zap.String("addr", addr),
					zap.String("cert", cert),
				)
				go func() {
					if err := srv.ListenAndServeTLS(cert, key); err != nil && !errors.Is(err, http.ErrServerClosed) {
						d.Logger.Fatal("server failed", zap.Error(err))
					}
				}()
			} else {
				d.Logger.Info("server starting (PLAINTEXT)",
					zap.String("service", d.Cfg.Service),
					zap.String("addr", addr),
				)
				go func() {
					srv.TLSConfig = nil
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						d.Logger.Fatal("server failed", zap.Error(err))
					}
				}()
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			d.Logger.Info("server stopping", zap.String("service", d.Cfg.Service))
			watchCancel()
			return srv.Shutdown(ctx)
		},
	})
}

// ---- Public Fx module ----

// Module serves the registry in Options over HTTP with regenerate-on-change.
func Module(opts Options) fx.Option {
	return fx.Options(
		fx.Supply(opts.withDefaults()),

		// Middleware modules
		bundlefx.Module,

		// Router implementation
		fx.Provide(httpx.NewChi),

		// Server functions
		fx.Provide(provideConfig),
		fx.Provide(provideRegistry),
		fx.Provide(provideGenerator),
		fx.Provide(provideNotifier),
		fx.Provide(provideBridge),

		// Router (named "app")
		fx.Provide(
			fx.Annotate(
				provideRouter,
				fx.ResultTags(`name:"app"`),
			),
		),

		// App lifecycle (bridge + HTTP server)
		fx.Invoke(registerHooks),
	)
}

// ---- helpers ----

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
