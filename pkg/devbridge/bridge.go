// pkg/devbridge/bridge.go
package devbridge

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joeydtaylor/steeze-serverfn/pkg/codegen"
	"github.com/joeydtaylor/steeze-serverfn/pkg/fn"
	"github.com/joeydtaylor/steeze-serverfn/pkg/middleware/cors"
	"github.com/joeydtaylor/steeze-serverfn/pkg/transport/httpx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Methods are the verbs every function answers to in development.
var Methods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodHead,
	http.MethodOptions,
}

// Notifier reports source file changes. Subscribe returns once the
// subscription is in place; onChange is called until ctx is done.
type Notifier interface {
	Subscribe(ctx context.Context, onChange func(path string)) error
}

// Mounter attaches a handler under a path prefix.
type Mounter interface {
	Mount(pattern string, h http.Handler)
}

// Generator writes the production artifacts. *codegen.Generator implements it.
type Generator interface {
	Generate(reg *fn.Registry) (codegen.Result, error)
}

// Recorder observes invocations and generation passes.
type Recorder interface {
	ObserveInvocation(name string, err error, d time.Duration)
	ObserveGeneration(err error)
}

type nopRecorder struct{}

func (nopRecorder) ObserveInvocation(string, error, time.Duration) {}
func (nopRecorder) ObserveGeneration(error)                        {}

// Bridge serves every registered function over HTTP without a build step and
// keeps the generated artifacts current while sources change.
type Bridge struct {
	reg      *fn.Registry
	gen      Generator
	base     string
	log      *zap.Logger
	notifier Notifier
	cors     *cors.Middleware
	rec      Recorder

	mu     sync.Mutex // serializes regenerate + reload
	routes atomic.Pointer[routes]
}

type routes struct{ h http.Handler }

type Option func(*Bridge)

func WithBasePath(p string) Option {
	return func(b *Bridge) {
		if p != "" {
			b.base = p
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(b *Bridge) {
		if l != nil {
			b.log = l
		}
	}
}

func WithNotifier(n Notifier) Option { return func(b *Bridge) { b.notifier = n } }

// WithOrigins restricts cross-origin callers. By default every origin is allowed.
func WithOrigins(origins ...string) Option {
	return func(b *Bridge) { b.cors = cors.New(origins...) }
}

func WithRecorder(r Recorder) Option {
	return func(b *Bridge) {
		if r != nil {
			b.rec = r
		}
	}
}

// New builds a bridge over reg. gen may be nil, in which case nothing is
// written to disk. Routes for the functions already registered are installed
// immediately.
func New(reg *fn.Registry, gen Generator, opts ...Option) *Bridge {
	b := &Bridge{
		reg:  reg,
		gen:  gen,
		base: fn.DefaultBasePath,
		log:  zap.NewNop(),
		cors: cors.New(),
		rec:  nopRecorder{},
	}
	for _, o := range opts {
		o(b)
	}
	b.Reload()
	return b
}

func (b *Bridge) BasePath() string { return b.base }

// Handler returns the bridge as an http.Handler.
func (b *Bridge) Handler() http.Handler { return b }

// ServeHTTP routes r on the full request path, so the bridge behaves the same
// mounted under a parent chi router or served on its own.
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Context().Value(chi.RouteCtxKey) != nil {
		r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, nil))
	}
	b.routes.Load().h.ServeHTTP(w, r)
}

// Attach mounts the bridge on m at its base path.
func (b *Bridge) Attach(m Mounter) { m.Mount(b.base, b) }

// Reload rebuilds the route table from the registry and swaps it in.
// Requests in flight finish on the previous table.
func (b *Bridge) Reload() {
	r := httpx.NewChi()
	r.Use(b.cors.Handler)

	names := b.reg.Names()
	for _, name := range names {
		f, ok := b.reg.Lookup(name)
		if !ok {
			continue
		}
		h := b.endpoint(f)
		path := fn.Endpoint(b.base, name)
		for _, m := range Methods {
			r.Handle(m, path, h)
		}
	}

	b.routes.Store(&routes{h: r.Mux()})
	b.log.Info("server function routes installed", zap.String("base", b.base), zap.Int("functions", len(names)))
}

func (b *Bridge) endpoint(f *fn.Function) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		err := fn.ServeWith(w, r, f.Name, f.Fn, b.log)
		b.rec.ObserveInvocation(f.Name, err, time.Since(start))
	})
}

// Regenerate writes every artifact again.
func (b *Bridge) Regenerate() error {
	if b.gen == nil {
		return nil
	}
	_, err := b.gen.Generate(b.reg)
	b.rec.ObserveGeneration(err)
	return err
}

// Start generates the artifacts, installs the routes and, when a notifier is
// configured, subscribes to source changes. Every change regenerates all
// artifacts and reinstalls all routes. The returned error is the initial
// generation failure, if any, joined with a subscription failure.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	err := b.Regenerate()
	b.Reload()
	b.mu.Unlock()

	if b.notifier == nil {
		return err
	}
	if serr := b.notifier.Subscribe(ctx, b.onChange); serr != nil {
		return multierr.Append(err, serr)
	}
	return err
}

func (b *Bridge) onChange(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.log.Info("server functions changed, updating files", zap.String("path", path))
	if err := b.reg.Refresh(); err != nil {
		b.log.Warn("server function sources not refreshed", zap.Error(err))
	}
	if err := b.Regenerate(); err != nil {
		b.log.Error("server function regeneration failed", zap.Error(err))
	}
	b.Reload()
}
