package devbridge

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/joeydtaylor/steeze-serverfn/pkg/client"
	"github.com/joeydtaylor/steeze-serverfn/pkg/codegen"
	"github.com/joeydtaylor/steeze-serverfn/pkg/fn"
	"github.com/joeydtaylor/steeze-serverfn/pkg/transport/httpx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func getUser(ctx context.Context, call *fn.Call) (any, error) {
	return map[string]any{"id": 1}, nil
}

func boom(ctx context.Context, call *fn.Call) (any, error) {
	return nil, errors.New("boom")
}

func echo(ctx context.Context, call *fn.Call) (any, error) {
	var in map[string]any
	if err := call.Decode(&in); err != nil {
		return nil, err
	}
	return map[string]any{"method": call.Method, "in": in, "trace": call.Header.Get("X-Trace")}, nil
}

func newRegistry(t *testing.T) *fn.Registry {
	t.Helper()
	reg := fn.NewRegistry(fn.ServerContext)
	require.NoError(t, reg.Register("getUser", getUser))
	require.NoError(t, reg.Register("boom", boom))
	require.NoError(t, reg.Register("echo", echo))
	return reg
}

// serve mounts b on a parent router the way the dev server does.
func serve(t *testing.T, b *Bridge) *client.Client {
	t.Helper()
	r := httpx.NewChi()
	b.Attach(r)
	srv := httptest.NewServer(r.Mux())
	t.Cleanup(srv.Close)
	return client.New(client.WithBaseURL(srv.URL+b.BasePath()), client.WithHTTPClient(srv.Client()))
}

type fakeNotifier struct {
	mu       sync.Mutex
	onChange func(string)
	err      error
}

func (n *fakeNotifier) Subscribe(ctx context.Context, onChange func(string)) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.onChange = onChange
	return nil
}

func (n *fakeNotifier) fire(path string) {
	n.mu.Lock()
	f := n.onChange
	n.mu.Unlock()
	f(path)
}

type countingGen struct {
	calls int
	err   error
}

func (g *countingGen) Generate(*fn.Registry) (codegen.Result, error) {
	g.calls++
	return codegen.Result{}, g.err
}

type recorder struct {
	invocations map[string][]error
	generations []error
}

func (r *recorder) ObserveInvocation(name string, err error, _ time.Duration) {
	if r.invocations == nil {
		r.invocations = map[string][]error{}
	}
	r.invocations[name] = append(r.invocations[name], err)
}

func (r *recorder) ObserveGeneration(err error) { r.generations = append(r.generations, err) }

func TestGetUserReturnsResult(t *testing.T) {
	c := serve(t, New(newRegistry(t), nil))

	var out map[string]int
	require.NoError(t, c.Get(context.Background(), "getUser", &out, nil))
	assert.Equal(t, map[string]int{"id": 1}, out)
}

func TestFailingFunctionIs500AndLogged(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	rec := &recorder{}
	b := New(newRegistry(t), nil, WithLogger(zap.New(core)), WithRecorder(rec))

	rr := httptest.NewRecorder()
	b.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/serverFn/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"boom"}`, rr.Body.String())

	failed := logs.FilterMessage("server function failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "boom", failed[0].ContextMap()["function"])

	require.Len(t, rec.invocations["boom"], 1)
	assert.EqualError(t, rec.invocations["boom"][0], "boom")

	c := serve(t, b)
	err := c.Get(context.Background(), "boom", nil, nil)
	var ne *client.NetworkError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, http.StatusInternalServerError, ne.StatusCode)
}

func TestEveryVerbReachesTheFunction(t *testing.T) {
	c := serve(t, New(newRegistry(t), nil))
	ctx := context.Background()

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete} {
		var out struct {
			Method string         `json:"method"`
			In     map[string]any `json:"in"`
			Trace  string         `json:"trace"`
		}
		opts := &client.Options{
			Header: map[string]string{"X-Trace": "t1"},
			Data:   map[string]any{"n": 1.0},
		}
		require.NoError(t, c.Dispatch(ctx, "echo", method, opts, &out), method)
		assert.Equal(t, method, out.Method)
		assert.Equal(t, map[string]any{"n": 1.0}, out.In)
		assert.Equal(t, "t1", out.Trace)
	}

	require.NoError(t, c.Head(ctx, "getUser", nil))
}

func TestUnknownFunctionIs404(t *testing.T) {
	b := New(newRegistry(t), nil)
	rr := httptest.NewRecorder()
	b.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/serverFn/nope", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPreflightAllowsAllOrigins(t *testing.T) {
	b := New(newRegistry(t), nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/serverFn/getUser", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	b.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	for _, m := range []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"} {
		assert.Contains(t, rr.Header().Get("Access-Control-Allow-Methods"), m)
	}
}

func TestCustomBasePath(t *testing.T) {
	b := New(newRegistry(t), nil, WithBasePath("/fns"))
	c := serve(t, b)

	var out map[string]int
	require.NoError(t, c.Get(context.Background(), "getUser", &out, nil))
	assert.Equal(t, 1, out["id"])
}

func TestReloadPicksUpNewRegistrations(t *testing.T) {
	reg := newRegistry(t)
	b := New(reg, nil)

	rr := httptest.NewRecorder()
	b.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/serverFn/later", nil))
	require.Equal(t, http.StatusNotFound, rr.Code)

	require.NoError(t, reg.Register("later", getUser))
	b.Reload()

	rr = httptest.NewRecorder()
	b.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/serverFn/later", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestStartGeneratesAndRegeneratesOnChange(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	gen := &countingGen{}
	n := &fakeNotifier{}
	rec := &recorder{}
	b := New(newRegistry(t), gen, WithNotifier(n), WithLogger(zap.New(core)), WithRecorder(rec))

	require.NoError(t, b.Start(context.Background()))
	assert.Equal(t, 1, gen.calls)

	n.fire("fns.go")
	n.fire("fns.go")
	assert.Equal(t, 3, gen.calls)
	assert.Len(t, rec.generations, 3)
	assert.Len(t, logs.FilterMessage("server functions changed, updating files").All(), 2)
}

func TestRegenerationFailureOnChangeIsNotFatal(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	gen := &countingGen{}
	n := &fakeNotifier{}
	b := New(newRegistry(t), gen, WithNotifier(n), WithLogger(zap.New(core)))
	require.NoError(t, b.Start(context.Background()))

	gen.err = errors.New("disk full")
	n.fire("fns.go")
	assert.Len(t, logs.FilterMessage("server function regeneration failed").All(), 1)

	rr := httptest.NewRecorder()
	b.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/serverFn/getUser", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestStartReportsInitialFailures(t *testing.T) {
	gen := &countingGen{err: errors.New("disk full")}
	n := &fakeNotifier{err: errors.New("no watcher")}
	err := New(newRegistry(t), gen, WithNotifier(n)).Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, err.Error(), "no watcher")
}

func TestStartWritesArtifacts(t *testing.T) {
	out := filepath.Join(t.TempDir(), "api", "serverFn")
	b := New(newRegistry(t), codegen.New(out))
	require.NoError(t, b.Start(context.Background()))

	for _, name := range []string{"getUser", "boom", "echo"} {
		_, err := os.Stat(filepath.Join(out, name+".go"))
		assert.NoError(t, err, name)
	}
}
