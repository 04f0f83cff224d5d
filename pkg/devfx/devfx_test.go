package devfx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/joeydtaylor/steeze-serverfn/pkg/config"
	"github.com/joeydtaylor/steeze-serverfn/pkg/fn"
	"github.com/joeydtaylor/steeze-serverfn/pkg/middleware/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

func getUser(ctx context.Context, call *fn.Call) (any, error) {
	return map[string]any{"id": 1}, nil
}

func newApp(t *testing.T, opts Options) (*fxtest.App, http.Handler, string) {
	t.Helper()
	root := t.TempDir()
	logger.SetDir(filepath.Join(root, "log"))
	t.Setenv("SERVERFN_CONFIG", filepath.Join(root, "serverfn.toml"))
	t.Setenv(config.EnvRoot, root)
	t.Setenv(config.EnvListen, "127.0.0.1:0")

	var app http.Handler
	fxApp := fxtest.New(t,
		Module(opts),
		fx.Invoke(fx.Annotate(func(h http.Handler) { app = h }, fx.ParamTags(`name:"app"`))),
	)
	return fxApp, app, root
}

func newRegistry(t *testing.T) *fn.Registry {
	t.Helper()
	reg := fn.NewRegistry(fn.ServerContext)
	require.NoError(t, reg.Register("getUser", getUser))
	return reg
}

func TestModuleServesFunctions(t *testing.T) {
	_, app, _ := newApp(t, Options{Registry: newRegistry(t), NoWatch: true})
	require.NotNil(t, app)

	rr := httptest.NewRecorder()
	app.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/serverFn/getUser", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"id":1}`, rr.Body.String())
	assert.NotEmpty(t, rr.Header().Get("Content-Type"))

	rr = httptest.NewRecorder()
	app.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	app.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "serverfn_invocations_total")
}

func TestModuleGeneratesOnStart(t *testing.T) {
	fxApp, _, root := newApp(t, Options{Registry: newRegistry(t)})
	fxApp.RequireStart()
	defer fxApp.RequireStop()

	_, err := os.Stat(filepath.Join(root, "api", "serverFn", "getUser.go"))
	assert.NoError(t, err)
}

func TestModuleRequiresRegistry(t *testing.T) {
	logger.SetDir(t.TempDir())
	t.Setenv("SERVERFN_CONFIG", filepath.Join(t.TempDir(), "serverfn.toml"))

	app := fx.New(Module(Options{}), fx.NopLogger)
	assert.Error(t, app.Err())
}
