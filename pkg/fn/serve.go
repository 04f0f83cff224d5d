// pkg/fn/serve.go
package fn

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"

	"github.com/joeydtaylor/steeze-serverfn/pkg/codec"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	loggerMu    sync.Mutex
	serveLogger *zap.Logger
)

// SetLogger sets the logger Serve reports failures to. Until it is called
// Serve logs JSON to stderr with zap's production config.
func SetLogger(l *zap.Logger) {
	if l == nil {
		return
	}
	loggerMu.Lock()
	serveLogger = l
	loggerMu.Unlock()
}

func currentLogger() *zap.Logger {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	if serveLogger == nil {
		l, err := zap.NewProduction()
		if err != nil {
			l = zap.New(zapcore.NewCore(
				zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
				zapcore.Lock(os.Stderr),
				zap.InfoLevel,
			))
		}
		serveLogger = l
	}
	return serveLogger
}

// Serve invokes f for r and writes the outcome to w. Generated handlers call it.
func Serve(w http.ResponseWriter, r *http.Request, name string, f Func) {
	_ = ServeWith(w, r, name, f, currentLogger())
}

// ServeWith writes 200 with the JSON-encoded result, or 500 with
// {"error": message} when f fails or panics. The failure is logged with the
// function name and returned.
func ServeWith(w http.ResponseWriter, r *http.Request, name string, f Func, log *zap.Logger) error {
	if log == nil {
		log = currentLogger()
	}
	call, err := NewCall(r)
	if err == nil {
		var out any
		out, err = invoke(r.Context(), f, call)
		if err == nil {
			payload, merr := codec.JSON.Marshal(out)
			if merr == nil {
				writeJSON(w, payload, http.StatusOK)
				return nil
			}
			err = fmt.Errorf("encode result: %w", merr)
		}
	}

	log.Error("server function failed", zap.String("function", name), zap.Error(err))
	writeError(w, err)
	return err
}

func invoke(ctx context.Context, f Func, call *Call) (out any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return f(ctx, call)
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	payload, merr := codec.JSON.Marshal(errorBody{Error: err.Error()})
	if merr != nil {
		payload = []byte(`{"error":"internal error"}`)
	}
	writeJSON(w, payload, http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, payload []byte, status int) {
	w.Header().Set("Content-Type", codec.ContentTypeJSON)
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}
