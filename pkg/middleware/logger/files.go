package logger

import (
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultDir is where log files are written unless SetDir says otherwise.
const DefaultDir = "log"

var (
	dirMu  sync.RWMutex
	logDir = DefaultDir
)

// SetDir changes the directory NewLog writes to.
func SetDir(dir string) {
	if dir == "" {
		return
	}
	dirMu.Lock()
	logDir = dir
	dirMu.Unlock()
}

func ensureLogDir() string {
	dirMu.RLock()
	dir := logDir
	dirMu.RUnlock()
	_ = os.MkdirAll(dir, 0o755)
	return dir
}

// NewLog returns a JSON logger that writes to stdout and to a rotated file
// named n in the log directory.
func NewLog(n string) *zap.Logger {
	dir := ensureLogDir()

	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder

	console := zapcore.Lock(os.Stdout)

	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(dir, n),
		MaxSize:    50, // MB
		MaxBackups: 3,
		MaxAge:     7, // days
	})

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(cfg), w, zap.InfoLevel),
		zapcore.NewCore(zapcore.NewJSONEncoder(cfg), console, zap.InfoLevel),
	)
	return zap.New(core)
}

var (
	accessOnce       sync.Once
	httpAccessLogger *zap.Logger
)

func accessLogger() *zap.Logger {
	accessOnce.Do(func() {
		if httpAccessLogger == nil {
			httpAccessLogger = NewLog("http-access.log")
		}
	})
	return httpAccessLogger
}

// SetAccessLogger lets tests/CLIs override the access logger (optional).
func SetAccessLogger(l *zap.Logger) {
	if l != nil {
		accessOnce.Do(func() {})
		httpAccessLogger = l
	}
}
