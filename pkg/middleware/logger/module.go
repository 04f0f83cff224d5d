package logger

import (
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// SystemLog is the file the process logger writes to.
const SystemLog = "serverfn.log"

var Module = fx.Options(
	fx.Provide(ProvideLoggerMiddleware),
	fx.Provide(ProvideLogger),
)

func ProvideLoggerMiddleware() *Middleware { return &Middleware{} }

// ProvideLogger returns the process logger. Access lines go to their own file.
func ProvideLogger() *zap.Logger { return NewLog(SystemLog) }
