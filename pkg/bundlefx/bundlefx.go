// bundlefx/bundlefx.go
package bundlefx

import (
	"github.com/joeydtaylor/steeze-serverfn/pkg/middleware/logger"
	"github.com/joeydtaylor/steeze-serverfn/pkg/middleware/metrics"
	"go.uber.org/fx"
)

// Module provided to fx: loggers, access log middleware and metrics.
var Module = fx.Options(
	logger.Module,
	metrics.Module,
)
