package metrics

import "time"

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Functions records server function invocations and generation passes.
type Functions struct{}

func ProvideFunctions() *Functions { return &Functions{} }

func (*Functions) ObserveInvocation(name string, err error, d time.Duration) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	functionInvocations.WithLabelValues(name, outcome).Inc()
	functionDuration.WithLabelValues(name).Observe(d.Seconds())
}

func (*Functions) ObserveGeneration(err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	generationPasses.WithLabelValues(outcome).Inc()
}
