package flows

import (
	"context"
	"time"
)

// HealthCheck is one named dependency probe.
type HealthCheck struct {
	Name string
	Ping func(context.Context) (time.Duration, error)
}

// HealthStatus reports one probe result.
type HealthStatus struct {
	Name    string
	OK      bool
	Latency time.Duration
	Error   string
}

// HealthDeps captures the dependency probes.
type HealthDeps struct {
	Checks  []HealthCheck
	Timeout time.Duration
}

// RunHealth probes every check concurrently and reports whether all passed.
func RunHealth(ctx context.Context, deps HealthDeps) (bool, []HealthStatus) {
	if deps.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, deps.Timeout)
		defer cancel()
	}

	out := make([]HealthStatus, len(deps.Checks))
	done := make(chan struct{}, len(deps.Checks))
	for i, check := range deps.Checks {
		go func() {
			defer func() { done <- struct{}{} }()
			latency, err := check.Ping(ctx)
			st := HealthStatus{Name: check.Name, OK: err == nil, Latency: latency}
			if err != nil {
				st.Error = err.Error()
			}
			out[i] = st
		}()
	}
	for range deps.Checks {
		<-done
	}

	healthy := true
	for _, st := range out {
		healthy = healthy && st.OK
	}
	return healthy, out
}
