package core

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

const healthCheckTimeout = 2 * time.Second

// HealthChecker checks one dependency (database, model store, inference).
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckFunc adapts a function to HealthChecker.
type CheckFunc struct {
	CheckName string
	Fn        func(ctx context.Context) error
}

// Name returns the check name.
func (p CheckFunc) Name() string { return p.CheckName }

// Check runs Fn.
func (p CheckFunc) Check(ctx context.Context) error { return p.Fn(ctx) }

type componentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status     string                     `json:"status"`
	Version    string                     `json:"version,omitempty"`
	Components map[string]componentStatus `json:"components,omitempty"`
}

// HandleHealth runs every check concurrently under a shared deadline and
// answers 200 when all pass, 503 otherwise. Checks that miss the deadline
// count as unhealthy.
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := healthResponse{Status: "healthy"}
	if s.Config != nil {
		resp.Version = s.Config.Build.Version
	}
	if len(s.HealthChecks) == 0 {
		JSON(w, r, http.StatusOK, resp)
		return
	}

	type result struct {
		name string
		err  error
	}
	results := make(chan result, len(s.HealthChecks))
	for _, p := range s.HealthChecks {
		go func(p HealthChecker) {
			var err error
			defer func() {
				if rvr := recover(); rvr != nil {
					err = fmt.Errorf("check panicked: %v", rvr)
				}
				results <- result{name: p.Name(), err: err}
			}()
			err = p.Check(ctx)
		}(p)
	}

	resp.Components = make(map[string]componentStatus, len(s.HealthChecks))
	for _, p := range s.HealthChecks {
		resp.Components[p.Name()] = componentStatus{Status: "unhealthy", Message: "health check timed out"}
	}

collect:
	for range s.HealthChecks {
		select {
		case res := <-results:
			if res.err != nil {
				resp.Components[res.name] = componentStatus{Status: "unhealthy", Message: res.err.Error()}
			} else {
				resp.Components[res.name] = componentStatus{Status: "healthy"}
			}
		case <-ctx.Done():
			break collect
		}
	}

	status := http.StatusOK
	for _, c := range resp.Components {
		if c.Status != "healthy" {
			resp.Status = "unhealthy"
			status = http.StatusServiceUnavailable
			break
		}
	}
	JSON(w, r, status, resp)
}
