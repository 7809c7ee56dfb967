package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const healthCheckTimeout = 2 * time.Second

// Pinger is a dependency that can report whether it is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Liveness answers as long as the process serves requests
func Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type HealthChecker struct {
	deps map[string]Pinger
}

func NewHealthChecker(infra Infrastructure) *HealthChecker {
	return NewHealthCheckerFor(map[string]Pinger{
		"postgres": infra.Postgres(),
		"redis":    infra.Redis(),
	})
}

func NewHealthCheckerFor(deps map[string]Pinger) *HealthChecker {
	return &HealthChecker{deps: deps}
}

func (h *HealthChecker) check(ctx context.Context) map[string]error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	type result struct {
		name string
		err  error
	}

	results := make(chan result, len(h.deps))
	for name, dep := range h.deps {
		go func() {
			results <- result{name: name, err: dep.Ping(ctx)}
		}()
	}

	failures := make(map[string]error)
	for range h.deps {
		r := <-results
		if r.err != nil {
			failures[r.name] = r.err
		}
	}
	return failures
}

// Handler reports readiness of every dependency
func (h *HealthChecker) Handler(c *gin.Context) {
	failures := h.check(c.Request.Context())
	if len(failures) > 0 {
		errs := make([]error, 0, len(failures))
		checks := make(gin.H, len(h.deps))
		for name := range h.deps {
			checks[name] = "pass"
		}
		for name, err := range failures {
			checks[name] = "fail"
			errs = append(errs, err)
		}

		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "fail",
			"checks": checks,
			"error":  errors.Join(errs...).Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "pass",
	})
}
