package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/prperemyshlev/access-service/pkg/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const meterName = "github.com/prperemyshlev/access-service/internal/relay"

var (
	// ErrUnknownProvider is returned for providers that were never configured
	ErrUnknownProvider = errors.New("unknown webhook provider")
	// ErrNotLoaded is returned for providers whose function failed to load at start-up
	ErrNotLoaded = errors.New("webhook function not loaded")
)

// Registry maps provider names to functions. It is filled at start-up and
// read-only afterwards.
type Registry struct {
	functions   map[string]Function
	loadErrors  map[string]error
	invocations metric.Int64Counter
}

func NewRegistry() *Registry {
	invocations := observability.Counter(meterName, "relay.invocations",
		"Relayed webhook calls by provider and outcome")

	return &Registry{
		functions:   make(map[string]Function),
		loadErrors:  make(map[string]error),
		invocations: invocations,
	}
}

// LoadRegistry builds an HTTPFunction per route. Routes that fail to load
// stay registered so their webhook answers 503 instead of 404.
func LoadRegistry(routes map[string]string, secret string, client *http.Client, logger *zap.Logger) *Registry {
	r := NewRegistry()

	for name, target := range routes {
		fn, err := NewHTTPFunction(name, target, secret, client)
		if err != nil {
			logger.Error("failed to load webhook function", zap.String("provider", name), zap.Error(err))
			r.RegisterFailed(name, err)
			continue
		}
		r.Register(name, fn)
	}

	return r
}

func (r *Registry) Register(provider string, fn Function) {
	delete(r.loadErrors, provider)
	r.functions[provider] = fn
}

func (r *Registry) RegisterFailed(provider string, err error) {
	delete(r.functions, provider)
	r.loadErrors[provider] = err
}

// Providers returns every configured provider, loaded or not, sorted
func (r *Registry) Providers() []string {
	names := make([]string, 0, len(r.functions)+len(r.loadErrors))
	for name := range r.functions {
		names = append(names, name)
	}
	for name := range r.loadErrors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the function for provider
func (r *Registry) Lookup(provider string) (Function, error) {
	if err, failed := r.loadErrors[provider]; failed {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotLoaded, provider, err)
	}

	fn, ok := r.functions[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	return fn, nil
}

// Invoke looks up and calls the provider's function. Errors from the
// function itself are returned unwrapped.
func (r *Registry) Invoke(ctx context.Context, provider string, envelope Envelope) (Response, error) {
	fn, err := r.Lookup(provider)
	if err != nil {
		r.record(ctx, provider, "unavailable")
		return Response{}, err
	}

	resp, err := fn.Invoke(ctx, envelope)
	if err != nil {
		r.record(ctx, provider, "error")
		return Response{}, err
	}

	r.record(ctx, provider, "ok")
	return resp, nil
}

func (r *Registry) record(ctx context.Context, provider, outcome string) {
	r.invocations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("outcome", outcome),
	))
}
