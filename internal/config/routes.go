package config

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// FunctionRoutes maps a webhook provider name to the serverless function URL
// that handles it. Encoded as "vega=https://fn.example.com/vega,stripe=https://...".
type FunctionRoutes map[string]string

// EnvDecode implements envconfig.Decoder
func (r *FunctionRoutes) EnvDecode(ctx context.Context, v string) error {
	routes := FunctionRoutes{}
	for _, pair := range strings.Split(v, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		name, target, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return fmt.Errorf("invalid function route %q: expected name=url", pair)
		}

		routes[strings.ToLower(name)] = strings.TrimSpace(target)
	}

	*r = routes
	return nil
}

// Names returns provider names in a stable order
func (r FunctionRoutes) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
