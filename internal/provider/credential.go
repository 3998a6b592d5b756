package provider

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
)

// CredentialPort fetches and rotates provider credentials. A 429 response
// can trigger rotation as a side channel before the next retry attempt;
// rotation does not consume a retry.
type CredentialPort interface {
	Get(ctx context.Context, provider string) (string, error)
	RotateOnRateLimit(ctx context.Context, provider string) (string, bool, error)
}

// EnvCredentialPort rotates through a comma-separated list of keys in a
// single environment variable per provider, generalizing the single-key
// environment lookup of the adapter subpackages' API-key constructors.
type EnvCredentialPort struct {
	mu   sync.Mutex
	idx  map[string]int
	vars map[string]string // provider -> env var name
}

// NewEnvCredentialPort builds a port over the given provider->env-var map,
// e.g. {"anthropic": "ANTHROPIC_API_KEY", "moonshot": "MOONSHOT_API_KEY"}.
func NewEnvCredentialPort(vars map[string]string) *EnvCredentialPort {
	return &EnvCredentialPort{idx: make(map[string]int), vars: vars}
}

func (p *EnvCredentialPort) keys(providerName string) []string {
	envVar, ok := p.vars[providerName]
	if !ok {
		return nil
	}
	raw := os.Getenv(envVar)
	if raw == "" {
		return nil
	}
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func (p *EnvCredentialPort) Get(_ context.Context, providerName string) (string, error) {
	keys := p.keys(providerName)
	if len(keys) == 0 {
		return "", fmt.Errorf("no credentials configured for provider %s", providerName)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return keys[p.idx[providerName]%len(keys)], nil
}

// RotateOnRateLimit advances to the next key in the list. Returns ok=false
// when only one key is configured (nothing to rotate to).
func (p *EnvCredentialPort) RotateOnRateLimit(_ context.Context, providerName string) (string, bool, error) {
	keys := p.keys(providerName)
	if len(keys) < 2 {
		return "", false, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idx[providerName] = (p.idx[providerName] + 1) % len(keys)
	return keys[p.idx[providerName]], true, nil
}
