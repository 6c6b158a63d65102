// Package credential resolves the completion API key for each dispatch.
package credential

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"mimic-assistant/internal/integrations/paramstore"
)

// ErrMissing is returned when no usable API key is configured.
var ErrMissing = errors.New("credential: api key is not configured")

// placeholders are values build tooling leaves behind when the real key was
// never injected.
var placeholders = map[string]struct{}{
	"undefined":           {},
	"null":                {},
	"placeholder_api_key": {},
	"your_api_key":        {},
	"your-api-key":        {},
	"changeme":            {},
}

// Validate returns the trimmed key, or ErrMissing for empty and placeholder values.
func Validate(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrMissing
	}
	if _, ok := placeholders[strings.ToLower(key)]; ok {
		return "", ErrMissing
	}
	return key, nil
}

// Source yields the API key. Implementations are read on every dispatch.
type Source interface {
	APIKey(ctx context.Context) (string, error)
}

// Static is a fixed key, mostly for tests and the CLI.
type Static string

func (s Static) APIKey(context.Context) (string, error) {
	return Validate(string(s))
}

// Env reads the first non-empty variable out of Names on each call.
type Env struct {
	Names  []string
	lookup func(string) (string, bool)
}

func NewEnv(names ...string) *Env {
	return &Env{Names: names, lookup: os.LookupEnv}
}

func (e *Env) APIKey(context.Context) (string, error) {
	lookup := e.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, name := range e.Names {
		if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
			return Validate(v)
		}
	}
	return "", ErrMissing
}

// Getter is the parameter store lookup ParamStore depends on.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// tokenPayload is the JSON shape stored in SSM for the API key.
type tokenPayload struct {
	Token string `json:"token"`
}

// ParamStore fetches the key from a SecureString parameter holding
// {"token":"..."}. A successful fetch is cached for the process lifetime;
// failures are retried on the next call.
type ParamStore struct {
	getter Getter
	name   string

	mu     sync.Mutex
	cached string
}

func NewParamStore(getter Getter, name string) (*ParamStore, error) {
	if getter == nil {
		return nil, errors.New("credential: paramstore getter must not be nil")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("credential: parameter name must not be empty")
	}
	return &ParamStore{getter: getter, name: name}, nil
}

func (p *ParamStore) APIKey(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cached != "" {
		return p.cached, nil
	}

	raw, err := p.getter.GetParameter(ctx, p.name)
	if errors.Is(err, paramstore.ErrNotFound) {
		return "", fmt.Errorf("%w: %w", ErrMissing, err)
	}
	if err != nil {
		return "", fmt.Errorf("credential: fetch token from paramstore: %w", err)
	}
	var tp tokenPayload
	if err := json.Unmarshal([]byte(raw), &tp); err != nil {
		return "", fmt.Errorf("credential: unmarshal paramstore token value as JSON: %w", err)
	}
	key, err := Validate(tp.Token)
	if err != nil {
		return "", err
	}
	p.cached = key
	return key, nil
}
