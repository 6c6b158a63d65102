// Package dispatch turns a conversation log into exactly one displayable
// assistant reply.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mimic-assistant/internal/credential"
	"mimic-assistant/internal/domain"
)

const DefaultModel = "gemini-3-pro-preview"

// Completer issues one completion request against the language model.
type Completer interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (string, error)
}

// CredentialSource yields the API key checked before every dispatch.
type CredentialSource interface {
	APIKey(ctx context.Context) (string, error)
}

type Dispatcher struct {
	completer Completer
	creds     CredentialSource
	model     string
	timeout   time.Duration
	logger    *slog.Logger
}

type Option func(*Dispatcher)

func WithModel(model string) Option {
	return func(d *Dispatcher) {
		if m := strings.TrimSpace(model); m != "" {
			d.model = m
		}
	}
}

// WithTimeout bounds a single completion call. Zero disables the bound.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		d.timeout = timeout
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func New(completer Completer, creds CredentialSource, opts ...Option) (*Dispatcher, error) {
	if completer == nil {
		return nil, errors.New("dispatch: completer must not be nil")
	}
	if creds == nil {
		return nil, errors.New("dispatch: credential source must not be nil")
	}
	d := &Dispatcher{
		completer: completer,
		creds:     creds,
		model:     DefaultModel,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Dispatch never fails: every outcome, including configuration and transport
// failures, is rendered as the text of the assistant's next turn.
func (d *Dispatcher) Dispatch(ctx context.Context, log []domain.Message, privileged bool) string {
	key, err := d.creds.APIKey(ctx)
	switch {
	case errors.Is(err, credential.ErrMissing), err == nil && strings.TrimSpace(key) == "":
		d.logger.Error("dispatch: api key not configured", "category", CategoryConfigurationMissing, "err", err)
		return CategoryConfigurationMissing.Message(err)
	case err != nil:
		category := Classify(err)
		d.logger.Error("dispatch: api key lookup failed", "category", category, "err", err)
		return category.Message(err)
	}

	effective := privileged || domain.LogHasTrigger(log)
	profile := SelectProfile(effective)

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	text, err := d.complete(ctx, domain.CompletionRequest{
		Model:             d.model,
		SystemInstruction: profile.Persona,
		Turns:             toTurns(log),
		Temperature:       profile.Temperature,
		TopP:              profile.TopP,
	})
	if err != nil {
		category := Classify(err)
		d.logger.Error("dispatch: completion failed", "category", category, "profile", profile.Name, "err", err)
		return category.Message(err)
	}
	if strings.TrimSpace(text) == "" {
		d.logger.Warn("dispatch: empty completion", "profile", profile.Name)
		return MessageEmptyResponse
	}
	return text
}

// complete calls the completer and turns a panic inside it into an error.
func (d *Dispatcher) complete(ctx context.Context, req domain.CompletionRequest) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch: completer panicked: %v", r)
		}
	}()
	return d.completer.Complete(ctx, req)
}
