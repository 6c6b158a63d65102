// Package gemini adapts the Google GenAI SDK to the provider-agnostic
// completion request used by the dispatcher and the catalog.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"mimic-assistant/internal/domain"
)

// StatusError captures a non-2xx answer from the Gemini API.
type StatusError struct {
	StatusCode int
	Status     string
	Message    string
	Err        error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gemini: status %d %s: %s", e.StatusCode, e.Status, e.Message)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

func (e *StatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// KeySource yields the API key used to build the SDK client.
type KeySource interface {
	APIKey(ctx context.Context) (string, error)
}

// generator is the slice of the SDK the client calls. *genai.Models satisfies it.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Client builds one SDK client per API key and reuses it until the key
// changes.
type Client struct {
	keys       KeySource
	baseURL    string
	httpClient *http.Client
	factory    func(ctx context.Context, apiKey string) (generator, error)

	mu     sync.Mutex
	gen    generator
	genKey string
}

type Option func(*Client)

// WithBaseURL points the SDK at another endpoint, e.g. a test server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(keys KeySource, opts ...Option) (*Client, error) {
	if keys == nil {
		return nil, errors.New("gemini: key source must not be nil")
	}
	c := &Client{
		keys:       keys,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
	c.factory = c.newGenerator
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) newGenerator(ctx context.Context, apiKey string) (generator, error) {
	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: c.httpClient,
	}
	if c.baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: c.baseURL}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return client.Models, nil
}

func (c *Client) generatorFor(ctx context.Context) (generator, error) {
	key, err := c.keys.APIKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("gemini: resolve api key: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != nil && c.genKey == key {
		return c.gen, nil
	}
	gen, err := c.factory(ctx, key)
	if err != nil {
		return nil, err
	}
	c.gen, c.genKey = gen, key
	return gen, nil
}

// Complete sends one GenerateContent call and returns the concatenated text
// of the first candidate. An empty string means the model produced no text.
func (c *Client) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	if strings.TrimSpace(req.Model) == "" {
		return "", errors.New("gemini: model must not be empty")
	}
	gen, err := c.generatorFor(ctx)
	if err != nil {
		return "", err
	}

	resp, err := gen.GenerateContent(ctx, req.Model, toContents(req.Turns), toConfig(req))
	if err != nil {
		return "", wrapError(err)
	}
	if resp == nil {
		return "", nil
	}
	return resp.Text(), nil
}

func toContents(turns []domain.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		var role genai.Role = genai.RoleUser
		if t.Role == domain.TurnModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(t.Text, role))
	}
	return contents
}

func toConfig(req domain.CompletionRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if s := strings.TrimSpace(req.SystemInstruction); s != "" {
		cfg.SystemInstruction = genai.NewContentFromText(s, genai.RoleUser)
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(req.Temperature)
	}
	if req.TopP > 0 {
		cfg.TopP = genai.Ptr(req.TopP)
	}
	return cfg
}

// wrapError lifts SDK API errors into a StatusError so callers can switch
// on the status code instead of the message text.
func wrapError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{StatusCode: apiErr.Code, Status: apiErr.Status, Message: apiErr.Message, Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &StatusError{StatusCode: apiErrPtr.Code, Status: apiErrPtr.Status, Message: apiErrPtr.Message, Err: err}
	}
	return fmt.Errorf("gemini: generate content: %w", err)
}
