package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"mimic-assistant/internal/credential"
	"mimic-assistant/internal/domain"
)

// ---------------------------------------------------------------------------
// apiBaseURL helper
// ---------------------------------------------------------------------------

func TestAPIBaseURL(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"https://api.openai.com/v1", "https://api.openai.com/v1"},
		{"https://api.openai.com/v1/", "https://api.openai.com/v1"},
		{"http://localhost:8080", "http://localhost:8080/v1"},
		{"", "https://api.openai.com/v1"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, apiBaseURL(tc.base), "base=%q", tc.base)
	}
}

// ---------------------------------------------------------------------------
// NewClient
// ---------------------------------------------------------------------------

func TestNewClient_NilKeys(t *testing.T) {
	_, err := NewClient(nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "nil")
}

func TestNewClient_Defaults(t *testing.T) {
	c, err := NewClient(credential.Static("k"))
	require.NoError(t, err)
	require.Equal(t, defaultBaseURL, c.baseURL)
	require.NotNil(t, c.httpClient)
}

// ---------------------------------------------------------------------------
// Complete
// ---------------------------------------------------------------------------

type capturedRequest struct {
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newServer(t *testing.T, status int, body string, captured *capturedRequest, auth *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		if auth != nil {
			*auth = r.Header.Get("Authorization")
		}
		if captured != nil {
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, captured)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func request() domain.CompletionRequest {
	return domain.CompletionRequest{
		Model:             "gpt-4o-mini",
		SystemInstruction: "You are Mimic1.",
		Turns: []domain.Turn{
			{Role: domain.TurnUser, Text: "hello"},
			{Role: domain.TurnModel, Text: "Hi."},
			{Role: domain.TurnUser, Text: "status?"},
		},
		Temperature: 0.8,
	}
}

func TestComplete_HappyPath(t *testing.T) {
	var captured capturedRequest
	var auth string
	srv := newServer(t, http.StatusOK,
		`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Nominal."},"finish_reason":"stop"}]}`,
		&captured, &auth)

	c, err := NewClient(credential.Static("sk-test"), WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), request())
	require.NoError(t, err)
	require.Equal(t, "Nominal.", out)
	require.Equal(t, "Bearer sk-test", auth)

	require.Equal(t, "gpt-4o-mini", captured.Model)
	require.InDelta(t, 0.8, captured.Temperature, 1e-6)
	require.Len(t, captured.Messages, 4)
	require.Equal(t, "system", captured.Messages[0].Role)
	require.Equal(t, "user", captured.Messages[1].Role)
	require.Equal(t, "assistant", captured.Messages[2].Role)
	require.Equal(t, "status?", captured.Messages[3].Content)
}

func TestComplete_NoChoices(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"id":"c1","object":"chat.completion","choices":[]}`, nil, nil)
	c, err := NewClient(credential.Static("sk-test"), WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	out, err := c.Complete(context.Background(), request())
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestComplete_StatusErrors(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusNotFound, http.StatusTooManyRequests} {
		srv := newServer(t, status, `{"error":{"message":"nope","type":"invalid_request_error"}}`, nil, nil)
		c, err := NewClient(credential.Static("sk-test"), WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
		require.NoError(t, err)

		_, err = c.Complete(context.Background(), request())
		var statusErr *HTTPStatusError
		require.ErrorAs(t, err, &statusErr, "status=%d", status)
		require.Equal(t, status, statusErr.HTTPStatusCode())
	}
}

func TestComplete_Validation(t *testing.T) {
	c, err := NewClient(credential.Static(""))
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), request())
	require.True(t, errors.Is(err, credential.ErrMissing))

	req := request()
	req.Model = ""
	_, err = c.Complete(context.Background(), req)
	require.ErrorContains(t, err, "model")
}
