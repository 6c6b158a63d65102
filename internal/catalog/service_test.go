package catalog

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"mimic-assistant/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeCompleter struct {
	mu       sync.Mutex
	reqs     []domain.CompletionRequest
	reply    func(req domain.CompletionRequest) (string, error)
	inFlight atomic.Int32
	peak     atomic.Int32
	delay    time.Duration
}

func (f *fakeCompleter) Complete(_ context.Context, req domain.CompletionRequest) (string, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	return f.reply(req)
}

func (f *fakeCompleter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

func newService(t *testing.T, fc *fakeCompleter, opts ...Option) *Service {
	t.Helper()
	c, err := Default()
	require.NoError(t, err)
	s, err := NewService(c, fc, opts...)
	require.NoError(t, err)
	return s
}

func TestNewService_ValidatesDependencies(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	_, err = NewService(nil, &fakeCompleter{})
	require.Error(t, err)
	_, err = NewService(c, nil)
	require.Error(t, err)
}

func TestDossier_BuildsRequest(t *testing.T) {
	fc := &fakeCompleter{reply: func(domain.CompletionRequest) (string, error) { return "A precise manipulator.", nil }}
	s := newService(t, fc)

	text, err := s.Dossier(context.Background(), "robotic-arm-6dof")
	require.NoError(t, err)
	require.Equal(t, "A precise manipulator.", text)

	require.Len(t, fc.reqs, 1)
	req := fc.reqs[0]
	require.Equal(t, DefaultModel, req.Model)
	require.Equal(t, dossierPersona, req.SystemInstruction)
	require.InDelta(t, 0.5, req.Temperature, 1e-6)
	require.Equal(t, []domain.Turn{{Role: domain.TurnUser, Text: "Provide a brief professional overview of the project: 6-DOF Robotic Arm."}}, req.Turns)
}

func TestDossier_CachesSuccess(t *testing.T) {
	fc := &fakeCompleter{reply: func(domain.CompletionRequest) (string, error) { return "ok", nil }}
	s := newService(t, fc)

	for range 3 {
		_, err := s.Dossier(context.Background(), "claw-head-v2")
		require.NoError(t, err)
	}
	require.Equal(t, 1, fc.calls())
}

func TestDossier_FallbackOnFailure(t *testing.T) {
	cases := map[string]func(domain.CompletionRequest) (string, error){
		"error": func(domain.CompletionRequest) (string, error) { return "", errors.New("403 PERMISSION_DENIED") },
		"empty": func(domain.CompletionRequest) (string, error) { return "  ", nil },
	}
	for name, reply := range cases {
		t.Run(name, func(t *testing.T) {
			fc := &fakeCompleter{reply: reply}
			s := newService(t, fc)

			text, err := s.Dossier(context.Background(), "afton-web-log")
			require.NoError(t, err)
			require.Equal(t, DossierUnavailable, text)

			// failures are not cached
			_, _ = s.Dossier(context.Background(), "afton-web-log")
			require.Equal(t, 2, fc.calls())
		})
	}
}

func TestDossier_UnknownProject(t *testing.T) {
	fc := &fakeCompleter{reply: func(domain.CompletionRequest) (string, error) { return "x", nil }}
	s := newService(t, fc)

	_, err := s.Dossier(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
	require.Zero(t, fc.calls())
}

func TestOverview(t *testing.T) {
	fc := &fakeCompleter{reply: func(domain.CompletionRequest) (string, error) { return "A tiny computer.", nil }}
	s := newService(t, fc, WithModel("gemini-test"))

	text, err := s.Overview(context.Background(), "esp32")
	require.NoError(t, err)
	require.Equal(t, "A tiny computer.", text)

	req := fc.reqs[0]
	require.Equal(t, "gemini-test", req.Model)
	require.Empty(t, req.SystemInstruction)
	require.InDelta(t, 0.7, req.Temperature, 1e-6)
	require.True(t, strings.HasPrefix(req.Turns[0].Text, "Explain what ESP32-WROVER is"))
	require.Contains(t, req.Turns[0].Text, "Max 2 short sentences.")

	_, err = s.Overview(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestOverview_Fallback(t *testing.T) {
	fc := &fakeCompleter{reply: func(domain.CompletionRequest) (string, error) { return "", errors.New("boom") }}
	s := newService(t, fc)

	text, err := s.Overview(context.Background(), "servos")
	require.NoError(t, err)
	require.Equal(t, OverviewUnavailable, text)
}

func TestOverviews_BoundedConcurrency(t *testing.T) {
	fc := &fakeCompleter{
		delay: 20 * time.Millisecond,
		reply: func(req domain.CompletionRequest) (string, error) {
			if strings.Contains(req.Turns[0].Text, "Gemini 3") {
				return "", errors.New("429 RESOURCE_EXHAUSTED")
			}
			return "overview", nil
		},
	}
	s := newService(t, fc, WithConcurrency(2))

	got := s.Overviews(context.Background())
	require.Equal(t, map[string]string{
		"esp32":      "overview",
		"gemini-ai":  OverviewUnavailable,
		"servos":     "overview",
		"python-cpp": "overview",
	}, got)
	require.Equal(t, 4, fc.calls())
	require.LessOrEqual(t, fc.peak.Load(), int32(2))
}

func TestProjectsAndLists(t *testing.T) {
	s := newService(t, &fakeCompleter{})

	require.Len(t, s.Projects(domain.CategoryMechatronics), 2)
	require.Len(t, s.Tech(), 4)
	require.Len(t, s.Innovations(), 3)

	// returned slices are copies
	tech := s.Tech()
	tech[0].Name = "changed"
	require.Equal(t, "ESP32-WROVER", s.Tech()[0].Name)
}
