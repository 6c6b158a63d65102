package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"mimic-assistant/internal/domain"
)

const (
	DefaultModel = "gemini-3-flash-preview"

	DossierUnavailable  = "Overview currently unavailable."
	OverviewUnavailable = "Data unavailable. Manual reference required."

	dossierPersona     = "You are a professional assistant providing project overviews."
	dossierTemperature = 0.5
	overviewTemp       = 0.7

	defaultConcurrency = 4
)

// Completer sends a single completion request and returns the model text.
type Completer interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (string, error)
}

// Service answers catalog reads and generates the short blurbs shown next to
// projects and tech items. Successful blurbs are cached for the process.
type Service struct {
	catalog     *Catalog
	completer   Completer
	model       string
	concurrency int
	logger      *slog.Logger

	mu        sync.RWMutex
	dossiers  map[string]string
	overviews map[string]string
}

type Option func(*Service)

func WithModel(model string) Option {
	return func(s *Service) {
		if m := strings.TrimSpace(model); m != "" {
			s.model = m
		}
	}
}

// WithConcurrency bounds the number of in-flight generations in Overviews.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(c *Catalog, completer Completer, opts ...Option) (*Service, error) {
	if c == nil {
		return nil, errors.New("catalog: catalog must not be nil")
	}
	if completer == nil {
		return nil, errors.New("catalog: completer must not be nil")
	}
	s := &Service{
		catalog:     c,
		completer:   completer,
		model:       DefaultModel,
		concurrency: defaultConcurrency,
		logger:      slog.Default(),
		dossiers:    make(map[string]string),
		overviews:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) Projects(category domain.ProjectCategory) []domain.Project {
	return s.catalog.ProjectsIn(category)
}

func (s *Service) Tech() []domain.TechItem {
	return append([]domain.TechItem(nil), s.catalog.Tech...)
}

func (s *Service) Innovations() []domain.Innovation {
	return append([]domain.Innovation(nil), s.catalog.Innovations...)
}

// Dossier returns a short professional overview of a project. Only an unknown
// id is an error; generation failures yield DossierUnavailable.
func (s *Service) Dossier(ctx context.Context, projectID string) (string, error) {
	p, err := s.catalog.Project(projectID)
	if err != nil {
		return "", err
	}
	if text, ok := s.cached(s.dossiers, p.ID); ok {
		return text, nil
	}

	text, err := s.completer.Complete(ctx, domain.CompletionRequest{
		Model:             s.model,
		SystemInstruction: dossierPersona,
		Turns:             []domain.Turn{{Role: domain.TurnUser, Text: dossierPrompt(p.Title)}},
		Temperature:       dossierTemperature,
	})
	if err != nil || strings.TrimSpace(text) == "" {
		s.logger.Warn("dossier generation failed", "project", p.ID, "err", err)
		return DossierUnavailable, nil
	}
	s.store(s.dossiers, p.ID, text)
	return text, nil
}

// Overview returns a beginner-level explanation of a tech item.
func (s *Service) Overview(ctx context.Context, techID string) (string, error) {
	t, err := s.catalog.TechItem(techID)
	if err != nil {
		return "", err
	}
	return s.overview(ctx, t), nil
}

// Overviews generates every tech overview concurrently, keyed by tech id.
func (s *Service) Overviews(ctx context.Context) map[string]string {
	items := s.catalog.Tech
	results := make([]string, len(items))

	p := pool.New().WithMaxGoroutines(s.concurrency)
	for i, t := range items {
		p.Go(func() {
			results[i] = s.overview(ctx, t)
		})
	}
	p.Wait()

	out := make(map[string]string, len(items))
	for i, t := range items {
		out[t.ID] = results[i]
	}
	return out
}

func (s *Service) overview(ctx context.Context, t domain.TechItem) string {
	if text, ok := s.cached(s.overviews, t.ID); ok {
		return text
	}
	text, err := s.completer.Complete(ctx, domain.CompletionRequest{
		Model:       s.model,
		Turns:       []domain.Turn{{Role: domain.TurnUser, Text: overviewPrompt(t.Name)}},
		Temperature: overviewTemp,
	})
	if err != nil || strings.TrimSpace(text) == "" {
		s.logger.Warn("tech overview generation failed", "tech", t.ID, "err", err)
		return OverviewUnavailable
	}
	s.store(s.overviews, t.ID, text)
	return text
}

func (s *Service) cached(m map[string]string, id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	text, ok := m[id]
	return text, ok
}

func (s *Service) store(m map[string]string, id, text string) {
	s.mu.Lock()
	m[id] = text
	s.mu.Unlock()
}

func dossierPrompt(title string) string {
	return fmt.Sprintf("Provide a brief professional overview of the project: %s.", title)
}

func overviewPrompt(name string) string {
	return strings.Join([]string{
		fmt.Sprintf("Explain what %s is and how it is used in robotics in very simple, beginner-friendly terms.", name),
		"Keep it short, clear, and easy to understand for a non-expert.",
		"Max 2 short sentences.",
	}, "\n")
}
