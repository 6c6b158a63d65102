package usecase

import (
	"context"
	"errors"

	"mimic-assistant/internal/catalog"
	"mimic-assistant/internal/domain"
)

// Catalog is the read side the catalog use case wraps. *catalog.Service
// satisfies it.
type Catalog interface {
	Projects(category domain.ProjectCategory) []domain.Project
	Tech() []domain.TechItem
	Innovations() []domain.Innovation
	Dossier(ctx context.Context, projectID string) (string, error)
	Overview(ctx context.Context, techID string) (string, error)
	Overviews(ctx context.Context) map[string]string
}

type CatalogService struct {
	catalog Catalog
}

func NewCatalogService(c Catalog) (*CatalogService, error) {
	if c == nil {
		return nil, errors.New("usecase: catalog must not be nil")
	}
	return &CatalogService{catalog: c}, nil
}

func (s *CatalogService) Projects(category string) ([]domain.Project, error) {
	c, err := catalog.ParseCategory(category)
	if err != nil {
		return nil, newError(ErrorInvalidInput, "unknown_category", err)
	}
	return s.catalog.Projects(c), nil
}

func (s *CatalogService) Tech() []domain.TechItem {
	return s.catalog.Tech()
}

func (s *CatalogService) Innovations() []domain.Innovation {
	return s.catalog.Innovations()
}

func (s *CatalogService) Dossier(ctx context.Context, projectID string) (string, error) {
	text, err := s.catalog.Dossier(ctx, projectID)
	if err != nil {
		return "", lookupError("project_not_found", err)
	}
	return text, nil
}

func (s *CatalogService) Overview(ctx context.Context, techID string) (string, error) {
	text, err := s.catalog.Overview(ctx, techID)
	if err != nil {
		return "", lookupError("tech_not_found", err)
	}
	return text, nil
}

func (s *CatalogService) Overviews(ctx context.Context) map[string]string {
	return s.catalog.Overviews(ctx)
}

func lookupError(reason string, err error) error {
	if errors.Is(err, catalog.ErrNotFound) {
		return newError(ErrorNotFound, reason, err)
	}
	return newError(ErrorInternal, "catalog_error", err)
}
