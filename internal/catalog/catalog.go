// Package catalog serves the read-only showcase data (projects, tech stack,
// future innovations) embedded in the binary.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"mimic-assistant/internal/domain"
)

//go:embed catalog.yaml
var embedded []byte

var ErrNotFound = errors.New("catalog: item not found")

type Catalog struct {
	Projects    []domain.Project    `yaml:"projects"`
	Tech        []domain.TechItem   `yaml:"tech"`
	Innovations []domain.Innovation `yaml:"innovations"`
}

// Default parses the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(embedded)
}

func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("catalog: parse: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	seen := make(map[string]struct{})
	check := func(kind, id string) error {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("catalog: %s with empty id", kind)
		}
		key := kind + "/" + id
		if _, ok := seen[key]; ok {
			return fmt.Errorf("catalog: duplicate %s id %q", kind, id)
		}
		seen[key] = struct{}{}
		return nil
	}
	for _, p := range c.Projects {
		if err := check("project", p.ID); err != nil {
			return err
		}
		switch p.Category {
		case domain.CategoryMechatronics, domain.CategorySoftware, domain.CategoryElectronics:
		default:
			return fmt.Errorf("catalog: project %q has unknown category %q", p.ID, p.Category)
		}
	}
	for _, t := range c.Tech {
		if err := check("tech", t.ID); err != nil {
			return err
		}
	}
	for _, i := range c.Innovations {
		if err := check("innovation", i.ID); err != nil {
			return err
		}
	}
	return nil
}

// ProjectsIn returns the projects of one category, or every project when
// category is empty. Order follows the catalog file.
func (c *Catalog) ProjectsIn(category domain.ProjectCategory) []domain.Project {
	out := make([]domain.Project, 0, len(c.Projects))
	for _, p := range c.Projects {
		if category == "" || p.Category == category {
			out = append(out, p)
		}
	}
	return out
}

func (c *Catalog) Project(id string) (domain.Project, error) {
	for _, p := range c.Projects {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Project{}, fmt.Errorf("%w: project %q", ErrNotFound, id)
}

func (c *Catalog) TechItem(id string) (domain.TechItem, error) {
	for _, t := range c.Tech {
		if t.ID == id {
			return t, nil
		}
	}
	return domain.TechItem{}, fmt.Errorf("%w: tech %q", ErrNotFound, id)
}

// ParseCategory accepts either the display name or a short alias
// (mechatronics, software, embedded).
func ParseCategory(s string) (domain.ProjectCategory, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "mechatronics", strings.ToLower(string(domain.CategoryMechatronics)):
		return domain.CategoryMechatronics, nil
	case "software", strings.ToLower(string(domain.CategorySoftware)):
		return domain.CategorySoftware, nil
	case "embedded", "electronics", strings.ToLower(string(domain.CategoryElectronics)):
		return domain.CategoryElectronics, nil
	}
	return "", fmt.Errorf("catalog: unknown project category %q", s)
}
