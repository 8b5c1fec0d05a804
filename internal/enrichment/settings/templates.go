package settings

import (
	"embed"
	"fmt"
	"path"
	"sort"
	"strings"

	apperrors "lead-enricher/internal/common/errors"
	"lead-enricher/internal/models"

	"gopkg.in/yaml.v3"
)

//go:embed templates/*.yaml
var templateFS embed.FS

// TemplateNames lists the catalog, sorted.
func TemplateNames() []string {
	entries, _ := templateFS.ReadDir("templates")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
	}
	sort.Strings(names)
	return names
}

// Template parses a fresh copy of the named template.
func Template(name string) (*models.EnrichmentConfig, error) {
	raw, err := templateFS.ReadFile(path.Join("templates", name+".yaml"))
	if err != nil {
		return nil, fmt.Errorf("%w: template %q (available: %s)", apperrors.ErrConfigNotFound, name, strings.Join(TemplateNames(), ", "))
	}

	cfg, err := ParseYAML(raw)
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", name, err)
	}
	return cfg, nil
}

// ParseYAML reads a configuration in the template format.
func ParseYAML(raw []byte) (*models.EnrichmentConfig, error) {
	var cfg models.EnrichmentConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrConfigInvalid, err)
	}
	return &cfg, nil
}
