// Package labels holds the category-key → display-label catalog used by the
// narrative generator and the API layer. The catalog is injected, versioned
// configuration — never global mutable state. Defaults ship in code; a YAML
// file can override or extend them per deployment.
package labels

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog maps category keys (as stored on questions) to the Portuguese
// display strings rendered in reports and API responses.
type Catalog struct {
	Version string
	labels  map[string]string
}

// Default returns the built-in catalog covering the psychosocial-risk
// categories (HSE management standards) and the climate questionnaire themes.
func Default() Catalog {
	return Catalog{
		Version: "2024.1",
		labels: map[string]string{
			// risk questionnaire categories
			"demands":       "Demandas de Trabalho",
			"control":       "Controle e Autonomia",
			"support":       "Apoio da Liderança",
			"relationships": "Relacionamentos Interpessoais",
			"role":          "Clareza de Papel",
			"change":        "Gestão de Mudanças",
			// climate questionnaire themes
			"leadership":    "Liderança",
			"communication": "Comunicação",
			"recognition":   "Reconhecimento e Recompensa",
			"wellbeing":     "Bem-estar",
			"development":   "Desenvolvimento Profissional",
			"satisfaction":  "Satisfação Geral",
		},
	}
}

// catalogFile is the YAML shape of an override file:
//
//	version: "2025.1"
//	labels:
//	  demands: "Demandas"
//	  custom_theme: "Tema Customizado"
type catalogFile struct {
	Version string            `yaml:"version"`
	Labels  map[string]string `yaml:"labels"`
}

// LoadFile reads a YAML catalog from path and merges it over the defaults.
// Keys present in the file win; keys absent keep their default label.
func LoadFile(path string) (Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, fmt.Errorf("labels: read %s: %w", path, err)
	}

	var cf catalogFile
	if err := yaml.Unmarshal(raw, &cf); err != nil {
		return Catalog{}, fmt.Errorf("labels: parse %s: %w", path, err)
	}
	if cf.Version == "" {
		return Catalog{}, fmt.Errorf("labels: %s is missing a version", path)
	}

	c := Default()
	c.Version = cf.Version
	for key, label := range cf.Labels {
		c.labels[key] = label
	}
	return c, nil
}

// Get returns the display label for a category key. Unknown keys fall back
// to the key itself so a new category never renders blank.
func (c Catalog) Get(key string) string {
	if label, ok := c.labels[key]; ok {
		return label
	}
	return key
}
