package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Catalog is the reference data the service boots with: products, their review
// policy and the observation types that apply to them.
type Catalog struct {
	Products         []CatalogProduct         `yaml:"products"`
	ObservationTypes []CatalogObservationType `yaml:"observation_types"`
}

type CatalogProduct struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	ConfigName  string `yaml:"config_name"`
	AutoApprove bool   `yaml:"auto_approve"`
}

type CatalogObservationType struct {
	Code     string   `yaml:"code"`
	Title    string   `yaml:"title"`
	Label    string   `yaml:"label"`
	Kind     string   `yaml:"type"`
	Inactive bool     `yaml:"inactive"`
	Causes   []string `yaml:"causes"`
	// Products names the products the type applies to; "*" means all of them.
	Products []string `yaml:"products"`
}

func LoadCatalog(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return ParseCatalog(b)
}

func ParseCatalog(b []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	seen := map[string]bool{}
	for _, t := range c.ObservationTypes {
		if t.Code == "" || t.Title == "" {
			return nil, fmt.Errorf("parse catalog: observation type needs code and title")
		}
		if t.Kind != "manual" && t.Kind != "system" {
			return nil, fmt.Errorf("parse catalog: type %s has kind %q", t.Code, t.Kind)
		}
		if seen[t.Code] {
			return nil, fmt.Errorf("parse catalog: duplicate code %s", t.Code)
		}
		seen[t.Code] = true
	}
	for _, p := range c.Products {
		if p.Name == "" {
			return nil, fmt.Errorf("parse catalog: product without name")
		}
	}
	return &c, nil
}

// AppliesTo reports whether the type is linked to the named product.
func (t CatalogObservationType) AppliesTo(product string) bool {
	for _, p := range t.Products {
		if p == "*" || p == product {
			return true
		}
	}
	return false
}
