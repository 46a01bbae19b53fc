// Package catalog loads outcome catalogs from YAML and keeps them indexed by id.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/coupledice/internal/dice"
)

//go:embed default.yaml
var defaultCatalog []byte

// yamlCatalogFile is the top-level YAML structure for catalog files.
type yamlCatalogFile struct {
	Catalog yamlCatalog `yaml:"catalog"`
}

type yamlCatalog struct {
	Name  string     `yaml:"name"`
	Items []yamlItem `yaml:"items"`
}

type yamlItem struct {
	ID       string   `yaml:"id"`
	Label    string   `yaml:"label"`
	Category string   `yaml:"category"`
	Emoji    string   `yaml:"emoji"`
	Weight   *int     `yaml:"weight"`
	Actions  []string `yaml:"actions"`
}

// Default returns the built-in catalog shipped with the server.
//
// Postcondition: Returns a Registry holding at least one item per category.
func Default() *Registry {
	r, err := LoadFromBytes(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded default catalog is invalid: %v", err))
	}
	return r
}

// LoadFromFile reads and validates a single catalog YAML file.
//
// Precondition: path must point to a YAML catalog file.
// Postcondition: Returns a populated Registry or a non-nil error.
func LoadFromFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file %s: %w", path, err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses and validates a catalog from YAML bytes. Every item
// goes through dice.ValidateCandidate; ids must be present and unique.
//
// Postcondition: Returns a populated Registry or a non-nil error.
func LoadFromBytes(data []byte) (*Registry, error) {
	var file yamlCatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing catalog YAML: %w", err)
	}

	r := NewRegistry()
	for i, yi := range file.Catalog.Items {
		it, err := convertYAMLItem(yi)
		if err != nil {
			return nil, fmt.Errorf("catalog %q: item[%d]: %w", file.Catalog.Name, i, err)
		}
		if err := r.Register(it); err != nil {
			return nil, fmt.Errorf("catalog %q: %w", file.Catalog.Name, err)
		}
	}
	return r, nil
}

// LoadFromDir loads every YAML file in dir, in lexical order, into one Registry.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns a Registry or the first error encountered.
func LoadFromDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading catalog directory %s: %w", dir, err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no catalog files found in %s", dir)
	}
	sort.Strings(names)

	out := NewRegistry()
	for _, name := range names {
		r, err := LoadFromFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("loading catalog from %s: %w", name, err)
		}
		for _, it := range r.All() {
			if err := out.Register(it); err != nil {
				return nil, fmt.Errorf("loading catalog from %s: %w", name, err)
			}
		}
	}
	return out, nil
}

// Load picks LoadFromDir or LoadFromFile depending on what path names.
// An empty path returns the default catalog.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default(), nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat catalog path %s: %w", path, err)
	}
	if info.IsDir() {
		return LoadFromDir(path)
	}
	return LoadFromFile(path)
}

func convertYAMLItem(yi yamlItem) (dice.OutcomeItem, error) {
	if strings.TrimSpace(yi.ID) == "" {
		return dice.OutcomeItem{}, fmt.Errorf("id must not be empty")
	}
	if err := dice.ValidateCandidate(dice.Candidate{
		Label:    yi.Label,
		Category: yi.Category,
		Emoji:    yi.Emoji,
		Weight:   yi.Weight,
	}); err != nil {
		return dice.OutcomeItem{}, fmt.Errorf("%s: %w", yi.ID, err)
	}
	cat, _ := dice.ParseCategory(yi.Category)
	weight := dice.DefaultWeight
	if yi.Weight != nil {
		weight = *yi.Weight
	}
	return dice.OutcomeItem{
		ID:       strings.TrimSpace(yi.ID),
		Label:    strings.TrimSpace(yi.Label),
		Category: cat,
		Emoji:    strings.TrimSpace(yi.Emoji),
		Weight:   weight,
		Actions:  yi.Actions,
	}, nil
}
