// Package catalog holds the static model and data-quality test tables that
// drive the transformation layers.
package catalog

import (
	"embed"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/lib/pq"
	"gopkg.in/yaml.v3"

	"github.com/nucleus/lakehouse/internal/errs"
)

//go:embed athena.yaml postgres.yaml
var embedded embed.FS

// DatabaseToken is replaced with the quoted database name by Render.
const DatabaseToken = "{database}"

type Layer string

const (
	LayerStaging Layer = "staging"
	LayerMarts   Layer = "marts"
)

type Materialization string

const (
	MaterializationView    Materialization = "view"
	MaterializationIceberg Materialization = "iceberg"
	MaterializationTable   Materialization = "table"
)

type TestKind string

const (
	KindNotNull        TestKind = "not_null"
	KindUnique         TestKind = "unique"
	KindAcceptedValues TestKind = "accepted_values"
	KindRelationships  TestKind = "relationships"
	KindCustom         TestKind = "custom"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name can be placed unquoted into DDL.
func ValidIdentifier(name string) bool {
	return identifierPattern.MatchString(name)
}

// Model is one named transformation materialized by a layer.
type Model struct {
	Name            string          `yaml:"name"`
	Layer           Layer           `yaml:"-"`
	Materialization Materialization `yaml:"materialization"`
	SQL             string          `yaml:"sql"`
}

// Test is a predicate selecting the rows that violate a data-quality rule.
type Test struct {
	Name   string   `yaml:"name"`
	Layer  Layer    `yaml:"-"`
	Model  string   `yaml:"model"`
	Column string   `yaml:"column"`
	Kind   TestKind `yaml:"kind"`
	SQL    string   `yaml:"sql"`
}

type layerSpec struct {
	Name   Layer   `yaml:"name"`
	Models []Model `yaml:"models"`
	Tests  []Test  `yaml:"tests"`
}

type fileSpec struct {
	Layers []layerSpec `yaml:"layers"`
}

// Catalog is immutable once loaded. Layers, models and tests keep file order,
// which is also their execution order.
type Catalog struct {
	layers []Layer
	models map[Layer][]Model
	tests  map[Layer][]Test
}

// Load parses and validates a catalog document.
func Load(r io.Reader) (*Catalog, error) {
	var spec fileSpec
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return build(spec)
}

// LoadFile reads a catalog from disk.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Default returns the embedded Athena catalog.
func Default() (*Catalog, error) {
	return DefaultFor("athena")
}

// DefaultFor returns the embedded catalog written for the named engine.
func DefaultFor(engineKind string) (*Catalog, error) {
	name := strings.ToLower(engineKind) + ".yaml"
	f, err := embedded.Open(name)
	if err != nil {
		return nil, fmt.Errorf("no embedded catalog for engine %q", engineKind)
	}
	defer f.Close()
	return Load(f)
}

func build(spec fileSpec) (*Catalog, error) {
	if len(spec.Layers) == 0 {
		return nil, fmt.Errorf("catalog defines no layers")
	}

	c := &Catalog{
		models: make(map[Layer][]Model),
		tests:  make(map[Layer][]Test),
	}
	modelNames := make(map[string]bool)

	for _, ls := range spec.Layers {
		if !ValidIdentifier(string(ls.Name)) {
			return nil, fmt.Errorf("invalid layer name %q", ls.Name)
		}
		if _, dup := c.models[ls.Name]; dup {
			return nil, fmt.Errorf("duplicate layer %q", ls.Name)
		}
		models := make([]Model, 0, len(ls.Models))
		for _, m := range ls.Models {
			if !ValidIdentifier(m.Name) {
				return nil, fmt.Errorf("layer %s: invalid model name %q", ls.Name, m.Name)
			}
			if modelNames[m.Name] {
				return nil, fmt.Errorf("duplicate model %q", m.Name)
			}
			switch m.Materialization {
			case MaterializationView, MaterializationIceberg, MaterializationTable:
			default:
				return nil, fmt.Errorf("model %s: unknown materialization %q", m.Name, m.Materialization)
			}
			if strings.TrimSpace(m.SQL) == "" {
				return nil, fmt.Errorf("model %s: empty sql", m.Name)
			}
			modelNames[m.Name] = true
			m.Layer = ls.Name
			m.SQL = strings.TrimSpace(m.SQL)
			models = append(models, m)
		}
		c.layers = append(c.layers, ls.Name)
		c.models[ls.Name] = models
	}

	testNames := make(map[string]bool)
	for _, ls := range spec.Layers {
		tests := make([]Test, 0, len(ls.Tests))
		for _, t := range ls.Tests {
			if !ValidIdentifier(t.Name) {
				return nil, fmt.Errorf("layer %s: invalid test name %q", ls.Name, t.Name)
			}
			if testNames[t.Name] {
				return nil, fmt.Errorf("duplicate test %q", t.Name)
			}
			if !modelNames[t.Model] {
				return nil, fmt.Errorf("test %s: unknown model %q", t.Name, t.Model)
			}
			if t.Column != "" && !ValidIdentifier(t.Column) {
				return nil, fmt.Errorf("test %s: invalid column %q", t.Name, t.Column)
			}
			switch t.Kind {
			case KindNotNull, KindUnique, KindAcceptedValues, KindRelationships, KindCustom:
			default:
				return nil, fmt.Errorf("test %s: unknown kind %q", t.Name, t.Kind)
			}
			if strings.TrimSpace(t.SQL) == "" {
				return nil, fmt.Errorf("test %s: empty sql", t.Name)
			}
			testNames[t.Name] = true
			t.Layer = ls.Name
			t.SQL = strings.TrimSpace(t.SQL)
			tests = append(tests, t)
		}
		c.tests[ls.Name] = tests
	}
	return c, nil
}

// Layers returns the layer names in execution order.
func (c *Catalog) Layers() []Layer {
	return append([]Layer(nil), c.layers...)
}

// HasLayer reports whether layer is defined.
func (c *Catalog) HasLayer(layer Layer) bool {
	_, ok := c.models[layer]
	return ok
}

// Models returns the models of a layer in table order.
func (c *Catalog) Models(layer Layer) ([]Model, error) {
	models, ok := c.models[layer]
	if !ok {
		return nil, unknownLayer(layer)
	}
	return append([]Model(nil), models...), nil
}

// Tests returns the tests of a layer in table order; an empty layer selects
// every layer.
func (c *Catalog) Tests(layer Layer) ([]Test, error) {
	if layer == "" {
		var all []Test
		for _, l := range c.layers {
			all = append(all, c.tests[l]...)
		}
		return all, nil
	}
	tests, ok := c.tests[layer]
	if !ok {
		return nil, unknownLayer(layer)
	}
	return append([]Test(nil), tests...), nil
}

// Tables lists every model name across layers.
func (c *Catalog) Tables() []string {
	var names []string
	for _, l := range c.layers {
		for _, m := range c.models[l] {
			names = append(names, m.Name)
		}
	}
	return names
}

// Render substitutes the quoted database name into a SQL template.
func Render(template, database string) string {
	return strings.ReplaceAll(template, DatabaseToken, pq.QuoteIdentifier(database))
}

func unknownLayer(layer Layer) error {
	return errs.New(errs.CodeUnknownLayer, false, "unknown layer: %s", layer)
}
