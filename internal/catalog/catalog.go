package catalog

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidCatalog indicates a catalog that cannot support encoding: a zero
// normalization divisor or a missing required raw column.
var ErrInvalidCatalog = errors.New("invalid catalog")

// Catalog holds the raw attribute table and the derived feature matrix.
// It is immutable after New and safe for concurrent readers.
type Catalog struct {
	specs    []AttributeSpec
	byName   map[string]AttributeSpec
	rows     []Row
	columns  []string
	colIndex map[string]int
	matrix   [][]float64
	divisors map[string]float64
	domains  map[string][]string
}

// New builds a catalog from raw rows: computes per-attribute normalization
// divisors, derives the fixed feature column order ({Attr}_normalized for
// numeric attributes, {attr}_{value} one-hot columns for categorical values)
// and materializes the row-aligned feature matrix.
func New(rows []Row) (*Catalog, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no rows", ErrInvalidCatalog)
	}

	c := &Catalog{
		specs:    Attributes,
		byName:   make(map[string]AttributeSpec, len(Attributes)),
		rows:     rows,
		colIndex: make(map[string]int),
		divisors: make(map[string]float64),
		domains:  make(map[string][]string),
	}
	for _, spec := range Attributes {
		c.byName[spec.Name] = spec
	}

	for i, row := range rows {
		for _, spec := range Attributes {
			if _, ok := row.Attrs[spec.Name]; !ok {
				return nil, fmt.Errorf("%w: row %d (%s) missing column %q",
					ErrInvalidCatalog, i, row.Model, spec.Name)
			}
		}
	}

	if err := c.collectDivisors(); err != nil {
		return nil, err
	}
	c.collectDomains()
	c.buildColumns()
	c.buildMatrix()

	return c, nil
}

// collectDivisors records max(raw value) per numeric attribute.
func (c *Catalog) collectDivisors() error {
	for _, spec := range c.specs {
		if spec.Kind != KindNumeric {
			continue
		}
		max := 0.0
		for _, row := range c.rows {
			f, ok := row.Attrs[spec.Name].Float()
			if !ok {
				return fmt.Errorf("%w: non-numeric value %q in column %q",
					ErrInvalidCatalog, row.Attrs[spec.Name].String(), spec.Name)
			}
			if f > max {
				max = f
			}
		}
		c.divisors[spec.Name] = max
	}
	return nil
}

// collectDomains records sorted distinct raw values per categorical attribute.
func (c *Catalog) collectDomains() {
	for _, spec := range c.specs {
		if spec.Kind != KindCategorical {
			continue
		}
		seen := make(map[string]struct{})
		var values []string
		for _, row := range c.rows {
			v := row.Attrs[spec.Name].String()
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			values = append(values, v)
		}
		sort.Strings(values)
		c.domains[spec.Name] = values
	}
}

// buildColumns fixes the feature column order: normalized numeric columns in
// attribute order, then one-hot columns per categorical attribute with values
// in domain (sorted) order.
func (c *Catalog) buildColumns() {
	for _, spec := range c.specs {
		if spec.Kind == KindNumeric {
			c.addColumn(spec.Name + "_normalized")
		}
	}
	for _, spec := range c.specs {
		if spec.Kind != KindCategorical {
			continue
		}
		for _, value := range c.domains[spec.Name] {
			c.addColumn(oneHotName(spec.Name, value))
		}
	}
}

func (c *Catalog) addColumn(name string) {
	if _, ok := c.colIndex[name]; ok {
		return
	}
	c.colIndex[name] = len(c.columns)
	c.columns = append(c.columns, name)
}

// buildMatrix materializes the normalized/one-hot feature matrix, one row per
// catalog row, columns in the fixed order of buildColumns.
func (c *Catalog) buildMatrix() {
	c.matrix = make([][]float64, len(c.rows))
	for i, row := range c.rows {
		vec := make([]float64, len(c.columns))
		for _, spec := range c.specs {
			switch spec.Kind {
			case KindNumeric:
				divisor := c.divisors[spec.Name]
				if divisor <= 0 {
					continue
				}
				f, _ := row.Attrs[spec.Name].Float()
				vec[c.colIndex[spec.Name+"_normalized"]] = f / divisor
			case KindCategorical:
				name := oneHotName(spec.Name, row.Attrs[spec.Name].String())
				if idx, ok := c.colIndex[name]; ok {
					vec[idx] = 1.0
				}
			}
		}
		c.matrix[i] = vec
	}
}

// oneHotName derives the deterministic one-hot column name: lowercase
// attribute and value with spaces stripped, joined by an underscore.
func oneHotName(attr, value string) string {
	clean := func(s string) string {
		return strings.ToLower(strings.ReplaceAll(s, " ", ""))
	}
	return clean(attr) + "_" + clean(value)
}

// Spec returns the attribute spec for the given name.
func (c *Catalog) Spec(attr string) (AttributeSpec, bool) {
	spec, ok := c.byName[attr]
	return spec, ok
}

// Specs returns the full attribute table in column order.
func (c *Catalog) Specs() []AttributeSpec {
	return c.specs
}

// SelectableSpecs returns the attributes offered as preference dimensions.
func (c *Catalog) SelectableSpecs() []AttributeSpec {
	var out []AttributeSpec
	for _, spec := range c.specs {
		if spec.Selectable {
			out = append(out, spec)
		}
	}
	return out
}

// DomainValues returns the sorted distinct raw values of a categorical
// attribute, or nil for numeric or unknown attributes.
func (c *Catalog) DomainValues(attr string) []string {
	return c.domains[attr]
}

// NormalizationDivisor returns the max raw value of a numeric attribute.
// A zero or negative divisor makes the catalog unusable for encoding.
func (c *Catalog) NormalizationDivisor(attr string) (float64, error) {
	spec, ok := c.byName[attr]
	if !ok || spec.Kind != KindNumeric {
		return 0, fmt.Errorf("%w: %q is not a numeric attribute", ErrInvalidCatalog, attr)
	}
	divisor := c.divisors[attr]
	if divisor <= 0 {
		return 0, fmt.Errorf("%w: zero normalization divisor for %q", ErrInvalidCatalog, attr)
	}
	return divisor, nil
}

// OneHotColumn returns the one-hot column name for a categorical value and
// whether that column exists. Unknown values are a legitimate miss, not an
// error: the encoder silently drops them.
func (c *Catalog) OneHotColumn(attr, value string) (string, bool) {
	name := oneHotName(attr, value)
	_, ok := c.colIndex[name]
	return name, ok
}

// ColumnIndex returns the feature matrix index of a column.
func (c *Catalog) ColumnIndex(name string) (int, bool) {
	idx, ok := c.colIndex[name]
	return idx, ok
}

// Columns returns the feature column names in matrix order. Callers must not
// modify the returned slice.
func (c *Catalog) Columns() []string {
	return c.columns
}

// Dimension returns the feature vector length.
func (c *Catalog) Dimension() int {
	return len(c.columns)
}

// Len returns the number of catalog rows.
func (c *Catalog) Len() int {
	return len(c.rows)
}

// Row returns the raw catalog row at index i.
func (c *Catalog) Row(i int) Row {
	return c.rows[i]
}

// MatrixRow returns the feature vector of row i. Callers must not modify the
// returned slice.
func (c *Catalog) MatrixRow(i int) []float64 {
	return c.matrix[i]
}

// FindModel returns the row for the given model name.
func (c *Catalog) FindModel(model string) (Row, bool) {
	for _, row := range c.rows {
		if row.Model == model {
			return row, true
		}
	}
	return Row{}, false
}
