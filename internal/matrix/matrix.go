// Package matrix expands declared build axes into concrete matrix cells.
package matrix

import (
	"fmt"
	"strings"

	"github.com/zclconf/go-cty/cty"
)

// Axis is one named dimension of a build matrix, e.g. python = ["3.8", "3.9"].
type Axis struct {
	Name   string
	Values []string
}

// Entry is one coordinate of a cell.
type Entry struct {
	Axis  string
	Value string
}

// Cell is one concrete combination of axis values, in axis declaration order.
type Cell []Entry

// Validate rejects empty or duplicated axes.
func Validate(axes []Axis) error {
	seen := make(map[string]bool, len(axes))
	for _, axis := range axes {
		if axis.Name == "" {
			return fmt.Errorf("matrix axis without a name")
		}
		if seen[axis.Name] {
			return fmt.Errorf("duplicate matrix axis %q", axis.Name)
		}
		seen[axis.Name] = true
		if len(axis.Values) == 0 {
			return fmt.Errorf("matrix axis %q has no values", axis.Name)
		}
		values := make(map[string]bool, len(axis.Values))
		for _, v := range axis.Values {
			if values[v] {
				return fmt.Errorf("matrix axis %q lists value %q twice", axis.Name, v)
			}
			values[v] = true
		}
	}
	return nil
}

// Expand returns the cross-product of the axes. The first axis varies
// slowest. With no axes there is exactly one, empty, cell.
func Expand(axes []Axis) ([]Cell, error) {
	if err := Validate(axes); err != nil {
		return nil, err
	}

	cells := []Cell{{}}
	for _, axis := range axes {
		next := make([]Cell, 0, len(cells)*len(axis.Values))
		for _, cell := range cells {
			for _, v := range axis.Values {
				extended := make(Cell, len(cell), len(cell)+1)
				copy(extended, cell)
				next = append(next, append(extended, Entry{Axis: axis.Name, Value: v}))
			}
		}
		cells = next
	}
	return cells, nil
}

// Get returns the value of the named axis.
func (c Cell) Get(axis string) (string, bool) {
	for _, e := range c {
		if e.Axis == axis {
			return e.Value, true
		}
	}
	return "", false
}

// Key identifies the cell uniquely within its job: "python=3.8,word_size=64".
func (c Cell) Key() string {
	parts := make([]string, len(c))
	for i, e := range c {
		parts[i] = e.Axis + "=" + e.Value
	}
	return strings.Join(parts, ",")
}

// Label is the compact human form: "3.8-64".
func (c Cell) Label() string {
	parts := make([]string, len(c))
	for i, e := range c {
		parts[i] = e.Value
	}
	return strings.Join(parts, "-")
}

// Value renders the cell as a cty object so pipeline expressions can refer to
// matrix.<axis>.
func (c Cell) Value() cty.Value {
	if len(c) == 0 {
		return cty.EmptyObjectVal
	}
	attrs := make(map[string]cty.Value, len(c))
	for _, e := range c {
		attrs[e.Axis] = cty.StringVal(e.Value)
	}
	return cty.ObjectVal(attrs)
}
