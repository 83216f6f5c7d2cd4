// Package catalog provides the immutable motorcycle feature catalog:
// raw attribute rows plus a row-aligned normalized/one-hot feature matrix.
package catalog

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Kind classifies an attribute as categorical or numeric.
type Kind string

const (
	KindCategorical Kind = "categorical"
	KindNumeric     Kind = "numeric"
)

// AttributeSpec describes one raw catalog attribute. The encoder and ranker
// consult this table instead of hardcoding attribute lists.
type AttributeSpec struct {
	Name       string
	Kind       Kind
	Selectable bool // offered to users as a preference dimension
}

// Attributes is the declarative attribute table, in raw column order.
// Bore, Stroke and PistonCount are catalog-only: they appear in rows and in
// the feature matrix but are not offered as preference dimensions.
var Attributes = []AttributeSpec{
	{Name: "Category", Kind: KindCategorical, Selectable: true},
	{Name: "Displacement", Kind: KindNumeric, Selectable: true},
	{Name: "PowerHP", Kind: KindNumeric, Selectable: true},
	{Name: "Brand", Kind: KindCategorical, Selectable: true},
	{Name: "Transmission", Kind: KindCategorical, Selectable: true},
	{Name: "ClutchType", Kind: KindCategorical, Selectable: true},
	{Name: "EngineConfig", Kind: KindCategorical, Selectable: true},
	{Name: "FuelTank", Kind: KindNumeric, Selectable: true},
	{Name: "WeightKG", Kind: KindNumeric, Selectable: true},
	{Name: "FuelConsumptionKML", Kind: KindNumeric, Selectable: true},
	{Name: "Price", Kind: KindNumeric, Selectable: true},
	{Name: "Bore", Kind: KindNumeric},
	{Name: "Stroke", Kind: KindNumeric},
	{Name: "PistonCount", Kind: KindNumeric},
}

// ModelColumn is the raw column holding the model name.
const ModelColumn = "Model"

// Value is a raw attribute value: either free text or a number. The zero
// Value is the empty string.
type Value struct {
	text    string
	num     float64
	numeric bool
}

// String wraps a text value.
func String(s string) Value {
	return Value{text: s}
}

// Number wraps a numeric value.
func Number(f float64) Value {
	return Value{num: f, numeric: true}
}

// IsNumeric reports whether the value carries a number.
func (v Value) IsNumeric() bool {
	return v.numeric
}

// Float returns the numeric value. Text values parse on a best-effort basis
// so "150" entered as text still works as a numeric target.
func (v Value) Float() (float64, bool) {
	if v.numeric {
		return v.num, true
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v.text), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// String renders the value the way it is stringified for case matching:
// numbers without a trailing ".0", text verbatim.
func (v Value) String() string {
	if v.numeric {
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	}
	return v.text
}

// Equal reports whether two values stringify identically.
func (v Value) Equal(other Value) bool {
	return v.String() == other.String()
}

// MarshalJSON encodes numbers as JSON numbers and text as JSON strings, so a
// persisted preference snapshot round-trips structurally.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.numeric {
		return json.Marshal(v.num)
	}
	return json.Marshal(v.text)
}

// UnmarshalJSON accepts a JSON number, string or bool.
func (v *Value) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*v = Number(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = String(s)
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*v = String(strconv.FormatBool(b))
		return nil
	}
	return fmt.Errorf("unsupported value: %s", data)
}

// Preferences maps an attribute name to the user's raw value. Only attributes
// the user explicitly activated are present.
type Preferences map[string]Value

// Clone returns an independent copy.
func (p Preferences) Clone() Preferences {
	out := make(Preferences, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Row is one catalog entry: the model name and its raw attribute values.
type Row struct {
	Model string
	Attrs Preferences
}
