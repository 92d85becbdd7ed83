package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

type AttributeKind int

const (
	KindFloat AttributeKind = iota
	KindInt
)

func (k AttributeKind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	default:
		return "unknown"
	}
}

// Attribute is a named clinical measurement and the type it is coerced to.
type Attribute struct {
	Name string
	Kind AttributeKind
}

const (
	AttrAge      = "age"
	AttrSex      = "sex"
	AttrCP       = "cp"
	AttrTrestbps = "trestbps"
	AttrChol     = "chol"
	AttrThalach  = "thalach"
	AttrExang    = "exang"
	AttrOldpeak  = "oldpeak"
	AttrSlope    = "slope"
	AttrCA       = "ca"
	AttrThal     = "thal"
)

// Attributes lists every clinical attribute in canonical order.
var Attributes = []Attribute{
	{Name: AttrAge, Kind: KindFloat},
	{Name: AttrSex, Kind: KindInt},
	{Name: AttrCP, Kind: KindInt},
	{Name: AttrTrestbps, Kind: KindFloat},
	{Name: AttrChol, Kind: KindFloat},
	{Name: AttrThalach, Kind: KindFloat},
	{Name: AttrExang, Kind: KindInt},
	{Name: AttrOldpeak, Kind: KindFloat},
	{Name: AttrSlope, Kind: KindInt},
	{Name: AttrCA, Kind: KindInt},
	{Name: AttrThal, Kind: KindInt},
}

var attributeIndex = func() map[string]Attribute {
	idx := make(map[string]Attribute, len(Attributes))
	for _, a := range Attributes {
		idx[a.Name] = a
	}
	return idx
}()

// LookupAttribute returns the attribute definition for name.
func LookupAttribute(name string) (Attribute, bool) {
	a, ok := attributeIndex[name]
	return a, ok
}

// FeatureSet is an immutable mapping from attribute name to value. Int-kind
// attributes always hold whole numbers.
type FeatureSet struct {
	values map[string]float64
}

// NewFeatureSet copies values into a FeatureSet. Unknown attribute names and
// fractional values for int-kind attributes are rejected.
func NewFeatureSet(values map[string]float64) (FeatureSet, error) {
	copied := make(map[string]float64, len(values))
	for name, v := range values {
		attr, ok := LookupAttribute(name)
		if !ok {
			return FeatureSet{}, fmt.Errorf("unknown attribute %q", name)
		}
		if attr.Kind == KindInt && (v != math.Trunc(v) || math.Abs(v) > 1<<53) {
			return FeatureSet{}, fmt.Errorf("attribute %q must be an integer, got %v", name, v)
		}
		copied[name] = v
	}
	return FeatureSet{values: copied}, nil
}

func (f FeatureSet) Get(name string) (float64, bool) {
	v, ok := f.values[name]
	return v, ok
}

func (f FeatureSet) Len() int {
	return len(f.values)
}

// Names returns the present attribute names in canonical order.
func (f FeatureSet) Names() []string {
	names := make([]string, 0, len(f.values))
	for _, a := range Attributes {
		if _, ok := f.values[a.Name]; ok {
			names = append(names, a.Name)
		}
	}
	return names
}

// Values returns a copy of the underlying mapping.
func (f FeatureSet) Values() map[string]float64 {
	out := make(map[string]float64, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out
}

// Vector returns the values for names in the given order.
func (f FeatureSet) Vector(names []string) ([]float64, error) {
	vec := make([]float64, len(names))
	for i, name := range names {
		v, ok := f.values[name]
		if !ok {
			return nil, fmt.Errorf("feature %q not present", name)
		}
		vec[i] = v
	}
	return vec, nil
}

// Strings renders every value as a string, as the mobile API echoes input.
func (f FeatureSet) Strings() map[string]string {
	out := make(map[string]string, len(f.values))
	for name, v := range f.values {
		out[name] = formatValue(name, v)
	}
	return out
}

func formatValue(name string, v float64) string {
	if attr, ok := LookupAttribute(name); ok && attr.Kind == KindInt {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (f FeatureSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, name := range f.Names() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(formatValue(name, f.values[name]))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (f *FeatureSet) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	values := make(map[string]float64, len(raw))
	for name, msg := range raw {
		var v float64
		if err := json.Unmarshal(msg, &v); err != nil {
			// Older rows stored the echo as strings.
			var s string
			if err2 := json.Unmarshal(msg, &s); err2 != nil {
				return fmt.Errorf("feature %q: %w", name, err)
			}
			parsed, err2 := strconv.ParseFloat(s, 64)
			if err2 != nil {
				return fmt.Errorf("feature %q: %w", name, err2)
			}
			v = parsed
		}
		values[name] = v
	}

	fs, err := NewFeatureSet(values)
	if err != nil {
		return err
	}
	*f = fs
	return nil
}
