package filter

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strconv"

	"github.com/kailas-cloud/searchbridge/internal/domain"
)

// Op is a comparison operator accepted as a range key.
type Op string

// Supported comparison operators.
const (
	OpGT  Op = ">"
	OpGTE Op = ">="
	OpLT  Op = "<"
	OpLTE Op = "<="
)

// opOrder is the canonical rendering order of range bounds.
var opOrder = []Op{OpGT, OpGTE, OpLT, OpLTE}

// ParseOp reports whether s is an operator-shaped key.
func ParseOp(s string) (Op, bool) {
	switch Op(s) {
	case OpGT, OpGTE, OpLT, OpLTE:
		return Op(s), true
	}
	return "", false
}

// Kind tells equality clauses from range clauses.
type Kind int

const (
	// Equality clauses render into the query string as a required disjunction.
	Equality Kind = iota
	// Range clauses render into the structured range filter.
	Range
)

func (k Kind) String() string {
	if k == Range {
		return "range"
	}
	return "equality"
}

// Bound is one operator/value pair of a range clause. Value stays raw until compile.
type Bound struct {
	Op    Op
	Value any
}

// Clause is a single filter: either a disjunction of equality values or a set of range bounds.
type Clause struct {
	key    string
	kind   Kind
	values []string
	bounds []Bound
}

// Equal creates an equality clause matching any of values.
func Equal(key string, values ...string) (Clause, error) {
	if key == "" {
		return Clause{}, domain.Compilef("filter key is required")
	}
	if len(values) == 0 {
		return Clause{}, domain.Compilef("at least one value is required for key %q", key)
	}
	return Clause{key: key, kind: Equality, values: slices.Clone(values)}, nil
}

// Compare creates a range clause from operator/value pairs.
func Compare(key string, bounds map[Op]float64) (Clause, error) {
	raw := make(map[string]any, len(bounds))
	for op, v := range bounds {
		raw[string(op)] = v
	}
	c, err := New(key, raw)
	if err != nil {
		return Clause{}, err
	}
	if c.kind != Range {
		return Clause{}, domain.Compilef("at least one range bound is required for key %q", key)
	}
	return c, nil
}

// New classifies a loosely typed filter value, as decoded from JSON or built by callers.
//
// Scalars become single-value equality clauses and slices or arrays of any element type
// become equality disjunctions. A map with string keys and any operator-shaped key is a
// range clause; its non-operator keys are ignored. A map without operator keys is an
// equality disjunction over its values in key order.
func New(key string, value any) (Clause, error) {
	if key == "" {
		return Clause{}, domain.Compilef("filter key is required")
	}

	switch v := value.(type) {
	case map[string]any:
		return fromMap(key, v)
	case []any:
		return fromList(key, v)
	case []string:
		return Equal(key, v...)
	case nil, json.Number, []byte:
	default:
		rv := reflect.ValueOf(v)
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			list := make([]any, rv.Len())
			for i := range list {
				list[i] = rv.Index(i).Interface()
			}
			return fromList(key, list)
		case reflect.Map:
			if rv.Type().Key().Kind() != reflect.String {
				return Clause{}, domain.Compilef("filter %q: map keys must be strings, got %s", key, rv.Type().Key())
			}
			m := make(map[string]any, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				m[iter.Key().String()] = iter.Value().Interface()
			}
			return fromMap(key, m)
		}
	}

	s, err := scalarString(value)
	if err != nil {
		return Clause{}, domain.Compilef("filter %q: %v", key, err)
	}
	return Clause{key: key, kind: Equality, values: []string{s}}, nil
}

func fromMap(key string, m map[string]any) (Clause, error) {
	var bounds []Bound
	for _, op := range opOrder {
		if v, ok := m[string(op)]; ok {
			bounds = append(bounds, Bound{Op: op, Value: v})
		}
	}
	if len(bounds) > 0 {
		return Clause{key: key, kind: Range, bounds: bounds}, nil
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	list := make([]any, len(keys))
	for i, k := range keys {
		list[i] = m[k]
	}
	return fromList(key, list)
}

func fromList(key string, list []any) (Clause, error) {
	if len(list) == 0 {
		return Clause{}, domain.Compilef("filter %q: empty value list", key)
	}
	values := make([]string, len(list))
	for i, item := range list {
		s, err := scalarString(item)
		if err != nil {
			return Clause{}, domain.Compilef("filter %q[%d]: %v", key, i, err)
		}
		values[i] = s
	}
	return Clause{key: key, kind: Equality, values: values}, nil
}

// scalarString renders strings, booleans and every integer and float kind,
// including named types such as time.Duration.
func scalarString(v any) (string, error) {
	switch x := v.(type) {
	case nil:
		return "", fmt.Errorf("null value")
	case json.Number:
		return x.String(), nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 32), nil
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}

// Key returns the field name.
func (c Clause) Key() string { return c.key }

// Kind returns the clause classification.
func (c Clause) Kind() Kind { return c.kind }

// Values returns the equality values in order.
func (c Clause) Values() []string { return c.values }

// Bounds returns the range bounds in canonical operator order.
func (c Clause) Bounds() []Bound { return c.bounds }

// IsRange reports whether this is a range clause.
func (c Clause) IsRange() bool { return c.kind == Range }

// Partition splits clauses into equality and range groups, keeping input order.
func Partition(clauses []Clause) (equality, ranges []Clause) {
	for _, c := range clauses {
		if c.IsRange() {
			ranges = append(ranges, c)
		} else {
			equality = append(equality, c)
		}
	}
	return equality, ranges
}

// Numeric converts a raw bound value to float64.
// Numeric strings and every integer and float kind are accepted; anything else is a compile error.
func Numeric(v any) (float64, error) {
	switch x := v.(type) {
	case nil:
		return 0, domain.Compilef("non-numeric range value of type %T", v)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, domain.Compilef("non-numeric range value %q", x.String())
		}
		return f, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), nil
	case reflect.String:
		f, err := strconv.ParseFloat(rv.String(), 64)
		if err != nil {
			return 0, domain.Compilef("non-numeric range value %q", rv.String())
		}
		return f, nil
	default:
		return 0, domain.Compilef("non-numeric range value of type %T", v)
	}
}
