package filter

import (
	"encoding/json"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/kailas-cloud/searchbridge/internal/domain"
)

func TestNew_Scalar(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"string", "17", "17"},
		{"int", 17, "17"},
		{"float", 2.5, "2.5"},
		{"whole float", float64(56), "56"},
		{"bool", true, "true"},
		{"json number", json.Number("42"), "42"},
		{"int32", int32(7), "7"},
		{"uint", uint(9), "9"},
		{"float32", float32(1.5), "1.5"},
		{"named duration", time.Second, "1000000000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New("category_id", tt.value)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.Kind() != Equality {
				t.Fatalf("kind = %s, want equality", c.Kind())
			}
			if !slices.Equal(c.Values(), []string{tt.want}) {
				t.Errorf("values = %v, want [%s]", c.Values(), tt.want)
			}
		})
	}
}

func TestNew_ListIsDisjunction(t *testing.T) {
	c, err := New("category_id", []any{float64(17), "56"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.IsRange() {
		t.Fatal("list must classify as equality")
	}
	if !slices.Equal(c.Values(), []string{"17", "56"}) {
		t.Errorf("values = %v", c.Values())
	}
}

func TestNew_TypedSlices(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  []string
	}{
		{"ints", []int{17, 56}, []string{"17", "56"}},
		{"int64s", []int64{1, 2}, []string{"1", "2"}},
		{"uints", []uint{3}, []string{"3"}},
		{"floats", []float64{2.5}, []string{"2.5"}},
		{"array", [2]string{"a", "b"}, []string{"a", "b"}},
		{"plain typed map", map[string]int{"b": 2, "a": 1}, []string{"1", "2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New("category_id", tt.value)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.IsRange() {
				t.Fatal("expected equality clause")
			}
			if !slices.Equal(c.Values(), tt.want) {
				t.Errorf("values = %v, want %v", c.Values(), tt.want)
			}
		})
	}
}

func TestNew_TypedOperatorMaps(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"int map", map[string]int{">": 10, "<=": 500}},
		{"float map", map[string]float64{">": 10, "<=": 500}},
		{"uint map", map[string]uint{">": 10, "<=": 500}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New("price", tt.value)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !c.IsRange() {
				t.Fatal("expected range clause")
			}
			b := c.Bounds()
			if len(b) != 2 || b[0].Op != OpGT || b[1].Op != OpLTE {
				t.Fatalf("bounds = %+v", b)
			}
			lo, err := Numeric(b[0].Value)
			if err != nil || lo != 10 {
				t.Errorf("lower bound = %v, %v", lo, err)
			}
			hi, err := Numeric(b[1].Value)
			if err != nil || hi != 500 {
				t.Errorf("upper bound = %v, %v", hi, err)
			}
		})
	}
}

func TestNew_OperatorMapIsRange(t *testing.T) {
	c, err := New("price", map[string]any{"<=": 500.0, ">": 10.0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.IsRange() {
		t.Fatal("operator map must classify as range")
	}
	bounds := c.Bounds()
	if len(bounds) != 2 {
		t.Fatalf("expected 2 bounds, got %d", len(bounds))
	}
	if bounds[0].Op != OpGT || bounds[1].Op != OpLTE {
		t.Errorf("bounds not in canonical order: %+v", bounds)
	}
}

func TestNew_MixedMapResolvesToRange(t *testing.T) {
	c, err := New("price", map[string]any{">": 5.0, "0": "cheap"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.IsRange() {
		t.Fatal("any operator key must make the clause a range clause")
	}
	if len(c.Bounds()) != 1 {
		t.Errorf("non-operator keys must be ignored, got %+v", c.Bounds())
	}
}

func TestNew_PlainMapIsDisjunctionInKeyOrder(t *testing.T) {
	c, err := New("location_id", map[string]any{"b": "2", "a": "1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.IsRange() {
		t.Fatal("map without operator keys must classify as equality")
	}
	if !slices.Equal(c.Values(), []string{"1", "2"}) {
		t.Errorf("values = %v", c.Values())
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
	}{
		{"empty key", "", "x"},
		{"nil value", "k", nil},
		{"empty list", "k", []any{}},
		{"nested list", "k", []any{[]any{1}}},
		{"struct", "k", struct{}{}},
		{"int keyed map", "k", map[int]string{1: "a"}},
		{"empty typed slice", "k", []int{}},
		{"bytes", "k", []byte("x")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.key, tt.value)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, domain.ErrCompile) {
				t.Errorf("expected ErrCompile, got %v", err)
			}
		})
	}
}

func TestEqual(t *testing.T) {
	if _, err := Equal("k"); err == nil {
		t.Fatal("expected error without values")
	}
	c, err := Equal("k", "a", "b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Key() != "k" || len(c.Values()) != 2 {
		t.Errorf("unexpected clause: %+v", c)
	}
}

func TestCompare(t *testing.T) {
	c, err := Compare("up_time", map[Op]float64{OpGTE: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.IsRange() || c.Bounds()[0].Op != OpGTE {
		t.Errorf("unexpected clause: %+v", c)
	}
	if _, err := Compare("up_time", nil); err == nil {
		t.Fatal("expected error without bounds")
	}
}

func TestPartition_KeepsOrder(t *testing.T) {
	a, _ := Equal("a", "1")
	r1, _ := Compare("r1", map[Op]float64{OpLT: 3})
	b, _ := Equal("b", "2")
	r2, _ := Compare("r2", map[Op]float64{OpGT: 1})

	eq, rg := Partition([]Clause{a, r1, b, r2})
	if len(eq) != 2 || eq[0].Key() != "a" || eq[1].Key() != "b" {
		t.Errorf("equality = %+v", eq)
	}
	if len(rg) != 2 || rg[0].Key() != "r1" || rg[1].Key() != "r2" {
		t.Errorf("ranges = %+v", rg)
	}
}

func TestNumeric(t *testing.T) {
	for _, v := range []any{float64(3), 3, int64(3), float32(3), int32(3), int8(3), uint(3), uint64(3), "3", json.Number("3")} {
		f, err := Numeric(v)
		if err != nil {
			t.Fatalf("Numeric(%v): %v", v, err)
		}
		if f != 3 {
			t.Errorf("Numeric(%v) = %v", v, f)
		}
	}
	for _, v := range []any{"abc", true, nil, json.Number("x")} {
		if _, err := Numeric(v); !errors.Is(err, domain.ErrCompile) {
			t.Errorf("Numeric(%v): expected ErrCompile, got %v", v, err)
		}
	}
}

func TestParseOp(t *testing.T) {
	for _, s := range []string{">", ">=", "<", "<="} {
		if _, ok := ParseOp(s); !ok {
			t.Errorf("ParseOp(%q) = false", s)
		}
	}
	if _, ok := ParseOp("="); ok {
		t.Error("ParseOp(\"=\") must be false")
	}
}
