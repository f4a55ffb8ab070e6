package types

import (
	"encoding/json"
	"testing"
)

func TestEqualNormalisesNumbers(t *testing.T) {
	cases := []struct {
		a, b any
		want bool
	}{
		{300, 300.0, true},
		{int64(5), json.Number("5"), true},
		{"5", 5, false},
		{"open", "open", true},
		{nil, nil, true},
		{nil, "x", false},
		{true, true, true},
		{map[string]any{"a": 1.0}, map[string]any{"a": 1.0}, true},
	}
	for i, tc := range cases {
		if got := Equal(tc.a, tc.b); got != tc.want {
			t.Errorf("%d: Equal(%v,%v)=%v", i, tc.a, tc.b, got)
		}
	}
}

func TestAsIntAndFormat(t *testing.T) {
	if n, ok := AsInt(10.0); !ok || n != 10 {
		t.Fatal("AsInt(10.0)")
	}
	if _, ok := AsInt(10.5); ok {
		t.Fatal("AsInt(10.5) must fail")
	}
	if Format(60.0) != "60" || Format(2.5) != "2.5" || Format("open") != "open" {
		t.Fatalf("format: %s %s", Format(60.0), Format(2.5))
	}
}

func TestOpKeys(t *testing.T) {
	if OpFromKey("position") != OpPosition || OpFromKey("nope") != OpNone {
		t.Fatal("OpFromKey")
	}
	if OpTestParam.Param() != "test" || OpPosition.Param() != "position" {
		t.Fatal("Param")
	}
}
