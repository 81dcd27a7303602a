package engine

import (
	"testing"

	"github.com/pebbl-lang/pebbl/pkg/object"
	"github.com/pebbl-lang/pebbl/pkg/syntax"
)

func evalSource(t *testing.T, mode Mode, source string) (string, error) {
	t.Helper()
	p := syntax.NewParser(source)
	prog, err := p.ParseProgram()
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	eng := New(mode)
	result, err := eng.Run(prog)
	if err != nil {
		return "", err
	}
	return object.Stringify(result), nil
}

func TestBothModesAgree(t *testing.T) {
	cases := []struct {
		name   string
		source string
		want   string
	}{
		{"arith", "1 + 2 * 3", "7"},
		{"comparison", "3 < 4", "true"},
		{"if-true", "if true { 1 } else { 2 }", "1"},
		{"if-false", "if false { 1 } else { 2 }", "2"},
		{"while", "var x = 0; while x < 5 { x = x + 1 } x", "5"},
		{"while-many-iterations", "var x = 0; while x < 300 { x = x + 1 } x", "300"},
		{"for-in-many-iterations", "var s = 0; for v in range(300) { s = s + v } s", "44850"},
		{"array-index", "var a = [10, 20, 30]; a[1]", "20"},
		{"dict-index", `var d = {"k": 42}; d["k"]`, "42"},
		{"for-in-array", "var s = 0; for v in [1, 2, 3] { s = s + v } s", "6"},
		{"for-in-dict-keys", `var d = {"a": 1}; var out = nil; for k in keys(d) { out = k } out`, "a"},
		{"short-circuit-and", "false and (1 / 0)", "false"},
		{"short-circuit-or", "true or (1 / 0)", "true"},
		{
			"closure",
			"func makeCounter() { var n = 0; func inc() { n = n + 1; n } inc } var c = makeCounter(); c(); c(); c()",
			"3",
		},
		{"builtin-length", `length("hello")`, "5"},
		{"builtin-range", "length(range(5))", "5"},
		{"implicit-return", "func f(n) { if n { n } else { 0 } } f(true)", "true"},
	}

	for _, tc := range cases {
		for _, mode := range []Mode{ModeVM, ModeTree} {
			mode := mode
			t.Run(tc.name+"/"+modeLabel(mode), func(t *testing.T) {
				got, err := evalSource(t, mode, tc.source)
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if got != tc.want {
					t.Errorf("got %q, want %q", got, tc.want)
				}
			})
		}
	}
}

func TestDivisionByZeroErrorsBothModes(t *testing.T) {
	for _, mode := range []Mode{ModeVM, ModeTree} {
		if _, err := evalSource(t, mode, "1 / 0"); err == nil {
			t.Errorf("mode %s: expected DivisionByZero error, got nil", modeLabel(mode))
		}
	}
}

func TestUndefinedNameErrorsBothModes(t *testing.T) {
	for _, mode := range []Mode{ModeVM, ModeTree} {
		if _, err := evalSource(t, mode, "undefinedThing"); err == nil {
			t.Errorf("mode %s: expected UndefinedName error, got nil", modeLabel(mode))
		}
	}
}

func TestImmutableAssignmentErrorsBothModes(t *testing.T) {
	for _, mode := range []Mode{ModeVM, ModeTree} {
		if _, err := evalSource(t, mode, "func f() { 1 } f = 2"); err == nil {
			t.Errorf("mode %s: expected ImmutableAssignment error, got nil", modeLabel(mode))
		}
	}
}

func TestLetAndVarAreBothMutable(t *testing.T) {
	for _, mode := range []Mode{ModeVM, ModeTree} {
		got, err := evalSource(t, mode, "let x = 1; x = 2; x")
		if err != nil {
			t.Fatalf("mode %s: unexpected error: %v", modeLabel(mode), err)
		}
		if got != "2" {
			t.Errorf("mode %s: got %q, want %q", modeLabel(mode), got, "2")
		}
	}
}

func modeLabel(m Mode) string {
	if m == ModeTree {
		return "tree"
	}
	return "vm"
}
