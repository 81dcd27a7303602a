// pebbl is the command-line driver for the PEBBL interpreter: it runs a
// source file, drops into a REPL, disassembles a compiled chunk, or runs
// the interpreter's own self-test suite.
package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pebbl-lang/pebbl/internal/cache"
	"github.com/pebbl-lang/pebbl/internal/compiler"
	"github.com/pebbl-lang/pebbl/internal/config"
	"github.com/pebbl-lang/pebbl/internal/engine"
	"github.com/pebbl-lang/pebbl/internal/logging"
	"github.com/pebbl-lang/pebbl/pkg/object"
	"github.com/pebbl-lang/pebbl/pkg/syntax"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var (
		selfTest  bool
		replFlag  bool
		dumpChunk bool
		verbose   bool
		mode      = "vm"
		path      string
	)

	for _, a := range args {
		switch {
		case a == "--test":
			selfTest = true
		case a == "--repl":
			replFlag = true
		case a == "--dump-chunk":
			dumpChunk = true
		case a == "-v" || a == "--verbose":
			verbose = true
		case strings.HasPrefix(a, "--mode="):
			mode = strings.TrimPrefix(a, "--mode=")
		default:
			path = a
		}
	}

	execMode := engine.ParseMode(mode)

	switch {
	case selfTest:
		return runSelfTest()
	case dumpChunk:
		if path == "" {
			fmt.Fprintln(os.Stderr, "pebbl: --dump-chunk requires a source file path")
			return 1
		}
		return runDumpChunk(path)
	case replFlag || path == "":
		runREPL(execMode, verbose)
		return 0
	default:
		return runFile(path, execMode, verbose)
	}
}

// runFile compiles and runs a source file, transparently consulting the
// project's compiled-chunk cache when a pebbl.toml manifest enables it (VM
// mode only — the tree-walker consumes the AST directly and never touches
// the cache).
func runFile(path string, mode engine.Mode, verbose bool) int {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pebbl: %v\n", err)
		return 1
	}
	source := string(data)

	eng := engine.New(mode)
	if verbose {
		eng.SetTracer(logging.NewWriter(os.Stderr))
	}

	manifest, _ := config.FindAndLoad(filepath.Dir(path))
	var c *cache.Cache
	if manifest != nil && manifest.Cache.Enabled {
		c, err = cache.Open(filepath.Join(manifest.Cache.Dir, "pebbl.db"))
		if err != nil {
			fmt.Fprintf(os.Stderr, "pebbl: warning: cache unavailable: %v\n", err)
			c = nil
		} else {
			defer c.Close()
		}
	}

	parser := syntax.NewParser(source)
	prog, err := parser.ParseProgram()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pebbl: %v\n", err)
		return 1
	}

	if mode != engine.ModeVM || c == nil {
		if _, err := eng.Run(prog); err != nil {
			fmt.Fprintf(os.Stderr, "pebbl: %v\n", err)
			return 1
		}
		return 0
	}

	chunk, hit, err := c.Get(source, eng.Heap().NewString)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pebbl: warning: cache lookup failed: %v\n", err)
	}
	if !hit {
		chunk, err = eng.Compile(prog)
		if err != nil {
			fmt.Fprintf(os.Stderr, "pebbl: %v\n", err)
			return 1
		}
		if _, err := c.Put(source, chunk); err != nil {
			fmt.Fprintf(os.Stderr, "pebbl: warning: cache write failed: %v\n", err)
		}
	}

	if _, err := eng.RunChunk(chunk); err != nil {
		fmt.Fprintf(os.Stderr, "pebbl: %v\n", err)
		return 1
	}
	return 0
}

// runREPL reads statements from stdin one line at a time, running each
// through a fresh top-level parse against a persistent Engine so bindings
// accumulate across lines the way a script's globals would.
func runREPL(mode engine.Mode, verbose bool) {
	eng := engine.New(mode)
	if verbose {
		eng.SetTracer(logging.NewWriter(os.Stderr))
	}

	fmt.Printf("pebbl REPL (mode=%v, type 'exit' to quit)\n", mode)
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(">> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		line := scanner.Text()
		if line == "exit" || line == "quit" {
			return
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		parser := syntax.NewParser(line)
		prog, err := parser.ParseProgram()
		if err != nil {
			fmt.Fprintf(os.Stderr, "parse error: %v\n", err)
			continue
		}

		result, err := eng.Run(prog)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		if !result.IsNil() && !result.IsUndefined() {
			fmt.Println(object.Stringify(result))
		}
	}
}

// runDumpChunk compiles path without executing it and prints the resulting
// chunk's disassembly, including any nested function templates.
func runDumpChunk(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pebbl: %v\n", err)
		return 1
	}

	parser := syntax.NewParser(string(data))
	prog, err := parser.ParseProgram()
	if err != nil {
		fmt.Fprintf(os.Stderr, "pebbl: %v\n", err)
		return 1
	}

	eng := engine.New(engine.ModeVM)
	c := compiler.New(eng.Heap())
	chunk, err := c.CompileProgram(prog)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pebbl: %v\n", err)
		return 1
	}

	fmt.Print(chunk.Disassemble(filepath.Base(path)))
	for _, ft := range chunk.Functions {
		fmt.Print(ft.Chunk.Disassemble(ft.Name))
	}
	return 0
}

// selfTestCase pairs a program with the stringified result it must produce
// under both execution modes.
type selfTestCase struct {
	name   string
	source string
	want   string
}

var selfTestCases = []selfTestCase{
	{"arithmetic", "1 + 2 * 3", "7"},
	{"print-returns-nil", `print("a", "b")`, "nil"},
	{"comparison", "3 < 4", "true"},
	{"if-expr", "if true { 1 } else { 2 }", "1"},
	{"while-accum", "var x = 0; while x < 5 { x = x + 1 } x", "5"},
	{
		"closure-counter",
		"func makeCounter() { var n = 0; func inc() { n = n + 1; n } inc } var c = makeCounter(); c(); c(); c()",
		"3",
	},
	{"array-index", "var a = [10, 20, 30]; a[1]", "20"},
	{"dict-index", `var d = {"k": 42}; d["k"]`, "42"},
	{"for-in-array-sum", "var s = 0; for v in [1, 2, 3] { s = s + v } s", "6"},
	{"short-circuit-and", "false and (1 / 0)", "false"},
	{"short-circuit-or", "true or (1 / 0)", "true"},
	{"builtin-length", `length("hello")`, "5"},
	{"builtin-range", "length(range(5))", "5"},
}

// runSelfTest runs every case in selfTestCases against both execution
// modes and reports pass/fail; used by --test as a smoke check that both
// the VM and the tree-walker agree on core language semantics.
func runSelfTest() int {
	failures := 0
	for _, mode := range []engine.Mode{engine.ModeVM, engine.ModeTree} {
		for _, tc := range selfTestCases {
			got, err := evalOne(mode, tc.source)
			if err != nil {
				fmt.Printf("FAIL [%s/%s]: %v\n", modeName(mode), tc.name, err)
				failures++
				continue
			}
			if got != tc.want {
				fmt.Printf("FAIL [%s/%s]: got %q, want %q\n", modeName(mode), tc.name, got, tc.want)
				failures++
				continue
			}
			fmt.Printf("PASS [%s/%s]\n", modeName(mode), tc.name)
		}
	}
	if failures > 0 {
		fmt.Printf("%d failure(s)\n", failures)
		return 1
	}
	fmt.Println("all tests passed")
	return 0
}

func evalOne(mode engine.Mode, source string) (string, error) {
	parser := syntax.NewParser(source)
	prog, err := parser.ParseProgram()
	if err != nil {
		return "", err
	}
	eng := engine.New(mode)
	result, err := eng.Run(prog)
	if err != nil {
		return "", err
	}
	return object.Stringify(result), nil
}

func modeName(m engine.Mode) string {
	if m == engine.ModeTree {
		return "tree"
	}
	return "vm"
}
