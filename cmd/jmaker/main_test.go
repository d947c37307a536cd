package main

import (
	"bytes"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/jmaker/config"
	"github.com/chazu/jmaker/maker"
	"github.com/chazu/jmaker/recipe"
)

const recipes = "../../recipe/testdata"

// runCLI runs a command line rooted at dir, so no jmaker.toml above the
// test tree is picked up unless the test writes one.
func runCLI(t *testing.T, dir string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(append([]string{"-C", dir}, args...), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestBuildAndRunClassFile(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "classes")

	stdout, _, err := runCLI(t, dir, "build", "-o", out,
		filepath.Join(recipes, "hello.yaml"), filepath.Join(recipes, "counter.yaml"))
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, name := range []string{"demo/Hello.class", "demo/Counter.class"} {
		path := filepath.Join(out, filepath.FromSlash(name))
		if _, err := os.Stat(path); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
		if !strings.Contains(stdout, path) {
			t.Errorf("build output does not mention %s:\n%s", path, stdout)
		}
	}

	stdout, _, err = runCLI(t, dir, "run", filepath.Join(out, "demo", "Hello.class"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if want := "2\nx is 2!\n"; stdout != want {
		t.Errorf("run output = %q, want %q", stdout, want)
	}
}

func TestRunRecipe(t *testing.T) {
	dir := t.TempDir()
	echo := filepath.Join("testdata", "echo.yaml")

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"main with args", []string{"run", echo, "a", "b"}, "2\na\nb\n"},
		{"main without args", []string{"run", echo}, "0\n"},
		{"result printed", []string{"run", "-m", "answer", echo}, "42.0\n"},
		{"hello", []string{"run", filepath.Join(recipes, "hello.yaml")}, "2\nx is 2!\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := runCLI(t, dir, tt.args...)
			if err != nil {
				t.Fatal(err)
			}
			if stdout != tt.want {
				t.Errorf("output = %q, want %q", stdout, tt.want)
			}
		})
	}
}

func TestRunErrors(t *testing.T) {
	dir := t.TempDir()

	_, _, err := runCLI(t, dir, "run", "-m", "fails", filepath.Join(recipes, "control.yaml"))
	if err == nil || !strings.Contains(err.Error(), "java.lang.IllegalStateException: broken") {
		t.Errorf("uncaught exception: err = %v", err)
	}

	_, _, err = runCLI(t, dir, "run", "-m", "divide", filepath.Join(recipes, "control.yaml"))
	if err == nil || !strings.Contains(err.Error(), "only () and (String[])") {
		t.Errorf("method with int params: err = %v", err)
	}

	_, _, err = runCLI(t, dir, "run", "-m", "nothing", filepath.Join(recipes, "hello.yaml"))
	if err == nil {
		t.Error("missing method accepted")
	}
}

func TestBuildUnassignedFails(t *testing.T) {
	dir := t.TempDir()
	_, _, err := runCLI(t, dir, "build", "-o", dir, filepath.Join(recipes, "unassigned.yaml"))
	if !errors.Is(err, maker.ErrUnassigned) {
		t.Errorf("err = %v, want ErrUnassigned", err)
	}
}

func TestBuildUsesConfig(t *testing.T) {
	dir := t.TempDir()
	toml := `[class]
major = 52
source_file = "Generated.java"

[output]
directory = "out"
`
	if err := os.WriteFile(filepath.Join(dir, config.FileName), []byte(toml), 0o644); err != nil {
		t.Fatal(err)
	}
	hello, err := filepath.Abs(filepath.Join(recipes, "hello.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	echo, err := filepath.Abs(filepath.Join("testdata", "echo.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := runCLI(t, dir, "build", hello, echo); err != nil {
		t.Fatal(err)
	}

	listing, _, err := runCLI(t, dir, "disasm", filepath.Join(dir, "out", "demo", "Echo.class"))
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"version: 52.0", "source: Generated.java"} {
		if !strings.Contains(listing, want) {
			t.Errorf("listing lacks %q:\n%s", want, listing)
		}
	}

	// hello.yaml names its own source file
	listing, _, err = runCLI(t, dir, "disasm", filepath.Join(dir, "out", "demo", "Hello.class"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(listing, "source: Hello.yaml") {
		t.Errorf("listing:\n%s", listing)
	}
	if strings.Contains(listing, "invokedynamic") {
		t.Errorf("Java 8 class uses invokedynamic:\n%s", listing)
	}
}

var update = flag.Bool("update", false, "rewrite the golden listings in testdata")

// TestDisasmGolden compares listings of the recipe classes against the
// golden files in testdata. Run with -update to rewrite them.
func TestDisasmGolden(t *testing.T) {
	for _, name := range []string{"hello", "counter"} {
		t.Run(name, func(t *testing.T) {
			rc, err := recipe.Load(filepath.Join(recipes, name+".yaml"))
			if err != nil {
				t.Fatal(err)
			}
			cls, err := rc.Build(maker.DefaultOptions())
			if err != nil {
				t.Fatal(err)
			}
			var listing bytes.Buffer
			if err := disassemble(&listing, cls.Bytes); err != nil {
				t.Fatal(err)
			}
			content := listing.String()

			goldenPath := filepath.Join("testdata", name+".golden")
			if *update {
				if err := os.WriteFile(goldenPath, []byte(content), 0o644); err != nil {
					t.Fatalf("write golden file: %v", err)
				}
				return
			}
			expected, err := os.ReadFile(goldenPath)
			if err != nil {
				t.Fatal(err)
			}
			if string(expected) != content {
				t.Errorf("listing of %s changed.\nGot:\n%s\nWant:\n%s", name, content, expected)
			}
		})
	}
}

func TestDisasmListing(t *testing.T) {
	rc, err := recipe.Load(filepath.Join(recipes, "counter.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	cls, err := rc.Build(maker.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	var listing bytes.Buffer
	if err := disassemble(&listing, cls.Bytes); err != nil {
		t.Fatal(err)
	}
	got := listing.String()
	for _, want := range []string{
		"public class demo/Counter extends java/lang/Object",
		"field private count I",
		"field public static final STEP J = 3",
		`field public static final NAME Ljava/lang/String; = "counter"`,
		"method public <init>(I)V",
		"method public static sum(I)J",
		"invokespecial",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("listing lacks %q:\n%s", want, got)
		}
	}

	if err := disassemble(&listing, []byte{0xca, 0xfe, 0xba, 0xbe}); err == nil {
		t.Error("truncated class accepted")
	}
}

func TestCommandErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no command", nil, "no command"},
		{"unknown command", []string{"frob"}, `unknown command "frob"`},
		{"build without recipes", []string{"build"}, "no recipes"},
		{"disasm without files", []string{"disasm"}, "no class files"},
		{"run without file", []string{"run"}, "no recipe"},
		{"missing recipe", []string{"build", "-o", dir, "nope.yaml"}, "nope.yaml"},
		{"missing class", []string{"disasm", "nope.class"}, "nope.class"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := runCLI(t, dir, tt.args...)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestHelp(t *testing.T) {
	_, stderr, err := runCLI(t, t.TempDir(), "help")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stderr, "Usage: jmaker") {
		t.Errorf("help output:\n%s", stderr)
	}
}
