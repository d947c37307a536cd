package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/jmaker/classfile"
	"github.com/chazu/jmaker/maker"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[class]
major = 52
source_file = "Gen.java"

[codegen]
max_code_size = 4096
max_relax_passes = 8
max_concat_slots = 20
line_numbers = false
local_variable_table = true

[log]
verbosity = 2
file = "jmaker.log"

[output]
directory = "out"
`)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Class.Major != classfile.MajorJava8 {
		t.Errorf("class major = %d, want 52", c.Class.Major)
	}
	if c.Class.SourceFile != "Gen.java" {
		t.Errorf("source file = %q, want Gen.java", c.Class.SourceFile)
	}
	if c.Log.Verbosity != 2 {
		t.Errorf("log verbosity = %d, want 2", c.Log.Verbosity)
	}
	if got, want := c.LogFile(), filepath.Join(c.Dir, "jmaker.log"); got != want {
		t.Errorf("log file = %q, want %q", got, want)
	}
	if got, want := c.OutputDir(), filepath.Join(c.Dir, "out"); got != want {
		t.Errorf("output dir = %q, want %q", got, want)
	}

	opts := c.MakerOptions()
	if opts.Major != 52 || opts.MaxCodeSize != 4096 || opts.MaxRelaxPasses != 8 || opts.MaxConcatSlots != 20 {
		t.Errorf("options = %+v", opts)
	}
	if opts.LineNumbers {
		t.Error("line numbers = true, want false")
	}
	if !opts.LocalVariableTable {
		t.Error("local variable table = false, want true")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[class]
source_file = "X.java"
`)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	d := maker.DefaultOptions()
	opts := c.MakerOptions()
	if opts.Major != d.Major {
		t.Errorf("major = %d, want %d", opts.Major, d.Major)
	}
	if opts.MaxCodeSize != d.MaxCodeSize || opts.MaxRelaxPasses != d.MaxRelaxPasses || opts.MaxConcatSlots != d.MaxConcatSlots {
		t.Errorf("limits = %+v, want defaults", opts)
	}
	if !opts.LineNumbers {
		t.Error("line numbers should default to true")
	}
	if c.Output.Directory != "classes" {
		t.Errorf("output directory = %q, want classes", c.Output.Directory)
	}
	if c.LogFile() != "" {
		t.Errorf("log file = %q, want empty", c.LogFile())
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		invalid bool
	}{
		{"syntax", "[class\nmajor = 1", false},
		{"unknown key", "[codegen]\nmax_stack = 3", true},
		{"old major", "[class]\nmajor = 40", true},
		{"code size", "[codegen]\nmax_code_size = 70000", true},
		{"concat slots", "[codegen]\nmax_concat_slots = 250", true},
		{"verbosity", "[log]\nverbosity = 9", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeConfig(t, dir, tt.content)
			_, err := Load(dir)
			if err == nil {
				t.Fatal("expected an error")
			}
			if got := errors.Is(err, ErrInvalid); got != tt.invalid {
				t.Errorf("errors.Is(err, ErrInvalid) = %v, want %v (%v)", got, tt.invalid, err)
			}
		})
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(t.TempDir()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want not exist", err)
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "[class]\nmajor = 55\n")
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	c, err := FindAndLoad(nested)
	if err != nil {
		t.Fatal(err)
	}
	if c == nil {
		t.Fatal("config not found")
	}
	if c.Class.Major != classfile.MajorJava11 {
		t.Errorf("major = %d, want 55", c.Class.Major)
	}
	abs, _ := filepath.Abs(root)
	if c.Dir != abs {
		t.Errorf("dir = %q, want %q", c.Dir, abs)
	}
}

func TestFindAndLoadNone(t *testing.T) {
	c, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if c != nil {
		t.Skip("a jmaker.toml exists above the temp directory")
	}
}

func TestDefault(t *testing.T) {
	c := Default()
	if c.Class.Major != maker.DefaultOptions().Major {
		t.Errorf("major = %d", c.Class.Major)
	}
	if c.OutputDir() != "classes" {
		t.Errorf("output dir = %q", c.OutputDir())
	}
}
