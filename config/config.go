// Package config handles jmaker.toml project configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/jmaker/classfile"
	"github.com/chazu/jmaker/maker"
)

// FileName is the configuration file looked up by Load and FindAndLoad.
const FileName = "jmaker.toml"

// ErrInvalid reports a configuration value out of range.
var ErrInvalid = errors.New("invalid configuration")

// Config represents a jmaker.toml file.
type Config struct {
	Class   Class   `toml:"class"`
	Codegen Codegen `toml:"codegen"`
	Log     Log     `toml:"log"`
	Output  Output  `toml:"output"`

	// Dir is the directory containing the jmaker.toml file (set at load time).
	Dir string `toml:"-"`
}

// Class configures the generated class files.
type Class struct {
	Major      uint16 `toml:"major"`
	SourceFile string `toml:"source_file"`
}

// Codegen configures code generation limits and debug tables.
type Codegen struct {
	MaxCodeSize        int   `toml:"max_code_size"`
	MaxRelaxPasses     int   `toml:"max_relax_passes"`
	MaxConcatSlots     int   `toml:"max_concat_slots"`
	LineNumbers        *bool `toml:"line_numbers"`
	LocalVariableTable bool  `toml:"local_variable_table"`
}

// Log configures commonlog.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Output configures where class files are written.
type Output struct {
	Directory string `toml:"directory"`
}

// Default returns the configuration used when no jmaker.toml exists.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load parses a jmaker.toml file from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: cannot read %s: %w", path, err)
	}

	var c Config
	md, err := toml.Decode(string(data), &c)
	if err != nil {
		return nil, fmt.Errorf("config: parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config: %s: unknown key %s: %w", path, undecoded[0], ErrInvalid)
	}

	c.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("config: cannot resolve path %s: %w", dir, err)
	}

	c.applyDefaults()
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &c, nil
}

// FindAndLoad walks up from startDir to find a jmaker.toml file, then
// loads it. Returns nil if no file is found.
func FindAndLoad(startDir string) (*Config, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, FileName)); err == nil {
			return Load(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

func (c *Config) applyDefaults() {
	d := maker.DefaultOptions()
	if c.Class.Major == 0 {
		c.Class.Major = d.Major
	}
	if c.Codegen.MaxCodeSize == 0 {
		c.Codegen.MaxCodeSize = d.MaxCodeSize
	}
	if c.Codegen.MaxRelaxPasses == 0 {
		c.Codegen.MaxRelaxPasses = d.MaxRelaxPasses
	}
	if c.Codegen.MaxConcatSlots == 0 {
		c.Codegen.MaxConcatSlots = d.MaxConcatSlots
	}
	if c.Codegen.LineNumbers == nil {
		on := d.LineNumbers
		c.Codegen.LineNumbers = &on
	}
	if c.Output.Directory == "" {
		c.Output.Directory = "classes"
	}
}

func (c *Config) validate() error {
	d := maker.DefaultOptions()
	switch {
	case c.Class.Major < 45 || c.Class.Major > classfile.MajorJava21+4:
		return fmt.Errorf("class.major %d: %w", c.Class.Major, ErrInvalid)
	case c.Codegen.MaxCodeSize < 0 || c.Codegen.MaxCodeSize > d.MaxCodeSize:
		return fmt.Errorf("codegen.max_code_size %d: %w", c.Codegen.MaxCodeSize, ErrInvalid)
	case c.Codegen.MaxRelaxPasses < 0:
		return fmt.Errorf("codegen.max_relax_passes %d: %w", c.Codegen.MaxRelaxPasses, ErrInvalid)
	case c.Codegen.MaxConcatSlots < 0 || c.Codegen.MaxConcatSlots > d.MaxConcatSlots:
		return fmt.Errorf("codegen.max_concat_slots %d: %w", c.Codegen.MaxConcatSlots, ErrInvalid)
	case c.Log.Verbosity < -4 || c.Log.Verbosity > 2:
		return fmt.Errorf("log.verbosity %d: %w", c.Log.Verbosity, ErrInvalid)
	}
	return nil
}

// MakerOptions returns the class generation options for this
// configuration.
func (c *Config) MakerOptions() maker.Options {
	opts := maker.DefaultOptions()
	opts.Major = c.Class.Major
	opts.MaxCodeSize = c.Codegen.MaxCodeSize
	opts.MaxRelaxPasses = c.Codegen.MaxRelaxPasses
	opts.MaxConcatSlots = c.Codegen.MaxConcatSlots
	if c.Codegen.LineNumbers != nil {
		opts.LineNumbers = *c.Codegen.LineNumbers
	}
	opts.LocalVariableTable = c.Codegen.LocalVariableTable
	return opts
}

// OutputDir returns the absolute output directory.
func (c *Config) OutputDir() string {
	if filepath.IsAbs(c.Output.Directory) || c.Dir == "" {
		return c.Output.Directory
	}
	return filepath.Join(c.Dir, c.Output.Directory)
}

// LogFile returns the log file path, or "" for stderr.
func (c *Config) LogFile() string {
	if c.Log.File == "" || filepath.IsAbs(c.Log.File) || c.Dir == "" {
		return c.Log.File
	}
	return filepath.Join(c.Dir, c.Log.File)
}
