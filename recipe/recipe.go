// Package recipe reads declarative class descriptions from YAML and
// builds them with the maker API.
//
// A recipe names a class, its fields and its methods. Method bodies are
// lists of statements; each statement is a mapping whose first key names
// it:
//
//	methods:
//	  - name: main
//	    modifiers: [public, static]
//	    params: [{name: args, type: "String[]"}]
//	    body:
//	      - var: x
//	        type: int
//	        value: 1
//	      - if: {eq: [x, 1]}
//	        then:
//	          - set: x
//	            value: 2
//	      - print: x
//
// In expressions, plain scalars name variables, parameters and fields of
// the class; quoted scalars are string literals; numbers, booleans and
// null are constants. A plain scalar that names nothing may be a number
// with a Java suffix, such as 5L or 1.5f.
package recipe

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalid reports a malformed recipe.
var ErrInvalid = errors.New("invalid recipe")

// Recipe describes one class.
type Recipe struct {
	Class      string   `yaml:"class"`
	Extends    string   `yaml:"extends"`
	Implements []string `yaml:"implements"`
	Modifiers  []string `yaml:"modifiers"`
	SourceFile string   `yaml:"source_file"`
	Fields     []Field  `yaml:"fields"`
	Methods    []Method `yaml:"methods"`

	// Path is the file the recipe was read from (set at load time).
	Path string `yaml:"-"`
}

// Field describes a field. Init gives a constant value for static fields.
type Field struct {
	Name      string    `yaml:"name"`
	Type      string    `yaml:"type"`
	Modifiers []string  `yaml:"modifiers"`
	Init      yaml.Node `yaml:"init"`
}

// Method describes a method. The names <init> and <clinit> declare a
// constructor and the static initializer.
type Method struct {
	Name      string      `yaml:"name"`
	Returns   string      `yaml:"returns"`
	Params    []Param     `yaml:"params"`
	Modifiers []string    `yaml:"modifiers"`
	Throws    []string    `yaml:"throws"`
	Body      []yaml.Node `yaml:"body"`
}

// Param is a named method parameter.
type Param struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Parse decodes a recipe. Unknown keys are rejected.
func Parse(r io.Reader) (*Recipe, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var rc Recipe
	if err := dec.Decode(&rc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("recipe: empty document: %w", ErrInvalid)
		}
		return nil, fmt.Errorf("recipe: %w", err)
	}
	if err := rc.validate(); err != nil {
		return nil, err
	}
	return &rc, nil
}

// Load reads a recipe file.
func Load(path string) (*Recipe, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("recipe: cannot read %s: %w", path, err)
	}
	rc, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	rc.Path = path
	return rc, nil
}

func (rc *Recipe) validate() error {
	if rc.Class == "" {
		return fmt.Errorf("recipe: missing class name: %w", ErrInvalid)
	}
	for i, f := range rc.Fields {
		if f.Name == "" || f.Type == "" {
			return fmt.Errorf("recipe: %s: field %d needs a name and a type: %w", rc.Class, i, ErrInvalid)
		}
	}
	for i, m := range rc.Methods {
		if m.Name == "" {
			return fmt.Errorf("recipe: %s: method %d has no name: %w", rc.Class, i, ErrInvalid)
		}
		for _, p := range m.Params {
			if p.Name == "" || p.Type == "" {
				return fmt.Errorf("recipe: %s.%s: parameters need a name and a type: %w", rc.Class, m.Name, ErrInvalid)
			}
		}
	}
	return nil
}
