package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/jmaker/config"
	"github.com/chazu/jmaker/interp"
)

// handleRunCommand processes the `jmaker run` subcommand. The file is a
// recipe, built in memory, or a class file. Arguments after the file are
// passed as a String[] when the method takes one.
func handleRunCommand(args []string, cfg *config.Config, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	methodName := fs.String("m", "main", "Static method to invoke")
	maxSteps := fs.Int64("steps", 0, "Instruction limit (0 for none)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("run: no recipe or class file given")
	}
	path, progArgs := fs.Arg(0), fs.Args()[1:]

	vm := interp.New(stdout)
	vm.MaxSteps = *maxSteps
	className, err := loadInto(vm, path, cfg)
	if err != nil {
		return err
	}

	cls, _ := vm.Class(className)
	desc, err := cls.FindMethod(*methodName)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	var callArgs []any
	switch {
	case strings.HasPrefix(desc, "()"):
		if len(progArgs) > 0 {
			log.Warningf("%s takes no arguments; ignoring %d", *methodName, len(progArgs))
		}
	case strings.HasPrefix(desc, "([Ljava/lang/String;)"):
		arr := &interp.Array{Desc: "[Ljava/lang/String;", Data: make([]any, len(progArgs))}
		for i, a := range progArgs {
			arr.Data[i] = a
		}
		callArgs = append(callArgs, arr)
	default:
		return fmt.Errorf("run: %s%s: only () and (String[]) methods can be run", *methodName, desc)
	}

	log.Infof("invoking %s.%s%s", className, *methodName, desc)
	result, err := vm.InvokeStatic(className, *methodName, desc, callArgs...)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	ret := desc[strings.IndexByte(desc, ')')+1:]
	if ret == "V" {
		return nil
	}
	s, err := vm.Format(result, ret)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	fmt.Fprintln(stdout, s)
	return nil
}

// loadInto defines the class at path, and any helpers it needs, in vm. It
// returns the class name.
func loadInto(vm *interp.VM, path string, cfg *config.Config) (string, error) {
	if filepath.Ext(path) == ".class" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("run: %w", err)
		}
		c, err := vm.Define(data)
		if err != nil {
			return "", fmt.Errorf("run: %w", err)
		}
		return c.Name, nil
	}

	cls, err := buildRecipe(path, cfg)
	if err != nil {
		return "", err
	}
	for _, h := range cls.Helpers {
		if _, err := vm.Define(h.Bytes); err != nil {
			return "", fmt.Errorf("run: helper %s: %w", h.Name, err)
		}
	}
	if _, err := vm.Define(cls.Bytes); err != nil {
		return "", fmt.Errorf("run: %w", err)
	}
	return cls.Name, nil
}
