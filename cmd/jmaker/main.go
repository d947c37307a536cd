// jmaker CLI - builds JVM class files from YAML recipes, disassembles
// them and runs them in the built-in interpreter.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"

	"github.com/chazu/jmaker/config"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("jmaker.cli")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run executes one command line. It is split from main for tests.
func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("jmaker", flag.ContinueOnError)
	fs.SetOutput(stderr)
	verbosity := fs.Int("v", 0, "Log verbosity (-4..2); overrides [log] verbosity")
	logFile := fs.String("log", "", "Log file; overrides [log] file")
	configDir := fs.String("C", ".", "Directory to search upwards for jmaker.toml")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: jmaker [options] <command> [arguments]\n\n")
		fmt.Fprintf(stderr, "Commands:\n")
		fmt.Fprintf(stderr, "  build [-o dir] recipe.yaml...     Generate class files from recipes\n")
		fmt.Fprintf(stderr, "  disasm file.class...              Print class file contents\n")
		fmt.Fprintf(stderr, "  run [-m method] recipe-or-class   Run a static method in the interpreter\n")
		fmt.Fprintf(stderr, "\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  jmaker build -o classes demo/*.yaml\n")
		fmt.Fprintf(stderr, "  jmaker disasm classes/demo/Hello.class\n")
		fmt.Fprintf(stderr, "  jmaker run -m main demo/hello.yaml\n")
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.FindAndLoad(*configDir)
	if err != nil {
		return err
	}
	if cfg == nil {
		cfg = config.Default()
	}

	level := cfg.Log.Verbosity
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "v" {
			level = *verbosity
		}
	})
	path := cfg.LogFile()
	if *logFile != "" {
		path = *logFile
	}
	if path != "" {
		commonlog.Configure(level, &path)
	} else {
		commonlog.Configure(level, nil)
	}
	if cfg.Dir != "" {
		log.Debugf("using %s/%s", cfg.Dir, config.FileName)
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return fmt.Errorf("no command given")
	}
	switch rest[0] {
	case "build":
		return handleBuildCommand(rest[1:], cfg, stdout, stderr)
	case "disasm":
		return handleDisasmCommand(rest[1:], stdout, stderr)
	case "run":
		return handleRunCommand(rest[1:], cfg, stdout, stderr)
	case "help":
		fs.Usage()
		return nil
	}
	fs.Usage()
	return fmt.Errorf("unknown command %q", rest[0])
}
