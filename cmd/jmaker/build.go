package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/chazu/jmaker/config"
	"github.com/chazu/jmaker/maker"
	"github.com/chazu/jmaker/recipe"
)

// handleBuildCommand processes the `jmaker build` subcommand.
// Usage:
//
//	jmaker build a.yaml b.yaml         # into [output] directory
//	jmaker build -o out a.yaml         # custom output directory
func handleBuildCommand(args []string, cfg *config.Config, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	fs.SetOutput(stderr)
	outDir := fs.String("o", cfg.OutputDir(), "Output directory")
	jobs := fs.Int("j", runtime.GOMAXPROCS(0), "Recipes built concurrently")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("build: no recipes given")
	}

	classes, err := buildRecipes(context.Background(), fs.Args(), cfg, *jobs)
	if err != nil {
		return err
	}

	written := make(map[string]bool)
	for _, cls := range classes {
		for _, c := range append([]*maker.Class{cls}, cls.Helpers...) {
			if written[c.Name] {
				continue
			}
			written[c.Name] = true
			path, err := writeClass(*outDir, c)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "wrote %s\n", path)
		}
	}
	return nil
}

// buildRecipes loads and builds each recipe, at most limit at a time.
// Results keep the order of paths.
func buildRecipes(ctx context.Context, paths []string, cfg *config.Config, limit int) ([]*maker.Class, error) {
	classes := make([]*maker.Class, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			cls, err := buildRecipe(path, cfg)
			if err != nil {
				return err
			}
			classes[i] = cls
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return classes, nil
}

func buildRecipe(path string, cfg *config.Config) (*maker.Class, error) {
	rc, err := recipe.Load(path)
	if err != nil {
		return nil, err
	}
	if rc.SourceFile == "" {
		rc.SourceFile = cfg.Class.SourceFile
	}
	log.Infof("building %s", path)
	return rc.Build(cfg.MakerOptions())
}

// writeClass stores c under dir using its package path.
func writeClass(dir string, c *maker.Class) (string, error) {
	path := filepath.Join(dir, filepath.FromSlash(strings.ReplaceAll(c.Name, ".", "/"))+".class")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("build: %w", err)
	}
	if err := os.WriteFile(path, c.Bytes, 0o644); err != nil {
		return "", fmt.Errorf("build: %w", err)
	}
	log.Debugf("wrote %s (%d bytes)", path, len(c.Bytes))
	return path, nil
}
