package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/phobologic/ovdmap/internal/config"
)

const configHeader = `# ovdmap configuration. OVDMAP_* environment variables and command-line
# flags override these values.
`

// runInit implements the `ovdmap init` subcommand, which writes a starter
// configuration file holding the built-in defaults.
func runInit(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("ovdmap init", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var dryRun, force bool
	fs.BoolVar(&dryRun, "dry-run", false, "print the file instead of writing it")
	fs.BoolVar(&force, "force", false, "overwrite an existing configuration file")

	fs.Usage = func() {
		fmt.Fprintf(stderr, `Usage: ovdmap init [flags] [dir]

Write a %s file with the default settings to dir (default .).
An existing file is left alone unless -force is given.

Flags:
`, config.FileName)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	content, err := generateConfig()
	if err != nil {
		return err
	}

	if dryRun {
		_, _ = fmt.Fprint(stdout, content)
		return nil
	}

	dir := "."
	if fs.NArg() > 0 {
		dir = fs.Arg(0)
	}
	path := filepath.Join(dir, config.FileName)

	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use -force to overwrite)", path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("checking %s: %w", path, err)
		}
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}

	_, _ = fmt.Fprintf(stderr, "wrote %s\n", path)
	return nil
}

// generateConfig renders the default configuration as commented YAML.
func generateConfig() (string, error) {
	data, err := yaml.Marshal(config.Default())
	if err != nil {
		return "", fmt.Errorf("encoding config: %w", err)
	}
	return configHeader + string(data), nil
}
