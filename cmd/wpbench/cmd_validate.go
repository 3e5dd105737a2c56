package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spboyer/wpbench/internal/orchestration"
	"github.com/spboyer/wpbench/internal/projectconfig"
	"github.com/spboyer/wpbench/internal/validation"
	"github.com/spf13/cobra"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [path]",
		Short: "Validate a .wpbench.yaml against its schema",
		Long: `Validate a .wpbench.yaml file. Without a path, the file named by --config
or the nearest .wpbench.yaml above the working directory is checked.

Schema violations are listed one per line. Test ids that no shipped test
uses are reported too.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(cmd, args)
			if err != nil {
				return err
			}

			errs, err := validation.ValidateConfigFile(path)
			if err != nil {
				return err
			}

			if len(errs) == 0 {
				cfg, err := projectconfig.LoadFile(path)
				if err != nil {
					return err
				}
				errs = unknownTestIDs(cfg)
			}

			out := cmd.OutOrStdout()
			if len(errs) > 0 {
				fmt.Fprintf(out, "✗ %s\n", path)
				for _, e := range errs {
					fmt.Fprintf(out, "  %s\n", e)
				}
				return fmt.Errorf("%s: %d problem(s) found", path, len(errs))
			}
			fmt.Fprintf(out, "✓ %s is valid\n", path)
			return nil
		},
	}
}

// configPath resolves the file to validate: the argument, then --config,
// then the nearest .wpbench.yaml.
func configPath(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if f := cmd.Flags().Lookup("config"); f != nil && f.Value.String() != "" {
		return f.Value.String(), nil
	}

	cfg, err := projectconfig.Load(".")
	if err != nil {
		return "", err
	}
	if cfg.Source == "" {
		wd, _ := os.Getwd()
		return "", fmt.Errorf("no %s found in %s or its parents", projectconfig.FileName, filepath.Clean(wd))
	}
	return cfg.Source, nil
}

// unknownTestIDs lists configured test ids and selectors that match no
// registered test.
func unknownTestIDs(cfg *projectconfig.ProjectConfig) []string {
	a := &app{cfg: cfg}
	defer a.Close() //nolint:errcheck
	reg := a.openRegistry(nil)

	var problems []string
	for id := range cfg.Tests {
		if _, ok := reg.Descriptor(id); !ok {
			problems = append(problems, fmt.Sprintf("/tests/%s: unknown test", id))
		}
	}
	if _, err := orchestration.FilterTestIDs(reg.IDs(), cfg.Selection); err != nil {
		problems = append(problems, "/selection: "+err.Error())
	}
	sort.Strings(problems)
	return problems
}
