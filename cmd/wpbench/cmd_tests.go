package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func newTestsCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "tests",
		Short: "List the available benchmark tests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if format != "table" && format != "json" {
				return fmt.Errorf("unsupported format %q: must be table or json", format)
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close() //nolint:errcheck

			descriptors := a.openRegistry(nil).Available()
			out := cmd.OutOrStdout()

			if format == "json" {
				data, err := json.MarshalIndent(descriptors, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal tests: %w", err)
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			fmt.Fprintf(out, "%s  %s  %s  %s\n",
				padRight("ID", 14), padRight("Name", 22), padRight("Default", 10), "Range")
			fmt.Fprintln(out, strings.Repeat("-", 70))
			for _, d := range descriptors {
				name := d.Name
				if d.Experimental {
					name += " *"
				}
				fmt.Fprintf(out, "%s  %s  %s  %d-%d %s\n",
					padRight(d.ID, 14),
					padRight(truncateName(name, 22), 22),
					padRight(strconv.Itoa(d.DefaultValue), 10),
					d.MinValue, d.MaxValue, d.ConfigUnit)
			}
			fmt.Fprintln(out, "\n* experimental, not selected by default")
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table or json")
	return cmd
}
