package main

import (
	"fmt"
	"io"

	"github.com/chazu/hardeen/pkg/project"
	"github.com/spf13/cobra"
)

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List the available processor types",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		return listTypes(cmd.OutOrStdout(), format)
	},
}

func init() {
	rootCmd.AddCommand(typesCmd)
}

func listTypes(w io.Writer, format string) error {
	types := project.ProcessorTypes()
	if ok, err := writeStructured(w, format, types); ok {
		return err
	}
	for _, t := range types {
		fmt.Fprintf(w, "%s -> %s", t.Name, t.Output)
		if t.Subgraph {
			fmt.Fprint(w, " (subgraph)")
		}
		fmt.Fprintln(w)
		for i, in := range t.Inputs {
			opt := ""
			if in.Optional {
				opt = ", optional"
			}
			fmt.Fprintf(w, "  input %d %s: %s%s\n", i, in.Name, in.Type, opt)
		}
		for _, p := range t.Parameters {
			fmt.Fprintf(w, "  param %s: %s\n", p.Name, p.Type)
		}
	}
	return nil
}
