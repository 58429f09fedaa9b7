package main

import (
	"fmt"
	"os"

	"github.com/chazu/hardeen/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hardeen",
	Short: "Hardeen evaluates procedural 2D geometry node graphs",
	Long: `Hardeen builds node graphs of geometry processors from Lisp scripts,
evaluates them in parallel and reports or meshes the resulting world.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringP("format", "f", "text", "Output format: text, json or yaml")
}

// loadConfig reads the --config file and prints validation warnings.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	for _, warning := range cfg.Validate() {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", warning)
	}
	return cfg, nil
}
