// cmd/csvchat/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "csvchat",
	Short: "Ask questions about a CSV file in plain language",
	Long: `csvchat loads a CSV file into a single SQL table, turns natural-language
questions into a read-only SQL query with a language model, and renders the
answer as a table and an optional chart.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a config YAML file (default: configs/config.yaml)")
	rootCmd.AddCommand(serveCmd, ingestCmd, askCmd, schemaCmd, debugCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, describeError(err))
		os.Exit(1)
	}
}
