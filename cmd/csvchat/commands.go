// cmd/csvchat/commands.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"csv-chat/internal/api"
	answerquestion "csv-chat/internal/workers/conversation/answer-question"
	describetable "csv-chat/internal/workers/data-access/describe-table"
	ingestcsv "csv-chat/internal/workers/data-access/ingest-csv"
)

var askJSON bool

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// describeError turns a pipeline error into the one-line message shown on exit.
func describeError(err error) string {
	if se, ok := api.ClassifyPipelineError(err); ok {
		if se.Details != "" {
			return fmt.Sprintf("%s: %s (%s)", se.Code, se.Message, se.Details)
		}
		return fmt.Sprintf("%s: %s", se.Code, se.Message)
	}
	return err.Error()
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.csv>",
	Short: "Load a CSV file into the table, replacing what was there",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		a, err := newApp(configPath)
		if err != nil {
			return err
		}
		defer a.close()

		ctx, cancel := signalContext()
		defer cancel()

		output, err := a.ingest.Execute(ctx, &ingestcsv.Input{Filename: filepath.Base(args[0]), Data: data})
		if err != nil {
			return err
		}
		if !output.Replaced {
			pterm.Warning.Println("The file has no data rows; the table was left unchanged.")
			return nil
		}

		pterm.Success.Printf("Loaded %d rows into %q (%s)\n", output.RowCount, output.Table, output.Encoding)
		renderColumns(output.Columns)
		renderRecords(columnNames(output.Columns), output.Preview)
		return nil
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Show the columns of the loaded table",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(configPath)
		if err != nil {
			return err
		}
		defer a.close()

		ctx, cancel := signalContext()
		defer cancel()

		output, err := a.schema.Execute(ctx, &describetable.Input{})
		if err != nil {
			return err
		}
		pterm.DefaultSection.Println(output.Schema.Table)
		renderColumns(output.Schema.Columns)
		return nil
	},
}

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Show row count, distinct counts and sample values per column",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(configPath)
		if err != nil {
			return err
		}
		defer a.close()

		ctx, cancel := signalContext()
		defer cancel()

		diag, err := a.schema.Diagnose(ctx, &describetable.Input{})
		if err != nil {
			return err
		}
		renderDiagnostics(diag)
		return nil
	},
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about the loaded table",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(configPath)
		if err != nil {
			return err
		}
		defer a.close()

		ctx, cancel := signalContext()
		defer cancel()

		question := joinArgs(args)
		var spinner *pterm.SpinnerPrinter
		if !askJSON {
			spinner, _ = pterm.DefaultSpinner.Start("Thinking...")
		}

		output, err := a.answer.Execute(ctx, &answerquestion.Input{Question: question})
		if spinner != nil {
			if err != nil {
				spinner.Fail("Could not answer the question")
			} else {
				_ = spinner.Stop()
			}
		}
		if err != nil {
			return err
		}

		if askJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(output)
		}
		renderAnswer(output)
		return nil
	},
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the full answer as JSON")
}
