// Command dcfvaluation is a thin CLI wrapper around the valuation core:
// it loads a request fixture, runs the orchestrator, and renders the
// response through one of the internal/output formatters. The core
// itself has no CLI, HTTP, or persistence concerns — those are
// deliberately out of scope; this binary exists only to exercise the
// core without writing Go.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Textcat/dcf-valuation/internal/calculation"
	"github.com/Textcat/dcf-valuation/internal/config"
	"github.com/Textcat/dcf-valuation/internal/output"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dcfvaluation",
		Short: "Discounted cash flow valuation core CLI",
	}
	root.AddCommand(newValuateCmd())
	return root
}

func newValuateCmd() *cobra.Command {
	var inputPath string
	var format string

	cmd := &cobra.Command{
		Use:   "valuate",
		Short: "Run a valuation against a request fixture and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			parser := config.NewInputParser()
			rf, err := parser.LoadFromFile(inputPath)
			if err != nil {
				return err
			}

			orchestrator := calculation.NewOrchestrator()
			resp, err := orchestrator.RunValuation(rf.ToValuationRequest())
			if err != nil {
				return err
			}

			f := output.GetFormatterByName(format)
			if f == nil {
				return fmt.Errorf("unknown output format %q (want json, csv, or console)", format)
			}

			data, err := f.Format(resp)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVar(&inputPath, "input", "", "path to a valuation request fixture (YAML or JSON)")
	cmd.Flags().StringVar(&format, "format", "json", "output format: json, csv, or console")
	cmd.MarkFlagRequired("input")

	return cmd
}
