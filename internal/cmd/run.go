package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/tickbus/pkg/message"
	"github.com/dmitrymomot/tickbus/pkg/scenario"
)

var errScenariosFailed = errors.New("one or more scenarios failed")

type runReport struct {
	File   string          `json:"file"`
	Result scenario.Result `json:"result"`
	Error  string          `json:"error,omitempty"`
}

func newRunCmd(a *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>...",
		Short: "Run scenario files and check their expectations",
		Long: `Run executes each YAML scenario against a fresh message queue, rotating
at the end of every tick, and reports which expectations failed.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reports := make([]runReport, 0, len(args))
			failed := 0
			for _, path := range args {
				rep := runReport{File: path}
				sc, err := scenario.LoadFile(path)
				if err == nil {
					rep.Result, err = scenario.Run(cmd.Context(), sc,
						scenario.WithLogger(a.logger),
						scenario.WithRegistryOptions(message.WithConfig(a.cfg.Bus)),
					)
				}
				if err != nil {
					rep.Error = err.Error()
					failed++
				}
				reports = append(reports, rep)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if err := enc.Encode(reports); err != nil {
					return err
				}
			} else {
				for _, rep := range reports {
					printReport(cmd, rep)
				}
			}

			if failed > 0 {
				return fmt.Errorf("%w: %d of %d", errScenariosFailed, failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	return cmd
}

func printReport(cmd *cobra.Command, rep runReport) {
	status := "PASS"
	if rep.Error != "" {
		status = "FAIL"
	}
	name := rep.Result.Name
	if name == "" {
		name = rep.File
	}
	st := rep.Result.Stats
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%d ticks, %d sent, %d missed)\n", status, name, rep.Result.Ticks, st.Sent, st.Missed)
	if rep.Error != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "    %s\n", rep.Error)
	}
}
