package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/qubitpage/qbp/internal/backend"
	"github.com/qubitpage/qbp/internal/results"
)

func (a *app) renderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "render <page> <target> <result.json>",
		Short: "Mount a measurement into a page and print the resulting HTML",
		Long: `The result file holds either {counts, shots} or a whole simulate
response. The target is an element id or a data-circuit value.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadPage(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			raw, err := os.ReadFile(args[2])
			if err != nil {
				return err
			}
			m, err := decodeMeasurement(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", args[2], err)
			}
			if !results.Mount(doc, args[1], m) {
				return fmt.Errorf("no element matches target %q", args[1])
			}
			return doc.Render(cmd.OutOrStdout())
		},
	}
}

// decodeMeasurement accepts a bare measurement or a simulate response.
func decodeMeasurement(raw []byte) (results.Measurement, error) {
	var res backend.SimulateResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return results.Measurement{}, err
	}
	return res.Measurement(), nil
}
