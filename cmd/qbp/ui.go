package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/qubitpage/qbp/internal/circuit"
	"github.com/qubitpage/qbp/internal/database/repository"
	"github.com/qubitpage/qbp/internal/tui"
)

func (a *app) uiCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "ui <page>",
		Short: "Open the widgets of a host page in the terminal UI",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := loadPage(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			circuits := circuit.Scan(doc.Root())

			db, err := a.openHistory()
			if err != nil {
				return err
			}
			deps := tui.Deps{
				Doc:      doc,
				Circuits: circuits,
				Config:   a.cfg,
				Token:    resolveToken(a.cfg),
				Log:      a.log,
			}
			if db != nil {
				defer db.Close()
				deps.Exchanges = repository.NewExchangeRepo(db)
				deps.Results = repository.NewResultRepo(db)
			}
			deps.Client = a.newClient(circuits, db, deps.Token)

			p := tea.NewProgram(tui.New(cmd.Context(), deps), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("ui: %w", err)
			}
			if out == "" {
				return nil
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			return doc.Render(f)
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "write the page as left by the session to this file")
	return cmd
}
