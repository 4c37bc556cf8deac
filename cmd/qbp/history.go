package main

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/qubitpage/qbp/internal/database/repository"
)

func (a *app) historyCmd() *cobra.Command {
	var (
		limit     int
		pruneDays int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent exchanges with the service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openHistory()
			if err != nil {
				return err
			}
			if db == nil {
				return fmt.Errorf("history is disabled (history.enabled = false)")
			}
			defer db.Close()
			repo := repository.NewExchangeRepo(db)

			if pruneDays > 0 {
				cutoff := time.Now().UTC().AddDate(0, 0, -pruneDays)
				n, err := repo.Prune(cmd.Context(), cutoff)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pruned %d exchanges older than %s\n", n, cutoff.Format(time.DateOnly))
			}

			list, err := repo.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			writeHistory(cmd.OutOrStdout(), list)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of exchanges to show")
	cmd.Flags().IntVar(&pruneDays, "prune-days", 0, "first delete exchanges older than this many days")
	return cmd
}

func writeHistory(w io.Writer, list []repository.ExchangeRecord) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Started", "Op", "Target", "Outcome", "Duration", "Error"})
	table.SetAutoWrapText(false)
	for _, ex := range list {
		table.Append([]string{
			ex.StartedAt.Local().Format(time.DateTime),
			ex.Op,
			ex.Target,
			outcome(ex),
			ex.Duration.Round(time.Millisecond).String(),
			ex.Error,
		})
	}
	table.SetFooter([]string{"", "", "", "", "total", strconv.Itoa(len(list))})
	table.Render()
}

func outcome(ex repository.ExchangeRecord) string {
	switch {
	case ex.Error != "":
		return "error"
	case ex.Success == nil:
		return "ok"
	case *ex.Success:
		return "success"
	default:
		return "failed"
	}
}
