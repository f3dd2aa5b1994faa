package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var sessionID string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List finished recognition runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := ctx.apiClient()
			if err != nil {
				return err
			}
			runs, err := api.History(cmd.Context(), sessionID, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded.")
				return nil
			}

			colorize := isTerminal(out)
			rows := make([]table.Row, 0, len(runs))
			for _, run := range runs {
				detail := run.ErrorMessage
				if detail == "" && run.Pages > 0 {
					detail = fmt.Sprintf("%d pages", run.Pages)
				}
				rows = append(rows, table.Row{
					run.SessionID,
					run.Kind,
					colorizeStatus(titleStatus(string(run.Outcome)), colorize),
					run.FinishedAt.Local().Format("2006-01-02 15:04:05"),
					detail,
				})
			}
			fmt.Fprintln(out, renderTable(
				table.Row{"Session", "Kind", "Outcome", "Finished", "Detail"},
				rows,
			))
			return nil
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Filter runs to one session id")
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum runs to list")
	return cmd
}
