package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

func newSessionsCommand(ctx *commandContext) *cobra.Command {
	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage work sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsList(cmd, ctx)
		},
	}

	sessionsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSessionsList(cmd, ctx)
		},
	})

	var name, description string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new session",
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := ctx.apiClient()
			if err != nil {
				return err
			}
			sess, err := api.CreateSession(cmd.Context(), name, description)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created session %s (%s)\n", sess.Name, sess.ID)
			return nil
		},
	}
	createCmd.Flags().StringVarP(&name, "name", "n", "", "Session name")
	createCmd.Flags().StringVarP(&description, "description", "d", "", "Session description")
	sessionsCmd.AddCommand(createCmd)

	sessionsCmd.AddCommand(&cobra.Command{
		Use:   "delete <session-id>",
		Short: "Delete a session and its stored pages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid session id %q", args[0])
			}
			api, err := ctx.apiClient()
			if err != nil {
				return err
			}
			if err := api.DeleteSession(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", id)
			return nil
		},
	})

	sessionsCmd.AddCommand(&cobra.Command{
		Use:   "recognize <session-id>",
		Short: "Start a recognition run for a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid session id %q", args[0])
			}
			api, err := ctx.apiClient()
			if err != nil {
				return err
			}
			taskID, err := api.Recognize(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recognition started (task %s)\n", taskID)
			return nil
		},
	})

	return sessionsCmd
}

func runSessionsList(cmd *cobra.Command, ctx *commandContext) error {
	api, err := ctx.apiClient()
	if err != nil {
		return err
	}
	sessions, err := api.Sessions(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions.")
		return nil
	}

	colorize := isTerminal(out)
	rows := make([]table.Row, 0, len(sessions))
	for _, summary := range sessions {
		rows = append(rows, table.Row{
			summary.ID.String(),
			summary.Name,
			colorizeStatus(titleStatus(string(summary.Status)), colorize),
			summary.PageCount,
			summary.UpdatedAt.Local().Format("2006-01-02 15:04"),
		})
	}

	fmt.Fprintln(out, renderTable(
		table.Row{"ID", "Name", "Status", "Pages", "Updated"},
		rows,
		4,
	))
	return nil
}

func titleStatus(status string) string {
	return cases.Title(language.Und).String(status)
}
