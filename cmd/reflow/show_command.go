package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one session with its pages",
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
			sess, err := api.Session(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session:  %s\n", sess.Name)
			fmt.Fprintf(out, "ID:       %s\n", sess.ID)
			fmt.Fprintf(out, "Status:   %s\n", titleStatus(string(sess.Status)))
			if sess.Description != "" {
				fmt.Fprintf(out, "About:    %s\n", sess.Description)
			}
			if sess.LastError != "" {
				fmt.Fprintf(out, "Error:    %s\n", sess.LastError)
			}
			if sess.LastRecognizedAt != nil {
				fmt.Fprintf(out, "OCR run:  %s\n", sess.LastRecognizedAt.Local().Format("2006-01-02 15:04"))
			}
			if sess.Document != nil {
				fmt.Fprintf(out, "Document: %d recognized pages\n", len(sess.Document.Pages))
			}

			if len(sess.Pages) == 0 {
				fmt.Fprintln(out, "No pages.")
				return nil
			}

			rows := make([]table.Row, 0, len(sess.Pages))
			for _, page := range sess.Pages {
				dims := ""
				if page.Metadata.Width > 0 && page.Metadata.Height > 0 {
					dims = fmt.Sprintf("%dx%d", page.Metadata.Width, page.Metadata.Height)
				}
				rows = append(rows, table.Row{
					page.Index,
					page.ID.String(),
					page.OriginalName,
					dims,
					string(page.Source),
				})
			}
			fmt.Fprintln(out, renderTable(
				table.Row{"#", "Page ID", "Original Name", "Size", "Source"},
				rows,
				1, 4,
			))
			return nil
		},
	}
}
