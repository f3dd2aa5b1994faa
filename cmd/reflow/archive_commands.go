package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newExportCommand(ctx *commandContext) *cobra.Command {
	var destDir string

	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Download a session as a portable archive",
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

			dir := destDir
			if dir == "" {
				dir, err = os.Getwd()
				if err != nil {
					return fmt.Errorf("resolve working directory: %w", err)
				}
			}

			path, err := api.ExportArchive(cmd.Context(), id, dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote archive to %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&destDir, "dir", "o", "", "Directory to write the archive into (defaults to cwd)")
	return cmd
}

func newImportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <archive-file>",
		Short: "Import a session archive as a new session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := ctx.apiClient()
			if err != nil {
				return err
			}
			sess, err := api.ImportArchive(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported session %s (%s) with %d pages\n", sess.Name, sess.ID, sess.PageCount)
			return nil
		},
	}
}
