package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a record and garbage-collect its exclusive attachments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("parsing record id: %w", err)
		}

		a, err := newApp()
		if err != nil {
			return err
		}

		if err := a.records.Delete(cmd.Context(), id); err != nil {
			return err
		}

		fmt.Printf("deleted record %s\n", id)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}
