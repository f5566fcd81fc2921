package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Remove attachments no record references",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		removed, err := a.store.Sweep(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("removed %d orphaned attachments\n", len(removed))

		return nil
	},
}

func init() {
	rootCmd.AddCommand(gcCmd)
}
