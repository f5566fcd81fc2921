package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zupzup/helferlein/internal/suggest"
)

var suggestCmd = &cobra.Command{
	Use:   "suggest <name|company|category> [prefix]",
	Short: "Suggest known entry values matching a prefix",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		field := suggest.Field(args[0])

		switch field {
		case suggest.FieldName, suggest.FieldCompany, suggest.FieldCategory:
		default:
			return fmt.Errorf("unknown field %q", args[0])
		}

		prefix := ""
		if len(args) == 2 {
			prefix = args[1]
		}

		a, err := newApp()
		if err != nil {
			return err
		}

		if err := a.records.WarmSuggestions(cmd.Context()); err != nil {
			return err
		}

		for _, value := range a.records.Suggest(field, prefix, 20) {
			fmt.Println(value)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(suggestCmd)
}
