package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/zupzup/helferlein/internal/record"
)

var listFlags struct {
	kind    string
	year    int
	quarter int
	month   int
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List record summaries, newest period first narrowed by flags",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		var filter record.Filter

		if listFlags.kind != "" {
			kind := record.Kind(listFlags.kind)
			filter.Kind = &kind
		}

		if listFlags.year != 0 {
			from, to := record.PeriodRange(listFlags.year, listFlags.quarter, time.Month(listFlags.month))
			filter.From = &from
			filter.To = &to
		}

		summaries, err := a.records.List(cmd.Context(), filter)
		if err != nil {
			return err
		}

		for _, s := range summaries {
			fmt.Printf("%s  %s  rev %-3d  %-17s  %s (%d attachments)\n",
				s.ID, s.Date.Format(time.DateOnly), s.Revision, s.Kind, s.Title, s.Attachments)
		}

		return nil
	},
}

func init() {
	flags := listCmd.Flags()
	flags.StringVar(&listFlags.kind, "kind", "", "accounting_entry, invoice or invoice_template")
	flags.IntVar(&listFlags.year, "year", 0, "restrict to a year")
	flags.IntVar(&listFlags.quarter, "quarter", 0, "restrict to a quarter (1-4), needs --year")
	flags.IntVar(&listFlags.month, "month", 0, "restrict to a month (1-12), needs --year")

	rootCmd.AddCommand(listCmd)
}
