package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/zupzup/helferlein/internal/attachment"
	"github.com/zupzup/helferlein/internal/record"
)

var updateEntryFlags struct {
	date     string
	name     string
	company  string
	category string
	net      string
	vat      string
	addFiles []string
	dropRefs []int
}

var updateEntryCmd = &cobra.Command{
	Use:   "update-entry <id>",
	Short: "Update an accounting entry's fields and attachment set",
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

		rec, err := a.records.Get(cmd.Context(), id)
		if err != nil {
			return err
		}

		if rec.Entry == nil {
			return fmt.Errorf("record %s is not an accounting entry", id)
		}

		if err := applyEntryFlags(cmd, rec.Entry); err != nil {
			return err
		}

		rec.Attachments, err = dropRefs(rec.Attachments, updateEntryFlags.dropRefs)
		if err != nil {
			return err
		}

		adds, err := readFiles(updateEntryFlags.addFiles)
		if err != nil {
			return err
		}

		updated, err := a.records.Update(cmd.Context(), rec, adds)
		if err != nil {
			return err
		}

		fmt.Printf("updated entry %s (revision %d, %d attachments)\n", updated.ID, updated.Revision, len(updated.Attachments))

		return nil
	},
}

func init() {
	flags := updateEntryCmd.Flags()
	flags.StringVar(&updateEntryFlags.date, "date", "", "entry date (YYYY-MM-DD)")
	flags.StringVar(&updateEntryFlags.name, "name", "", "entry name")
	flags.StringVar(&updateEntryFlags.company, "company", "", "company")
	flags.StringVar(&updateEntryFlags.category, "category", "", "category")
	flags.StringVar(&updateEntryFlags.net, "net", "", "net amount in EUR")
	flags.StringVar(&updateEntryFlags.vat, "vat", "", "VAT rate (0, 10 or 20)")
	flags.StringArrayVar(&updateEntryFlags.addFiles, "add-file", nil, "attachment file to append, repeatable")
	flags.IntSliceVar(&updateEntryFlags.dropRefs, "drop-file", nil, "1-based attachment position to drop, repeatable")

	rootCmd.AddCommand(updateEntryCmd)
}

func applyEntryFlags(cmd *cobra.Command, entry *record.EntryPayload) error {
	if cmd.Flags().Changed("date") {
		date, err := parseDate(updateEntryFlags.date)
		if err != nil {
			return err
		}

		entry.Date = date
	}

	if cmd.Flags().Changed("name") {
		entry.Name = updateEntryFlags.name
	}

	if cmd.Flags().Changed("company") {
		entry.Company = updateEntryFlags.company
	}

	if cmd.Flags().Changed("category") {
		entry.Category = updateEntryFlags.category
	}

	if cmd.Flags().Changed("net") {
		net, err := decimal.NewFromString(updateEntryFlags.net)
		if err != nil {
			return fmt.Errorf("parsing net amount: %w", err)
		}

		entry.Net = net
	}

	if cmd.Flags().Changed("vat") {
		vat, err := parseVat(updateEntryFlags.vat)
		if err != nil {
			return err
		}

		entry.Vat = vat
	}

	return nil
}

func dropRefs(refs []attachment.Ref, positions []int) ([]attachment.Ref, error) {
	if len(positions) == 0 {
		return refs, nil
	}

	dropped := make(map[int]bool, len(positions))

	for _, pos := range positions {
		if pos < 1 || pos > len(refs) {
			return nil, fmt.Errorf("no attachment at position %d", pos)
		}

		dropped[pos-1] = true
	}

	kept := make([]attachment.Ref, 0, len(refs))

	for i, ref := range refs {
		if !dropped[i] {
			kept = append(kept, ref)
		}
	}

	return kept, nil
}
