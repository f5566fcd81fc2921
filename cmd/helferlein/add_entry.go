package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/zupzup/helferlein/internal/record"
)

var addEntryFlags struct {
	date      string
	name      string
	company   string
	category  string
	net       string
	vat       string
	direction string
	files     []string
}

var addEntryCmd = &cobra.Command{
	Use:   "add-entry",
	Short: "Create an accounting entry, optionally attaching files",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		payload, err := entryPayloadFromFlags()
		if err != nil {
			return err
		}

		files, err := readFiles(addEntryFlags.files)
		if err != nil {
			return err
		}

		rec, err := a.records.Create(cmd.Context(), record.CreateParams{
			Kind:  record.KindAccountingEntry,
			Entry: payload,
			Files: files,
		})
		if err != nil {
			return err
		}

		fmt.Printf("created entry %s (revision %d, %d attachments)\n", rec.ID, rec.Revision, len(rec.Attachments))

		return nil
	},
}

func init() {
	flags := addEntryCmd.Flags()
	flags.StringVar(&addEntryFlags.date, "date", "", "entry date (YYYY-MM-DD)")
	flags.StringVar(&addEntryFlags.name, "name", "", "entry name")
	flags.StringVar(&addEntryFlags.company, "company", "", "company")
	flags.StringVar(&addEntryFlags.category, "category", "", "category")
	flags.StringVar(&addEntryFlags.net, "net", "0", "net amount in EUR")
	flags.StringVar(&addEntryFlags.vat, "vat", "20", "VAT rate (0, 10 or 20)")
	flags.StringVar(&addEntryFlags.direction, "direction", "out", "in or out")
	flags.StringArrayVar(&addEntryFlags.files, "file", nil, "attachment file, repeatable, order is kept")

	cobra.CheckErr(addEntryCmd.MarkFlagRequired("date"))
	cobra.CheckErr(addEntryCmd.MarkFlagRequired("name"))

	rootCmd.AddCommand(addEntryCmd)
}

func entryPayloadFromFlags() (*record.EntryPayload, error) {
	date, err := parseDate(addEntryFlags.date)
	if err != nil {
		return nil, err
	}

	net, err := decimal.NewFromString(addEntryFlags.net)
	if err != nil {
		return nil, fmt.Errorf("parsing net amount: %w", err)
	}

	vat, err := parseVat(addEntryFlags.vat)
	if err != nil {
		return nil, err
	}

	direction := record.Direction(addEntryFlags.direction)
	if direction != record.DirectionIn && direction != record.DirectionOut {
		return nil, fmt.Errorf("invalid direction %q", addEntryFlags.direction)
	}

	return &record.EntryPayload{
		Direction: direction,
		Date:      date,
		Name:      addEntryFlags.name,
		Company:   addEntryFlags.company,
		Category:  addEntryFlags.category,
		Net:       net,
		Vat:       vat,
	}, nil
}

func parseDate(value string) (record.Date, error) {
	parsed, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return record.Date{}, fmt.Errorf("parsing date: %w", err)
	}

	return record.Date{Time: parsed}, nil
}

func parseVat(value string) (record.VatRate, error) {
	switch record.VatRate(value) {
	case record.VatZero, record.VatTen, record.VatTwenty:
		return record.VatRate(value), nil
	}

	return "", fmt.Errorf("invalid VAT rate %q", value)
}

func readFiles(paths []string) ([]record.File, error) {
	files := make([]record.File, 0, len(paths))

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading attachment %s: %w", path, err)
		}

		files = append(files, record.File{Name: filepath.Base(path), Data: data})
	}

	return files, nil
}
