package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/zupzup/helferlein/internal/record"
)

var addInvoiceFlags struct {
	payloadPath string
	template    bool
	files       []string
}

var addInvoiceCmd = &cobra.Command{
	Use:   "add-invoice",
	Short: "Create an invoice (or template) from a JSON payload file",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		data, err := os.ReadFile(addInvoiceFlags.payloadPath)
		if err != nil {
			return fmt.Errorf("reading payload file: %w", err)
		}

		var payload record.InvoicePayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return fmt.Errorf("parsing payload file: %w", err)
		}

		files, err := readFiles(addInvoiceFlags.files)
		if err != nil {
			return err
		}

		kind := record.KindInvoice
		if addInvoiceFlags.template {
			kind = record.KindInvoiceTemplate
		}

		rec, err := a.records.Create(cmd.Context(), record.CreateParams{
			Kind:    kind,
			Invoice: &payload,
			Files:   files,
		})
		if err != nil {
			return err
		}

		fmt.Printf("created %s %s (revision %d)\n", kind, rec.ID, rec.Revision)

		return nil
	},
}

func init() {
	flags := addInvoiceCmd.Flags()
	flags.StringVar(&addInvoiceFlags.payloadPath, "payload", "", "path to a JSON invoice payload")
	flags.BoolVar(&addInvoiceFlags.template, "template", false, "store as a reusable invoice template")
	flags.StringArrayVar(&addInvoiceFlags.files, "file", nil, "attachment file, repeatable, order is kept")

	cobra.CheckErr(addInvoiceCmd.MarkFlagRequired("payload"))

	rootCmd.AddCommand(addInvoiceCmd)
}
