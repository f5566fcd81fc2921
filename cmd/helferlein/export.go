package main

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/zupzup/helferlein/internal/export"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <id>",
	Short: "Export a record: rendered document plus attachment copies",
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

		result, err := a.exporter().Export(cmd.Context(), id, destination(a))
		if err != nil {
			if result != nil && len(result.Attachments) > 0 {
				fmt.Printf("partial export, %d attachments copied before the failure\n", len(result.Attachments))
			}

			return err
		}

		printResult(result)

		return nil
	},
}

var exportSheetFlags struct {
	year    int
	quarter int
	month   int
}

var exportSheetCmd = &cobra.Command{
	Use:   "export-sheet",
	Short: "Export the accounting sheet of a period with all entry attachments",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		result, err := a.exporter().ExportSheet(cmd.Context(),
			exportSheetFlags.year, exportSheetFlags.quarter, time.Month(exportSheetFlags.month), destination(a))
		if err != nil {
			return err
		}

		printResult(result)

		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "", "destination directory (default: configured export_dir)")

	flags := exportSheetCmd.Flags()
	flags.IntVar(&exportSheetFlags.year, "year", 0, "year to export")
	flags.IntVar(&exportSheetFlags.quarter, "quarter", 0, "quarter (1-4)")
	flags.IntVar(&exportSheetFlags.month, "month", 0, "month (1-12)")
	flags.StringVar(&exportOut, "out", "", "destination directory (default: configured export_dir)")

	cobra.CheckErr(exportSheetCmd.MarkFlagRequired("year"))

	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(exportSheetCmd)
}

func destination(a *app) string {
	if exportOut != "" {
		return exportOut
	}

	return a.cfg.ExportDir
}

func printResult(result *export.Result) {
	fmt.Printf("wrote %s\n", result.Document)

	for _, path := range result.Attachments {
		fmt.Printf("wrote %s\n", path)
	}
}
