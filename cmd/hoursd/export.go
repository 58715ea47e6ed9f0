package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"openhours/shared/audit"
)

var (
	exportFrom string
	exportTo   string
	exportOut  string
)

var exportCmd = &cobra.Command{
	Use:   "export-audit",
	Short: "Export availability audit entries to an xlsx workbook",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		loc := cfg.Location()

		now := time.Now().In(loc)
		from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, -7)
		to := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
		if exportFrom != "" {
			if from, err = time.ParseInLocation(time.DateOnly, exportFrom, loc); err != nil {
				return fmt.Errorf("invalid --from: %w", err)
			}
		}
		if exportTo != "" {
			// --to is inclusive of the whole day.
			if to, err = time.ParseInLocation(time.DateOnly, exportTo, loc); err != nil {
				return fmt.Errorf("invalid --to: %w", err)
			}
			to = to.AddDate(0, 0, 1)
		}
		if !from.Before(to) {
			return fmt.Errorf("--from must be before --to")
		}

		a, err := newApp(cfg, &logger, false)
		if err != nil {
			return err
		}
		defer a.Close()

		out := exportOut
		if out == "" {
			out = audit.GenerateFilename(from, to.AddDate(0, 0, -1))
		}

		n, err := audit.NewExporter(a.audit, nil, &logger).ExportToFile(cmd.Context(), from, to, loc, out)
		if err != nil {
			return err
		}
		fmt.Printf("exported %d entries to %s\n", n, out)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "first day, YYYY-MM-DD (default: 7 days ago)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "last day inclusive, YYYY-MM-DD (default: today)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file")
	rootCmd.AddCommand(exportCmd)
}
