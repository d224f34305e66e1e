package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pavelanni/tutorportal/internal/export"
	"github.com/pavelanni/tutorportal/internal/store"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the gradebook as JSON or an Excel workbook",
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := setup(cmd)

			db, err := store.New(v.GetString("db"))
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			gb, err := db.ExportGradebook(time.Now())
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}

			output := v.GetString("output")
			format := export.Format(v.GetString("format"))
			if format == "" {
				format = export.FormatFromPath(output)
			}

			var w io.Writer = os.Stdout
			if output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create output file: %w", err)
				}
				defer f.Close()
				w = f
			}
			if err := export.Write(w, gb, format); err != nil {
				return err
			}
			if output != "-" {
				slog.Info("exported gradebook", "students", len(gb.Students), "format", format, "path", output)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.String("db", "tutorportal.db", "SQLite database path")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("format", "", "Output format (json, xlsx); default from the output extension")
	addCommonFlags(cmd)
	return cmd
}
