package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/vialcheck/vialcheck-cli/internal/export"
)

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the latest vendor rankings to CSV or XLSX",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		formatName := exportFormat
		if formatName == "" {
			formatName = cfg.Export.Format
		}
		format, err := export.ParseFormat(formatName)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		rankings, err := st.LatestGeneration(ctx, 0)
		if err != nil {
			return eris.Wrap(err, "load rankings")
		}
		if len(rankings) == 0 {
			return eris.New("no rankings to export, run `vialcheck score` first")
		}

		out := exportOut
		if out == "" {
			out = export.DefaultPath(format, time.Now())
		}
		if err := export.WriteFile(out, format, rankings); err != nil {
			return err
		}

		fmt.Printf("exported %d vendors to %s\n", len(rankings), out)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "output format: csv or xlsx (default from config)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default rankings_<date>.<format>)")
	rootCmd.AddCommand(exportCmd)
}
