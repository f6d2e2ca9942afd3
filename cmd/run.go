package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vialcheck/vialcheck-cli/internal/pipeline"
)

var runJSON bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full ingestion pipeline",
	Long:  "Lists the certificate feed, downloads new report images, extracts and stores them, and rescores vendors.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.Pipeline.Run(ctx, func(stage pipeline.Stage, message string) {
			fmt.Fprintf(os.Stderr, "[%s] %s\n", stage, message)
		})
		if err != nil {
			return eris.Wrap(err, "pipeline run")
		}

		zap.L().Info("run complete",
			zap.Int("scraped", result.Scraped),
			zap.Int("new", result.New),
			zap.Int("stored", result.Stored),
			zap.Int("failed", result.Failed),
			zap.String("top_vendor", result.TopVendor),
		)

		if runJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		fmt.Printf("scraped %d, new %d, downloaded %d, extracted %d, stored %d, failed %d\n",
			result.Scraped, result.New, result.Downloaded, result.Extracted, result.Stored, result.Failed)
		if result.TopVendor != "" {
			fmt.Printf("ranked %d vendors, top: %s\n", result.RankingsCalculated, result.TopVendor)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the run result as JSON")
	rootCmd.AddCommand(runCmd)
}
