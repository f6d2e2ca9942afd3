package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/vialcheck/vialcheck-cli/internal/extract"
)

var extractEstimate bool

var extractCmd = &cobra.Command{
	Use:   "extract <image>...",
	Short: "Extract certificate images with the configured vision backend",
	Long:  "Runs the vision backend over the given report images and prints the structured records as JSON. Nothing is stored.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		orch, err := initExtractor(ctx)
		if err != nil {
			return err
		}

		if extractEstimate {
			cost := extract.EstimateCost(orch.Backend(), len(args))
			fmt.Printf("%d images via %s, estimated cost $%.4f\n", len(args), orch.Backend().Name(), cost)
			return nil
		}

		records, failures := orch.ProcessBatch(ctx, args, func(done, total int) {
			fmt.Fprintf(os.Stderr, "extracted %d/%d\n", done, total)
		})
		for _, f := range failures {
			fmt.Fprintf(os.Stderr, "failed: %s: %v\n", f.ImagePath, f.Err)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(records); err != nil {
			return eris.Wrap(err, "encode records")
		}
		if len(failures) > 0 {
			return eris.Errorf("%d of %d images failed", len(failures), len(args))
		}
		return nil
	},
}

func init() {
	extractCmd.Flags().BoolVar(&extractEstimate, "estimate", false, "print the estimated cost and exit")
	rootCmd.AddCommand(extractCmd)
}
