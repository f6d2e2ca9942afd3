package main

import (
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vialcheck/vialcheck-cli/internal/model"
	"github.com/vialcheck/vialcheck-cli/internal/parse"
)

var reprocessDryRun bool

var reprocessCmd = &cobra.Command{
	Use:   "reprocess",
	Short: "Re-parse stored certificates from their retained raw payloads",
	Long:  "Re-runs the parser over every stored certificate's raw extraction payload, replacing derived fields while preserving identity. Use after parser or normalizer fixes.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		certs, err := st.GetAllCertificates(ctx)
		if err != nil {
			return eris.Wrap(err, "load certificates")
		}

		var updated, skipped int
		for _, old := range certs {
			if len(old.RawPayload) == 0 {
				skipped++
				continue
			}

			var rec model.ExtractionRecord
			if err := json.Unmarshal(old.RawPayload, &rec); err != nil {
				zap.L().Warn("reprocess: bad raw payload",
					zap.String("external_id", old.ExternalID),
					zap.Error(err),
				)
				skipped++
				continue
			}

			cert, err := parse.Parse(&rec, old.ImagePath, old.ImageHash)
			if err != nil {
				zap.L().Warn("reprocess: parse failed",
					zap.String("external_id", old.ExternalID),
					zap.Error(err),
				)
				skipped++
				continue
			}

			// Identity is preserved; only derived fields change.
			cert.ID = old.ID
			cert.ExternalID = old.ExternalID
			cert.CreatedAt = old.CreatedAt

			if reprocessDryRun {
				if cert.Vendor != old.Vendor || cert.Compound != old.Compound {
					fmt.Printf("%s: vendor %q -> %q, compound %q -> %q\n",
						old.ExternalID, old.Vendor, cert.Vendor, old.Compound, cert.Compound)
				}
				updated++
				continue
			}

			if err := st.UpdateCertificate(ctx, cert); err != nil {
				return eris.Wrapf(err, "update certificate %s", old.ExternalID)
			}
			updated++
		}

		action := "reprocessed"
		if reprocessDryRun {
			action = "would reprocess"
		}
		fmt.Printf("%s %d certificates, skipped %d\n", action, updated, skipped)
		return nil
	},
}

func init() {
	reprocessCmd.Flags().BoolVar(&reprocessDryRun, "dry-run", false, "show what would change without writing")
	rootCmd.AddCommand(reprocessCmd)
}
