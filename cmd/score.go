package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vialcheck/vialcheck-cli/internal/scoring"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Recalculate vendor rankings from stored certificates",
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
		if len(certs) == 0 {
			fmt.Println("no certificates stored, nothing to score")
			return nil
		}

		rankings := scoring.Score(certs, time.Now().UTC(), cfg.Score.RecentWindowDays)
		if err := st.ReplaceRankings(ctx, rankings); err != nil {
			return eris.Wrap(err, "store rankings")
		}

		zap.L().Info("scoring complete",
			zap.Int("certificates", len(certs)),
			zap.Int("vendors", len(rankings)),
		)

		fmt.Printf("%-4s %-30s %8s %6s\n", "rank", "vendor", "score", "certs")
		for _, r := range rankings {
			fmt.Printf("%-4d %-30s %8.2f %6d\n", r.Rank, r.Vendor, r.TotalScore, r.TotalCerts)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd)
}
