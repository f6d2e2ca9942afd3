package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	rankingsLimit int
	rankingsJSON  bool
)

var rankingsCmd = &cobra.Command{
	Use:   "rankings",
	Short: "Show the latest vendor rankings",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		rankings, err := st.LatestGeneration(ctx, rankingsLimit)
		if err != nil {
			return eris.Wrap(err, "load rankings")
		}
		if len(rankings) == 0 {
			fmt.Println("no rankings yet, run `vialcheck score` first")
			return nil
		}

		if rankingsJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rankings)
		}

		fmt.Printf("rankings calculated at %s\n\n", rankings[0].CalculatedAt.Format("2006-01-02 15:04"))
		fmt.Printf("%-4s %-30s %8s %6s %10s\n", "rank", "vendor", "score", "certs", "avg purity")
		for _, r := range rankings {
			purity := "-"
			if r.AvgPurity != nil {
				purity = fmt.Sprintf("%.2f%%", *r.AvgPurity)
			}
			fmt.Printf("%-4d %-30s %8.2f %6d %10s\n", r.Rank, r.Vendor, r.TotalScore, r.TotalCerts, purity)
		}
		return nil
	},
}

var trendCmd = &cobra.Command{
	Use:   "trend <vendor>",
	Short: "Show a vendor's ranking history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		points, err := st.Trend(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "load trend for %s", args[0])
		}
		if len(points) == 0 {
			fmt.Printf("no ranking history for %q\n", args[0])
			return nil
		}

		fmt.Printf("%-20s %8s %5s\n", "calculated", "score", "rank")
		for _, p := range points {
			fmt.Printf("%-20s %8.2f %5d\n", p.CalculatedAt.Format("2006-01-02 15:04"), p.TotalScore, p.Rank)
		}
		return nil
	},
}

func init() {
	rankingsCmd.Flags().IntVar(&rankingsLimit, "limit", 50, "maximum vendors to show")
	rankingsCmd.Flags().BoolVar(&rankingsJSON, "json", false, "print rankings as JSON")
	rankingsCmd.AddCommand(trendCmd)
	rootCmd.AddCommand(rankingsCmd)
}
