package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var crawlListOnly bool

var crawlCmd = &cobra.Command{
	Use:   "crawl",
	Short: "Crawl the certificate listing and download new report images",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		c := initCrawler()

		listings, err := c.ListCertificates(ctx, func(page, total int) {
			fmt.Printf("page %d: %d items so far\n", page, total)
		})
		if err != nil {
			return eris.Wrap(err, "list certificates")
		}

		existing, err := st.ExistingIDs(ctx)
		if err != nil {
			return eris.Wrap(err, "load existing ids")
		}
		fresh := listings[:0:0]
		for _, l := range listings {
			if !existing[l.ExternalID] {
				fresh = append(fresh, l)
			}
		}
		fmt.Printf("found %d listings, %d new\n", len(listings), len(fresh))

		if crawlListOnly || len(fresh) == 0 {
			for _, l := range fresh {
				fmt.Printf("  %s  %s\n", l.ExternalID, l.DetailURL)
			}
			return nil
		}

		downloads, failures := c.FetchImages(ctx, fresh, func(done, total int) {
			fmt.Printf("downloaded %d/%d\n", done, total)
		})
		for _, f := range failures {
			zap.L().Warn("download failed", zap.String("external_id", f.ExternalID), zap.Error(f.Err))
		}
		fmt.Printf("downloaded %d images (%d failed) into %s\n", len(downloads), len(failures), cfg.Crawl.ImageDir)
		return nil
	},
}

func init() {
	crawlCmd.Flags().BoolVar(&crawlListOnly, "list-only", false, "list new certificates without downloading")
	rootCmd.AddCommand(crawlCmd)
}
