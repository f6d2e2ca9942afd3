// Package export renders a ranking generation as CSV or XLSX.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/vialcheck/vialcheck-cli/internal/model"
)

// Format names an output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts "csv" or "xlsx" case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	default:
		return "", eris.Errorf("export: unknown format %q", s)
	}
}

// WriteCSV writes one row per vendor, header taken from the struct tags.
func WriteCSV(w io.Writer, rankings []model.VendorRanking) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	for i := range rankings {
		if err := enc.Encode(&rankings[i]); err != nil {
			return eris.Wrapf(err, "export: encode row for %s", rankings[i].Vendor)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush csv")
}

// WriteFile writes rankings to path in the given format, creating or
// truncating the file.
func WriteFile(path string, format Format, rankings []model.VendorRanking) error {
	switch format {
	case FormatXLSX:
		return WriteXLSX(path, rankings)
	case FormatCSV:
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrapf(err, "export: create %s", path)
		}
		defer f.Close()
		if err := WriteCSV(f, rankings); err != nil {
			return err
		}
		return eris.Wrapf(f.Close(), "export: close %s", path)
	default:
		return eris.Errorf("export: unknown format %q", format)
	}
}

var xlsxHeader = []string{
	"vendor", "rank", "total_score",
	"total_certs", "recent_certs", "last_30_days",
	"avg_purity", "min_purity", "max_purity", "std_purity",
	"avg_endotoxin", "endotoxin_count",
	"volume_score", "quality_score", "consistency_score", "recency_score", "endotoxin_score",
	"days_since_last_cert", "avg_date_gap_days",
	"calculated_at",
}

// WriteXLSX writes the rankings to a single-sheet workbook. Undefined
// statistics become empty cells.
func WriteXLSX(path string, rankings []model.VendorRanking) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Rankings")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, name := range xlsxHeader {
		header.AddCell().SetString(name)
	}

	for _, r := range rankings {
		row := sheet.AddRow()
		row.AddCell().SetString(r.Vendor)
		row.AddCell().SetInt(r.Rank)
		row.AddCell().SetFloat(r.TotalScore)
		row.AddCell().SetInt(r.TotalCerts)
		row.AddCell().SetInt(r.RecentCerts)
		row.AddCell().SetInt(r.Last30Days)
		addFloatPtr(row, r.AvgPurity)
		addFloatPtr(row, r.MinPurity)
		addFloatPtr(row, r.MaxPurity)
		addFloatPtr(row, r.StdPurity)
		addFloatPtr(row, r.AvgEndotoxin)
		row.AddCell().SetInt(r.EndotoxinCount)
		row.AddCell().SetFloat(r.VolumeScore)
		row.AddCell().SetFloat(r.QualityScore)
		row.AddCell().SetFloat(r.ConsistencyScore)
		row.AddCell().SetFloat(r.RecencyScore)
		row.AddCell().SetFloat(r.EndotoxinScore)
		addIntPtr(row, r.DaysSinceLastCert)
		addFloatPtr(row, r.AvgDateGapDays)
		row.AddCell().SetString(r.CalculatedAt.UTC().Format(time.RFC3339))
	}

	return eris.Wrapf(f.Save(path), "export: save %s", path)
}

func addFloatPtr(row *xlsx.Row, v *float64) {
	cell := row.AddCell()
	if v == nil {
		return
	}
	cell.SetFloat(*v)
}

func addIntPtr(row *xlsx.Row, v *int) {
	cell := row.AddCell()
	if v == nil {
		return
	}
	cell.SetInt(*v)
}

// DefaultPath builds a timestamped output name like rankings_20260823.csv.
func DefaultPath(format Format, at time.Time) string {
	return fmt.Sprintf("rankings_%s.%s", at.UTC().Format("20060102"), format)
}
