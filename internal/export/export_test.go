package export

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/vialcheck/vialcheck-cli/internal/model"
)

func sampleRankings() []model.VendorRanking {
	avg := 99.2
	return []model.VendorRanking{
		{
			Vendor:       "Vendor A",
			Rank:         1,
			TotalScore:   82.5,
			TotalCerts:   12,
			AvgPurity:    &avg,
			CalculatedAt: time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC),
		},
		{
			Vendor:       "Vendor B",
			Rank:         2,
			TotalScore:   61.0,
			TotalCerts:   3,
			CalculatedAt: time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC),
		},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"":     FormatCSV,
		"csv":  FormatCSV,
		"CSV":  FormatCSV,
		"xlsx": FormatXLSX,
	} {
		got, err := ParseFormat(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseFormat("pdf")
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleRankings()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3) // header + 2 vendors

	header := records[0]
	assert.Equal(t, "vendor", header[0])
	assert.Contains(t, header, "total_score")
	assert.Contains(t, header, "rank")

	assert.Equal(t, "Vendor A", records[1][0])
	assert.Equal(t, "Vendor B", records[2][0])
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rankings.xlsx")
	require.NoError(t, WriteXLSX(path, sampleRankings()))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)

	sheet := f.Sheets[0]
	assert.Equal(t, "Rankings", sheet.Name)
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "vendor", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "Vendor A", sheet.Rows[1].Cells[0].String())

	// Undefined avg purity stays an empty cell on the second vendor row.
	avgCol := -1
	for i, cell := range sheet.Rows[0].Cells {
		if cell.String() == "avg_purity" {
			avgCol = i
		}
	}
	require.GreaterOrEqual(t, avgCol, 0)
	assert.Empty(t, sheet.Rows[2].Cells[avgCol].String())
}

func TestWriteFileCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, WriteFile(path, FormatCSV, sampleRankings()))
	assert.FileExists(t, path)
}

func TestDefaultPath(t *testing.T) {
	at := time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "rankings_20260823.csv", DefaultPath(FormatCSV, at))
	assert.Equal(t, "rankings_20260823.xlsx", DefaultPath(FormatXLSX, at))
}
