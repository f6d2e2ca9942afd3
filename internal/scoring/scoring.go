// Package scoring aggregates a vendor's certificates into a multi-factor
// reputation score and ranks vendors. Purity and endotoxin statistics
// cover only certificates where the value is defined; blends and
// null-purity records still count toward volume.
package scoring

import (
	"math"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/vialcheck/vialcheck-cli/internal/model"
)

// Component weights of the total score. They sum to 1.0.
const (
	WeightVolume      = 0.25
	WeightQuality     = 0.35
	WeightConsistency = 0.15
	WeightRecency     = 0.15
	WeightEndotoxin   = 0.10
)

// DefaultRecentWindowDays is the window for the "recent certificates"
// count when the caller passes no override.
const DefaultRecentWindowDays = 90

// Score groups certificates by normalized vendor, computes the five
// component scores per vendor, and returns rankings sorted descending by
// total score with 1-based rank positions. recentWindowDays bounds the
// "recent certificates" count; values <= 0 fall back to the default. A
// vendor whose certificates all lack a usable test date gets a neutral
// zero record rather than being dropped.
func Score(certs []model.Certificate, referenceDate time.Time, recentWindowDays int) []model.VendorRanking {
	if recentWindowDays <= 0 {
		recentWindowDays = DefaultRecentWindowDays
	}
	byVendor := make(map[string][]model.Certificate)
	for _, c := range certs {
		if c.Vendor == "" {
			continue
		}
		byVendor[c.Vendor] = append(byVendor[c.Vendor], c)
	}

	rankings := make([]model.VendorRanking, 0, len(byVendor))
	for vendor, group := range byVendor {
		r := scoreVendor(group, referenceDate, recentWindowDays)
		r.Vendor = vendor
		r.CalculatedAt = referenceDate
		rankings = append(rankings, r)
	}

	sort.Slice(rankings, func(i, j int) bool {
		if rankings[i].TotalScore != rankings[j].TotalScore {
			return rankings[i].TotalScore > rankings[j].TotalScore
		}
		return rankings[i].Vendor < rankings[j].Vendor
	})
	for i := range rankings {
		rankings[i].Rank = i + 1
	}

	zap.L().Info("scoring: rankings calculated",
		zap.Int("vendors", len(rankings)),
		zap.Int("certificates", len(certs)),
	)
	return rankings
}

func scoreVendor(certs []model.Certificate, ref time.Time, recentWindowDays int) model.VendorRanking {
	dated := make([]model.Certificate, 0, len(certs))
	for _, c := range certs {
		if c.TestDate != nil {
			dated = append(dated, c)
		}
	}
	if len(dated) == 0 {
		return neutralRanking()
	}

	sort.Slice(dated, func(i, j int) bool {
		return dated[i].TestDate.Before(*dated[j].TestDate)
	})

	total := len(dated)
	recent := 0
	last30 := 0
	for _, c := range dated {
		age := ref.Sub(*c.TestDate)
		if age <= time.Duration(recentWindowDays)*24*time.Hour {
			recent++
		}
		if age <= 30*24*time.Hour {
			last30++
		}
	}

	var purities, endotoxins []float64
	for _, c := range dated {
		if c.Purity != nil {
			purities = append(purities, *c.Purity)
		}
		if c.Endotoxin != nil {
			endotoxins = append(endotoxins, *c.Endotoxin)
		}
	}

	daysSinceLast := int(ref.Sub(*dated[total-1].TestDate).Hours() / 24)
	avgGap := averageGapDays(dated)

	r := model.VendorRanking{
		TotalCerts:        total,
		RecentCerts:       recent,
		Last30Days:        last30,
		EndotoxinCount:    len(endotoxins),
		DaysSinceLastCert: &daysSinceLast,
	}
	if avgGap >= 0 {
		r.AvgDateGapDays = ptr(round1(avgGap))
	}

	var avgPurity, minPurity, stdPurity float64
	if len(purities) > 0 {
		avgPurity = mean(purities)
		minPurity = minOf(purities)
		stdPurity = stddev(purities)
		r.AvgPurity = ptr(round3(avgPurity))
		r.MinPurity = ptr(round3(minPurity))
		r.MaxPurity = ptr(round3(maxOf(purities)))
		r.StdPurity = ptr(round3(stdPurity))
	}

	var avgEndotoxin *float64
	if len(endotoxins) > 0 {
		avgEndotoxin = ptr(mean(endotoxins))
		r.AvgEndotoxin = ptr(round3(*avgEndotoxin))
	}

	r.VolumeScore = round2(volumeScore(total, last30))
	r.QualityScore = round2(qualityScore(avgPurity, minPurity))
	r.ConsistencyScore = round2(consistencyScore(stdPurity, avgGap))
	r.RecencyScore = round2(recencyScore(daysSinceLast, last30))
	r.EndotoxinScore = round2(endotoxinScore(avgEndotoxin, len(endotoxins)))

	r.TotalScore = round2(
		r.VolumeScore*WeightVolume +
			r.QualityScore*WeightQuality +
			r.ConsistencyScore*WeightConsistency +
			r.RecencyScore*WeightRecency +
			r.EndotoxinScore*WeightEndotoxin,
	)
	return r
}

// volumeScore scales with certificate count, saturating at 30, plus a
// bonus for active recent testing.
func volumeScore(total, last30 int) float64 {
	base := math.Min(100, float64(total)/30*100)
	if last30 >= 3 {
		base += 10
	}
	return math.Min(100, base)
}

// qualityScore is piecewise-linear in mean purity with a penalty when any
// certificate fell below 95%.
func qualityScore(avgPurity, minPurity float64) float64 {
	var base float64
	switch {
	case avgPurity >= 99:
		base = 90 + (avgPurity-99)*10
	case avgPurity >= 98:
		base = 70 + (avgPurity-98)*20
	case avgPurity >= 95:
		base = 50 + (avgPurity-95)*6.67
	default:
		base = avgPurity / 95 * 50
	}
	if minPurity < 95 {
		base -= 20
	}
	return math.Max(0, math.Min(100, base))
}

// consistencyScore is piecewise in purity standard deviation plus a bonus
// for regular testing cadence.
func consistencyScore(stdPurity, avgGapDays float64) float64 {
	var base float64
	switch {
	case stdPurity < 0.5:
		base = 95
	case stdPurity < 1.0:
		base = 80
	case stdPurity < 2.0:
		base = 60
	default:
		base = math.Max(0, 50-(stdPurity-2)*10)
	}
	if avgGapDays >= 0 && avgGapDays < 60 {
		base += 10
	}
	return math.Min(100, base)
}

// recencyScore is piecewise in days since the last certificate plus a
// bonus for multiple certificates in the last 30 days.
func recencyScore(daysSinceLast, last30 int) float64 {
	d := float64(daysSinceLast)
	var base float64
	switch {
	case d < 7:
		base = 100
	case d < 30:
		base = 70 + (30-d)/23*29
	case d < 90:
		base = 40 + (90-d)/60*30
	case d < 180:
		base = 10 + (180-d)/90*30
	default:
		base = math.Max(0, 10-(d-180)/365*10)
	}
	if last30 >= 2 {
		base += 15
	}
	return math.Min(100, base)
}

// endotoxinScore is neutral when no endotoxin data exists, otherwise
// piecewise in the mean level (EU/mg) with a transparency bonus when many
// certificates report it.
func endotoxinScore(avgEndotoxin *float64, count int) float64 {
	if avgEndotoxin == nil || count == 0 {
		return 50
	}
	e := *avgEndotoxin
	var score float64
	switch {
	case e < 10:
		score = 100
	case e < 50:
		score = 80 + (50-e)/40*19
	case e < 100:
		score = 60 + (100-e)/50*20
	case e < 200:
		score = 40 + (200-e)/100*20
	default:
		score = math.Max(0, 40-(e-200)/100*10)
	}
	if count >= 5 {
		score += 5
	}
	return math.Min(100, score)
}

func neutralRanking() model.VendorRanking {
	return model.VendorRanking{
		EndotoxinScore: 50,
		TotalScore:     round2(50 * WeightEndotoxin),
	}
}

// averageGapDays returns the mean gap in days between consecutive test
// dates, or -1 when fewer than two dates exist. Input must be sorted.
func averageGapDays(sorted []model.Certificate) float64 {
	if len(sorted) < 2 {
		return -1
	}
	totalGap := 0.0
	for i := 1; i < len(sorted); i++ {
		totalGap += sorted[i].TestDate.Sub(*sorted[i-1].TestDate).Hours() / 24
	}
	return totalGap / float64(len(sorted)-1)
}

func mean(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// stddev is the sample standard deviation; zero for fewer than two values.
func stddev(vals []float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	m := mean(vals)
	sum := 0.0
	for _, v := range vals {
		sum += (v - m) * (v - m)
	}
	return math.Sqrt(sum / float64(len(vals)-1))
}

func minOf(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round3(v float64) float64 { return math.Round(v*1000) / 1000 }

func ptr[T any](v T) *T { return &v }
