// Package parse turns one raw extraction record into a validated
// Certificate. It classifies the results table into single-compound,
// blend, or replicate-measurement layouts, coerces the heavy-metal and
// microbiology panels, and invokes the name normalizers.
package parse

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/vialcheck/vialcheck-cli/internal/model"
	"github.com/vialcheck/vialcheck-cli/internal/normalize"
)

// ValidationError reports a record that is missing a required identifier
// or carries a value outside its valid range. Such records are never
// persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("parse: invalid certificate: %s %s", e.Field, e.Reason)
}

var (
	numberRE     = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	nominalQtyRE = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*mg`)
)

// metalSymbols and microKeys are excluded from compound classification:
// their values can carry mass-like unit text without being quantities of
// an active compound.
var metalSymbols = map[string]bool{
	"pb": true, "cd": true, "hg": true, "as": true,
	"lead": true, "cadmium": true, "mercury": true, "arsenic": true,
}

var microKeys = map[string]bool{
	"tamc": true, "tymc": true,
}

// Parse builds a Certificate from one extraction record. The full record
// is retained verbatim as the audit payload. Fields that cannot be parsed
// are left nil rather than defaulted, except the contamination-panel
// zero-coercions, which encode "absence of contamination".
func Parse(rec *model.ExtractionRecord, imagePath, contentHash string) (*model.Certificate, error) {
	if rec == nil {
		return nil, eris.New("parse: nil extraction record")
	}

	taskNumber := strings.TrimSpace(rec.TaskNumber.String())
	if taskNumber == "" {
		return nil, &ValidationError{Field: "task_number", Reason: "is required"}
	}

	vendorRaw := firstSet(rec.Client, rec.Manufacturer)
	if vendorRaw == "" {
		return nil, &ValidationError{Field: "vendor", Reason: "is required"}
	}
	compoundRaw := firstSet(rec.Sample, rec.PeptideName)

	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, eris.Wrap(err, "parse: marshal raw payload")
	}

	cert := &model.Certificate{
		ID:              uuid.NewString(),
		ExternalID:      taskNumber,
		VendorRaw:       vendorRaw,
		Vendor:          normalize.Vendor(vendorRaw),
		CompoundRaw:     compoundRaw,
		Compound:        normalize.Compound(compoundRaw),
		Unit:            unitOrDefault(rec.UnitOfMeasure),
		Batch:           rec.Batch.String(),
		Client:          rec.Client.String(),
		Comments:        rec.Comments.String(),
		VerificationKey: rec.VerificationKey.String(),
		ImageHash:       contentHash,
		ImagePath:       imagePath,
		RawPayload:      raw,
		CreatedAt:       time.Now().UTC(),
	}

	cert.TestDate = parseDate(firstSet(rec.AnalysisConducted, rec.SampleReceived, rec.TestingOrdered))

	classifyResults(cert, rec.Results)

	if v, ok := parseFlexNumber(rec.QuantityNominal); ok {
		cert.QuantityNominal = &v
	} else if m := nominalQtyRE.FindStringSubmatch(compoundRaw); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			cert.QuantityNominal = &v
		}
	}

	cert.Endotoxin = parseEndotoxin(rec)
	cert.HeavyMetals = coerceHeavyMetals(rec.HeavyMetals)
	cert.MicroTAMC = coerceMicroCount(rec.MicroTAMC, rec.Results, "tamc")
	cert.MicroTYMC = coerceMicroCount(rec.MicroTYMC, rec.Results, "tymc")

	if cert.Purity != nil && (*cert.Purity < 0 || *cert.Purity > 100) {
		return nil, &ValidationError{Field: "purity", Reason: "out of range"}
	}

	return cert, nil
}

// classifyResults walks the results table and decides between the three
// quantity layouts. Entries whose value carries a mass unit and whose key
// is not purity/endotoxin/metal/micro count as compound-quantity entries:
// more than one distinct key means blend, semicolons within one key mean
// replicate measurements, anything else is a single value. A table that
// fits none of the observed layouts is kept as-is and flagged for review.
func classifyResults(cert *model.Certificate, results map[string]model.Flex) {
	type compoundEntry struct {
		key        string
		quantities []float64
	}

	var (
		compounds []compoundEntry
		purities  []float64
	)

	for key, value := range results {
		text, ok := value.Value()
		if !ok {
			continue
		}
		keyLower := strings.ToLower(strings.TrimSpace(key))

		switch {
		case strings.Contains(keyLower, "purity"):
			purities = append(purities, splitNumbers(text, "%")...)
		case strings.Contains(keyLower, "endotoxin"),
			metalSymbols[keyLower],
			microKeys[keyLower]:
			// handled by their own panels
		case hasMassUnit(text):
			qs := parseQuantities(text)
			if len(qs) > 0 {
				compounds = append(compounds, compoundEntry{key: key, quantities: qs})
			}
		}
	}

	switch {
	case len(compounds) > 1:
		// Heterogeneous mixture: a single purity percentage is not
		// meaningful, quantity is the summed component mass.
		cert.IsBlend = true
		total := 0.0
		for _, c := range compounds {
			sum := 0.0
			for _, q := range c.quantities {
				sum += q
			}
			total += sum
			cert.Components = append(cert.Components, model.BlendComponent{
				Compound: normalize.Compound(c.key),
				Quantity: sum,
				Unit:     "mg",
			})
		}
		cert.QuantityMeasured = &total
		cert.Purity = nil

	case len(compounds) == 1 && len(compounds[0].quantities) > 1:
		cert.HasReplicates = true
		cert.Replicates = compounds[0].quantities
		avg := mean(compounds[0].quantities)
		cert.QuantityMeasured = &avg
		cert.Purity = average(purities)

	case len(compounds) == 1:
		q := compounds[0].quantities[0]
		cert.QuantityMeasured = &q
		cert.Purity = average(purities)

	default:
		// No quantity entry at all. Keep whatever purity was reported and
		// flag layouts that carried data we could not classify.
		cert.Purity = average(purities)
		if len(results) > 0 && cert.Purity == nil {
			cert.NeedsReview = true
		}
	}
}

// hasMassUnit reports whether the value text carries a mass unit, taking
// care not to mistake the EU/mg endotoxin unit for a quantity.
func hasMassUnit(text string) bool {
	lower := strings.ToLower(text)
	if strings.Contains(lower, "eu/mg") {
		return false
	}
	return strings.Contains(lower, "mg") ||
		strings.Contains(lower, "mcg") ||
		strings.Contains(lower, "µg")
}

// parseQuantities splits a value on semicolons and parses each part as a
// mass in mg, converting mcg readings.
func parseQuantities(text string) []float64 {
	var out []float64
	for part := range strings.SplitSeq(text, ";") {
		part = strings.TrimSpace(part)
		m := numberRE.FindString(part)
		if m == "" {
			continue
		}
		v, err := strconv.ParseFloat(m, 64)
		if err != nil {
			continue
		}
		lower := strings.ToLower(part)
		if strings.Contains(lower, "mcg") || strings.Contains(lower, "µg") {
			v /= 1000
		}
		out = append(out, v)
	}
	return out
}

// splitNumbers splits on semicolons, strips the given suffix, and parses
// each part as a float. Unparseable parts are dropped.
func splitNumbers(text, strip string) []float64 {
	var out []float64
	for part := range strings.SplitSeq(text, ";") {
		part = strings.TrimSpace(strings.ReplaceAll(part, strip, ""))
		if v, err := strconv.ParseFloat(part, 64); err == nil {
			out = append(out, v)
		}
	}
	return out
}

func parseEndotoxin(rec *model.ExtractionRecord) *float64 {
	if v, ok := parseFlexNumber(rec.EndotoxinLevel); ok {
		return &v
	}
	for key, value := range rec.Results {
		if !strings.Contains(strings.ToLower(key), "endotoxin") {
			continue
		}
		text, ok := value.Value()
		if !ok {
			continue
		}
		// "<50 EU/mg" reads as 50, the reported detection bound.
		clean := strings.TrimSpace(strings.NewReplacer("<", "", "EU/mg", "", "eu/mg", "").Replace(text))
		if m := numberRE.FindString(clean); m != "" {
			if v, err := strconv.ParseFloat(m, 64); err == nil {
				return &v
			}
		}
	}
	return nil
}

// coerceHeavyMetals maps the heavy-metal panel to numbers. Null, "not
// detected", and "pass" all mean absence of contamination and coerce to
// zero; a qualitative fail coerces to the sentinel; malformed values
// coerce to zero rather than failing the record.
func coerceHeavyMetals(panel map[string]model.Flex) map[string]float64 {
	if len(panel) == 0 {
		return nil
	}
	out := make(map[string]float64, len(panel))
	for metal, value := range panel {
		out[metal] = coerceContamValue(value)
	}
	return out
}

func coerceContamValue(value model.Flex) float64 {
	text, ok := value.Value()
	if !ok {
		return 0
	}
	lower := strings.ToLower(strings.TrimSpace(text))
	switch {
	case lower == "", lower == "null", lower == "not detected", lower == "nd", lower == "pass":
		return 0
	case lower == "fail", lower == "failed":
		return model.MicroFailSentinel
	}
	if m := numberRE.FindString(lower); m != "" {
		if v, err := strconv.ParseFloat(m, 64); err == nil {
			return v
		}
	}
	return 0
}

// coerceMicroCount resolves one microbiology count from the dedicated
// field or the results table. "pass" is zero, a qualitative "fail" is the
// sentinel, otherwise the leading number of the value text. Absent data
// stays nil.
func coerceMicroCount(field model.Flex, results map[string]model.Flex, key string) *float64 {
	value := field
	if !value.IsSet() {
		for k, v := range results {
			if strings.Contains(strings.ToLower(k), key) {
				value = v
				break
			}
		}
	}
	text, ok := value.Value()
	if !ok {
		return nil
	}

	lower := strings.ToLower(strings.TrimSpace(text))
	switch {
	case lower == "pass", lower == "passed":
		zero := 0.0
		return &zero
	case lower == "fail", lower == "failed":
		sentinel := model.MicroFailSentinel
		return &sentinel
	}
	if m := numberRE.FindString(lower); m != "" {
		if v, err := strconv.ParseFloat(m, 64); err == nil {
			return &v
		}
	}
	return nil
}

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"2 Jan '06",
	"02.01.2006",
	"01/02/2006",
}

func parseDate(text string) *time.Time {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return &t
		}
	}
	return nil
}

func parseFlexNumber(f model.Flex) (float64, bool) {
	text, ok := f.Value()
	if !ok {
		return 0, false
	}
	m := numberRE.FindString(text)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func firstSet(fields ...model.Flex) string {
	for _, f := range fields {
		if v, ok := f.Value(); ok && v != "" {
			return v
		}
	}
	return ""
}

func unitOrDefault(f model.Flex) string {
	if v, ok := f.Value(); ok && v != "" {
		return strings.ToLower(v)
	}
	return "mg"
}

func mean(vals []float64) float64 {
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

func average(vals []float64) *float64 {
	if len(vals) == 0 {
		return nil
	}
	m := mean(vals)
	return &m
}
