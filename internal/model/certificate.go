package model

import (
	"encoding/json"
	"time"
)

// MicroFailSentinel marks a qualitative "fail" on a microbiology count:
// contamination was detected but the report gave no numeric magnitude.
// Distinct from any valid count (counts are never negative).
const MicroFailSentinel = -1.0

// BlendComponent is one compound's measured quantity within a blend.
type BlendComponent struct {
	Compound string  `json:"compound"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

// Certificate is one parsed lab-analysis report for one product sample.
// Exactly one of {single quantity, Components, Replicates} describes the
// quantity data. Purity is defined only for single-compound certificates,
// never for heterogeneous blends.
type Certificate struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id"` // listing task number, unique business key

	VendorRaw   string `json:"vendor_raw"`
	Vendor      string `json:"vendor"`
	CompoundRaw string `json:"compound_raw"`
	Compound    string `json:"compound"`

	TestDate *time.Time `json:"test_date,omitempty"`

	Purity           *float64 `json:"purity,omitempty"`
	QuantityMeasured *float64 `json:"quantity_measured,omitempty"`
	QuantityNominal  *float64 `json:"quantity_nominal,omitempty"`
	Unit             string   `json:"unit,omitempty"`

	Endotoxin   *float64           `json:"endotoxin,omitempty"`
	HeavyMetals map[string]float64 `json:"heavy_metals,omitempty"`
	MicroTAMC   *float64           `json:"micro_tamc,omitempty"`
	MicroTYMC   *float64           `json:"micro_tymc,omitempty"`

	IsBlend       bool             `json:"is_blend"`
	HasReplicates bool             `json:"has_replicates"`
	NeedsReview   bool             `json:"needs_review"`
	Components    []BlendComponent `json:"components,omitempty"`
	Replicates    []float64        `json:"replicates,omitempty"`

	Batch           string `json:"batch,omitempty"`
	Client          string `json:"client,omitempty"`
	Comments        string `json:"comments,omitempty"`
	VerificationKey string `json:"verification_key,omitempty"`

	ImageHash string `json:"image_hash"`
	ImagePath string `json:"image_path,omitempty"`

	// RawPayload is the original extraction record, retained verbatim for
	// audit and reprocessing.
	RawPayload json.RawMessage `json:"raw_payload,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Accuracy returns 100*measured/nominal, or false when either side is
// missing or the nominal is zero.
func (c *Certificate) Accuracy() (float64, bool) {
	if c.QuantityMeasured == nil || c.QuantityNominal == nil || *c.QuantityNominal == 0 {
		return 0, false
	}
	return 100 * *c.QuantityMeasured / *c.QuantityNominal, true
}

// Deviation returns |100 - accuracy|, or false when accuracy is undefined.
func (c *Certificate) Deviation() (float64, bool) {
	acc, ok := c.Accuracy()
	if !ok {
		return 0, false
	}
	d := 100 - acc
	if d < 0 {
		d = -d
	}
	return d, true
}

// ExtractionRecord is the fixed-shape record every extraction backend
// returns for one certificate image. Results holds the report's parameter
// table verbatim (parameter name -> value text as printed). Loosely-typed
// fields decode through Flex because vision models alternate between
// strings, numbers, and null.
type ExtractionRecord struct {
	TaskNumber        Flex            `json:"task_number"`
	TestingOrdered    Flex            `json:"testing_ordered,omitempty"`
	SampleReceived    Flex            `json:"sample_received,omitempty"`
	AnalysisConducted Flex            `json:"analysis_conducted,omitempty"`
	Client            Flex            `json:"client,omitempty"`
	Sample            Flex            `json:"sample,omitempty"`
	PeptideName       Flex            `json:"peptide_name,omitempty"`
	QuantityNominal   Flex            `json:"quantity_nominal,omitempty"`
	UnitOfMeasure     Flex            `json:"unit_of_measure,omitempty"`
	Manufacturer      Flex            `json:"manufacturer,omitempty"`
	Batch             Flex            `json:"batch,omitempty"`
	TestType          Flex            `json:"test_type,omitempty"`
	TestCategory      Flex            `json:"test_category,omitempty"`
	Results           map[string]Flex `json:"results,omitempty"`
	EndotoxinLevel    Flex            `json:"endotoxin_level,omitempty"`
	HeavyMetals       map[string]Flex `json:"heavy_metals,omitempty"`
	MicroTAMC         Flex            `json:"microbiology_tamc,omitempty"`
	MicroTYMC         Flex            `json:"microbiology_tymc,omitempty"`
	Comments          Flex            `json:"comments,omitempty"`
	VerificationKey   Flex            `json:"verification_key,omitempty"`
}
