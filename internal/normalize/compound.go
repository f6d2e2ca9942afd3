package normalize

import (
	"regexp"
	"strings"
)

// compoundSynonyms maps lowercased compound name variants (after dosage and
// prefix stripping) to canonical names.
var compoundSynonyms = map[string]string{
	// GLP-1 agonists
	"glp":         "Semaglutide",
	"glp-1":       "Semaglutide",
	"glp1":        "Semaglutide",
	"semaglutide": "Semaglutide",
	"sema":        "Semaglutide",

	"glp-2tz":     "Tirzepatide",
	"glp2tz":      "Tirzepatide",
	"tirz":        "Tirzepatide",
	"tirzepatide": "Tirzepatide",

	"glp-3rt":     "Retatrutide",
	"glp3rt":      "Retatrutide",
	"reta":        "Retatrutide",
	"retatrutide": "Retatrutide",

	"liraglutide":  "Liraglutide",
	"lira":         "Liraglutide",
	"cagrilintide": "Cagrilintide",
	"cagri":        "Cagrilintide",

	// Repair peptides
	"bpc-157": "BPC-157",
	"bpc157":  "BPC-157",
	"bpc 157": "BPC-157",
	"bpc":     "BPC-157",

	"tb-500":          "TB500",
	"tb500":           "TB500",
	"tb 500":          "TB500",
	"tb4":             "TB500",
	"thymosin beta-4": "TB500",
	"thymosin":        "TB500",

	"kpv": "KPV",

	"ghk-cu": "GHK-Cu",
	"ghk cu": "GHK-Cu",
	"ghkcu":  "GHK-Cu",
	"ghk":    "GHK-Cu",

	// Growth hormones and secretagogues
	"hgh":            "HGH",
	"somatropin":     "HGH",
	"growth hormone": "HGH",
	"qitrope":        "HGH",

	"ipamorelin": "Ipamorelin",
	"ipam":       "Ipamorelin",
	"ipa":        "Ipamorelin",

	"cjc-1295": "CJC-1295",
	"cjc1295":  "CJC-1295",
	"cjc 1295": "CJC-1295",
	"cjc":      "CJC-1295",

	"tesamorelin": "Tesamorelin",
	"tesa":        "Tesamorelin",

	"mk-677":     "MK-677",
	"mk677":      "MK-677",
	"mk 677":     "MK-677",
	"ibutamoren": "MK-677",

	"ghrp-2":    "GHRP-2",
	"ghrp2":     "GHRP-2",
	"ghrp 2":    "GHRP-2",
	"ghrp-6":    "GHRP-6",
	"ghrp6":     "GHRP-6",
	"ghrp 6":    "GHRP-6",
	"hexarelin": "Hexarelin",
	"hexa":      "Hexarelin",

	// Anti-aging and longevity
	"nad+": "NAD+",
	"nad":  "NAD+",
	"nicotinamide adenine dinucleotide": "NAD+",

	"epithalon":   "Epithalon",
	"epitalon":    "Epithalon",
	"epithalamin": "Epithalon",

	"mots-c": "MOTS-C",
	"motsc":  "MOTS-C",
	"mots c": "MOTS-C",
	"mots":   "MOTS-C",

	"nmn":                        "NMN",
	"nicotinamide mononucleotide": "NMN",

	// Nootropics
	"selank": "Selank",
	"semax":  "Semax",
	"p21":    "P21",
	"dihexa": "Dihexa",

	// Metabolic
	"aod-9604": "AOD-9604",
	"aod9604":  "AOD-9604",
	"aod 9604": "AOD-9604",
	"aod":      "AOD-9604",

	"5-amino-1mq": "5-Amino-1MQ",
	"5amino1mq":   "5-Amino-1MQ",
	"5-amino 1mq": "5-Amino-1MQ",
	"5 amino 1mq": "5-Amino-1MQ",

	// Immune
	"thymosin-alpha-1": "Thymosin-Alpha-1",
	"thymosin alpha 1": "Thymosin-Alpha-1",
	"thymosinalpha1":   "Thymosin-Alpha-1",
	"ta1":              "Thymosin-Alpha-1",

	"ll-37": "LL-37",
	"ll37":  "LL-37",
	"ll 37": "LL-37",

	// Sexual and cosmetic
	"pt-141":        "PT-141",
	"pt141":         "PT-141",
	"pt 141":        "PT-141",
	"bremelanotide": "PT-141",

	"melanotan-ii": "Melanotan-II",
	"melanotan ii": "Melanotan-II",
	"melanotan2":   "Melanotan-II",
	"mt2":          "Melanotan-II",
	"mt-2":         "Melanotan-II",
	"melanotan-i":  "Melanotan-I",
	"melanotan i":  "Melanotan-I",
	"melanotan1":   "Melanotan-I",
	"mt1":          "Melanotan-I",
	"mt-1":         "Melanotan-I",

	// Other
	"dsip":                          "DSIP",
	"delta sleep inducing peptide":  "DSIP",
	"hcg":                           "HCG",
	"human chorionic gonadotropin":  "HCG",
	"igf-1":                         "IGF-1",
	"igf1":                          "IGF-1",
	"igf 1":                         "IGF-1",
	"insulin-like growth factor":    "IGF-1",
	"igf-1 lr3":                     "IGF-1 LR3",
	"igf1lr3":                       "IGF-1 LR3",
	"igf-1lr3":                      "IGF-1 LR3",
	"enclomiphene":                  "Enclomiphene",
	"enclo":                         "Enclomiphene",
	"gonadorelin":                   "Gonadorelin",
	"gnrh":                          "Gonadorelin",

	// Blends kept whole
	"bpc157+tb500":   "BPC157+TB500",
	"bpc-157+tb-500": "BPC157+TB500",
	"tb500+bpc157":   "BPC157+TB500",
}

var (
	dosageRE         = regexp.MustCompile(`(?i)\s*\(?\d+\.?\d*\s*(mg|mcg|iu|µg)\)?`)
	compoundPrefixRE = regexp.MustCompile(`(?i)^(peptide|compound|product):\s*`)
	componentSplitRE = regexp.MustCompile(`\s*[+&]\s*|\s+and\s+`)
)

// numberedCompoundFixes restore canonical casing and hyphenation of coded
// compound names after a title-case fallback.
var numberedCompoundFixes = []wordFix{
	{regexp.MustCompile(`Bpc-?(\d+)`), "BPC$1"},
	{regexp.MustCompile(`Tb-?(\d+)`), "TB$1"},
	{regexp.MustCompile(`Cjc-?(\d+)`), "CJC-$1"},
	{regexp.MustCompile(`Aod-?(\d+)`), "AOD-$1"},
	{regexp.MustCompile(`Pt-?(\d+)`), "PT-$1"},
	{regexp.MustCompile(`Mk-?(\d+)`), "MK-$1"},
	{regexp.MustCompile(`Ll-?(\d+)`), "LL-$1"},
	{regexp.MustCompile(`Igf-?(\d+)`), "IGF-$1"},
	{regexp.MustCompile(`Ghrp-?(\d+)`), "GHRP-$1"},
	{regexp.MustCompile(`Ss-?(\d+)`), "SS-$1"},
	{regexp.MustCompile(`Pnc-?(\d+)`), "PNC-$1"},
	{regexp.MustCompile(`Snap-?(\d+)`), "SNAP-$1"},
	{regexp.MustCompile(`Mots-?C`), "MOTS-C"},
	{regexp.MustCompile(`Ghk-?Cu`), "GHK-Cu"},
	{regexp.MustCompile(`(?i)Peg-?Mgf`), "PEG-MGF"},
	{regexp.MustCompile(`(?i)Slu-?Pp`), "SLU-PP"},
}

var compoundAcronymFixes = []wordFix{
	{regexp.MustCompile(`\bHgh\b`), "HGH"},
	{regexp.MustCompile(`\bHcg\b`), "HCG"},
	{regexp.MustCompile(`\bNad\b`), "NAD+"},
	{regexp.MustCompile(`\bNmn\b`), "NMN"},
	{regexp.MustCompile(`\bKpv\b`), "KPV"},
	{regexp.MustCompile(`\bDsip\b`), "DSIP"},
	{regexp.MustCompile(`\bVip\b`), "VIP"},
	{regexp.MustCompile(`\bNpp\b`), "NPP"},
	{regexp.MustCompile(`\bGlow\b`), "GLOW"},
	{regexp.MustCompile(`\bKlow\b`), "KLOW"},
}

// Compound normalizes a raw compound/peptide name to its canonical form.
// Dosage suffixes ("BPC-157 5mg") and label prefixes ("Peptide: ...") are
// stripped before the synonym lookup. Multi-component names joined by
// "+", "&" or "and" are split, normalized per component, and rejoined
// with "+".
func Compound(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Unknown
	}

	stripped := dosageRE.ReplaceAllString(trimmed, "")
	stripped = compoundPrefixRE.ReplaceAllString(stripped, "")
	stripped = strings.TrimSpace(stripped)

	lower := strings.ToLower(stripped)
	if canonical, ok := compoundSynonyms[lower]; ok {
		return canonical
	}

	if componentSplitRE.MatchString(lower) {
		parts := componentSplitRE.Split(lower, -1)
		normalized := make([]string, 0, len(parts))
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if canonical, ok := compoundSynonyms[part]; ok {
				normalized = append(normalized, canonical)
			} else {
				normalized = append(normalized, fixCompoundCasing(titleCase(part)))
			}
		}
		return strings.Join(normalized, "+")
	}

	return fixCompoundCasing(titleCase(stripped))
}

func fixCompoundCasing(s string) string {
	for _, f := range numberedCompoundFixes {
		s = f.re.ReplaceAllString(s, f.repl)
	}
	for _, f := range compoundAcronymFixes {
		s = f.re.ReplaceAllString(s, f.repl)
	}
	return strings.TrimSpace(s)
}
