// Package normalize maps free-text vendor and compound names from lab
// certificates to canonical identifiers. Both normalizers are pure
// functions: same input always yields the same output, and the output is a
// fixed point (normalizing twice changes nothing).
package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Unknown is returned when a name cannot be attributed to a real vendor
// (contact handles, private individuals, empty input).
const Unknown = "Unknown"

// vendorSynonyms maps lowercased raw vendor strings to canonical names.
// Keys include URL variants, typos, and slogans observed on certificates.
var vendorSynonyms = map[string]string{
	"homopeptide.com":         "Homopeptide",
	"www.homopeptide.com":     "Homopeptide",
	"lipo-peptide.com":        "Lipo Peptide",
	"www.lipo-peptide.com":    "Lipo Peptide",
	"innopeptide.com":         "Innopeptide",
	"www.innopeptide.com":     "Innopeptide",
	"innopeptide":             "Innopeptide",
	"peptidegurus.com":        "Peptide Gurus",
	"www.peptidegurus.com":    "Peptide Gurus",
	"peptidegurus":            "Peptide Gurus",
	"peptide gurus":           "Peptide Gurus",
	"royal-peptides.com":      "Royal Peptides",
	"royal-peptides.com usa & canada": "Royal Peptides",
	"rayshine-peptide.com":     "Rayshine Peptides",
	"www.rayshine-peptide.com": "Rayshine Peptides",
	"rayshine-peptide.com/":    "Rayshine Peptides",
	"rayshine peptides":        "Rayshine Peptides",
	"cocerpeptides.com":        "Cocer Peptides",
	"mtmeipeptide.com":         "MTM Peptide",
	"protopeptide.is":          "Proto Peptide",
	"usroids.com":              "US Roids",
	"texpeptide.com":           "Tex Peptide",
	"meipeptide.com":           "Mei Peptide",
	"www.meipeptide.com":       "Mei Peptide",
	"meipepetide.com":          "Mei Peptide", // typo variant
	"www.meipepetide.com":      "Mei Peptide",
	"mandybio.com":             "Mandy Bio",
	"www.mandybio.com":         "Mandy Bio",
	"mandy bio":                "Mandy Bio",
	"regenix peptides":         "Regenix Peptides",
	"regenix":                  "Regenix Peptides",
	"biotek peptides":          "Biotek Peptides",
	"aminopure peptides":       "Aminopure Peptides",
	"peptiatlas":               "Peptiatlas",
	"www.peptiatlas.com":       "Peptiatlas",
	"fenrilabs.co.uk":          "Fenrilabs",
	"licensedpeptides.com":     "Licensed Peptides",
	"www.licensedpeptides.com": "Licensed Peptides",
	"reta-peptide.com":         "Reta Peptide",
	"www.reta-peptide.com":     "Reta Peptide",
	"reta-peptide":             "Reta Peptide",
	"retaeu netherlands":       "Reta Peptide",
	"www.qinglishangmao.com":   "Qinglishangmao",
	"www.shpeptide.com":        "SH Peptide",
	"www.uwa-biotech.com":      "UWA Biotech",
	"www.ywaozuo.com":          "Ywaozuo",
	"researchchem.is":          "Research Chem",
	"researchism":              "Researchism",
	"puruspeptides.com":        "Purus Peptides",
	"ptb(peptronix.com)":       "Peptronix",

	"mai-peptides.com":      "Mai Peptides",
	"zztai-tech.com":        "ZZTAI Tech",
	"sigmatech-peptide.com": "Sigmatech Peptide",
	"peptidesoflondon.com":  "Peptides of London",
	"hemanpeptide.com":      "Heman Peptide",
	"hkpeptide.com":         "HK Peptide",
	"sahepeptides.com":      "Sahe Peptides",
	"zlzpeptide.com":        "ZLZ Peptide",
	"zyzhuoyanlab.com":      "Zyzhuo Yan Lab",

	"qsc":                    "QSC",
	"q s c":                  "QSC",
	"qingdao sigma chemical": "QSC",

	"shanghai alimopeptide biotechnology co., ltd": "Shanghai Alimopeptide",
	"jinan elitepeptide chemical co., ltd.":        "Jinan Elitepeptide",
	"jilin qijian biotechnology co., ltd":          "Jilin Qijian",
	"wuhan wansheng bio":                           "Wuhan Wansheng",
	"yiwu weide trading co., ltd":                  "Yiwu Weide Trading",

	"we are the peptidesciences of peptides in china.": "PeptideSciences China",
	"peptidesciences china":                            "PeptideSciences China",

	"eros labs":           "Eros Labs",
	"eros peptides":       "Eros Peptides",
	"made by alluvi.org":  "Alluvi",
	"alluvi health care":  "Alluvi",
	"peptira":             "Peptira",
	"peptira llc":         "Peptira",
	"unknown":             Unknown,
	"bioamino labs":       "BioAmino Labs",
	"cellpept research":   "Cellpept Research",
	"alpha biopharma":     "Alpha BioPharma",
	"alpha pro":           "Alpha Pro",
	"good":                "GOOD",
	"kbr":                 "KBR",
	"xtp":                 "XTP",
	"zjh":                 "ZJH",
	"tfc":                 "TFC",
	"modern research llc": "Modern Research",
	"penguin peptides":    "Penguin Peptides",
	"raw pharma":          "Raw Pharma",
	"lunarbiotech":        "Lunarbiotech",
	"allen biotechnology": "Allen Biotechnology",
	"dragon pharma":       "Dragon Pharma",
	"tirzeplab":           "Tirzeplab",
	"xenolabs":            "Xenolabs",
	"lilitide technology co., ltd": "Lilitide",
	"lilitide technology":          "Lilitide",
	"lilitide":                     "Lilitide",
	"lilitide tech":                "Lilitide",
	"lilitide co., ltd":            "Lilitide",
	"madz-wheat":                   "Madz-Wheat",
	"santeria pharmaceuticals":     "Santeria Pharmaceuticals",
	"retralab":                     "Retralab",
}

// contactMarkers identify messaging handles and phone contacts rather than
// vendors. These normalize to Unknown.
var contactMarkers = []string{
	"whatsapp", "@", "telegram", "+31 ", "+86 ", "wechat", "signal", "t.me/",
}

// privatePersonRE match private individuals posing as the supplier field.
var privatePersonRE = []*regexp.Regexp{
	regexp.MustCompile(`^(mr|ms|mrs|dr|prof)\.?\s`),
	regexp.MustCompile(`^(i am|my name|hello|hi)\b`),
	regexp.MustCompile(`^[a-z]{2,10}\s[a-z]\.?$`),
	regexp.MustCompile(`^\w+\s(from|via|through)\s`),
	regexp.MustCompile(`^(reddit|forum|discord)\s*:?`),
	regexp.MustCompile(`^\+\d{2,3}\s?\d`),
	regexp.MustCompile(`^[a-z]{2,8}@`),
}

var (
	schemeRE      = regexp.MustCompile(`^https?://`)
	wwwRE         = regexp.MustCompile(`^www\.`)
	longDomainRE  = regexp.MustCompile(`^([a-z0-9-]+(?:\.[a-z0-9-]+)*\.(?:com|org|net|co\.uk|cn|is))`)
	shortDomainRE = regexp.MustCompile(`^([a-z0-9-]+)\.(?:com|org|net|co\.uk|cn|is)/?$`)
	domainTLDRE   = regexp.MustCompile(`\.(com|org|net|co\.uk|cn|is|io)/?$`)
)

// vendorAcronyms are forced fully upper-case in title-cased fallbacks.
var vendorAcronyms = []string{
	"Qsc", "Kbr", "Tfc", "Xtp", "Zjh", "Mtm", "Uwa", "Us", "Hk", "Sh", "Zlz", "Zztai",
}

var vendorAcronymRE = buildWordFixes(vendorAcronyms)

type wordFix struct {
	re   *regexp.Regexp
	repl string
}

func buildWordFixes(words []string) []wordFix {
	fixes := make([]wordFix, 0, len(words))
	for _, w := range words {
		fixes = append(fixes, wordFix{
			re:   regexp.MustCompile(`\b` + w + `\b`),
			repl: strings.ToUpper(w),
		})
	}
	return fixes
}

var (
	ofWordRE  = regexp.MustCompile(`\bOf\b`)
	llcWordRE = regexp.MustCompile(`\bLlc\b`)
)

// Vendor normalizes a raw supplier string from a certificate to a canonical
// vendor name. URLs collapse to the vendor behind them, contact handles and
// private individuals collapse to Unknown, everything else gets
// deterministic casing fixups.
func Vendor(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Unknown
	}

	lower := strings.ToLower(trimmed)
	if canonical, ok := vendorSynonyms[lower]; ok {
		return canonical
	}

	// Retry the table with URL scheme and www. stripped.
	stripped := wwwRE.ReplaceAllString(schemeRE.ReplaceAllString(lower, ""), "")
	stripped = strings.TrimSuffix(stripped, "/")
	if canonical, ok := vendorSynonyms[stripped]; ok {
		return canonical
	}

	for _, marker := range contactMarkers {
		if strings.Contains(stripped, marker) {
			return Unknown
		}
	}
	for _, re := range privatePersonRE {
		if re.MatchString(stripped) {
			return Unknown
		}
	}

	// Long URL: reduce to the base domain and retry.
	if len(stripped) > 40 && (strings.Contains(stripped, "/") || strings.Count(stripped, ".") >= 2) {
		if m := longDomainRE.FindStringSubmatch(stripped); m != nil {
			if canonical, ok := vendorSynonyms[m[1]]; ok {
				return canonical
			}
			return domainToName(m[1])
		}
	}

	// Bare domain like "site.com".
	if shortDomainRE.MatchString(stripped) {
		return domainToName(stripped)
	}

	return fixVendorCasing(titleCase(trimmed))
}

// domainToName turns "rayshine-peptide.com" into "Rayshine Peptide".
func domainToName(domain string) string {
	name := wwwRE.ReplaceAllString(strings.ToLower(domain), "")
	name = domainTLDRE.ReplaceAllString(name, "")
	name = strings.ReplaceAll(name, "-", " ")
	return fixVendorCasing(titleCase(name))
}

func fixVendorCasing(s string) string {
	for _, f := range vendorAcronymRE {
		s = f.re.ReplaceAllString(s, f.repl)
	}
	s = ofWordRE.ReplaceAllString(s, "of")
	s = llcWordRE.ReplaceAllString(s, "LLC")
	return strings.TrimSpace(s)
}

func titleCase(s string) string {
	return cases.Title(language.English).String(s)
}
