package extract

// extractionPrompt is the shared prompt contract for all vision backends.
// Every backend sends exactly this text with one certificate image and
// expects the fixed-shape JSON object back.
const extractionPrompt = `Analyze this analytical certificate and extract ALL data as JSON.

Extract:
1. Task Number
2. Testing ordered, Sample received, Analysis conducted (dates)
3. Client (supplier/vendor name)
4. Sample (full peptide/product name - EXACTLY as written)
5. Peptide Name (STANDARDIZED - extract base peptide name)
   - Remove dosages, formulations, variants
   - Standardize spelling: BPC-157/BPC157/BPC 157 -> "BPC157"
   - Examples: "Tirzepatide", "Semaglutide", "BPC157", "TB500", "HGH"
6. Quantity Nominal (declared quantity from product name)
   - Extract numeric value only (e.g., "30mg" -> 30)
7. Unit of Measure (from product name)
   - Common: "mg", "mcg", "IU", "g"
   - Standardize: mcg/ug -> "mcg", IU/iu -> "IU"
8. Manufacturer
9. Batch
10. Test Type - classify into ONE category:
   - "purity" if testing peptide purity/quantity (default)
   - "endotoxin" if testing endotoxins (EU/mg)
   - "heavy_metals" if testing heavy metals (Pb, Cd, Hg, As)
   - "microbiology" if testing TAMC/TYMC (bacteria/yeast counts)
11. Results (ALL parameters from the results table - CRITICAL!)
12. Heavy Metals (if present): Pb, Cd, Hg, As in ppm
13. Microbiology (if present): TAMC and TYMC counts in CFU/g
14. Endotoxins (if present): value in EU/mg
15. Comments
16. Verification Key

IMPORTANT for Results:
- Extract EVERY parameter from the results table
- Include name, value, and unit
- If parameters appear in Comments (e.g. "KPV: 11.75 mg"), add them to results
- Look for Purity (%), Quantity (mg), Endotoxins (EU/mg)
- For heavy metals tests: extract Pb, Cd, Hg, As values
- For microbiology tests: extract TAMC and TYMC
- Examples: {"Retatrutide": "44.33 mg", "Purity": "99.720%", "Endotoxins": "<50 EU/mg"}

Return ONLY valid JSON in this shape:
{
  "task_number": "82282",
  "testing_ordered": "02 OCT '25",
  "sample_received": "07 OCT '25",
  "analysis_conducted": "09 OCT 2025",
  "client": "www.licensedpeptides.com",
  "sample": "Retatrutide 40mg | 99.5% Purity",
  "peptide_name": "Retatrutide",
  "quantity_nominal": 40,
  "unit_of_measure": "mg",
  "manufacturer": "www.licensedpeptides.com",
  "batch": "reta40100926g",
  "test_type": "Assessment of a peptide vial",
  "test_category": "purity",
  "results": {
    "Retatrutide": "44.33 mg",
    "Purity": "99.720%"
  },
  "endotoxin_level": null,
  "heavy_metals": null,
  "microbiology_tamc": null,
  "microbiology_tymc": null,
  "comments": "",
  "verification_key": "I3NR16JGXTL8"
}

For a microbiology "Pass" result (no contamination) use 0 for the counts.
For heavy metals "not detected" use 0.0 per metal.
Empty fields use null. ONLY JSON, no other text.`
