package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompound(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", Unknown},
		{"synonym exact", "semaglutide", "Semaglutide"},
		{"synonym short code", "tirz", "Tirzepatide"},
		{"spelling variant", "bpc157", "BPC-157"},
		{"spaced variant", "bpc 157", "BPC-157"},
		{"dosage suffix stripped", "BPC-157 5mg", "BPC-157"},
		{"dosage in parens stripped", "Semaglutide (5mg)", "Semaglutide"},
		{"mcg dosage stripped", "Ipamorelin 500mcg", "Ipamorelin"},
		{"label prefix stripped", "Peptide: Tesamorelin", "Tesamorelin"},
		{"trade name mapped", "ibutamoren", "MK-677"},
		{"nad plus", "nad", "NAD+"},
		{"blend split and rejoined", "BPC-157 + TB-500", "BPC-157+TB500"},
		{"blend with and", "bpc-157 and ghk-cu", "BPC-157+GHK-Cu"},
		{"blend with ampersand", "semaglutide & cagrilintide", "Semaglutide+Cagrilintide"},
		{"blend table hit", "tb500+bpc157", "BPC157+TB500"},
		{"fallback numbered code", "snap8", "SNAP-8"},
		{"fallback acronym", "glow", "GLOW"},
		{"fallback title case", "unknown peptide", "Unknown Peptide"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compound(tt.in))
		})
	}
}

func TestCompoundIdempotent(t *testing.T) {
	inputs := []string{
		"bpc157",
		"BPC-157 5mg",
		"nad",
		"glow 70mg",
		"BPC-157 + TB-500",
		"tb500+bpc157",
		"thymosin alpha 1",
		"some new compound",
		"igf-1 lr3",
		"melanotan ii",
	}
	for _, in := range inputs {
		once := Compound(in)
		assert.Equal(t, once, Compound(once), "Compound not idempotent for %q", in)
	}
}
