package protocol

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	c := DefaultCatalog()

	tests := []struct {
		name  string
		query string
		want  string
		found bool
	}{
		{"exact", "GLOW", "GLOW", true},
		{"lowercase", "glow", "GLOW", true},
		{"mixed case", "Klow", "KLOW", true},
		{"with total suffix", "GLOW 70", "GLOW", true},
		{"joined suffix", "KLOW80", "KLOW", true},
		{"slash variant", "BPC-157/TB-500", "BPC-157/TB-500", true},
		{"plus variant", "bpc157+tb500", "BPC157+TB500", true},
		{"unknown", "CUSTOMMIX", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, ok := c.Lookup(tt.query)
			assert.Equal(t, tt.found, ok)
			if tt.found {
				assert.Equal(t, tt.want, p.Name)
			}
		})
	}
}

func TestNominalQuantitiesPartitionTotal(t *testing.T) {
	c := DefaultCatalog()

	glow, ok := c.Lookup("GLOW")
	require.True(t, ok)

	// Ratios 1:1:5 over a declared total of 70 must partition in exact
	// proportion and sum back to the total.
	quantities := glow.NominalQuantities(70)
	assert.InDelta(t, 10, quantities["BPC157"], 1e-9)
	assert.InDelta(t, 10, quantities["TB500"], 1e-9)
	assert.InDelta(t, 50, quantities["GHK-Cu"], 1e-9)

	var sum float64
	for _, q := range quantities {
		sum += q
	}
	assert.InDelta(t, 70, sum, 1e-9)
}

func TestNominalQuantitiesEqualSplit(t *testing.T) {
	c := DefaultCatalog()

	p, ok := c.Lookup("BPC+TB")
	require.True(t, ok)

	quantities := p.NominalQuantities(20)
	assert.InDelta(t, 10, quantities["BPC157"], 1e-9)
	assert.InDelta(t, 10, quantities["TB500"], 1e-9)
}

func TestLoadCatalogFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "protocols.yaml")
	content := `
- name: TRIMIX
  components:
    - compound: BPC157
      ratio: 2
    - compound: KPV
      ratio: 3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	c, err := LoadCatalog(path)
	require.NoError(t, err)

	p, ok := c.Lookup("trimix")
	require.True(t, ok)
	assert.Equal(t, []string{"BPC157", "KPV"}, p.CompoundNames())

	quantities := p.NominalQuantities(50)
	assert.InDelta(t, 20, quantities["BPC157"], 1e-9)
	assert.InDelta(t, 30, quantities["KPV"], 1e-9)

	// Built-ins survive the merge.
	assert.True(t, c.Known("GLOW"))
}

func TestLoadCatalogRejectsInvalidEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "protocols.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- name: EMPTY\n  components: []\n"), 0o644))

	_, err := LoadCatalog(path)
	assert.Error(t, err)
}
