// Package protocol is the static registry of known multi-compound blend
// formulas and their mixing ratios. A protocol converts a blend's declared
// total nominal quantity into per-component nominal quantities for accuracy
// analysis.
package protocol

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Component is one compound's share of a blend formula.
type Component struct {
	Compound string  `yaml:"compound"`
	Ratio    float64 `yaml:"ratio"`
}

// Protocol is a named blend formula as an ordered list of
// (compound, relative ratio) pairs.
type Protocol struct {
	Name       string      `yaml:"name"`
	Components []Component `yaml:"components"`
}

// NominalQuantities partitions a declared total quantity across the
// protocol's components in exact proportion to their ratios. The returned
// quantities sum back to the total (up to floating rounding).
func (p Protocol) NominalQuantities(total float64) map[string]float64 {
	var totalRatio float64
	for _, c := range p.Components {
		totalRatio += c.Ratio
	}
	out := make(map[string]float64, len(p.Components))
	if totalRatio == 0 {
		return out
	}
	for _, c := range p.Components {
		out[c.Compound] = c.Ratio / totalRatio * total
	}
	return out
}

// CompoundNames returns the protocol's component compound names in order.
func (p Protocol) CompoundNames() []string {
	names := make([]string, len(p.Components))
	for i, c := range p.Components {
		names[i] = c.Compound
	}
	return names
}

// Catalog holds the known blend protocols. Immutable after construction.
type Catalog struct {
	protocols map[string]Protocol
}

// DefaultCatalog returns the built-in protocol definitions.
func DefaultCatalog() *Catalog {
	bpcTB := []Component{
		{Compound: "BPC157", Ratio: 1},
		{Compound: "TB500", Ratio: 1},
	}
	glow := []Component{
		{Compound: "BPC157", Ratio: 1},
		{Compound: "TB500", Ratio: 1},
		{Compound: "GHK-Cu", Ratio: 5},
	}
	klow := []Component{
		{Compound: "BPC157", Ratio: 1},
		{Compound: "TB500", Ratio: 1},
		{Compound: "KPV", Ratio: 1},
		{Compound: "GHK-Cu", Ratio: 5},
	}

	c := &Catalog{protocols: make(map[string]Protocol)}
	c.add(Protocol{Name: "GLOW", Components: glow})
	c.add(Protocol{Name: "KLOW", Components: klow})
	c.add(Protocol{Name: "BPC+TB", Components: bpcTB})
	c.add(Protocol{Name: "BPC157+TB500", Components: bpcTB})
	c.add(Protocol{Name: "BPC-157/TB-500", Components: bpcTB})
	c.add(Protocol{Name: "TB500/BPC157", Components: bpcTB})
	return c
}

// LoadCatalog returns the default catalog extended (or overridden) by
// protocol definitions from a YAML file. An empty path returns the default
// catalog unchanged.
func LoadCatalog(path string) (*Catalog, error) {
	c := DefaultCatalog()
	if path == "" {
		return c, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "protocol: read catalog file %s", path)
	}

	var extra []Protocol
	if err := yaml.Unmarshal(data, &extra); err != nil {
		return nil, eris.Wrapf(err, "protocol: parse catalog file %s", path)
	}
	for _, p := range extra {
		if p.Name == "" || len(p.Components) == 0 {
			return nil, eris.Errorf("protocol: catalog entry missing name or components in %s", path)
		}
		c.add(p)
	}
	return c, nil
}

func (c *Catalog) add(p Protocol) {
	c.protocols[strings.ToLower(p.Name)] = p
}

// Lookup resolves a protocol by name. Matching is case-insensitive and
// falls back to the first word of the name, so "GLOW 70" and "Klow80"
// resolve to GLOW and KLOW.
func (c *Catalog) Lookup(name string) (Protocol, bool) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return Protocol{}, false
	}

	lower := strings.ToLower(trimmed)
	if p, ok := c.protocols[lower]; ok {
		return p, true
	}

	base := lower
	if i := strings.IndexAny(base, " \t"); i >= 0 {
		base = base[:i]
	}
	if p, ok := c.protocols[base]; ok {
		return p, true
	}

	// Suffixed variants like "klow80".
	for key, p := range c.protocols {
		if strings.HasPrefix(base, key) || strings.HasPrefix(key, base) {
			return p, true
		}
	}
	return Protocol{}, false
}

// Known reports whether a protocol name resolves in the catalog.
func (c *Catalog) Known(name string) bool {
	_, ok := c.Lookup(name)
	return ok
}
