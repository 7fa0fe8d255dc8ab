package lab

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed reference_ranges.yaml
var defaultRangesYAML []byte

// RangeEntry is one row of the reference range table. The optional critical
// limits are consumed by CriticalLimitRule; they do not change whether a value
// is abnormal.
type RangeEntry struct {
	TestName     string   `yaml:"test" json:"test_name"`
	Min          float64  `yaml:"min" json:"min"`
	Max          float64  `yaml:"max" json:"max"`
	Unit         string   `yaml:"unit" json:"unit"`
	CriticalLow  *float64 `yaml:"critical_low,omitempty" json:"critical_low,omitempty"`
	CriticalHigh *float64 `yaml:"critical_high,omitempty" json:"critical_high,omitempty"`
}

// Range returns the reference interval of the entry.
func (e RangeEntry) Range() Range { return Range{Min: e.Min, Max: e.Max} }

func (e RangeEntry) validate() error {
	if strings.TrimSpace(e.TestName) == "" {
		return fmt.Errorf("test name is required")
	}
	if e.Min > e.Max {
		return fmt.Errorf("%s: min %g is greater than max %g", e.TestName, e.Min, e.Max)
	}
	if e.CriticalLow != nil && *e.CriticalLow > e.Min {
		return fmt.Errorf("%s: critical_low %g must not exceed min %g", e.TestName, *e.CriticalLow, e.Min)
	}
	if e.CriticalHigh != nil && *e.CriticalHigh < e.Max {
		return fmt.Errorf("%s: critical_high %g must not be below max %g", e.TestName, *e.CriticalHigh, e.Max)
	}
	return nil
}

type rangeFile struct {
	Ranges []RangeEntry `yaml:"ranges"`
}

// RangeTable is the read-only reference range lookup keyed by exact test name.
// It is built once and shared freely between goroutines.
type RangeTable struct {
	entries map[string]RangeEntry
}

// NewRangeTable validates the entries and builds a table. Duplicate test names
// are rejected rather than silently overwritten.
func NewRangeTable(entries []RangeEntry) (*RangeTable, error) {
	t := &RangeTable{entries: make(map[string]RangeEntry, len(entries))}
	for _, e := range entries {
		if err := e.validate(); err != nil {
			return nil, fmt.Errorf("invalid reference range: %w", err)
		}
		if _, dup := t.entries[e.TestName]; dup {
			return nil, fmt.Errorf("duplicate reference range for %q", e.TestName)
		}
		t.entries[e.TestName] = e
	}
	return t, nil
}

// ParseRangeTable decodes a YAML document of the form
//
//	ranges:
//	  - test: Hemoglobin
//	    min: 12
//	    max: 16
//	    unit: g/dL
func ParseRangeTable(data []byte) (*RangeTable, error) {
	var f rangeFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode reference ranges: %w", err)
	}
	return NewRangeTable(f.Ranges)
}

// LoadRangeTable reads a YAML range table from disk.
func LoadRangeTable(path string) (*RangeTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reference ranges %s: %w", path, err)
	}
	return ParseRangeTable(data)
}

// DefaultRangeTable returns the built-in adult reference ranges.
func DefaultRangeTable() (*RangeTable, error) {
	return ParseRangeTable(defaultRangesYAML)
}

// Lookup returns the entry for testName. Matching is exact and case-sensitive.
func (t *RangeTable) Lookup(testName string) (RangeEntry, bool) {
	if t == nil {
		return RangeEntry{}, false
	}
	e, ok := t.entries[testName]
	return e, ok
}

// Len returns the number of entries.
func (t *RangeTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Entries returns a copy of the table sorted by test name.
func (t *RangeTable) Entries() []RangeEntry {
	if t == nil {
		return nil
	}
	out := make([]RangeEntry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TestName < out[j].TestName })
	return out
}
