package riskmodel

import "fmt"

// Group classifies a risk factor
type Group string

const (
	GroupSector Group = "sector"
	GroupStyle  Group = "style"
)

// Factor is one named systematic risk factor
type Factor struct {
	Name  string
	Group Group
}

// Schema is the ordered factor list of a risk model version.
// Loadings supplied for a version must follow this order.
type Schema struct {
	Version int
	Factors []Factor
}

// Names returns factor names in schema order
func (s Schema) Names() []string {
	names := make([]string, len(s.Factors))
	for i, f := range s.Factors {
		names[i] = f.Name
	}
	return names
}

// Index returns the position of name in the schema, or -1
func (s Schema) Index(name string) int {
	for i, f := range s.Factors {
		if f.Name == name {
			return i
		}
	}
	return -1
}

var sectorsV0 = []string{
	"basic_materials",
	"consumer_cyclical",
	"financial_services",
	"real_estate",
	"consumer_defensive",
	"health_care",
	"utilities",
	"communication_services",
	"energy",
	"industrials",
	"technology",
}

var stylesV0 = []string{
	"momentum",
	"size",
	"value",
	"short_term_reversal",
	"volatility",
}

var schemas = map[int]Schema{
	0: build(0, sectorsV0, stylesV0),
}

func build(version int, sectors, styles []string) Schema {
	s := Schema{Version: version}
	for _, name := range sectors {
		s.Factors = append(s.Factors, Factor{Name: name, Group: GroupSector})
	}
	for _, name := range styles {
		s.Factors = append(s.Factors, Factor{Name: name, Group: GroupStyle})
	}
	return s
}

// Lookup returns the schema registered for version
func Lookup(version int) (Schema, error) {
	s, ok := schemas[version]
	if !ok {
		return Schema{}, fmt.Errorf("unknown risk model version %d", version)
	}
	return s, nil
}
