package ledger

import (
	"os"

	"github.com/goccy/go-yaml"
	"github.com/shopspring/decimal"

	"github.com/agentstation/stocktake/pkg/errors"
)

// Seed is the YAML document used to bootstrap a catalog.
//
//	families:
//	  - code: F1
//	    label: Fasteners
//	items:
//	  - code: A
//	    name: Bolt M6
//	    family: F1
//	    supply: 5
//	    consumption: 2
//	    unit_cost: "0.25"
type Seed struct {
	Families []Family   `yaml:"families"`
	Items    []SeedItem `yaml:"items"`
}

// SeedItem is an Entry as written in a seed file. The unit cost is kept as
// text so that no precision is lost through a float.
type SeedItem struct {
	Code        string     `yaml:"code"`
	Name        string     `yaml:"name"`
	Family      FamilyCode `yaml:"family,omitempty"`
	Supply      int64      `yaml:"supply"`
	Consumption int64      `yaml:"consumption"`
	UnitCost    string     `yaml:"unit_cost"`
}

// Entries converts the seed items into catalog entries.
func (s *Seed) Entries() ([]Entry, error) {
	entries := make([]Entry, 0, len(s.Items))
	for i, item := range s.Items {
		if item.Code == "" {
			return nil, &errors.ValidationError{Field: "items.code", Value: i, Message: "cannot be empty"}
		}
		cost := decimal.Zero
		if item.UnitCost != "" {
			var err error
			cost, err = decimal.NewFromString(item.UnitCost)
			if err != nil {
				return nil, &errors.ValidationError{Field: "items.unit_cost", Value: item.UnitCost, Message: err.Error()}
			}
		}
		entries = append(entries, Entry{
			Code:        item.Code,
			Name:        item.Name,
			Family:      item.Family,
			Supply:      item.Supply,
			Consumption: item.Consumption,
			UnitCost:    cost,
		})
	}
	return entries, nil
}

// ParseSeed decodes a seed document.
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, errors.WrapParse("yaml", "", err)
	}
	return &seed, nil
}

// LoadSeed reads and decodes a seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	seed, err := ParseSeed(data)
	if err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}
	return seed, nil
}
