package price

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"nivesh/internal/money"
)

type datasetPoint struct {
	Year  int     `yaml:"year"`
	Month int     `yaml:"month"`
	Price float64 `yaml:"price"`
}

// LoadDataset reads a YAML price file keyed by symbol. Prices are written
// in rupees and converted to micros once here; replicas only ever see the
// converted values, so the float conversion cannot diverge between peers.
func LoadDataset(path string) (*MemoryDataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset: %w", err)
	}
	var raw map[string][]datasetPoint
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse dataset: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("dataset %s is empty", path)
	}

	ds := NewMemoryDataset()
	for symbol, points := range raw {
		for _, p := range points {
			if err := ds.Put(symbol, p.Year, p.Month, money.ToMicros(p.Price)); err != nil {
				return nil, fmt.Errorf("dataset %s %d-%02d: %w", symbol, p.Year, p.Month, err)
			}
		}
	}
	return ds, nil
}
