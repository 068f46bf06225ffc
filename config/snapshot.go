package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/autonomos/orchestrator/domain"
)

// LoadSnapshot reads the initial business snapshot from a JSON file. An
// empty path returns an empty snapshot; the monitors then produce no events
// until state is seeded.
func LoadSnapshot(path string) (*domain.BusinessSnapshot, error) {
	snap := &domain.BusinessSnapshot{
		InventoryLevels:   map[string]float64{},
		SalesVelocity:     map[string]float64{},
		VendorPerformance: map[string]float64{},
		StaffAvailability: map[string][]string{},
	}
	if path == "" {
		return snap, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot file: %w", err)
	}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("parse snapshot file %s: %w", path, err)
	}
	return snap, nil
}
