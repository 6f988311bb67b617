package document

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MimeLyc/doc-translator/internal/unit"
)

// UnitsAdapter handles pre-extracted unit files: a JSON array of
// {"id", "text"} objects produced by an external format-specific
// extractor. Reinsertion writes the same shape back with the
// translations attached, so the external tool can complete the round
// trip into the original document format.
type UnitsAdapter struct{}

func NewUnitsAdapter() *UnitsAdapter {
	return &UnitsAdapter{}
}

func (a *UnitsAdapter) Suffixes() []string {
	return []string{".json"}
}

func (a *UnitsAdapter) Extract(ctx context.Context, path string) ([]unit.Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var units []unit.Unit
	if err := json.Unmarshal(data, &units); err != nil {
		return nil, fmt.Errorf("parse units %s: %w", path, err)
	}

	seen := make(map[string]bool, len(units))
	for i, u := range units {
		if u.ID == "" {
			return nil, fmt.Errorf("units %s: entry %d has no id", path, i)
		}
		if seen[u.ID] {
			return nil, fmt.Errorf("units %s: duplicate unit id %q", path, u.ID)
		}
		seen[u.ID] = true
		// Incoming files carry source material only.
		units[i].Locked = false
		units[i].Translated = ""
		units[i].Failed = false
	}
	return units, nil
}

func (a *UnitsAdapter) Reinsert(ctx context.Context, inputPath, outputPath string, units []unit.Unit) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	data, err := json.MarshalIndent(units, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal units: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outputPath, err)
	}
	return nil
}
