package trace

import (
	"encoding/json"
	"fmt"
	"os"
)

// #region batch-io

// LoadBatch reads a JSON array of traces.
func LoadBatch(path string) ([]Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch %s: %w", path, err)
	}
	var traces []Trace
	if err := json.Unmarshal(data, &traces); err != nil {
		return nil, fmt.Errorf("parse batch %s: %w", path, err)
	}
	return traces, nil
}

// SaveBatch writes traces as an indented JSON array.
func SaveBatch(path string, traces []Trace) error {
	data, err := json.MarshalIndent(traces, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write batch %s: %w", path, err)
	}
	return nil
}

// #endregion batch-io

// ObjectiveRate returns the fraction of traces whose objective was achieved,
// or 0 for an empty batch.
func ObjectiveRate(traces []Trace) float64 {
	if len(traces) == 0 {
		return 0
	}
	n := 0
	for _, t := range traces {
		if t.ObjectiveAchieved {
			n++
		}
	}
	return float64(n) / float64(len(traces))
}
