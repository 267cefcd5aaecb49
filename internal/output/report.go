package output

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/lehigh-university-libraries/bookmerge/internal/pipeline"
	"gopkg.in/yaml.v3"
)

// SaveMetricsJSON writes the run metrics as indented JSON
func SaveMetricsJSON(path string, m *pipeline.Metrics) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create metrics file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(m); err != nil {
		return fmt.Errorf("failed to encode metrics to JSON: %w", err)
	}
	return nil
}

// SaveMetricsYAML writes the run metrics as YAML
func SaveMetricsYAML(path string, m *pipeline.Metrics) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal metrics to YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write YAML file: %w", err)
	}
	return nil
}
