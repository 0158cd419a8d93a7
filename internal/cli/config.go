package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/weft-ml/weft/internal/export"
)

// ExportConfig is the YAML settings file consumed by `weft export`.
//
//	producer:
//	  name: weft
//	  version: 0.1.0
//	opset: 6
//	graph_name: main
type ExportConfig struct {
	Producer struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"producer"`
	Opset     int64  `yaml:"opset"`
	GraphName string `yaml:"graph_name"`
}

// DefaultExportConfig returns the settings used when no config file is
// given.
func DefaultExportConfig() ExportConfig {
	var c ExportConfig
	c.Producer.Name = "weft"
	c.Producer.Version = "0.1.0"
	c.Opset = 6
	return c
}

// LoadExportConfig reads and validates a YAML config file.
func LoadExportConfig(path string) (ExportConfig, error) {
	c := DefaultExportConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if c.Opset <= 0 {
		return c, fmt.Errorf("config %s: opset must be positive, got %d", path, c.Opset)
	}
	return c, nil
}

// options translates the config into export options, with the graph
// name falling back to the compiled method's name.
func (c ExportConfig) options(methodName string) export.Options {
	name := c.GraphName
	if name == "" {
		name = methodName
	}
	return export.Options{
		GraphName:       name,
		ProducerName:    c.Producer.Name,
		ProducerVersion: c.Producer.Version,
		Opset:           c.Opset,
	}
}
