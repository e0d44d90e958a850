// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package config carries the runtime options for a health monitor run.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full set of pipeline options. Values come from the optional
// YAML config file with CLI flags layered on top; no environment variables
// are consumed.
type Config struct {
	// OutputDir is the directory reports are written to, created if absent.
	OutputDir string `yaml:"output_dir"`
	// Format is the report serialization, "json" or "text".
	Format string `yaml:"format"`
	// TopProcesses truncates both process rankings.
	TopProcesses int `yaml:"top_processes"`
	// AllConnections includes the full connection enumeration in the
	// network section.
	AllConnections bool `yaml:"all_connections"`
	// Parallel runs the three collectors concurrently. The report content
	// is identical either way; only latency changes.
	Parallel bool `yaml:"parallel"`
	// CPUSampleInterval is the blocking CPU measurement window.
	CPUSampleInterval time.Duration `yaml:"cpu_sample_interval"`
}

func Default() Config {
	return Config{
		OutputDir:         ".",
		Format:            "json",
		TopProcesses:      20,
		CPUSampleInterval: time.Second,
	}
}

// Load reads a YAML config file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("output directory must not be empty")
	}
	if c.Format != "json" && c.Format != "text" {
		return fmt.Errorf("unknown format %q (expected json or text)", c.Format)
	}
	if c.CPUSampleInterval < 0 {
		return fmt.Errorf("cpu sample interval must not be negative")
	}
	return nil
}
