// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package snapshot defines the collection framework and the canonical report
// document for one-shot system health snapshots.
package snapshot

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-logr/logr"

	"github.com/SibbiesMom23/system-health-monitor/pkg/probe"
)

// SectionType identifies a report section produced by one collector.
type SectionType string

const (
	SectionMetrics SectionType = "metrics"
	SectionProcess SectionType = "process"
	SectionNetwork SectionType = "network"
)

// SectionStatus records how a collector run ended.
type SectionStatus string

const (
	SectionStatusOK     SectionStatus = "ok"
	SectionStatusFailed SectionStatus = "failed"
)

// CollectorCapabilities describes what a collector needs from the platform.
type CollectorCapabilities struct {
	// RequiresElevated marks collectors whose data source may be refused
	// wholesale to unprivileged callers. Such collectors degrade to an
	// empty result instead of failing.
	RequiresElevated bool
}

// Collector performs one-shot data collection for a single report section.
//
// Per-item failures inside a collector (a partition, a process, a connection,
// an interface) are recovered locally by omission and never surface through
// Collect. The only error a Collector returns is context cancellation.
type Collector interface {
	Type() SectionType
	Name() string

	// Collect performs a single collection and returns the section document
	Collect(ctx context.Context) (any, error)

	Capabilities() CollectorCapabilities
}

// Config carries collection options shared by all collectors.
type Config struct {
	// Probe supplies raw OS state. Required.
	Probe probe.Probe
	// TopProcesses truncates both process rankings. Zero means empty
	// rankings, negative means the full list.
	TopProcesses int
	// IncludeAllConnections adds the full connection enumeration to the
	// network section.
	IncludeAllConnections bool
	// CPUSampleInterval is the blocking CPU measurement window.
	// Defaults to one second when unset.
	CPUSampleInterval time.Duration
}

func (c Config) Validate() error {
	if c.Probe == nil {
		return fmt.Errorf("config: probe is required")
	}
	if c.CPUSampleInterval < 0 {
		return fmt.Errorf("config: cpu sample interval must not be negative")
	}
	return nil
}

// SampleInterval returns the configured CPU window with the default applied.
func (c Config) SampleInterval() time.Duration {
	if c.CPUSampleInterval == 0 {
		return time.Second
	}
	return c.CPUSampleInterval
}

// BaseCollector carries the fields every collector shares.
type BaseCollector struct {
	sectionType  SectionType
	name         string
	logger       logr.Logger
	config       Config
	capabilities CollectorCapabilities
}

func NewBaseCollector(sectionType SectionType, name string, logger logr.Logger, config Config, capabilities CollectorCapabilities) BaseCollector {
	return BaseCollector{
		sectionType:  sectionType,
		name:         name,
		logger:       logger.WithName(string(sectionType)),
		config:       config,
		capabilities: capabilities,
	}
}

func (b *BaseCollector) Type() SectionType {
	return b.sectionType
}

func (b *BaseCollector) Name() string {
	return b.name
}

func (b *BaseCollector) Capabilities() CollectorCapabilities {
	return b.capabilities
}

func (b *BaseCollector) Logger() logr.Logger {
	return b.logger
}

func (b *BaseCollector) Config() Config {
	return b.config
}

// Factory creates a collector instance with the provided logger and config.
type Factory func(logger logr.Logger, config Config) (Collector, error)

var registry = make(map[SectionType]Factory)

// Register adds a collector factory to the global registry for sectionType.
// It is called during package initialization (typically in init() functions)
// and panics if a factory for the section is already registered.
func Register(sectionType SectionType, factory Factory) {
	if factory == nil {
		panic(fmt.Sprintf("nil factory for section %s", sectionType))
	}
	if _, exists := registry[sectionType]; exists {
		panic(fmt.Sprintf("collector for %s already registered", sectionType))
	}
	registry[sectionType] = factory
}

// GetCollector retrieves the collector factory for sectionType.
func GetCollector(sectionType SectionType) (Factory, error) {
	factory, exists := registry[sectionType]
	if !exists {
		return nil, fmt.Errorf("collector for %s not found", sectionType)
	}
	return factory, nil
}

// AvailableSections returns the registered section types in sorted order.
func AvailableSections() []SectionType {
	sections := make([]SectionType, 0, len(registry))
	for sectionType := range registry {
		sections = append(sections, sectionType)
	}
	sort.Slice(sections, func(i, j int) bool { return sections[i] < sections[j] })
	return sections
}
