// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package pipeline sequences the collectors, assembles the report document,
// and writes the rendered result to a timestamped file.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/SibbiesMom23/system-health-monitor/internal/config"
	"github.com/SibbiesMom23/system-health-monitor/internal/report"
	"github.com/SibbiesMom23/system-health-monitor/pkg/probe"
	"github.com/SibbiesMom23/system-health-monitor/pkg/snapshot"

	// Register the leaf collectors.
	_ "github.com/SibbiesMom23/system-health-monitor/pkg/snapshot/collectors"
)

// sectionOrder is the fixed collection and assembly order.
var sectionOrder = []snapshot.SectionType{
	snapshot.SectionMetrics,
	snapshot.SectionProcess,
	snapshot.SectionNetwork,
}

// Pipeline is the one-shot orchestrator. It has no recovery logic of its
// own: per-item failures are handled inside the collectors, and anything
// that reaches Run's error return (output directory creation, the final
// write, cancellation) propagates unmodified.
type Pipeline struct {
	logger     logr.Logger
	cfg        config.Config
	format     report.Format
	probe      probe.Probe
	collectors []snapshot.Collector
}

func New(logger logr.Logger, cfg config.Config, pr probe.Probe) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	format, err := report.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}

	collectorConfig := snapshot.Config{
		Probe:                 pr,
		TopProcesses:          cfg.TopProcesses,
		IncludeAllConnections: cfg.AllConnections,
		CPUSampleInterval:     cfg.CPUSampleInterval,
	}

	collectors := make([]snapshot.Collector, 0, len(sectionOrder))
	for _, sectionType := range sectionOrder {
		factory, err := snapshot.GetCollector(sectionType)
		if err != nil {
			return nil, err
		}
		collector, err := factory(logger, collectorConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s collector: %w", sectionType, err)
		}
		collectors = append(collectors, collector)
	}

	return &Pipeline{
		logger:     logger.WithName("pipeline"),
		cfg:        cfg,
		format:     format,
		probe:      pr,
		collectors: collectors,
	}, nil
}

// Run collects one snapshot, renders it, and writes the report file.
// It returns the path of the written file. An interrupt mid-collection
// aborts the whole run without producing a partial report.
func (p *Pipeline) Run(ctx context.Context) (string, error) {
	start := time.Now()

	sections, stats, err := p.collect(ctx)
	if err != nil {
		return "", err
	}

	now := time.Now()
	doc := p.assemble(now, sections)
	doc.Run = snapshot.CollectorRunInfo{
		DurationSeconds: now.Sub(start).Seconds(),
		Sections:        stats,
	}

	p.logger.Info("writing report", "format", p.format, "dir", p.cfg.OutputDir)
	content, err := report.Render(doc, p.format)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(p.cfg.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(p.cfg.OutputDir, report.Filename(p.format, now))
	if err := writeAtomic(path, []byte(content)); err != nil {
		return "", err
	}

	p.logger.Info("report written", "path", path)
	return path, nil
}

func (p *Pipeline) collect(ctx context.Context) (map[snapshot.SectionType]any, map[snapshot.SectionType]snapshot.SectionStat, error) {
	sections := make(map[snapshot.SectionType]any, len(p.collectors))
	stats := make(map[snapshot.SectionType]snapshot.SectionStat, len(p.collectors))

	if !p.cfg.Parallel {
		for _, collector := range p.collectors {
			out, stat, err := p.runCollector(ctx, collector)
			if err != nil {
				return nil, nil, err
			}
			sections[collector.Type()] = out
			stats[collector.Type()] = stat
		}
		return sections, stats, nil
	}

	// The collectors are mutually independent, so they may run
	// concurrently; each one's partial-failure handling stays local to
	// itself and the assembly order is unchanged.
	g, gctx := errgroup.WithContext(ctx)
	results := make([]any, len(p.collectors))
	timings := make([]snapshot.SectionStat, len(p.collectors))
	for i, collector := range p.collectors {
		i, collector := i, collector
		g.Go(func() error {
			out, stat, err := p.runCollector(gctx, collector)
			if err != nil {
				return err
			}
			results[i] = out
			timings[i] = stat
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	for i, collector := range p.collectors {
		sections[collector.Type()] = results[i]
		stats[collector.Type()] = timings[i]
	}
	return sections, stats, nil
}

func (p *Pipeline) runCollector(ctx context.Context, collector snapshot.Collector) (any, snapshot.SectionStat, error) {
	p.logger.Info("collecting", "section", collector.Type(), "collector", collector.Name())
	start := time.Now()
	out, err := collector.Collect(ctx)
	stat := snapshot.SectionStat{
		Status:          snapshot.SectionStatusOK,
		DurationSeconds: time.Since(start).Seconds(),
	}
	if err != nil {
		stat.Status = snapshot.SectionStatusFailed
		return nil, stat, fmt.Errorf("%s collection aborted: %w", collector.Type(), err)
	}
	return out, stat, nil
}

func (p *Pipeline) assemble(now time.Time, sections map[snapshot.SectionType]any) *snapshot.Report {
	doc := &snapshot.Report{
		ReportID:   uuid.NewString(),
		Timestamp:  snapshot.Timestamp(now),
		SystemInfo: p.systemInfo(),
	}
	if metrics, ok := sections[snapshot.SectionMetrics].(*snapshot.MetricsSnapshot); ok {
		doc.Metrics = metrics
	}
	if processes, ok := sections[snapshot.SectionProcess].(*snapshot.ProcessReport); ok {
		doc.Processes = processes
	}
	if network, ok := sections[snapshot.SectionNetwork].(*snapshot.NetworkReport); ok {
		doc.Network = network
	}
	return doc
}

// systemInfo reads static host identity once per run. Identity is
// best-effort: a failed host query falls back to what the runtime knows.
func (p *Pipeline) systemInfo() snapshot.SystemInfo {
	info := snapshot.SystemInfo{
		Platform:     platformName(runtime.GOOS),
		Architecture: runtime.GOARCH,
	}
	if hostname, err := os.Hostname(); err == nil {
		info.Hostname = hostname
	}

	hostInfo, err := p.probe.HostInfo()
	if err != nil {
		p.logger.V(1).Info("host identity unavailable", "error", err.Error())
	} else {
		if hostInfo.Hostname != "" {
			info.Hostname = hostInfo.Hostname
		}
		info.Platform = platformName(hostInfo.OS)
		info.PlatformRelease = hostInfo.KernelVersion
		info.PlatformVersion = hostInfo.PlatformVersion
		if hostInfo.KernelArch != "" {
			info.Architecture = hostInfo.KernelArch
		}
	}

	if model, err := p.probe.CPUModel(); err == nil && model != "" {
		info.Processor = model
	} else {
		info.Processor = info.Architecture
	}

	info.OSVersion = info.Platform
	if info.PlatformRelease != "" {
		info.OSVersion += " " + info.PlatformRelease
	}
	return info
}

func platformName(os string) string {
	switch os {
	case "linux":
		return "Linux"
	case "darwin":
		return "Darwin"
	case "windows":
		return "Windows"
	case "freebsd":
		return "FreeBSD"
	default:
		return os
	}
}

// writeAtomic writes the report as a single complete file: content goes to a
// temp file in the target directory first and is renamed into place, so a
// failed run never leaves a partial report behind.
func writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".health_monitor_*")
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set report permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to place report file: %w", err)
	}
	return nil
}
