// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package collectors implements the leaf collectors that sample OS state
// into the canonical report document.
package collectors

import (
	"context"
	"errors"

	"github.com/go-logr/logr"

	"github.com/SibbiesMom23/system-health-monitor/pkg/snapshot"
)

func init() {
	snapshot.Register(snapshot.SectionMetrics, func(logger logr.Logger, config snapshot.Config) (snapshot.Collector, error) {
		return NewMetricsCollector(logger, config)
	})
}

// Compile-time interface check
var _ snapshot.Collector = (*MetricsCollector)(nil)

// MetricsCollector samples CPU, memory, and disk usage.
//
// CPU percentages are measured over a single blocking window: one pair of
// cumulative time reads yields both the aggregate and per-core figures, so
// the collector blocks for exactly one sample interval.
//
// The collector cannot fail the overall run. Per-partition stat failures
// (permission denied, transient unmount) silently omit that mountpoint from
// the disk map, and a failed memory or count read degrades that sub-section
// to zero values with a logged warning. The only propagated error is context
// cancellation during the CPU window.
type MetricsCollector struct {
	snapshot.BaseCollector
}

func NewMetricsCollector(logger logr.Logger, config snapshot.Config) (*MetricsCollector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	capabilities := snapshot.CollectorCapabilities{
		RequiresElevated: false,
	}

	return &MetricsCollector{
		BaseCollector: snapshot.NewBaseCollector(
			snapshot.SectionMetrics,
			"OS Metrics Collector",
			logger,
			config,
			capabilities,
		),
	}, nil
}

// Collect performs a one-shot collection of CPU, memory, and disk metrics.
func (c *MetricsCollector) Collect(ctx context.Context) (any, error) {
	cpu, err := c.collectCPU(ctx)
	if err != nil {
		return nil, err
	}
	return &snapshot.MetricsSnapshot{
		CPU:    cpu,
		Memory: c.collectMemory(),
		Disk:   c.collectDisk(),
	}, nil
}

func (c *MetricsCollector) collectCPU(ctx context.Context) (snapshot.CPUMetrics, error) {
	probe := c.Config().Probe

	overall, perCore, err := probe.CPUPercent(ctx, c.Config().SampleInterval())
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return snapshot.CPUMetrics{}, err
		}
		c.Logger().V(1).Info("cpu sampling failed", "error", err.Error())
		overall, perCore = 0, nil
	}

	metrics := snapshot.CPUMetrics{
		Percent: overall,
		PerCore: perCore,
	}
	if metrics.PerCore == nil {
		metrics.PerCore = []float64{}
	}

	if logical, err := probe.CPUCounts(true); err == nil {
		metrics.CountLogical = logical
	} else {
		c.Logger().V(1).Info("logical cpu count unavailable", "error", err.Error())
	}
	if physical, err := probe.CPUCounts(false); err == nil {
		metrics.CountPhysical = physical
	} else {
		c.Logger().V(1).Info("physical cpu count unavailable", "error", err.Error())
	}
	return metrics, nil
}

func (c *MetricsCollector) collectMemory() snapshot.MemoryMetrics {
	probe := c.Config().Probe

	var metrics snapshot.MemoryMetrics
	if vm, err := probe.VirtualMemory(); err == nil {
		metrics.Total = vm.Total
		metrics.Available = vm.Available
		metrics.Used = vm.Used
		metrics.Percent = vm.UsedPercent
		metrics.TotalGB = snapshot.BytesToGB(vm.Total)
		metrics.AvailableGB = snapshot.BytesToGB(vm.Available)
		metrics.UsedGB = snapshot.BytesToGB(vm.Used)
	} else {
		c.Logger().V(1).Info("virtual memory read failed", "error", err.Error())
	}

	if swap, err := probe.SwapMemory(); err == nil {
		metrics.SwapTotal = swap.Total
		metrics.SwapUsed = swap.Used
		metrics.SwapPercent = swap.UsedPercent
	} else {
		c.Logger().V(1).Info("swap memory read failed", "error", err.Error())
	}
	return metrics
}

// collectDisk walks the partition table and stats each mountpoint. Failures
// skip the entry; the disk map only ever contains mountpoints that were
// readable during this run.
func (c *MetricsCollector) collectDisk() map[string]snapshot.DiskUsage {
	probe := c.Config().Probe

	usage := make(map[string]snapshot.DiskUsage)
	partitions, err := probe.Partitions()
	if err != nil {
		c.Logger().V(1).Info("partition enumeration failed", "error", err.Error())
		return usage
	}

	for _, partition := range partitions {
		stat, err := probe.Usage(partition.Mountpoint)
		if err != nil {
			c.Logger().V(2).Info("skipping unreadable mountpoint",
				"mountpoint", partition.Mountpoint, "error", err.Error())
			continue
		}
		usage[partition.Mountpoint] = snapshot.DiskUsage{
			Device:  partition.Device,
			Fstype:  partition.Fstype,
			Total:   stat.Total,
			Used:    stat.Used,
			Free:    stat.Free,
			Percent: stat.UsedPercent,
			TotalGB: snapshot.BytesToGB(stat.Total),
			UsedGB:  snapshot.BytesToGB(stat.Used),
			FreeGB:  snapshot.BytesToGB(stat.Free),
		}
	}
	return usage
}
