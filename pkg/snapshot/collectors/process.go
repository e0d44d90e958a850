// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package collectors

import (
	"context"
	"sort"

	"github.com/go-logr/logr"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/SibbiesMom23/system-health-monitor/pkg/probe"
	"github.com/SibbiesMom23/system-health-monitor/pkg/snapshot"
)

func init() {
	snapshot.Register(snapshot.SectionProcess, func(logger logr.Logger, config snapshot.Config) (snapshot.Collector, error) {
		return NewProcessCollector(logger, config)
	})
}

// Compile-time interface check
var _ snapshot.Collector = (*ProcessCollector)(nil)

// ProcessCollector enumerates the process table twice: a status-only pass
// for the summary counts and a richer per-process pass for the two rankings.
//
// Process tables are inherently racy. A process that disappears or becomes
// inaccessible between enumeration and read (terminated, permission revoked,
// zombie) is excluded from that pass without aborting enumeration of the
// remainder; the summary therefore counts exactly the processes whose status
// was readable during this run.
type ProcessCollector struct {
	snapshot.BaseCollector
}

func NewProcessCollector(logger logr.Logger, config snapshot.Config) (*ProcessCollector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	capabilities := snapshot.CollectorCapabilities{
		RequiresElevated: false,
	}

	return &ProcessCollector{
		BaseCollector: snapshot.NewBaseCollector(
			snapshot.SectionProcess,
			"Process Collector",
			logger,
			config,
			capabilities,
		),
	}, nil
}

// Collect performs a one-shot collection of the process report.
func (c *ProcessCollector) Collect(ctx context.Context) (any, error) {
	return &snapshot.ProcessReport{
		Summary:     c.collectSummary(),
		TopByMemory: c.ranking(byMemory),
		TopByCPU:    c.ranking(byCPU),
	}, nil
}

func (c *ProcessCollector) collectSummary() snapshot.ProcessSummary {
	procs, err := c.Config().Probe.Processes()
	if err != nil {
		c.Logger().V(1).Info("process enumeration failed", "error", err.Error())
		return snapshot.ProcessSummary{}
	}

	var summary snapshot.ProcessSummary
	for _, proc := range procs {
		raw, err := proc.Status()
		if err != nil {
			continue
		}
		switch normalizeStatus(raw) {
		case "running":
			summary.Running++
		case "sleeping":
			summary.Sleeping++
		case "stopped":
			summary.Stopped++
		case "zombie":
			summary.Zombie++
		default:
			summary.Other++
		}
		summary.Total++
	}
	return summary
}

type sortKey int

const (
	byMemory sortKey = iota
	byCPU
)

// ranking enumerates the table with the full field set, then applies a
// stable descending sort and the configured truncation. Ties keep their
// original enumeration order.
func (c *ProcessCollector) ranking(key sortKey) []snapshot.ProcessRecord {
	records := c.enumerate()

	switch key {
	case byMemory:
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].MemoryPercent > records[j].MemoryPercent
		})
	case byCPU:
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].CPUPercent > records[j].CPUPercent
		})
	}

	if topN := c.Config().TopProcesses; topN >= 0 && len(records) > topN {
		records = records[:topN]
	}
	return records
}

func (c *ProcessCollector) enumerate() []snapshot.ProcessRecord {
	procs, err := c.Config().Probe.Processes()
	if err != nil {
		c.Logger().V(1).Info("process enumeration failed", "error", err.Error())
		return []snapshot.ProcessRecord{}
	}

	records := make([]snapshot.ProcessRecord, 0, len(procs))
	for _, proc := range procs {
		if record, ok := c.read(proc); ok {
			records = append(records, record)
		}
	}
	return records
}

// read builds one record from a process handle. Name and status failures
// mean the process vanished mid-read and drop the record; the remaining
// detail reads degrade to zero values or the "N/A" sentinel so that an
// unreadable username never loses an otherwise live process.
func (c *ProcessCollector) read(proc probe.Process) (snapshot.ProcessRecord, bool) {
	name, err := proc.Name()
	if err != nil {
		return snapshot.ProcessRecord{}, false
	}
	rawStatus, err := proc.Status()
	if err != nil {
		return snapshot.ProcessRecord{}, false
	}

	record := snapshot.ProcessRecord{
		PID:      proc.PID(),
		Name:     name,
		Status:   normalizeStatus(rawStatus),
		Username: snapshot.SentinelNA,
	}

	if username, err := proc.Username(); err == nil && username != "" {
		record.Username = username
	}
	if cpuPct, err := proc.CPUPercent(); err == nil {
		record.CPUPercent = cpuPct
	}
	if memPct, err := proc.MemoryPercent(); err == nil {
		record.MemoryPercent = snapshot.Round2(float64(memPct))
	}
	if memInfo, err := proc.MemoryInfo(); err == nil && memInfo != nil {
		record.MemoryMB = snapshot.BytesToMB(memInfo.RSS)
	}
	if threads, err := proc.NumThreads(); err == nil {
		record.NumThreads = threads
	}
	if created, err := proc.CreateTime(); err == nil {
		// milliseconds since epoch to seconds
		record.CreateTime = float64(created) / 1000
	}
	return record, true
}

// normalizeStatus maps a raw status to the canonical bucket names. Statuses
// outside the four tracked buckets keep their raw form and count as "other".
func normalizeStatus(raw []string) string {
	if len(raw) == 0 {
		return "other"
	}
	switch raw[0] {
	case process.Running:
		return "running"
	case process.Sleep, "sleeping":
		return "sleeping"
	case process.Stop, "stopped":
		return "stopped"
	case process.Zombie:
		return "zombie"
	default:
		return raw[0]
	}
}
