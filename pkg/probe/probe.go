// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package probe abstracts the OS introspection surface behind a single
// capability interface with one method per metric family. Collectors depend
// only on Probe, which keeps the aggregation and formatting logic independent
// of any specific OS binding and makes it fully unit-testable with canned
// fixtures (see the probetest subpackage).
package probe

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// Probe samples raw OS state. Every method is a point-in-time read; none of
// them retry. CPUPercent is the only blocking call: it measures utilization
// over a fixed window and honors ctx cancellation mid-window.
type Probe interface {
	// CPUPercent samples CPU utilization over a single blocking window of
	// the given interval and returns both the aggregate percentage and the
	// per-core percentages from the same pair of reads.
	CPUPercent(ctx context.Context, interval time.Duration) (overall float64, perCore []float64, err error)
	CPUCounts(logical bool) (int, error)
	CPUModel() (string, error)

	VirtualMemory() (*mem.VirtualMemoryStat, error)
	SwapMemory() (*mem.SwapMemoryStat, error)

	Partitions() ([]disk.PartitionStat, error)
	Usage(path string) (*disk.UsageStat, error)

	Processes() ([]Process, error)

	Connections(kind string) ([]net.ConnectionStat, error)
	Interfaces() (net.InterfaceStatList, error)
	// InterfaceSpeeds reports link speed in Mbit/s keyed by interface name.
	// Interfaces whose speed the OS does not expose are absent from the map.
	InterfaceSpeeds() (map[string]int64, error)
	NetIOCounters() ([]net.IOCountersStat, error)

	HostInfo() (*host.InfoStat, error)
}

// Process is a handle to a single entry of the process table. The table is
// inherently racy: any getter may fail because the process exited or became
// inaccessible between enumeration and read. Callers are expected to skip
// such processes rather than fail.
type Process interface {
	PID() int32
	Name() (string, error)
	Username() (string, error)
	Status() ([]string, error)
	CPUPercent() (float64, error)
	MemoryPercent() (float32, error)
	MemoryInfo() (*process.MemoryInfoStat, error)
	NumThreads() (int32, error)
	CreateTime() (int64, error)
}
