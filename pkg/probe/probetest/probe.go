// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package probetest provides fixture-backed probe implementations for unit
// tests. Every field is a canned return value; zero values produce an empty
// but healthy system.
package probetest

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/SibbiesMom23/system-health-monitor/pkg/probe"
)

// Compile-time interface checks
var (
	_ probe.Probe   = (*Probe)(nil)
	_ probe.Process = (*Process)(nil)
)

// Probe is a canned probe.Probe.
type Probe struct {
	CPUOverall float64
	CPUPerCore []float64
	CPUErr     error

	LogicalCount  int
	PhysicalCount int
	CountErr      error

	Model    string
	ModelErr error

	VirtualMemoryStat *mem.VirtualMemoryStat
	VirtualMemoryErr  error
	SwapMemoryStat    *mem.SwapMemoryStat
	SwapMemoryErr     error

	PartitionList []disk.PartitionStat
	PartitionsErr error
	UsageByPath   map[string]*disk.UsageStat
	UsageErrs     map[string]error

	Procs        []probe.Process
	ProcessesErr error

	Conns          []net.ConnectionStat
	ConnectionsErr error
	Ifaces         net.InterfaceStatList
	IfacesErr      error
	Speeds         map[string]int64
	SpeedsErr      error
	IOCounters     []net.IOCountersStat
	IOCountersErr  error

	HostInfoStat *host.InfoStat
	HostInfoErr  error
}

func (p *Probe) CPUPercent(ctx context.Context, interval time.Duration) (float64, []float64, error) {
	if p.CPUErr != nil {
		return 0, nil, p.CPUErr
	}
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	return p.CPUOverall, p.CPUPerCore, nil
}

func (p *Probe) CPUCounts(logical bool) (int, error) {
	if p.CountErr != nil {
		return 0, p.CountErr
	}
	if logical {
		return p.LogicalCount, nil
	}
	return p.PhysicalCount, nil
}

func (p *Probe) CPUModel() (string, error) {
	return p.Model, p.ModelErr
}

func (p *Probe) VirtualMemory() (*mem.VirtualMemoryStat, error) {
	if p.VirtualMemoryErr != nil {
		return nil, p.VirtualMemoryErr
	}
	if p.VirtualMemoryStat == nil {
		return &mem.VirtualMemoryStat{}, nil
	}
	return p.VirtualMemoryStat, nil
}

func (p *Probe) SwapMemory() (*mem.SwapMemoryStat, error) {
	if p.SwapMemoryErr != nil {
		return nil, p.SwapMemoryErr
	}
	if p.SwapMemoryStat == nil {
		return &mem.SwapMemoryStat{}, nil
	}
	return p.SwapMemoryStat, nil
}

func (p *Probe) Partitions() ([]disk.PartitionStat, error) {
	return p.PartitionList, p.PartitionsErr
}

func (p *Probe) Usage(path string) (*disk.UsageStat, error) {
	if err, ok := p.UsageErrs[path]; ok {
		return nil, err
	}
	if usage, ok := p.UsageByPath[path]; ok {
		return usage, nil
	}
	return &disk.UsageStat{Path: path}, nil
}

func (p *Probe) Processes() ([]probe.Process, error) {
	return p.Procs, p.ProcessesErr
}

func (p *Probe) Connections(kind string) ([]net.ConnectionStat, error) {
	return p.Conns, p.ConnectionsErr
}

func (p *Probe) Interfaces() (net.InterfaceStatList, error) {
	return p.Ifaces, p.IfacesErr
}

func (p *Probe) InterfaceSpeeds() (map[string]int64, error) {
	return p.Speeds, p.SpeedsErr
}

func (p *Probe) NetIOCounters() ([]net.IOCountersStat, error) {
	return p.IOCounters, p.IOCountersErr
}

func (p *Probe) HostInfo() (*host.InfoStat, error) {
	if p.HostInfoErr != nil {
		return nil, p.HostInfoErr
	}
	if p.HostInfoStat == nil {
		return &host.InfoStat{}, nil
	}
	return p.HostInfoStat, nil
}

// Process is a canned probe.Process handle.
type Process struct {
	Pid int32

	ProcName string
	NameErr  error

	User    string
	UserErr error

	Statuses  []string
	StatusErr error

	CPU    float64
	CPUErr error

	MemPct    float32
	MemPctErr error

	Mem    *process.MemoryInfoStat
	MemErr error

	Threads    int32
	ThreadsErr error

	Created    int64
	CreatedErr error
}

func (p *Process) PID() int32 { return p.Pid }

func (p *Process) Name() (string, error) { return p.ProcName, p.NameErr }

func (p *Process) Username() (string, error) { return p.User, p.UserErr }

func (p *Process) Status() ([]string, error) { return p.Statuses, p.StatusErr }

func (p *Process) CPUPercent() (float64, error) { return p.CPU, p.CPUErr }

func (p *Process) MemoryPercent() (float32, error) { return p.MemPct, p.MemPctErr }

func (p *Process) MemoryInfo() (*process.MemoryInfoStat, error) {
	if p.MemErr != nil {
		return nil, p.MemErr
	}
	if p.Mem == nil {
		return &process.MemoryInfoStat{}, nil
	}
	return p.Mem, nil
}

func (p *Process) NumThreads() (int32, error) { return p.Threads, p.ThreadsErr }

func (p *Process) CreateTime() (int64, error) { return p.Created, p.CreatedErr }
