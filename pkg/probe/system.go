// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// Compile-time interface check
var _ Probe = (*SystemProbe)(nil)

// SystemProbe is the production Probe backed by gopsutil.
type SystemProbe struct{}

func NewSystemProbe() *SystemProbe {
	return &SystemProbe{}
}

// CPUPercent measures aggregate and per-core utilization from one pair of
// cumulative cpu time reads taken interval apart. Instantaneous sampling
// without a window yields meaningless 0% or 100% readings on most OS
// interfaces, so the window is mandatory; cancelling ctx aborts the wait.
func (p *SystemProbe) CPUPercent(ctx context.Context, interval time.Duration) (float64, []float64, error) {
	if interval <= 0 {
		interval = time.Second
	}

	startAll, err := cpu.Times(false)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read cpu times: %w", err)
	}
	startPer, err := cpu.Times(true)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read per-cpu times: %w", err)
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	case <-timer.C:
	}

	endAll, err := cpu.Times(false)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read cpu times: %w", err)
	}
	endPer, err := cpu.Times(true)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read per-cpu times: %w", err)
	}

	var overall float64
	if len(startAll) > 0 && len(endAll) > 0 {
		overall = busyPercent(startAll[0], endAll[0])
	}

	perCore := make([]float64, 0, len(endPer))
	for i := range endPer {
		if i >= len(startPer) {
			break
		}
		perCore = append(perCore, busyPercent(startPer[i], endPer[i]))
	}
	return overall, perCore, nil
}

// busyPercent computes the non-idle share of the time delta between two
// cumulative readings of the same CPU.
func busyPercent(prev, cur cpu.TimesStat) float64 {
	dt := cur.Total() - prev.Total()
	if dt <= 0 {
		return 0
	}
	di := (cur.Idle + cur.Iowait) - (prev.Idle + prev.Iowait)
	pct := 100 * (1 - di/dt)
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

func (p *SystemProbe) CPUCounts(logical bool) (int, error) {
	return cpu.Counts(logical)
}

func (p *SystemProbe) CPUModel() (string, error) {
	info, err := cpu.Info()
	if err != nil {
		return "", fmt.Errorf("failed to read cpu info: %w", err)
	}
	if len(info) == 0 {
		return "", fmt.Errorf("no cpu info available")
	}
	return info[0].ModelName, nil
}

func (p *SystemProbe) VirtualMemory() (*mem.VirtualMemoryStat, error) {
	return mem.VirtualMemory()
}

func (p *SystemProbe) SwapMemory() (*mem.SwapMemoryStat, error) {
	return mem.SwapMemory()
}

func (p *SystemProbe) Partitions() ([]disk.PartitionStat, error) {
	return disk.Partitions(false)
}

func (p *SystemProbe) Usage(path string) (*disk.UsageStat, error) {
	return disk.Usage(path)
}

func (p *SystemProbe) Processes() ([]Process, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}
	handles := make([]Process, 0, len(procs))
	for _, proc := range procs {
		handles = append(handles, sysProcess{proc})
	}
	return handles, nil
}

func (p *SystemProbe) Connections(kind string) ([]net.ConnectionStat, error) {
	return net.Connections(kind)
}

func (p *SystemProbe) Interfaces() (net.InterfaceStatList, error) {
	return net.Interfaces()
}

func (p *SystemProbe) InterfaceSpeeds() (map[string]int64, error) {
	return interfaceSpeeds()
}

func (p *SystemProbe) NetIOCounters() ([]net.IOCountersStat, error) {
	return net.IOCounters(true)
}

func (p *SystemProbe) HostInfo() (*host.InfoStat, error) {
	return host.Info()
}

// sysProcess adapts *process.Process to the Process handle interface.
type sysProcess struct {
	p *process.Process
}

func (s sysProcess) PID() int32 { return s.p.Pid }

func (s sysProcess) Name() (string, error) { return s.p.Name() }

func (s sysProcess) Username() (string, error) { return s.p.Username() }

func (s sysProcess) Status() ([]string, error) { return s.p.Status() }

func (s sysProcess) CPUPercent() (float64, error) { return s.p.CPUPercent() }

func (s sysProcess) MemoryPercent() (float32, error) { return s.p.MemoryPercent() }

func (s sysProcess) MemoryInfo() (*process.MemoryInfoStat, error) { return s.p.MemoryInfo() }

func (s sysProcess) NumThreads() (int32, error) { return s.p.NumThreads() }

func (s sysProcess) CreateTime() (int64, error) { return s.p.CreateTime() }
