// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package snapshot

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// SentinelNA marks an absent or unresolvable field, distinct from a zero or
// empty value.
const SentinelNA = "N/A"

// Report is the root document of one snapshot run. It is built once per
// invocation, never mutated after hand-off to the serializer, and discarded
// after the report file is written.
type Report struct {
	ReportID   string           `json:"report_id"`
	Timestamp  string           `json:"timestamp"`
	SystemInfo SystemInfo       `json:"system_info"`
	Metrics    *MetricsSnapshot `json:"metrics"`
	Processes  *ProcessReport   `json:"processes"`
	Network    *NetworkReport   `json:"network"`
	Run        CollectorRunInfo `json:"collector_run"`
}

// SystemInfo is static host identity, read once per run.
type SystemInfo struct {
	Hostname        string `json:"hostname"`
	Platform        string `json:"platform"`
	PlatformRelease string `json:"platform_release"`
	PlatformVersion string `json:"platform_version"`
	Architecture    string `json:"architecture"`
	Processor       string `json:"processor"`
	OSVersion       string `json:"os_version"`
}

// CollectorRunInfo contains metadata about a collector run.
type CollectorRunInfo struct {
	DurationSeconds float64                     `json:"duration_seconds"`
	Sections        map[SectionType]SectionStat `json:"sections"`
}

// SectionStat tracks one collector's outcome within a run.
type SectionStat struct {
	Status          SectionStatus `json:"status"`
	DurationSeconds float64       `json:"duration_seconds"`
}

// MetricsSnapshot holds CPU, memory, and disk usage for one point in time.
type MetricsSnapshot struct {
	CPU    CPUMetrics           `json:"cpu"`
	Memory MemoryMetrics        `json:"memory"`
	Disk   map[string]DiskUsage `json:"disk"`
}

type CPUMetrics struct {
	Percent       float64   `json:"cpu_percent"`
	CountLogical  int       `json:"cpu_count_logical"`
	CountPhysical int       `json:"cpu_count_physical"`
	PerCore       []float64 `json:"cpu_per_core"`
}

// MemoryMetrics keeps raw byte counts for machine consumers alongside the
// rounded GB derivations used for display.
type MemoryMetrics struct {
	Total       uint64  `json:"total"`
	Available   uint64  `json:"available"`
	Used        uint64  `json:"used"`
	Percent     float64 `json:"percent"`
	TotalGB     float64 `json:"total_gb"`
	AvailableGB float64 `json:"available_gb"`
	UsedGB      float64 `json:"used_gb"`
	SwapTotal   uint64  `json:"swap_total"`
	SwapUsed    uint64  `json:"swap_used"`
	SwapPercent float64 `json:"swap_percent"`
}

// DiskUsage describes one mountpoint the process could stat.
type DiskUsage struct {
	Device  string  `json:"device"`
	Fstype  string  `json:"fstype"`
	Total   uint64  `json:"total"`
	Used    uint64  `json:"used"`
	Free    uint64  `json:"free"`
	Percent float64 `json:"percent"`
	TotalGB float64 `json:"total_gb"`
	UsedGB  float64 `json:"used_gb"`
	FreeGB  float64 `json:"free_gb"`
}

// ProcessReport combines the status summary with two independent rankings.
type ProcessReport struct {
	Summary     ProcessSummary  `json:"summary"`
	TopByMemory []ProcessRecord `json:"top_processes_by_memory"`
	TopByCPU    []ProcessRecord `json:"top_processes_by_cpu"`
}

// ProcessSummary counts every enumerated process in exactly one bucket.
type ProcessSummary struct {
	Total    int `json:"total_processes"`
	Running  int `json:"running"`
	Sleeping int `json:"sleeping"`
	Stopped  int `json:"stopped"`
	Zombie   int `json:"zombie"`
	Other    int `json:"other"`
}

// ProcessRecord is one surviving entry of the ranking pass.
type ProcessRecord struct {
	PID           int32   `json:"pid"`
	Name          string  `json:"name"`
	Username      string  `json:"username"`
	Status        string  `json:"status"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryMB      float64 `json:"memory_mb"`
	NumThreads    int32   `json:"num_threads"`
	CreateTime    float64 `json:"create_time"`
}

// NetworkReport carries the connection summary and interface inventory.
// AllConnections is present only when the caller opted in.
type NetworkReport struct {
	Summary        NetworkSummary           `json:"summary"`
	Interfaces     map[string]InterfaceInfo `json:"interfaces"`
	AllConnections []ConnectionRecord       `json:"all_connections,omitempty"`
}

type NetworkSummary struct {
	TotalConnections int             `json:"total_connections"`
	ByStatus         map[string]int  `json:"by_status"`
	ByProtocol       map[string]int  `json:"by_protocol"`
	ListeningPorts   []ListeningPort `json:"listening_ports"`
}

type ListeningPort struct {
	Port    uint32   `json:"port"`
	Address string   `json:"address"`
	PID     PIDValue `json:"pid"`
}

type ConnectionRecord struct {
	FD            uint32    `json:"fd"`
	Family        string    `json:"family"`
	Type          string    `json:"type"`
	LocalAddress  string    `json:"local_address"`
	LocalPort     PortValue `json:"local_port"`
	RemoteAddress string    `json:"remote_address"`
	RemotePort    PortValue `json:"remote_port"`
	Status        string    `json:"status"`
	PID           PIDValue  `json:"pid"`
}

type InterfaceInfo struct {
	Addresses []InterfaceAddress `json:"addresses"`
	IsUp      bool               `json:"is_up"`
	Speed     int64              `json:"speed"`
	MTU       int                `json:"mtu"`
	IOStats   *InterfaceIOStats  `json:"io_stats,omitempty"`
}

type InterfaceAddress struct {
	Family    string `json:"family"`
	Address   string `json:"address"`
	Netmask   string `json:"netmask,omitempty"`
	Broadcast string `json:"broadcast,omitempty"`
}

type InterfaceIOStats struct {
	BytesSent   uint64 `json:"bytes_sent"`
	BytesRecv   uint64 `json:"bytes_recv"`
	PacketsSent uint64 `json:"packets_sent"`
	PacketsRecv uint64 `json:"packets_recv"`
	Errin       uint64 `json:"errin"`
	Errout      uint64 `json:"errout"`
	Dropin      uint64 `json:"dropin"`
	Dropout     uint64 `json:"dropout"`
}

// PortValue is a socket port that may be unbound. It marshals as the numeric
// port when set and as the "N/A" sentinel otherwise.
type PortValue struct {
	Port  uint32
	Valid bool
}

func NewPortValue(port uint32) PortValue {
	return PortValue{Port: port, Valid: true}
}

func (p PortValue) String() string {
	if !p.Valid {
		return SentinelNA
	}
	return strconv.FormatUint(uint64(p.Port), 10)
}

func (p PortValue) MarshalJSON() ([]byte, error) {
	if !p.Valid {
		return json.Marshal(SentinelNA)
	}
	return json.Marshal(p.Port)
}

func (p *PortValue) UnmarshalJSON(data []byte) error {
	if string(data) == `"`+SentinelNA+`"` {
		*p = PortValue{}
		return nil
	}
	var port uint32
	if err := json.Unmarshal(data, &port); err != nil {
		return fmt.Errorf("invalid port value %s: %w", data, err)
	}
	*p = PortValue{Port: port, Valid: true}
	return nil
}

// PIDValue is a process ID that may be unknown, for example a socket the
// kernel does not attribute to the caller. Same sentinel rendering as
// PortValue.
type PIDValue struct {
	PID   int32
	Valid bool
}

func NewPIDValue(pid int32) PIDValue {
	return PIDValue{PID: pid, Valid: pid != 0}
}

func (p PIDValue) String() string {
	if !p.Valid {
		return SentinelNA
	}
	return strconv.FormatInt(int64(p.PID), 10)
}

func (p PIDValue) MarshalJSON() ([]byte, error) {
	if !p.Valid {
		return json.Marshal(SentinelNA)
	}
	return json.Marshal(p.PID)
}

func (p *PIDValue) UnmarshalJSON(data []byte) error {
	if string(data) == `"`+SentinelNA+`"` {
		*p = PIDValue{}
		return nil
	}
	var pid int32
	if err := json.Unmarshal(data, &pid); err != nil {
		return fmt.Errorf("invalid pid value %s: %w", data, err)
	}
	*p = PIDValue{PID: pid, Valid: true}
	return nil
}

// Round2 rounds to 2 decimal places for display-scaled fields.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// BytesToGB converts a raw byte count to GB rounded to 2 decimal places.
func BytesToGB(n uint64) float64 {
	return Round2(float64(n) / (1 << 30))
}

// BytesToMB converts a raw byte count to MB rounded to 2 decimal places.
func BytesToMB(n uint64) float64 {
	return Round2(float64(n) / (1 << 20))
}

// Timestamp renders report generation time in ISO 8601.
func Timestamp(t time.Time) string {
	return t.Format(time.RFC3339)
}
