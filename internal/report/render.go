// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

// Package report renders the snapshot document as JSON or as the fixed
// human-readable text layout, and generates report filenames.
package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/SibbiesMom23/system-health-monitor/pkg/snapshot"
)

// Format selects the report serialization.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatText:
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown report format %q (expected json or text)", s)
	}
}

// Extension returns the file extension for reports in this format.
func (f Format) Extension() string {
	if f == FormatJSON {
		return "json"
	}
	return "log"
}

// Filename generates the timestamped report filename. Two reports generated
// within the same second share a name; the collision is accepted, not worked
// around.
func Filename(f Format, now time.Time) string {
	return fmt.Sprintf("health_monitor_%s.%s", now.Format("20060102_150405"), f.Extension())
}

// Render serializes the report in the requested format.
func Render(r *snapshot.Report, f Format) (string, error) {
	switch f {
	case FormatJSON:
		return renderJSON(r)
	case FormatText:
		return renderText(r), nil
	default:
		return "", fmt.Errorf("unknown report format %q", f)
	}
}

func renderJSON(r *snapshot.Report) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	return string(data), nil
}

const (
	bannerWidth = 80
	// Display-only caps, independent of the collection-time truncation.
	textTopProcesses   = 10
	textListeningPorts = 20
)

// renderText produces the fixed plain-text layout: header, CPU, memory, disk
// per mountpoint, process summary, top processes by memory, network summary,
// footer.
func renderText(r *snapshot.Report) string {
	var b strings.Builder
	heavy := strings.Repeat("=", bannerWidth)
	light := strings.Repeat("-", bannerWidth)

	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format+"\n", args...)
	}
	section := func(title string) {
		line(light)
		line(title)
		line(light)
	}

	line(heavy)
	line("SYSTEM HEALTH & INTEGRITY MONITOR REPORT")
	line(heavy)
	line("Timestamp: %s", r.Timestamp)
	line("Hostname: %s", r.SystemInfo.Hostname)
	line("Platform: %s", r.SystemInfo.Platform)
	line("OS: %s", r.SystemInfo.OSVersion)
	line("")

	// A section missing from the document is skipped entirely.
	if r.Metrics != nil {
		section("CPU METRICS")
		line("Overall Usage: %s%%", formatFloat(r.Metrics.CPU.Percent))
		line("Logical CPUs: %d", r.Metrics.CPU.CountLogical)
		line("Physical CPUs: %d", r.Metrics.CPU.CountPhysical)
		line("Per-Core Usage: %v", r.Metrics.CPU.PerCore)
		line("")

		section("MEMORY METRICS")
		mem := r.Metrics.Memory
		line("Total: %s GB", formatFloat(mem.TotalGB))
		line("Available: %s GB", formatFloat(mem.AvailableGB))
		line("Used: %s GB (%s%%)", formatFloat(mem.UsedGB), formatFloat(mem.Percent))
		line("Swap Used: %s%%", formatFloat(mem.SwapPercent))
		line("")

		section("DISK METRICS")
		for _, mount := range sortedKeys(r.Metrics.Disk) {
			disk := r.Metrics.Disk[mount]
			line("")
			line("Mount: %s", mount)
			line("  Device: %s", disk.Device)
			line("  Type: %s", disk.Fstype)
			line("  Total: %s GB", formatFloat(disk.TotalGB))
			line("  Used: %s GB (%s%%)", formatFloat(disk.UsedGB), formatFloat(disk.Percent))
			line("  Free: %s GB", formatFloat(disk.FreeGB))
		}
		line("")
	}

	if r.Processes != nil {
		section("PROCESS SUMMARY")
		summary := r.Processes.Summary
		line("Total Processes: %d", summary.Total)
		line("Running: %d", summary.Running)
		line("Sleeping: %d", summary.Sleeping)
		line("Stopped: %d", summary.Stopped)
		line("Zombie: %d", summary.Zombie)
		line("")

		section("TOP PROCESSES BY MEMORY")
		line("%-10s %-30s %-15s %-12s %-12s", "PID", "Name", "User", "Memory %", "Memory MB")
		line(light)
		for i, proc := range r.Processes.TopByMemory {
			if i >= textTopProcesses {
				break
			}
			line("%-10d %-30s %-15s %-12.2f %-12.2f",
				proc.PID, truncate(proc.Name, 28), truncate(proc.Username, 13),
				proc.MemoryPercent, proc.MemoryMB)
		}
		line("")
	}

	if r.Network != nil {
		section("NETWORK SUMMARY")
		net := r.Network.Summary
		line("Total Connections: %d", net.TotalConnections)
		line("Connections by Status: %s", formatCounts(net.ByStatus))
		line("Connections by Protocol: %s", formatCounts(net.ByProtocol))
		line("")
		line("Listening Ports (%d):", len(net.ListeningPorts))
		for i, port := range net.ListeningPorts {
			if i >= textListeningPorts {
				break
			}
			line("  Port %d: %s (PID: %s)", port.Port, port.Address, port.PID)
		}
		line("")
	}

	line(heavy)
	line("END OF REPORT")
	line(heavy)
	return b.String()
}

// formatFloat renders a display percentage or GB value without trailing
// zeros.
func formatFloat(v float64) string {
	return strconv.FormatFloat(snapshot.Round2(v), 'f', -1, 64)
}

// formatCounts renders a counter map with deterministic key order.
func formatCounts(counts map[string]int) string {
	keys := sortedKeys(counts)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s: %d", key, counts[key]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
