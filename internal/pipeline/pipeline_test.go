// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-logr/logr"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SibbiesMom23/system-health-monitor/internal/config"
	"github.com/SibbiesMom23/system-health-monitor/pkg/probe"
	"github.com/SibbiesMom23/system-health-monitor/pkg/probe/probetest"
	"github.com/SibbiesMom23/system-health-monitor/pkg/snapshot"
)

func testProbe() *probetest.Probe {
	return &probetest.Probe{
		CPUOverall:    25.0,
		CPUPerCore:    []float64{20.0, 30.0},
		LogicalCount:  2,
		PhysicalCount: 1,
		Model:         "Test CPU @ 2.40GHz",
		VirtualMemoryStat: &mem.VirtualMemoryStat{
			Total: 8 << 30, Available: 4 << 30, Used: 4 << 30, UsedPercent: 50,
		},
		SwapMemoryStat: &mem.SwapMemoryStat{Total: 1 << 30},
		PartitionList: []disk.PartitionStat{
			{Device: "/dev/sda1", Mountpoint: "/", Fstype: "ext4"},
		},
		UsageByPath: map[string]*disk.UsageStat{
			"/": {Path: "/", Total: 100 << 30, Used: 40 << 30, Free: 60 << 30, UsedPercent: 40},
		},
		Procs: []probe.Process{
			&probetest.Process{Pid: 1, ProcName: "init", User: "root", Statuses: []string{"sleeping"}},
		},
		Conns: []psnet.ConnectionStat{
			{Family: 2, Type: 1, Laddr: psnet.Addr{IP: "0.0.0.0", Port: 22}, Status: "LISTEN", Pid: 530},
		},
		HostInfoStat: &host.InfoStat{
			Hostname:        "pipelinehost",
			OS:              "linux",
			KernelVersion:   "6.8.0",
			PlatformVersion: "24.04",
			KernelArch:      "x86_64",
		},
	}
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.OutputDir = t.TempDir()
	return cfg
}

func runPipeline(t *testing.T, cfg config.Config) (string, *snapshot.Report) {
	t.Helper()
	p, err := New(logr.Discard(), cfg, testProbe())
	require.NoError(t, err)

	path, err := p.Run(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	if cfg.Format != "json" {
		return path, nil
	}
	var doc snapshot.Report
	require.NoError(t, json.Unmarshal(data, &doc))
	return path, &doc
}

func TestPipeline_RunJSON(t *testing.T) {
	cfg := testConfig(t)
	path, doc := runPipeline(t, cfg)

	name := filepath.Base(path)
	assert.True(t, strings.HasPrefix(name, "health_monitor_"))
	assert.True(t, strings.HasSuffix(name, ".json"))
	assert.Equal(t, cfg.OutputDir, filepath.Dir(path))

	assert.NotEmpty(t, doc.ReportID)
	assert.NotEmpty(t, doc.Timestamp)
	assert.Equal(t, "pipelinehost", doc.SystemInfo.Hostname)
	assert.Equal(t, "Linux", doc.SystemInfo.Platform)
	assert.Equal(t, "Linux 6.8.0", doc.SystemInfo.OSVersion)
	assert.Equal(t, "Test CPU @ 2.40GHz", doc.SystemInfo.Processor)

	require.NotNil(t, doc.Metrics)
	assert.Equal(t, 25.0, doc.Metrics.CPU.Percent)
	assert.Contains(t, doc.Metrics.Disk, "/")

	require.NotNil(t, doc.Processes)
	assert.Equal(t, 1, doc.Processes.Summary.Total)
	assert.Equal(t, 1, doc.Processes.Summary.Sleeping)

	require.NotNil(t, doc.Network)
	assert.Equal(t, 1, doc.Network.Summary.TotalConnections)
	require.Len(t, doc.Network.Summary.ListeningPorts, 1)
	assert.Equal(t, uint32(22), doc.Network.Summary.ListeningPorts[0].Port)

	require.Len(t, doc.Run.Sections, 3)
	for sectionType, stat := range doc.Run.Sections {
		assert.Equal(t, snapshot.SectionStatusOK, stat.Status, "section %s", sectionType)
	}
}

func TestPipeline_RunText(t *testing.T) {
	cfg := testConfig(t)
	cfg.Format = "text"
	path, _ := runPipeline(t, cfg)

	assert.True(t, strings.HasSuffix(path, ".log"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "SYSTEM HEALTH & INTEGRITY MONITOR REPORT")
	assert.Contains(t, content, "END OF REPORT")
	assert.Contains(t, content, "Hostname: pipelinehost")
}

func TestPipeline_CreatesNestedOutputDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.OutputDir = filepath.Join(cfg.OutputDir, "reports", "daily")
	path, _ := runPipeline(t, cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.False(t, info.IsDir())
}

func TestPipeline_CanceledContext(t *testing.T) {
	cfg := testConfig(t)
	p, err := New(logr.Discard(), cfg, testProbe())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = p.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	// An aborted run leaves nothing behind, not even a temp file.
	entries, err := os.ReadDir(cfg.OutputDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPipeline_ParallelMatchesSequential(t *testing.T) {
	sequential := testConfig(t)
	_, seqDoc := runPipeline(t, sequential)

	parallel := testConfig(t)
	parallel.Parallel = true
	_, parDoc := runPipeline(t, parallel)

	// Identical content apart from identity and timing.
	assert.Equal(t, seqDoc.Metrics, parDoc.Metrics)
	assert.Equal(t, seqDoc.Processes, parDoc.Processes)
	assert.Equal(t, seqDoc.Network, parDoc.Network)
	assert.NotEqual(t, seqDoc.ReportID, parDoc.ReportID)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Format = "xml"
	_, err := New(logr.Discard(), cfg, testProbe())
	assert.Error(t, err)

	cfg = config.Default()
	cfg.OutputDir = ""
	_, err = New(logr.Discard(), cfg, testProbe())
	assert.Error(t, err)
}
