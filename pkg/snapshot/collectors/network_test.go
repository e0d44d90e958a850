// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package collectors

import (
	"context"
	"errors"
	"testing"

	"github.com/go-logr/logr"
	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SibbiesMom23/system-health-monitor/pkg/probe/probetest"
	"github.com/SibbiesMom23/system-health-monitor/pkg/snapshot"
)

const (
	sockStream = 1
	sockDgram  = 2
	sockRaw    = 3
	afInet     = 2
)

func tcpConn(localPort uint32, status string, pid int32) psnet.ConnectionStat {
	return psnet.ConnectionStat{
		Fd:     3,
		Family: afInet,
		Type:   sockStream,
		Laddr:  psnet.Addr{IP: "127.0.0.1", Port: localPort},
		Raddr:  psnet.Addr{IP: "10.0.0.9", Port: 443},
		Status: status,
		Pid:    pid,
	}
}

func collectNetwork(t *testing.T, p *probetest.Probe, includeAll bool) *snapshot.NetworkReport {
	t.Helper()
	collector, err := NewNetworkCollector(logr.Discard(), snapshot.Config{
		Probe:                 p,
		IncludeAllConnections: includeAll,
	})
	require.NoError(t, err)

	out, err := collector.Collect(context.Background())
	require.NoError(t, err)
	report, ok := out.(*snapshot.NetworkReport)
	require.True(t, ok)
	return report
}

func TestNetworkCollector_EmptySystem(t *testing.T) {
	report := collectNetwork(t, &probetest.Probe{}, false)

	assert.Equal(t, 0, report.Summary.TotalConnections)
	assert.NotNil(t, report.Summary.ByStatus)
	assert.Empty(t, report.Summary.ByStatus)
	assert.NotNil(t, report.Summary.ByProtocol)
	assert.Empty(t, report.Summary.ByProtocol)
	assert.NotNil(t, report.Summary.ListeningPorts)
	assert.Empty(t, report.Summary.ListeningPorts)
	assert.Nil(t, report.AllConnections)
}

func TestNetworkCollector_WholesaleDenial(t *testing.T) {
	// Privilege-restricted platforms refuse the whole enumeration; the
	// collector degrades to an empty connection set.
	report := collectNetwork(t, &probetest.Probe{
		ConnectionsErr: errors.New("operation not permitted"),
	}, true)

	assert.Equal(t, 0, report.Summary.TotalConnections)
	assert.Empty(t, report.Summary.ByStatus)
	assert.NotNil(t, report.AllConnections)
	assert.Empty(t, report.AllConnections)
}

func TestNetworkCollector_ProtocolInference(t *testing.T) {
	report := collectNetwork(t, &probetest.Probe{
		Conns: []psnet.ConnectionStat{
			tcpConn(12345, "ESTABLISHED", 100),
			tcpConn(12346, "ESTABLISHED", 100),
			{Family: afInet, Type: sockDgram, Laddr: psnet.Addr{IP: "0.0.0.0", Port: 68}},
			{Family: afInet, Type: sockRaw, Laddr: psnet.Addr{IP: "0.0.0.0", Port: 1}},
		},
	}, false)

	summary := report.Summary
	// Raw sockets count toward the total but match no protocol.
	assert.Equal(t, 4, summary.TotalConnections)
	assert.Equal(t, 2, summary.ByProtocol["TCP"])
	assert.Equal(t, 1, summary.ByProtocol["UDP"])
	assert.Len(t, summary.ByProtocol, 2)

	assert.Equal(t, 2, summary.ByStatus["ESTABLISHED"])
	// Connectionless sockets report no status.
	assert.Equal(t, 2, summary.ByStatus["NONE"])
}

func TestNetworkCollector_StatusCountsSumToTotal(t *testing.T) {
	report := collectNetwork(t, &probetest.Probe{
		Conns: []psnet.ConnectionStat{
			tcpConn(1000, "ESTABLISHED", 1),
			tcpConn(1001, "TIME_WAIT", 1),
			tcpConn(1002, "LISTEN", 2),
			tcpConn(1003, "ESTABLISHED", 3),
		},
	}, false)

	sum := 0
	for _, count := range report.Summary.ByStatus {
		sum += count
	}
	assert.Equal(t, report.Summary.TotalConnections, sum)
}

func TestNetworkCollector_ListeningPorts(t *testing.T) {
	conns := []psnet.ConnectionStat{
		tcpConn(8080, "LISTEN", 31),
		tcpConn(22, "LISTEN", 32),
		tcpConn(443, "ESTABLISHED", 33),
		tcpConn(8080, "LISTEN", 34), // duplicate port, later in enumeration
		tcpConn(80, "LISTEN", 35),
	}
	report := collectNetwork(t, &probetest.Probe{Conns: conns}, false)

	ports := report.Summary.ListeningPorts
	require.Len(t, ports, 4)
	assert.Equal(t, uint32(22), ports[0].Port)
	assert.Equal(t, uint32(80), ports[1].Port)
	assert.Equal(t, uint32(8080), ports[2].Port)
	assert.Equal(t, uint32(8080), ports[3].Port)
	// Equal ports keep enumeration order.
	assert.Equal(t, "31", ports[2].PID.String())
	assert.Equal(t, "34", ports[3].PID.String())
}

func TestNetworkCollector_Sentinels(t *testing.T) {
	report := collectNetwork(t, &probetest.Probe{
		Conns: []psnet.ConnectionStat{
			{
				Family: afInet,
				Type:   sockDgram,
				Laddr:  psnet.Addr{IP: "0.0.0.0", Port: 5353},
				// no remote endpoint, no owning pid
			},
		},
	}, true)

	require.Len(t, report.AllConnections, 1)
	conn := report.AllConnections[0]
	assert.Equal(t, "AF_INET", conn.Family)
	assert.Equal(t, "SOCK_DGRAM", conn.Type)
	assert.Equal(t, "0.0.0.0", conn.LocalAddress)
	assert.True(t, conn.LocalPort.Valid)
	assert.Equal(t, snapshot.SentinelNA, conn.RemoteAddress)
	assert.False(t, conn.RemotePort.Valid)
	assert.Equal(t, snapshot.SentinelNA, conn.RemotePort.String())
	assert.Equal(t, snapshot.SentinelNA, conn.PID.String())
}

func TestNetworkCollector_AllConnectionsOptIn(t *testing.T) {
	p := &probetest.Probe{Conns: []psnet.ConnectionStat{tcpConn(80, "ESTABLISHED", 9)}}

	withoutOptIn := collectNetwork(t, p, false)
	assert.Nil(t, withoutOptIn.AllConnections)

	withOptIn := collectNetwork(t, p, true)
	require.Len(t, withOptIn.AllConnections, 1)
	assert.Equal(t, "ESTABLISHED", withOptIn.AllConnections[0].Status)
}

func TestNetworkCollector_InterfaceMerge(t *testing.T) {
	report := collectNetwork(t, &probetest.Probe{
		Ifaces: psnet.InterfaceStatList{
			{
				Name:  "eth0",
				MTU:   1500,
				Flags: []string{"up", "broadcast", "multicast"},
				Addrs: []psnet.InterfaceAddr{{Addr: "192.168.1.10/24"}, {Addr: "fe80::1/64"}},
			},
			{
				Name:  "lo",
				MTU:   65536,
				Flags: []string{"up", "loopback"},
				Addrs: []psnet.InterfaceAddr{{Addr: "127.0.0.1/8"}},
			},
		},
		Speeds: map[string]int64{"eth0": 1000},
		IOCounters: []psnet.IOCountersStat{
			{Name: "eth0", BytesSent: 1024, BytesRecv: 4096, PacketsSent: 10, PacketsRecv: 40},
		},
	}, false)

	require.Len(t, report.Interfaces, 2)

	eth0 := report.Interfaces["eth0"]
	assert.True(t, eth0.IsUp)
	assert.Equal(t, 1500, eth0.MTU)
	assert.Equal(t, int64(1000), eth0.Speed)
	require.NotNil(t, eth0.IOStats)
	assert.Equal(t, uint64(1024), eth0.IOStats.BytesSent)
	assert.Equal(t, uint64(4096), eth0.IOStats.BytesRecv)

	require.Len(t, eth0.Addresses, 2)
	assert.Equal(t, "AF_INET", eth0.Addresses[0].Family)
	assert.Equal(t, "192.168.1.10", eth0.Addresses[0].Address)
	assert.Equal(t, "255.255.255.0", eth0.Addresses[0].Netmask)
	assert.Equal(t, "192.168.1.255", eth0.Addresses[0].Broadcast)
	assert.Equal(t, "AF_INET6", eth0.Addresses[1].Family)
	assert.Equal(t, "fe80::1", eth0.Addresses[1].Address)
	assert.Empty(t, eth0.Addresses[1].Broadcast)

	// lo is absent from the speed and counter queries; those sub-fields
	// are simply omitted.
	lo := report.Interfaces["lo"]
	assert.True(t, lo.IsUp)
	assert.Zero(t, lo.Speed)
	assert.Nil(t, lo.IOStats)
}

func TestNetworkCollector_InterfaceEnumerationFailure(t *testing.T) {
	report := collectNetwork(t, &probetest.Probe{
		IfacesErr: errors.New("not supported"),
	}, false)
	assert.NotNil(t, report.Interfaces)
	assert.Empty(t, report.Interfaces)
}

func TestNetworkCollector_Capabilities(t *testing.T) {
	collector, err := NewNetworkCollector(logr.Discard(), snapshot.Config{Probe: &probetest.Probe{}})
	require.NoError(t, err)
	assert.True(t, collector.Capabilities().RequiresElevated)
	assert.Equal(t, snapshot.SectionNetwork, collector.Type())
}
