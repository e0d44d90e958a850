// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package collectors

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"

	"github.com/go-logr/logr"
	psnet "github.com/shirou/gopsutil/v3/net"

	"github.com/SibbiesMom23/system-health-monitor/pkg/snapshot"
)

func init() {
	snapshot.Register(snapshot.SectionNetwork, func(logger logr.Logger, config snapshot.Config) (snapshot.Collector, error) {
		return NewNetworkCollector(logger, config)
	})
}

// Compile-time interface check
var _ snapshot.Collector = (*NetworkCollector)(nil)

// NetworkCollector enumerates active inet connections and network
// interfaces.
//
// Connection enumeration may be refused wholesale on privilege-restricted
// platforms; the collector then degrades to an empty connection set rather
// than failing the run. Interface data merges three independent OS queries
// (address list, link speeds, IO counters) keyed by interface name; an
// interface absent from a query simply omits those sub-fields.
type NetworkCollector struct {
	snapshot.BaseCollector
}

func NewNetworkCollector(logger logr.Logger, config snapshot.Config) (*NetworkCollector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	capabilities := snapshot.CollectorCapabilities{
		RequiresElevated: true,
	}

	return &NetworkCollector{
		BaseCollector: snapshot.NewBaseCollector(
			snapshot.SectionNetwork,
			"Network Collector",
			logger,
			config,
			capabilities,
		),
	}, nil
}

// Collect performs a one-shot collection of the network report.
func (c *NetworkCollector) Collect(ctx context.Context) (any, error) {
	records := c.collectConnections()

	report := &snapshot.NetworkReport{
		Summary:    summarizeConnections(records),
		Interfaces: c.collectInterfaces(),
	}
	if c.Config().IncludeAllConnections {
		report.AllConnections = records
	}
	return report, nil
}

func (c *NetworkCollector) collectConnections() []snapshot.ConnectionRecord {
	conns, err := c.Config().Probe.Connections("inet")
	if err != nil {
		// Typically access denied for unprivileged callers; network data
		// is best-effort.
		c.Logger().V(1).Info("connection enumeration refused", "error", err.Error())
		return []snapshot.ConnectionRecord{}
	}

	records := make([]snapshot.ConnectionRecord, 0, len(conns))
	for _, conn := range conns {
		records = append(records, newConnectionRecord(conn))
	}
	return records
}

func newConnectionRecord(conn psnet.ConnectionStat) snapshot.ConnectionRecord {
	record := snapshot.ConnectionRecord{
		FD:            conn.Fd,
		Family:        familyName(conn.Family),
		Type:          socketTypeName(conn.Type),
		LocalAddress:  snapshot.SentinelNA,
		RemoteAddress: snapshot.SentinelNA,
		Status:        conn.Status,
		PID:           snapshot.NewPIDValue(conn.Pid),
	}
	if record.Status == "" {
		record.Status = "NONE"
	}
	if conn.Laddr.IP != "" || conn.Laddr.Port != 0 {
		record.LocalAddress = conn.Laddr.IP
		record.LocalPort = snapshot.NewPortValue(conn.Laddr.Port)
	}
	if conn.Raddr.IP != "" || conn.Raddr.Port != 0 {
		record.RemoteAddress = conn.Raddr.IP
		record.RemotePort = snapshot.NewPortValue(conn.Raddr.Port)
	}
	return record
}

// summarizeConnections aggregates connections by status and protocol and
// extracts listening ports. Protocol is inferred from the socket type string;
// types matching neither STREAM nor DGRAM count toward the total but not the
// protocol breakdown.
func summarizeConnections(records []snapshot.ConnectionRecord) snapshot.NetworkSummary {
	summary := snapshot.NetworkSummary{
		TotalConnections: len(records),
		ByStatus:         make(map[string]int),
		ByProtocol:       make(map[string]int),
		ListeningPorts:   make([]snapshot.ListeningPort, 0),
	}

	for _, record := range records {
		summary.ByStatus[record.Status]++

		if strings.Contains(record.Type, "STREAM") {
			summary.ByProtocol["TCP"]++
		} else if strings.Contains(record.Type, "DGRAM") {
			summary.ByProtocol["UDP"]++
		}

		if record.Status == "LISTEN" && record.LocalPort.Valid {
			summary.ListeningPorts = append(summary.ListeningPorts, snapshot.ListeningPort{
				Port:    record.LocalPort.Port,
				Address: record.LocalAddress,
				PID:     record.PID,
			})
		}
	}

	// Ascending by port; ties keep enumeration order.
	sort.SliceStable(summary.ListeningPorts, func(i, j int) bool {
		return summary.ListeningPorts[i].Port < summary.ListeningPorts[j].Port
	})
	return summary
}

func (c *NetworkCollector) collectInterfaces() map[string]snapshot.InterfaceInfo {
	interfaces := make(map[string]snapshot.InterfaceInfo)

	ifaces, err := c.Config().Probe.Interfaces()
	if err != nil {
		c.Logger().V(1).Info("interface enumeration failed", "error", err.Error())
		return interfaces
	}

	speeds, err := c.Config().Probe.InterfaceSpeeds()
	if err != nil {
		c.Logger().V(2).Info("link speeds unavailable", "error", err.Error())
	}

	counters := make(map[string]psnet.IOCountersStat)
	if io, err := c.Config().Probe.NetIOCounters(); err == nil {
		for _, stat := range io {
			counters[stat.Name] = stat
		}
	} else {
		c.Logger().V(2).Info("io counters unavailable", "error", err.Error())
	}

	for _, iface := range ifaces {
		info := snapshot.InterfaceInfo{
			Addresses: make([]snapshot.InterfaceAddress, 0, len(iface.Addrs)),
			IsUp:      hasFlag(iface.Flags, "up"),
			MTU:       iface.MTU,
		}
		for _, addr := range iface.Addrs {
			info.Addresses = append(info.Addresses, parseInterfaceAddress(addr.Addr))
		}
		if speed, ok := speeds[iface.Name]; ok {
			info.Speed = speed
		}
		if stat, ok := counters[iface.Name]; ok {
			info.IOStats = &snapshot.InterfaceIOStats{
				BytesSent:   stat.BytesSent,
				BytesRecv:   stat.BytesRecv,
				PacketsSent: stat.PacketsSent,
				PacketsRecv: stat.PacketsRecv,
				Errin:       stat.Errin,
				Errout:      stat.Errout,
				Dropin:      stat.Dropin,
				Dropout:     stat.Dropout,
			}
		}
		interfaces[iface.Name] = info
	}
	return interfaces
}

func hasFlag(flags []string, want string) bool {
	for _, flag := range flags {
		if strings.EqualFold(flag, want) {
			return true
		}
	}
	return false
}

// parseInterfaceAddress splits a CIDR-form interface address into address,
// family, netmask, and (for IPv4) broadcast. Bare addresses without a prefix
// keep only the family and address.
func parseInterfaceAddress(cidr string) snapshot.InterfaceAddress {
	ip, ipnet, err := net.ParseCIDR(cidr)
	if err != nil {
		ip := net.ParseIP(cidr)
		if ip == nil {
			return snapshot.InterfaceAddress{Family: "AF_LINK", Address: cidr}
		}
		return snapshot.InterfaceAddress{Family: addressFamily(ip), Address: ip.String()}
	}

	address := snapshot.InterfaceAddress{
		Family:  addressFamily(ip),
		Address: ip.String(),
		Netmask: net.IP(ipnet.Mask).String(),
	}
	if ip4 := ip.To4(); ip4 != nil && len(ipnet.Mask) == net.IPv4len {
		broadcast := make(net.IP, net.IPv4len)
		for i := range broadcast {
			broadcast[i] = ip4[i] | ^ipnet.Mask[i]
		}
		address.Broadcast = broadcast.String()
	}
	return address
}

func addressFamily(ip net.IP) string {
	if ip.To4() != nil {
		return "AF_INET"
	}
	return "AF_INET6"
}

// familyName renders the numeric address family the way the platform names
// it. AF_INET6 differs per OS (10 on Linux, 23 on Windows, 30 on Darwin).
func familyName(family uint32) string {
	switch family {
	case 1:
		return "AF_UNIX"
	case 2:
		return "AF_INET"
	case 10, 23, 30:
		return "AF_INET6"
	default:
		return fmt.Sprintf("AF_%d", family)
	}
}

func socketTypeName(socketType uint32) string {
	switch socketType {
	case 1:
		return "SOCK_STREAM"
	case 2:
		return "SOCK_DGRAM"
	case 3:
		return "SOCK_RAW"
	case 5:
		return "SOCK_SEQPACKET"
	default:
		return fmt.Sprintf("SOCK_%d", socketType)
	}
}
