// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

//go:build linux

package probe

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const sysClassNet = "/sys/class/net"

// interfaceSpeeds reads link speed from sysfs. Virtual interfaces and
// downed links report no speed (read error or -1) and are omitted.
func interfaceSpeeds() (map[string]int64, error) {
	entries, err := os.ReadDir(sysClassNet)
	if err != nil {
		return nil, err
	}

	speeds := make(map[string]int64, len(entries))
	for _, entry := range entries {
		data, err := os.ReadFile(filepath.Join(sysClassNet, entry.Name(), "speed"))
		if err != nil {
			continue
		}
		speed, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
		if err != nil || speed < 0 {
			continue
		}
		speeds[entry.Name()] = speed
	}
	return speeds, nil
}
