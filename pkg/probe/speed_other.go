// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

//go:build !linux

package probe

// interfaceSpeeds has no portable source outside Linux; interfaces simply
// omit the speed field there.
func interfaceSpeeds() (map[string]int64, error) {
	return map[string]int64{}, nil
}
