// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package drive

import "os"

// Open opens device (e.g. "/dev/nvme0") for Security Send/Receive and
// Identify-Controller admin passthrough. Non-NVMe devices return
// ErrDeviceNotSupported.
func Open(device string) (Intf, error) {
	d, err := os.OpenFile(device, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	if isNVME(d) {
		return NVMEDrive(d), nil
	}
	d.Close()
	return nil, ErrDeviceNotSupported
}
