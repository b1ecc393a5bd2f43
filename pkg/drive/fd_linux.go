// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package drive

// FdIntf is the minimal file-descriptor surface the ioctl-based NVMe
// passthrough needs, satisfied by *os.File.
type FdIntf interface {
	Fd() uintptr
	Close() error
}
