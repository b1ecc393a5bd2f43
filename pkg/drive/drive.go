// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package drive implements the NVMe transport layer: Security Send/Receive
// and Identify-Controller admin passthrough, the only byte-level interface
// this module needs from the underlying storage stack.
//
// ATA and SCSI transports are out of scope; a device that doesn't answer to
// NVMe admin passthrough is reported as unsupported.
package drive

import (
	"errors"
	"fmt"
)

var (
	ErrNotSupported       = errors.New("operation is not supported")
	ErrDeviceNotSupported = errors.New("device is not an NVMe controller")
)

// SecurityProtocol selects which TCG security protocol a Security
// Send/Receive command addresses.
type SecurityProtocol int

const (
	SecurityProtocolInformation   SecurityProtocol = 0
	SecurityProtocolTCGManagement SecurityProtocol = 1
	SecurityProtocolTCGTPer       SecurityProtocol = 2
)

// Identity is the subset of NVMe Identify-Controller data this module
// surfaces: enough to log which physical drive an operation is acting on.
type Identity struct {
	Protocol     string
	SerialNumber string
	Model        string
	Firmware     string
}

func (i *Identity) String() string {
	return fmt.Sprintf("Protocol=%s, Model=%s, Serial=%s, Firmware=%s",
		i.Protocol, i.Model, i.SerialNumber, i.Firmware)
}

// Intf is the transport boundary the rest of this module is built on: raw
// Security Send/Receive plus enough identification to derive a per-drive
// credential and log operator-visible errors.
type Intf interface {
	IFRecv(proto SecurityProtocol, sps uint16, data *[]byte) error
	IFSend(proto SecurityProtocol, sps uint16, data []byte) error
	Identify() (*Identity, error)
	SerialNumber() ([]byte, error)
	// Align reports the minimum buffer alignment, in bytes, this
	// controller requires of any buffer passed to IFSend/IFRecv. Every
	// such buffer must be allocated through NewAlignedBuffer(size,
	// Align()) rather than a bare make([]byte, ...); an unaligned buffer
	// may be silently truncated or rejected by the controller.
	Align() int
	Close() error
}
