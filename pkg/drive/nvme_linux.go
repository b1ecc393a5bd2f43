// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

package drive

import (
	"bytes"
	"encoding/binary"
	"runtime"
	"strings"
	"unsafe"

	"github.com/dswarbrick/smart/ioctl"
)

const (
	nvmeAdminIdentify = 0x06
	nvmeSecuritySend  = 0x81
	nvmeSecurityRecv  = 0x82

	// secureBufferAlignment is the transfer-size granularity this
	// transport's admin passthrough buffers are aligned to. The
	// reference library's own ATA/SCSI backends carry the same
	// unresolved "some drives are picky" 512-byte guess; NVMe admin
	// passthrough inherits it here too rather than risking a silent
	// truncation on a controller that cares.
	secureBufferAlignment = 512
)

var nvmeIoctlAdminCmd = ioctl.Iowr('N', 0x41, unsafe.Sizeof(nvmePassthruCommand{}))

// nvmePassthruCommand mirrors struct nvme_passthru_cmd from
// <linux/nvme_ioctl.h>.
type nvmePassthruCommand struct {
	opcode      uint8
	flags       uint8
	rsvd1       uint16
	nsid        uint32
	cdw2        uint32
	cdw3        uint32
	metadata    uint64
	addr        uint64
	metadataLen uint32
	dataLen     uint32
	cdw10       uint32
	cdw11       uint32
	cdw12       uint32
	cdw13       uint32
	cdw14       uint32
	cdw15       uint32
	timeoutMs   uint32
	result      uint32
}

type nvmeDrive struct {
	fd FdIntf
}

// NVMEDrive wraps an open NVMe character device node for TCG Security
// Send/Receive and Identify-Controller admin passthrough. The fd is kept
// referenced for the lifetime of the returned Intf to stop it being
// garbage-collected out from under in-flight ioctls.
func NVMEDrive(fd FdIntf) Intf {
	return &nvmeDrive{fd: fd}
}

func (d *nvmeDrive) IFRecv(proto SecurityProtocol, sps uint16, data *[]byte) error {
	cmd := nvmePassthruCommand{
		opcode:  nvmeSecurityRecv,
		addr:    uint64(uintptr(unsafe.Pointer(&(*data)[0]))),
		dataLen: uint32(len(*data)),
		cdw10:   uint32(proto&0xff)<<24 | uint32(sps)<<8,
		cdw11:   uint32(len(*data)),
	}
	err := ioctl.Ioctl(d.fd.Fd(), nvmeIoctlAdminCmd, uintptr(unsafe.Pointer(&cmd)))
	runtime.KeepAlive(d.fd)
	return err
}

func (d *nvmeDrive) IFSend(proto SecurityProtocol, sps uint16, data []byte) error {
	cmd := nvmePassthruCommand{
		opcode:  nvmeSecuritySend,
		addr:    uint64(uintptr(unsafe.Pointer(&data[0]))),
		dataLen: uint32(len(data)),
		cdw10:   uint32(proto&0xff)<<24 | uint32(sps)<<8,
		cdw11:   uint32(len(data)),
	}
	err := ioctl.Ioctl(d.fd.Fd(), nvmeIoctlAdminCmd, uintptr(unsafe.Pointer(&cmd)))
	runtime.KeepAlive(d.fd)
	return err
}

func (d *nvmeDrive) Identify() (*Identity, error) {
	i, err := identifyNvme(d.fd)
	if err != nil {
		return nil, err
	}
	return &Identity{
		Protocol:     "NVMe",
		Model:        strings.TrimSpace(string(i.ModelNumber[:])),
		SerialNumber: strings.TrimSpace(string(i.SerialNumber[:])),
		Firmware:     strings.TrimSpace(string(i.Firmware[:])),
	}, nil
}

func (d *nvmeDrive) SerialNumber() ([]byte, error) {
	i, err := identifyNvme(d.fd)
	if err != nil {
		return nil, err
	}
	return bytes.TrimSpace(i.SerialNumber[:]), nil
}

func (d *nvmeDrive) Close() error {
	return d.fd.Close()
}

func (d *nvmeDrive) Align() int {
	return secureBufferAlignment
}

type nvmeIdentity struct {
	_            uint16
	_            uint16
	SerialNumber [20]byte
	ModelNumber  [40]byte
	Firmware     [8]byte
}

func identifyNvme(fd FdIntf) (*nvmeIdentity, error) {
	raw := NewAlignedBuffer(4096, secureBufferAlignment)
	cmd := nvmePassthruCommand{
		opcode:  nvmeAdminIdentify,
		addr:    uint64(uintptr(unsafe.Pointer(&raw[0]))),
		dataLen: uint32(len(raw)),
		cdw10:   1, // CNS=1: Identify Controller
	}
	err := ioctl.Ioctl(fd.Fd(), nvmeIoctlAdminCmd, uintptr(unsafe.Pointer(&cmd)))
	runtime.KeepAlive(fd)
	if err != nil {
		return nil, err
	}

	info := nvmeIdentity{}
	buf := bytes.NewBuffer(raw)
	if err := binary.Read(buf, binary.LittleEndian, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func isNVME(f FdIntf) bool {
	i, err := identifyNvme(f)
	return err == nil && i != nil
}
