// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package discovery implements the TCG Level-0 Discovery request: the
// feature-descriptor walk a caller uses to find out whether a drive
// supports Opal locking, which ComID to address it on, and whether it is
// currently locked.
package discovery

import (
	"encoding/binary"
	"errors"

	"github.com/open-source-firmware/opal-pba-unlock/pkg/drive"
)

// DiscoveryComID is the fixed, pre-session ComID every TPer answers a
// Level-0 Discovery request on.
const DiscoveryComID = 1

var (
	ErrIncompatibleVersion = errors.New("discovery: level-0 discovery header version is not 1")
	ErrUnsupported         = errors.New("discovery: drive reports neither Enterprise nor Opal v2 support")
)

// FeatureCode identifies a Level-0 Discovery feature descriptor.
type FeatureCode uint16

const (
	CodeLocking    FeatureCode = 0x0002
	CodeEnterprise FeatureCode = 0x0100
	CodeOpalV2     FeatureCode = 0x0203
)

// LockingFlags is the single-byte bitfield carried by the Locking feature
// descriptor.
type LockingFlags uint8

const (
	LockingSupported LockingFlags = 0x01
	LockingEnabled   LockingFlags = 0x02
	Locked           LockingFlags = 0x04
	MediaEncryption  LockingFlags = 0x08
	MBREnabled       LockingFlags = 0x10
	MBRDone          LockingFlags = 0x20
)

func (f LockingFlags) Has(bit LockingFlags) bool { return f&bit != 0 }

// ComIDInfo is the base ComID and count reported by the Enterprise or
// Opal v2 feature descriptors.
type ComIDInfo struct {
	BaseComID uint16
	NumComIDs uint16
}

// Level0 is the subset of the Level-0 Discovery response this module
// needs to decide whether and how to talk Opal to a drive.
type Level0 struct {
	Locking    *LockingFlags
	OpalV2     *ComIDInfo
	Enterprise *ComIDInfo
}

// ComID returns the ComID to run a session on, preferring the Enterprise
// SSC over Opal v2 when both are reported, and an error if neither is.
func (l *Level0) ComID() (uint16, bool, error) {
	if l.Enterprise != nil {
		return l.Enterprise.BaseComID, true, nil
	}
	if l.OpalV2 != nil {
		return l.OpalV2.BaseComID, false, nil
	}
	return 0, false, ErrUnsupported
}

// IsLocked reports whether the drive requires a credential before its data
// is accessible: either explicitly LOCKED, or the shadow MBR hasn't yet
// been marked done (so the pre-boot OS hasn't unlocked and handed off
// control for this boot).
func (l *Level0) IsLocked() bool {
	if l.Locking == nil {
		return false
	}
	return l.Locking.Has(Locked) || !l.Locking.Has(MBRDone)
}

// Discovery0 runs a Level-0 Discovery against d and parses the feature
// descriptors this module understands.
func Discovery0(d drive.Intf) (*Level0, error) {
	buf := drive.NewAlignedBuffer(1024, d.Align())
	if err := d.IFRecv(drive.SecurityProtocolTCGManagement, DiscoveryComID, &buf); err != nil {
		return nil, err
	}

	if buf[4] != 0 || buf[5] != 0 || buf[6] != 0 || buf[7] != 1 {
		return nil, ErrIncompatibleVersion
	}

	l0 := &Level0{}
	offset := 48
	for offset < len(buf)-1 {
		code := FeatureCode(binary.BigEndian.Uint16(buf[offset : offset+2]))
		switch code {
		case CodeLocking:
			if offset+4 >= len(buf) {
				return l0, nil
			}
			flags := LockingFlags(buf[offset+4])
			l0.Locking = &flags
		case CodeEnterprise:
			l0.Enterprise = readComIDInfo(buf, offset+4)
		case CodeOpalV2:
			l0.OpalV2 = readComIDInfo(buf, offset+4)
		}
		if offset+3 >= len(buf) {
			break
		}
		length := int(buf[offset+3])
		offset += length + 4
	}
	return l0, nil
}

func readComIDInfo(buf []byte, offset int) *ComIDInfo {
	if offset+4 > len(buf) {
		return nil
	}
	return &ComIDInfo{
		BaseComID: binary.BigEndian.Uint16(buf[offset : offset+2]),
		NumComIDs: binary.BigEndian.Uint16(buf[offset+2 : offset+4]),
	}
}
