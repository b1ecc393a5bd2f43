// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package discovery

import (
	"encoding/binary"
	"testing"

	"github.com/open-source-firmware/opal-pba-unlock/pkg/drive"
)

type fakeDrive struct {
	resp []byte
}

func (f *fakeDrive) IFRecv(proto drive.SecurityProtocol, sps uint16, data *[]byte) error {
	n := copy(*data, f.resp)
	for i := n; i < len(*data); i++ {
		(*data)[i] = 0
	}
	return nil
}
func (f *fakeDrive) IFSend(proto drive.SecurityProtocol, sps uint16, data []byte) error { return nil }
func (f *fakeDrive) Identify() (*drive.Identity, error)                                 { return nil, nil }
func (f *fakeDrive) SerialNumber() ([]byte, error)                                       { return nil, nil }
func (f *fakeDrive) Align() int                                                          { return 4 }
func (f *fakeDrive) Close() error                                                        { return nil }

func buildLevel0(locking *byte, opalV2 *ComIDInfo) []byte {
	buf := make([]byte, 1024)
	binary.BigEndian.PutUint32(buf[4:8], 1)

	offset := 48
	if locking != nil {
		binary.BigEndian.PutUint16(buf[offset:], uint16(CodeLocking))
		buf[offset+3] = 1 // descriptor length
		buf[offset+4] = *locking
		offset += 1 + 4
	}
	if opalV2 != nil {
		binary.BigEndian.PutUint16(buf[offset:], uint16(CodeOpalV2))
		buf[offset+3] = 4
		binary.BigEndian.PutUint16(buf[offset+4:], opalV2.BaseComID)
		binary.BigEndian.PutUint16(buf[offset+6:], opalV2.NumComIDs)
		offset += 4 + 4
	}
	return buf
}

func TestDiscovery0LockedAndEnabled(t *testing.T) {
	flags := byte(LockingSupported | LockingEnabled | Locked)
	d := &fakeDrive{resp: buildLevel0(&flags, &ComIDInfo{BaseComID: 0x07FE, NumComIDs: 1})}

	l0, err := Discovery0(d)
	if err != nil {
		t.Fatalf("Discovery0 returned error: %v", err)
	}
	if l0.Locking == nil || !l0.Locking.Has(Locked) {
		t.Fatalf("expected Locked flag to be set, got %+v", l0.Locking)
	}
	if !l0.IsLocked() {
		t.Error("IsLocked() = false; want true")
	}
	comID, isEnterprise, err := l0.ComID()
	if err != nil {
		t.Fatalf("ComID() returned error: %v", err)
	}
	if comID != 0x07FE || isEnterprise {
		t.Errorf("ComID() = %x, %v; want 0x7fe, false", comID, isEnterprise)
	}
}

func TestDiscovery0NoLockingFeature(t *testing.T) {
	d := &fakeDrive{resp: buildLevel0(nil, &ComIDInfo{BaseComID: 1})}
	l0, err := Discovery0(d)
	if err != nil {
		t.Fatalf("Discovery0 returned error: %v", err)
	}
	if l0.IsLocked() {
		t.Error("a drive with no locking feature must never be reported as locked")
	}
}

func TestDiscovery0Unsupported(t *testing.T) {
	d := &fakeDrive{resp: buildLevel0(nil, nil)}
	l0, err := Discovery0(d)
	if err != nil {
		t.Fatalf("Discovery0 returned error: %v", err)
	}
	if _, _, err := l0.ComID(); err != ErrUnsupported {
		t.Errorf("ComID() error = %v; want ErrUnsupported", err)
	}
}

func TestDiscovery0BadVersion(t *testing.T) {
	buf := make([]byte, 1024)
	d := &fakeDrive{resp: buf}
	if _, err := Discovery0(d); err != ErrIncompatibleVersion {
		t.Errorf("Discovery0() error = %v; want ErrIncompatibleVersion", err)
	}
}
