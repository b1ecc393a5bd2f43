// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package opal implements the small set of Locking SP operations this
// unlocker needs once a session is open: unlocking/locking a range and
// marking the shadow MBR done so the BIOS exposes the real boot partition.
package opal

import (
	"context"

	"github.com/open-source-firmware/opal-pba-unlock/pkg/method"
	"github.com/open-source-firmware/opal-pba-unlock/pkg/session"
	"github.com/open-source-firmware/opal-pba-unlock/pkg/uid"
)

// Column indices inside the Locking SP's Set method payload.
const (
	colValues      = 0x01
	colMBRDone     = 0x02
	colReadLocked  = 0x07
	colWriteLocked = 0x08
)

// LockingState is the read/write lock combination applied to a locking
// range's ReadLocked/WriteLocked columns.
type LockingState int

const (
	LockingStateReadWrite LockingState = iota
	LockingStateReadOnly
	LockingStateLocked
	LockingStateArchiveLocked
	LockingStateArchiveUnlocked
)

func boolToUint(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// SetMBRDone sets the MBRControl table's MBRDone column, the signal a
// compliant BIOS/UEFI firmware checks to decide whether to keep showing the
// shadow MBR or chain-load the real boot partition.
func SetMBRDone(ctx context.Context, s *session.Session, done bool) error {
	mc := method.New(uid.InvokingID(uid.MBRControl), uid.MethodSet)
	mc.StartOptionalParameter(colValues)
	mc.StartList()
	mc.NamedUInt(colMBRDone, boolToUint(done))
	mc.EndList()
	mc.EndOptionalParameter()
	_, err := s.ExecuteMethod(ctx, mc)
	return err
}

// SetLockingRange applies state to locking range rangeIdx (0 is the global,
// whole-disk range). Archive states only ever touch ReadLocked, leaving
// WriteLocked untouched, matching how an archive user's access is modeled.
func SetLockingRange(ctx context.Context, s *session.Session, rangeIdx uint8, state LockingState) error {
	row := uid.LockingRange(rangeIdx)
	mc := method.New(uid.InvokingID(row), uid.MethodSet)

	var readLock, writeLock bool
	archiveUser := false
	switch state {
	case LockingStateReadWrite:
	case LockingStateReadOnly:
		writeLock = true
	case LockingStateLocked:
		readLock = true
		writeLock = true
	case LockingStateArchiveLocked, LockingStateArchiveUnlocked:
		archiveUser = true
	}

	mc.StartOptionalParameter(colValues)
	mc.StartList()
	mc.NamedUInt(colReadLocked, boolToUint(readLock))
	if !archiveUser {
		mc.NamedUInt(colWriteLocked, boolToUint(writeLock))
	}
	mc.EndList()
	mc.EndOptionalParameter()

	_, err := s.ExecuteMethod(ctx, mc)
	return err
}
