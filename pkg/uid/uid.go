// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package uid holds the fixed Opal object and method identifiers this
// module's session and operation layers address.
package uid

// UID is the general 8-byte identifier type all object/method/table
// identifiers are based on, as specified in TCG Storage Architecture Core
// Specification Version 2.01 - Rev 1.0.
type UID [8]byte

type RowUID UID
type InvokingID UID
type SPID UID
type MethodID UID
type AuthorityObjectUID UID

var (
	InvokeIDNull   = InvokingID{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	InvokeIDThisSP = InvokingID{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01}
	InvokeIDSMU    = InvokingID{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xFF}
)

var (
	AdminSP             = SPID{0x00, 0x00, 0x02, 0x05, 0x00, 0x00, 0x00, 0x01}
	LockingSP           = SPID{0x00, 0x00, 0x02, 0x05, 0x00, 0x00, 0x00, 0x02}
	EnterpriseLockingSP = SPID{0x00, 0x00, 0x02, 0x05, 0x00, 0x01, 0x00, 0x01}
)

var (
	LockingAuthorityBandMaster0 = AuthorityObjectUID{0x00, 0x00, 0x00, 0x09, 0x00, 0x00, 0x80, 0x01}
	LockingAuthorityAdmin1      = AuthorityObjectUID{0x00, 0x00, 0x00, 0x09, 0x00, 0x01, 0x00, 0x01}
	AuthorityAnybody            = AuthorityObjectUID{0x00, 0x00, 0x00, 0x09, 0x00, 0x00, 0x00, 0x01}
	AuthoritySID                = AuthorityObjectUID{0x00, 0x00, 0x00, 0x09, 0x00, 0x00, 0x00, 0x06}
	AuthorityPSID               = AuthorityObjectUID{0x00, 0x00, 0x00, 0x09, 0x00, 0x01, 0xFF, 0x01}
)

// Session manager object and method UIDs (table 239, Core spec).
var (
	OpalSMUID = InvokingID{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xFF}

	MethodStartSession = MethodID{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xFF, 0x02}
	MethodProperties   = MethodID{0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0xFF, 0x01}
)

// Method UIDs used against objects inside an already-open session.
var (
	MethodGet  = MethodID{0x00, 0x00, 0x00, 0x06, 0x00, 0x00, 0x00, 0x16}
	MethodSet  = MethodID{0x00, 0x00, 0x00, 0x06, 0x00, 0x00, 0x00, 0x17}
	MethodNext = MethodID{0x00, 0x00, 0x00, 0x06, 0x00, 0x00, 0x00, 0x08}
)

// GlobalRangeRowUID is the row UID of locking range 0, the whole-disk range.
var GlobalRangeRowUID = RowUID{0x00, 0x00, 0x08, 0x02, 0x00, 0x00, 0x00, 0x01}

// MBRControl is the single-row table controlling the shadow MBR.
var MBRControl = RowUID{0x00, 0x00, 0x08, 0x03, 0x00, 0x00, 0x00, 0x01}

// LockingRange returns the row UID of the Nth locking range. Range 0 is the
// global range; any other range clones the global UID's byte layout with
// the table-selector byte and range-index byte substituted in, matching how
// the Opal locking table assigns non-global range UIDs.
func LockingRange(n uint8) RowUID {
	if n == 0 {
		return GlobalRangeRowUID
	}
	r := GlobalRangeRowUID
	r[5] = 0x03
	r[7] = n
	return r
}
