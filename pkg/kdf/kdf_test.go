// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package kdf

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func TestDeriveCompatibilityVector(t *testing.T) {
	got := Derive("dummy", "S2RBNB0HA12200B")
	want := []byte{
		0x4f, 0x2a, 0xcc, 0xfd, 0x1a, 0x17, 0x64, 0xdc, 0x5b, 0x5b, 0xb3, 0x8f, 0x40, 0xf9, 0x06, 0x8d,
		0x2d, 0x1a, 0x1f, 0x6d, 0xd5, 0x39, 0x27, 0x07, 0xde, 0xa1, 0x4c, 0x3b, 0xb7, 0xde, 0xea, 0xcc,
	}
	if !bytes.Equal(want, got) {
		t.Errorf("Derive hash mismatch, got %s want %s", hex.EncodeToString(got), hex.EncodeToString(want))
	}
}

func TestDeriveSerialWithinFirst20CharsMatters(t *testing.T) {
	// A short serial is space-padded out to 20 characters before use as
	// the PBKDF2 salt; a serial that fills those 20 characters
	// differently must derive a different credential.
	a := Derive("hunter2", "ABC")
	b := Derive("hunter2", "ABC0000000000000000tail-does-not-matter")
	if len(a) != 32 {
		t.Fatalf("Derive returned %d bytes, want 32", len(a))
	}
	if bytes.Equal(a, b) {
		t.Error("serials differing within the first 20 characters should not derive the same credential")
	}
}

func TestDeriveDifferentPasswordsDiffer(t *testing.T) {
	a := Derive("hunter2", "SERIAL0001")
	b := Derive("hunter3", "SERIAL0001")
	if bytes.Equal(a, b) {
		t.Error("different passwords must derive different credentials")
	}
}
