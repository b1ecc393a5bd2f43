// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package packet

import (
	"bytes"
	"testing"
)

func TestBuildParseRoundTrip(t *testing.T) {
	const align = 512
	payload := []byte{0xF8, 0x01, 0x02, 0x03}
	out := Build(0x07FE, 5, 9, payload, align)

	if len(out)%align != 0 {
		t.Fatalf("Build output length %d is not aligned to %d", len(out), align)
	}

	resp, err := Parse(out)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if !bytes.Equal(resp.Payload, payload) {
		t.Errorf("Parse payload = %x; want %x", resp.Payload, payload)
	}
	if resp.OutstandingData != 0 || resp.MinTransfer != 0 {
		t.Errorf("unexpected outstanding/min-transfer on freshly built packet: %+v", resp)
	}
}

func TestBuildPadsSubpacketToFourBytes(t *testing.T) {
	out := Build(1, 0, 0, []byte{0x01, 0x02, 0x03}, 4)
	if len(out) != HeaderSize+4 {
		t.Errorf("Build output length = %d; want %d (3-byte payload padded to 4)", len(out), HeaderSize+4)
	}
	resp, err := Parse(out)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(resp.Payload) != 3 {
		t.Errorf("subpacket length should report the unpadded 3 bytes, got %d", len(resp.Payload))
	}
}

func TestParseTruncated(t *testing.T) {
	if _, err := Parse([]byte{0x01, 0x02}); err == nil {
		t.Error("Parse on a too-short buffer should return an error")
	}
}
