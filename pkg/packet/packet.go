// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package packet implements the three-layer TCG ComPacket/Packet/SubPacket
// framing that wraps every token stream exchanged with a TPer.
package packet

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

const (
	// HeaderSize is the combined size of a ComPacketHeader, PacketHeader
	// and SubPacketHeader, the fixed prefix in front of every payload.
	HeaderSize = 20 + 24 + 12
)

// ComPacketHeader is the outermost framing layer, addressed by ComID.
type ComPacketHeader struct {
	Reserved        uint32
	ComID           uint16
	ComIDExt        uint16
	OutstandingData uint32
	MinTransfer     uint32
	Length          uint32
}

// PacketHeader carries the session identifiers (TSN/HSN).
type PacketHeader struct {
	TSN             uint32
	HSN             uint32
	SeqNumber       uint32
	_               uint16
	AckType         uint16
	Acknowledgement uint32
	Length          uint32
}

// SubPacketHeader carries the token-stream payload length.
type SubPacketHeader struct {
	_      [6]byte
	Kind   uint16
	Length uint32
}

// Build frames payload (a fully-built method-call token stream) inside a
// SubPacket/Packet/ComPacket triplet addressed to comID/tsn/hsn, padding
// the subpacket payload to a 4-byte boundary and the whole command to
// align — the target transport's Align(), per the Core spec's packet
// construction rules. align <= 0 performs no trailing padding beyond the
// mandatory 4-byte subpacket alignment.
func Build(comID uint16, tsn, hsn uint32, payload []byte, align int) []byte {
	subpktLen := uint32(len(payload))

	padded := make([]byte, len(payload))
	copy(padded, payload)
	for len(padded)%4 != 0 {
		padded = append(padded, 0)
	}

	var buf bytes.Buffer
	pktLength := uint32(binary.Size(SubPacketHeader{})) + uint32(len(padded))
	cpLength := uint32(binary.Size(PacketHeader{})) + pktLength

	binary.Write(&buf, binary.BigEndian, ComPacketHeader{
		ComID:  comID,
		Length: cpLength,
	})
	binary.Write(&buf, binary.BigEndian, PacketHeader{
		TSN:    tsn,
		HSN:    hsn,
		Length: pktLength,
	})
	binary.Write(&buf, binary.BigEndian, SubPacketHeader{
		Length: subpktLen,
	})
	buf.Write(padded)

	out := buf.Bytes()
	if align > 0 {
		for len(out)%align != 0 {
			out = append(out, 0)
		}
	}
	return out
}

// Response is a parsed reply: the outstanding-data/min-transfer fields a
// session uses to decide whether to keep polling, and the decoded
// subpacket payload.
type Response struct {
	OutstandingData uint32
	MinTransfer     uint32
	Payload         []byte
}

// Parse decodes the ComPacket/Packet/SubPacket headers out of a raw receive
// buffer and returns the subpacket's payload slice.
func Parse(raw []byte) (*Response, error) {
	if len(raw) < HeaderSize {
		return nil, fmt.Errorf("packet.Parse: response shorter than header (%d bytes)", len(raw))
	}
	r := bytes.NewReader(raw)

	var cp ComPacketHeader
	if err := binary.Read(r, binary.BigEndian, &cp); err != nil {
		return nil, fmt.Errorf("packet.Parse: com packet header: %w", err)
	}
	var pkt PacketHeader
	if err := binary.Read(r, binary.BigEndian, &pkt); err != nil {
		return nil, fmt.Errorf("packet.Parse: packet header: %w", err)
	}
	var sub SubPacketHeader
	if err := binary.Read(r, binary.BigEndian, &sub); err != nil {
		return nil, fmt.Errorf("packet.Parse: subpacket header: %w", err)
	}
	if uint32(len(raw)-HeaderSize) < sub.Length {
		return nil, fmt.Errorf("packet.Parse: subpacket payload truncated: have %d want %d", len(raw)-HeaderSize, sub.Length)
	}
	payload := make([]byte, sub.Length)
	copy(payload, raw[HeaderSize:HeaderSize+int(sub.Length)])

	return &Response{
		OutstandingData: cp.OutstandingData,
		MinTransfer:     cp.MinTransfer,
		Payload:         payload,
	}, nil
}
