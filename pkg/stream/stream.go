// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package stream implements the TCG Storage Core data stream encoding:
// the atom/token wire format method calls and their responses are built
// out of.
package stream

import (
	"bytes"
	"errors"
	"fmt"
)

type TokenType uint8

type List []interface{}

const (
	StartList        TokenType = 0xF0
	EndList          TokenType = 0xF1
	StartName        TokenType = 0xF2
	EndName          TokenType = 0xF3
	Call             TokenType = 0xF8
	EndOfData        TokenType = 0xF9
	EndOfSession     TokenType = 0xFA
	StartTransaction TokenType = 0xFB
	EndTransaction   TokenType = 0xFC
	EmptyAtom        TokenType = 0xFF

	OpalFalse        TokenType = 0x00
	OpalTrue         TokenType = 0x01
	OpalValue        TokenType = 0x01
	OpalPIN          TokenType = 0x03
	OpalWhere        TokenType = 0x00
	ReadLockEnabled  TokenType = 0x05
	WriteLockEnabled TokenType = 0x06
)

var (
	ErrUnbalancedList = errors.New("message contained unbalanced list structures")
	ErrBytestringSize = errors.New("bytestring atom is too large to encode")
)

func (t TokenType) String() string {
	switch t {
	case StartList:
		return "StartList"
	case EndList:
		return "EndList"
	case StartName:
		return "StartName"
	case EndName:
		return "EndName"
	case Call:
		return "Call"
	case EndOfData:
		return "EndOfData"
	case EndOfSession:
		return "EndOfSession"
	case StartTransaction:
		return "StartTransaction"
	case EndTransaction:
		return "EndTransaction"
	case EmptyAtom:
		return "EmptyAtom"
	}
	return "<Unknown>"
}

// Token returns the single-byte encoding of a reserved control token.
func Token(tok TokenType) []byte {
	return []byte{byte(tok)}
}

// UInt encodes val as an unsigned integer atom, picking the smallest atom
// class that fits: a tiny atom for values below 64, and the short-atom
// 1/2/4/8-byte forms otherwise.
func UInt(val uint64) []byte {
	if val < 64 {
		return []byte{uint8(val)}
	}
	var width int
	var prefix byte
	switch {
	case val < 0x100:
		width, prefix = 1, 0x81
	case val < 0x10000:
		width, prefix = 2, 0x82
	case val < 0x100000000:
		width, prefix = 4, 0x84
	default:
		width, prefix = 8, 0x88
	}
	out := make([]byte, 1+width)
	out[0] = prefix
	for i := 0; i < width; i++ {
		out[1+width-1-i] = byte(val >> (8 * i))
	}
	return out
}

// Bytes encodes a bytestring atom, choosing the short or medium atom class
// depending on length. Bytestrings of 2048 bytes or more are a programming
// error in this protocol's usage and are rejected rather than encoded as a
// long atom.
func Bytes(b []byte) ([]byte, error) {
	switch {
	case len(b) == 0:
		return []byte{0xa1, 0x00}, nil
	case len(b) < 16:
		return append([]byte{0xa0 | uint8(len(b))}, b...), nil
	case len(b) < 2048:
		return append([]byte{0xd0 | uint8((len(b)>>8)&0x7), uint8(len(b) & 0xff)}, b...), nil
	default:
		return nil, ErrBytestringSize
	}
}

// MustBytes is Bytes, panicking on oversized input. Only safe for
// compile-time-constant or pre-validated byte slices.
func MustBytes(b []byte) []byte {
	enc, err := Bytes(b)
	if err != nil {
		panic(err)
	}
	return enc
}

func Decode(b []byte) (List, error) {
	res, rest, err := internalDecode(b, 0)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		return nil, ErrUnbalancedList
	}
	return res, nil
}

func internalDecode(b []byte, depth int) (List, []byte, error) {
	res := List{}
	for len(b) > 0 {
		s := 1
		var x interface{}
		switch {
		case b[0]&0x80 == 0:
			// Tiny atom
			x = uint64(b[0])
		case b[0]&0xC0 == 0x80:
			isbyte := b[0]&0x20 > 0
			s = int(b[0] & 0xf)
			if len(b) < 1+s {
				return nil, nil, fmt.Errorf("short atom truncated")
			}
			if isbyte {
				bc := make([]byte, s)
				copy(bc, b[1:1+s])
				x = bc
			} else {
				var v uint64
				for _, i := range b[1 : 1+s] {
					v = v<<8 | uint64(i)
				}
				x = v
			}
			s++
		case b[0]&0xE0 == 0xC0:
			isbyte := b[0]&0x10 > 0
			if len(b) < 2 {
				return nil, nil, fmt.Errorf("medium atom truncated")
			}
			s = int(b[0]&0x7)<<8 | int(b[1])
			if isbyte {
				if len(b) < 2+s {
					return nil, nil, fmt.Errorf("medium atom truncated")
				}
				bc := make([]byte, s)
				copy(bc, b[2:2+s])
				x = bc
				s += 2
			} else {
				return nil, nil, fmt.Errorf("medium integer atom is not implemented")
			}
		case b[0]&0xF0 == 0xE0:
			isbyte := b[0]&0x02 > 0
			if len(b) < 4 {
				return nil, nil, fmt.Errorf("long atom truncated")
			}
			s = int(b[1])<<16 | int(b[2])<<8 | int(b[3])
			if isbyte {
				if len(b) < 4+s {
					return nil, nil, fmt.Errorf("long atom truncated")
				}
				bc := make([]byte, s)
				copy(bc, b[4:4+s])
				x = bc
				s += 4
			} else {
				return nil, nil, fmt.Errorf("long integer atom is not implemented")
			}
		case b[0] == byte(StartList):
			list, rest, err := internalDecode(b[1:], depth+1)
			if err != nil {
				return nil, nil, err
			}
			s = len(b) - len(rest)
			x = list
		case b[0] == byte(EndList):
			if depth == 0 {
				return nil, nil, ErrUnbalancedList
			}
			b = b[1:]
			return res, b, nil
		case b[0]&0xF0 == 0xF0:
			x = TokenType(b[0])
			// 3.2.2.3.1.5 Empty Atom: SHALL be ignored by the receiver.
			if x == EmptyAtom {
				x = nil
			}
		default:
			return nil, nil, fmt.Errorf("unknown atom 0x%02x", b[0])
		}
		if x != nil {
			res = append(res, x)
		}
		b = b[s:]
	}
	return res, b, nil
}

// DecodeFlat decodes b into a single flat sequence of atoms, without
// recursing into StartList/EndList — they are returned as plain
// TokenType values like any other token. This matches how a session
// response is addressed: by fixed numeric offset into the raw token
// sequence, not by walking a parsed list structure.
func DecodeFlat(b []byte) (List, error) {
	res := List{}
	for len(b) > 0 {
		s := 1
		var x interface{}
		switch {
		case b[0]&0x80 == 0:
			x = uint64(b[0])
		case b[0]&0xC0 == 0x80:
			isbyte := b[0]&0x20 > 0
			s = int(b[0] & 0xf)
			if len(b) < 1+s {
				return nil, fmt.Errorf("short atom truncated")
			}
			if isbyte {
				bc := make([]byte, s)
				copy(bc, b[1:1+s])
				x = bc
			} else {
				var v uint64
				for _, i := range b[1 : 1+s] {
					v = v<<8 | uint64(i)
				}
				x = v
			}
			s++
		case b[0]&0xE0 == 0xC0:
			isbyte := b[0]&0x10 > 0
			if len(b) < 2 {
				return nil, fmt.Errorf("medium atom truncated")
			}
			s = int(b[0]&0x7)<<8 | int(b[1])
			if !isbyte {
				return nil, fmt.Errorf("medium integer atom is not implemented")
			}
			if len(b) < 2+s {
				return nil, fmt.Errorf("medium atom truncated")
			}
			bc := make([]byte, s)
			copy(bc, b[2:2+s])
			x = bc
			s += 2
		case b[0]&0xF0 == 0xE0:
			isbyte := b[0]&0x02 > 0
			if len(b) < 4 {
				return nil, fmt.Errorf("long atom truncated")
			}
			s = int(b[1])<<16 | int(b[2])<<8 | int(b[3])
			if !isbyte {
				return nil, fmt.Errorf("long integer atom is not implemented")
			}
			if len(b) < 4+s {
				return nil, fmt.Errorf("long atom truncated")
			}
			bc := make([]byte, s)
			copy(bc, b[4:4+s])
			x = bc
			s += 4
		default:
			// Every remaining class (tokens 0xF0-0xFF, including
			// StartList/EndList) is a single reserved byte at this layer.
			x = TokenType(b[0])
			if x == EmptyAtom {
				x = nil
			}
		}
		if x != nil {
			res = append(res, x)
		}
		b = b[s:]
	}
	return res, nil
}

func EqualBytes(obj interface{}, b []byte) bool {
	bd, ok := obj.([]byte)
	if !ok {
		return false
	}
	if len(b) == 0 && len(bd) == 0 {
		return true
	}
	return bytes.Equal(b, bd)
}

func EqualToken(obj interface{}, t TokenType) bool {
	if byt, ok := obj.([]byte); ok {
		return bytes.Equal(byt, []byte{uint8(t)})
	}
	bd, ok := obj.(TokenType)
	if !ok {
		return false
	}
	return bd == t
}

func EqualUInt(obj interface{}, v uint64) bool {
	bd, ok := obj.(uint64)
	if !ok {
		return false
	}
	return bd == v
}

// GetUInt reads list[index] as an unsigned integer atom, as required when
// decoding the HSN/TSN fields out of a Start-Session response or a status
// list out of a method's trailing EndOfData marker.
func GetUInt(list List, index int) (uint64, error) {
	if index >= len(list) {
		return 0, fmt.Errorf("token index %d out of range", index)
	}
	switch v := list[index].(type) {
	case uint64:
		return v, nil
	default:
		return 0, fmt.Errorf("token at index %d is not an unsigned integer atom", index)
	}
}
