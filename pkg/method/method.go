// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package method builds the token-stream payload of a single Opal method
// invocation: CALL, invoking UID, method UID, argument list, and the
// trailing EndOfData status list.
package method

import (
	"bytes"
	"errors"

	"github.com/open-source-firmware/opal-pba-unlock/pkg/stream"
	"github.com/open-source-firmware/opal-pba-unlock/pkg/uid"
)

var (
	ErrMethodListUnbalanced = errors.New("method argument list is unbalanced")

	// StatusCodeMap maps a method status code (the first value of a
	// response's trailing EndOfData status list) to a descriptive error.
	StatusCodeMap = map[uint64]error{
		0x00: errors.New("method returned status SUCCESS"),
		0x01: errors.New("method returned status NOT_AUTHORIZED"),
		0x02: errors.New("method returned status OBSOLETE"),
		0x03: errors.New("method returned status SP_BUSY"),
		0x04: errors.New("method returned status SP_FAILED"),
		0x05: errors.New("method returned status SP_DISABLED"),
		0x06: errors.New("method returned status SP_FROZEN"),
		0x07: errors.New("method returned status NO_SESSIONS_AVAILABLE"),
		0x08: errors.New("method returned status UNIQUENESS_CONFLICT"),
		0x09: errors.New("method returned status INSUFFICIENT_SPACE"),
		0x0A: errors.New("method returned status INSUFFICIENT_ROWS"),
		0x0B: errors.New("method returned status INVALID_FUNCTION"),
		0x0C: errors.New("method returned status INVALID_PARAMETER"),
		0x0D: errors.New("method returned status INVALID_REFERENCE"),
		0x0F: errors.New("method returned status TPER_MALFUNCTION"),
		0x10: errors.New("method returned status TRANSACTION_FAILURE"),
		0x11: errors.New("method returned status RESPONSE_OVERFLOW"),
		0x12: errors.New("method returned status AUTHORITY_LOCKED_OUT"),
		0x3F: errors.New("method returned status FAIL"),
	}

	StatusSuccess uint64 = 0x00

	ErrStatusNotAuthorized      = StatusCodeMap[0x01]
	ErrStatusInvalidParameter   = StatusCodeMap[0x0C]
	ErrStatusAuthorityLockedOut = StatusCodeMap[0x12]
)

// StatusError returns the descriptive error for a status code, or a generic
// "unrecognized status code" error if the code isn't in StatusCodeMap.
func StatusError(code uint64) error {
	if err, ok := StatusCodeMap[code]; ok {
		return err
	}
	return errors.New("method returned an unrecognized status code")
}

// Call is a token-stream producer: either a method invocation or the
// session-teardown EndOfSession token.
type Call interface {
	MarshalBinary() ([]byte, error)
	IsEOS() bool
}

// MethodCall incrementally builds one method invocation's argument list.
type MethodCall struct {
	buf   bytes.Buffer
	depth int
}

// New prepares a method call against iid/mid and opens its argument list.
func New(iid uid.InvokingID, mid uid.MethodID) *MethodCall {
	m := &MethodCall{}
	m.buf.Write(stream.Token(stream.Call))
	m.Bytes(iid[:])
	m.Bytes(mid[:])
	m.StartList()
	return m
}

func (m *MethodCall) IsEOS() bool { return false }

func (m *MethodCall) StartList() {
	m.depth++
	m.buf.Write(stream.Token(stream.StartList))
}

func (m *MethodCall) EndList() {
	m.depth--
	m.buf.Write(stream.Token(stream.EndList))
}

// StartOptionalParameter opens a Named-value optional parameter group keyed
// by its Core-spec-assigned column index.
func (m *MethodCall) StartOptionalParameter(id uint64) {
	m.depth++
	m.buf.Write(stream.Token(stream.StartName))
	m.buf.Write(stream.UInt(id))
}

func (m *MethodCall) EndOptionalParameter() {
	m.depth--
	m.buf.Write(stream.Token(stream.EndName))
}

func (m *MethodCall) Token(t stream.TokenType) {
	m.buf.Write(stream.Token(t))
}

// Bytes adds a bytestring atom. Oversized input is a programming error and
// panics, matching the fixed, small argument shapes this module ever builds.
func (m *MethodCall) Bytes(b []byte) {
	m.buf.Write(stream.MustBytes(b))
}

func (m *MethodCall) UInt(v uint64) {
	m.buf.Write(stream.UInt(v))
}

func (m *MethodCall) Bool(v bool) {
	if v {
		m.UInt(1)
	} else {
		m.UInt(0)
	}
}

// NamedUInt adds a complete StartName/name-atom/value/EndName group.
func (m *MethodCall) NamedUInt(name uint64, val uint64) {
	m.buf.Write(stream.Token(stream.StartName))
	m.buf.Write(stream.UInt(name))
	m.buf.Write(stream.UInt(val))
	m.buf.Write(stream.Token(stream.EndName))
}

func (m *MethodCall) NamedBool(name uint64, val bool) {
	if val {
		m.NamedUInt(name, 1)
	} else {
		m.NamedUInt(name, 0)
	}
}

// MarshalBinary finishes the argument list and appends the SUCCESS status
// list every outbound method call carries, per the Core spec's method
// invocation pseudo-code.
func (m *MethodCall) MarshalBinary() ([]byte, error) {
	mn := *m
	mn.EndList()
	mn.buf.Write(stream.Token(stream.EndOfData))
	mn.StartList()
	mn.buf.Write(stream.UInt(StatusSuccess))
	mn.buf.Write(stream.UInt(0))
	mn.buf.Write(stream.UInt(0))
	mn.EndList()
	if mn.depth != 0 {
		return nil, ErrMethodListUnbalanced
	}
	return mn.buf.Bytes(), nil
}

// EOSCall represents the session-teardown ENDOFSESSION token, sent in place
// of a method invocation to close a session.
type EOSCall struct{}

func (m *EOSCall) MarshalBinary() ([]byte, error) {
	return stream.Token(stream.EndOfSession), nil
}

func (m *EOSCall) IsEOS() bool { return true }
