// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package opal

import (
	"context"
	"errors"
	"testing"

	"github.com/open-source-firmware/opal-pba-unlock/pkg/drive"
	"github.com/open-source-firmware/opal-pba-unlock/pkg/method"
	"github.com/open-source-firmware/opal-pba-unlock/pkg/packet"
	"github.com/open-source-firmware/opal-pba-unlock/pkg/session"
	"github.com/open-source-firmware/opal-pba-unlock/pkg/stream"
	"github.com/open-source-firmware/opal-pba-unlock/pkg/uid"
)

type fakeDrive struct {
	responses [][]byte
	next      int
	sent      [][]byte
}

func (f *fakeDrive) IFSend(proto drive.SecurityProtocol, sps uint16, data []byte) error {
	f.sent = append(f.sent, append([]byte(nil), data...))
	return nil
}

func (f *fakeDrive) IFRecv(proto drive.SecurityProtocol, sps uint16, data *[]byte) error {
	if f.next >= len(f.responses) {
		return errors.New("fakeDrive: no more scripted responses")
	}
	resp := f.responses[f.next]
	f.next++
	buf := make([]byte, len(*data))
	copy(buf, resp)
	*data = buf
	return nil
}

func (f *fakeDrive) Identify() (*drive.Identity, error) { return nil, drive.ErrNotSupported }
func (f *fakeDrive) SerialNumber() ([]byte, error)      { return nil, drive.ErrNotSupported }
func (f *fakeDrive) Align() int                         { return 4 }
func (f *fakeDrive) Close() error                       { return nil }

func startSessionPayload(hsn, tsn uint64) []byte {
	list := stream.List{
		stream.Call, []byte{}, []byte{}, stream.StartList,
		hsn, tsn,
		stream.EndList,
	}
	var out []byte
	for _, tok := range list {
		switch v := tok.(type) {
		case stream.TokenType:
			out = append(out, stream.Token(v)...)
		case uint64:
			out = append(out, stream.UInt(v)...)
		case []byte:
			b, _ := stream.Bytes(v)
			out = append(out, b...)
		}
	}
	return out
}

func successPayload() []byte {
	payload, _ := method.New(uid.OpalSMUID, uid.MethodSet).MarshalBinary()
	return payload
}

func newTestSession(t *testing.T, extraResponses ...[]byte) (*session.Session, *fakeDrive) {
	t.Helper()
	d := &fakeDrive{responses: [][]byte{
		packet.Build(1, 0, 0, startSessionPayload(1, 0x8000_0002), 4),
	}}
	d.responses = append(d.responses, extraResponses...)

	s, err := session.Start(context.Background(), d, 1, uid.LockingSP, uid.LockingAuthorityBandMaster0, []byte("secret"), false)
	if err != nil {
		t.Fatalf("session.Start: %v", err)
	}
	return s, d
}

func TestSetMBRDone(t *testing.T) {
	s, _ := newTestSession(t, packet.Build(1, 0x8000_0002, 1, successPayload(), 4))
	if err := SetMBRDone(context.Background(), s, true); err != nil {
		t.Errorf("SetMBRDone returned error: %v", err)
	}
}

func TestSetLockingRangeGlobalLocked(t *testing.T) {
	s, _ := newTestSession(t, packet.Build(1, 0x8000_0002, 1, successPayload(), 4))
	if err := SetLockingRange(context.Background(), s, 0, LockingStateLocked); err != nil {
		t.Errorf("SetLockingRange returned error: %v", err)
	}
}

func TestSetLockingRangeArchiveSkipsWriteLocked(t *testing.T) {
	s, d := newTestSession(t, packet.Build(1, 0x8000_0002, 1, successPayload(), 4))
	if err := SetLockingRange(context.Background(), s, 3, LockingStateArchiveUnlocked); err != nil {
		t.Errorf("SetLockingRange returned error: %v", err)
	}
	resp, err := packet.Parse(d.sent[len(d.sent)-1])
	if err != nil {
		t.Fatalf("parsing sent Set command: %v", err)
	}
	tokens, err := stream.DecodeFlat(resp.Payload)
	if err != nil {
		t.Fatalf("decoding sent Set command: %v", err)
	}
	for i := 0; i+1 < len(tokens); i++ {
		if stream.EqualToken(tokens[i], stream.StartName) && stream.EqualUInt(tokens[i+1], colWriteLocked) {
			t.Errorf("archive Set command carries a WriteLocked column: %v", tokens)
		}
	}
}

func TestSetMBRDonePropagatesFailureStatus(t *testing.T) {
	mc := method.New(uid.OpalSMUID, uid.MethodSet)
	payload, err := mc.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	payload = payload[:len(payload)-4]
	payload = append(payload, stream.UInt(0x0C)...) // INVALID_PARAMETER
	payload = append(payload, stream.UInt(0)...)
	payload = append(payload, stream.UInt(0)...)
	payload = append(payload, stream.Token(stream.EndList)...)

	s, _ := newTestSession(t, packet.Build(1, 0x8000_0002, 1, payload, 4))
	if err := SetMBRDone(context.Background(), s, false); !errors.Is(err, method.ErrStatusInvalidParameter) {
		t.Errorf("SetMBRDone error = %v; want %v", err, method.ErrStatusInvalidParameter)
	}
}
