// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package session implements the Opal session engine: Start-Session
// handshake, method execution over an established (TSN, HSN) pair, and
// Close-Session teardown.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/open-source-firmware/opal-pba-unlock/pkg/drive"
	"github.com/open-source-firmware/opal-pba-unlock/pkg/method"
	"github.com/open-source-firmware/opal-pba-unlock/pkg/packet"
	"github.com/open-source-firmware/opal-pba-unlock/pkg/stream"
	"github.com/open-source-firmware/opal-pba-unlock/pkg/uid"
)

// hostSessionNumber is the fixed nonce this module presents as its Host
// Session Number on every Start-Session call. The TPer's assigned Session
// Number is the only one that matters for addressing subsequent packets.
const hostSessionNumber = 105

var ErrNoMethodStatus = errors.New("session: response did not carry a method status list")

// Session is an open (TSN, HSN) pair against a TPer's security provider.
type Session struct {
	drive        drive.Intf
	comID        uint16
	tsn, hsn     uint32
	pollInterval time.Duration
	pollTimeout  time.Duration
}

type Option func(*Session)

func WithPollInterval(d time.Duration) Option { return func(s *Session) { s.pollInterval = d } }
func WithPollTimeout(d time.Duration) Option  { return func(s *Session) { s.pollTimeout = d } }

// Start opens a session against spID, presenting authority/challenge as the
// HostSigningAuthority/HostChallenge optional parameters of the
// Start-Session call itself (Opal's in-band session authentication,
// rather than a separate Authenticate method invocation). challenge may be
// nil to start an anonymous (Anybody) session.
//
// If enterprise is true, the challenge and authority are not sent and a
// SessionTimeout optional parameter is sent instead; some Opal v2
// (non-Enterprise) drives reject that parameter outright, so on
// INVALID_PARAMETER the call is retried once as a non-Enterprise call
// (with the challenge, without SessionTimeout).
func Start(ctx context.Context, d drive.Intf, comID uint16, spID uid.SPID, authority uid.AuthorityObjectUID, challenge []byte, enterprise bool, opts ...Option) (*Session, error) {
	s := &Session{
		drive:        d,
		comID:        comID,
		pollInterval: 25 * time.Millisecond,
		pollTimeout:  5 * time.Second,
	}
	for _, o := range opts {
		o(s)
	}

	resp, err := s.startSessionCall(ctx, spID, authority, challenge, enterprise)
	if enterprise && errors.Is(err, method.ErrStatusInvalidParameter) {
		resp, err = s.startSessionCall(ctx, spID, authority, challenge, false)
	}
	if err != nil {
		return nil, err
	}

	hsn, err := stream.GetUInt(resp, 4)
	if err != nil {
		return nil, fmt.Errorf("session: reading assigned HSN: %w", err)
	}
	tsn, err := stream.GetUInt(resp, 5)
	if err != nil {
		return nil, fmt.Errorf("session: reading assigned TSN: %w", err)
	}
	s.hsn = uint32(hsn)
	s.tsn = uint32(tsn)
	return s, nil
}

func (s *Session) startSessionCall(ctx context.Context, spID uid.SPID, authority uid.AuthorityObjectUID, challenge []byte, enterprise bool) (stream.List, error) {
	mc := method.New(uid.OpalSMUID, uid.MethodStartSession)
	mc.UInt(hostSessionNumber)
	mc.Bytes(spID[:])
	mc.UInt(1) // write access requested

	if !enterprise && len(challenge) > 0 {
		mc.StartOptionalParameter(0) // HostChallenge
		mc.Bytes(challenge)
		mc.EndOptionalParameter()
		mc.StartOptionalParameter(3) // HostSigningAuthority
		mc.Bytes(authority[:])
		mc.EndOptionalParameter()
	}
	if enterprise {
		mc.StartOptionalParameter(5) // SessionTimeout
		mc.UInt(60000)
		mc.EndOptionalParameter()
	}

	payload, err := mc.MarshalBinary()
	if err != nil {
		return nil, err
	}
	tokens, err := s.sendRaw(ctx, 0, 0, payload)
	if err != nil {
		return nil, err
	}
	// A failed Start-Session still comes back wrapped in a method status
	// list (no HSN/TSN tokens present); surface the real status instead
	// of a confusing "index out of range" once the caller reaches for
	// token 4/5.
	if statusErr := checkMethodStatus(tokens); statusErr != nil && !errors.Is(statusErr, ErrNoMethodStatus) {
		return nil, statusErr
	}
	return tokens, nil
}

// ExecuteMethod sends mc over the established session and returns an error
// if the TPer's reply carries a non-SUCCESS status.
func (s *Session) ExecuteMethod(ctx context.Context, mc *method.MethodCall) (stream.List, error) {
	payload, err := mc.MarshalBinary()
	if err != nil {
		return nil, err
	}
	tokens, err := s.sendRaw(ctx, s.tsn, s.hsn, payload)
	if err != nil {
		return nil, err
	}
	if err := checkMethodStatus(tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

// Close sends ENDOFSESSION and tears the session down. The TPer's
// acknowledgement does not itself carry a method status list, so
// ErrNoMethodStatus is the expected, successful outcome; any other error,
// or an explicit non-SUCCESS status, is reported to the caller.
func (s *Session) Close(ctx context.Context) error {
	payload, _ := (&method.EOSCall{}).MarshalBinary()
	tokens, err := s.sendRaw(ctx, s.tsn, s.hsn, payload)
	if err != nil {
		return err
	}
	if err := checkMethodStatus(tokens); err != nil {
		if errors.Is(err, ErrNoMethodStatus) {
			return nil
		}
		return err
	}
	return nil
}

func checkMethodStatus(tokens stream.List) error {
	if len(tokens) < 6 {
		return ErrNoMethodStatus
	}
	tail := tokens[len(tokens)-6:]
	if !stream.EqualToken(tail[0], stream.EndOfData) ||
		!stream.EqualToken(tail[1], stream.StartList) ||
		!stream.EqualToken(tail[5], stream.EndList) {
		return ErrNoMethodStatus
	}
	status, ok := tail[2].(uint64)
	if !ok {
		return ErrNoMethodStatus
	}
	if status != method.StatusSuccess {
		return method.StatusError(status)
	}
	return nil
}

// recvBufferSize is the minimum receive buffer this module allocates per
// poll attempt, per §4.5's "Allocate a 2048-byte aligned receive buffer".
const recvBufferSize = 2048

// sendRaw frames payload, sends it, and polls until the TPer reports the
// response is ready (OutstandingData == 0, or MinTransfer != 0 meaning
// this read already carries the full reply). Every buffer handed to the
// transport is allocated through drive.NewAlignedBuffer at the transport's
// own Align(), per §4.1/§9's aligned-allocation requirement.
func (s *Session) sendRaw(ctx context.Context, tsn, hsn uint32, payload []byte) (stream.List, error) {
	align := s.drive.Align()
	framed := packet.Build(s.comID, tsn, hsn, payload, align)
	sendBuf := drive.NewAlignedBuffer(len(framed), align)
	copy(sendBuf, framed)
	if err := s.drive.IFSend(drive.SecurityProtocolTCGTPer, s.comID, sendBuf); err != nil {
		return nil, fmt.Errorf("session: security send: %w", err)
	}

	deadline := time.Now().Add(s.pollTimeout)
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		buf := drive.NewAlignedBuffer(recvBufferSize, align)
		if err := s.drive.IFRecv(drive.SecurityProtocolTCGTPer, s.comID, &buf); err != nil {
			return nil, fmt.Errorf("session: security receive: %w", err)
		}
		resp, err := packet.Parse(buf)
		if err != nil {
			return nil, fmt.Errorf("session: parsing response packet: %w", err)
		}
		if resp.OutstandingData == 0 || resp.MinTransfer != 0 {
			if len(resp.Payload) == 0 {
				return stream.List{}, nil
			}
			return stream.DecodeFlat(resp.Payload)
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("session: timed out waiting for TPer response")
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.pollInterval):
		}
	}
}
