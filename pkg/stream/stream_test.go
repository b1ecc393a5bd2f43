// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package stream

import (
	"bytes"
	"encoding/hex"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestTokenType_String(t *testing.T) {
	testCases := []struct {
		name string
		t    TokenType
		want string
	}{
		{"StartList", StartList, "StartList"},
		{"EndList", EndList, "EndList"},
		{"StartName", StartName, "StartName"},
		{"EndName", EndName, "EndName"},
		{"Call", Call, "Call"},
		{"EndOfData", EndOfData, "EndOfData"},
		{"EndOfSession", EndOfSession, "EndOfSession"},
		{"StartTransaction", StartTransaction, "StartTransaction"},
		{"EndTransaction", EndTransaction, "EndTransaction"},
		{"EmptyAtom", EmptyAtom, "EmptyAtom"},
		{"Unknown", 0, "<Unknown>"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.t.String(); got != tc.want {
				t.Errorf("String() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestUInt(t *testing.T) {
	testCases := []struct {
		name string
		data uint64
		want []byte
	}{
		{"32", 32, []byte{uint8(32)}},
		{"255", 255, []byte{0x81, 0xFF}},
		{"32768", 32768, []byte{0x82, 0x80, 0x00}},
		{"131072", 131072, []byte{0x84, 0x00, 0x02, 0x00, 0x00}},
		{"beyond 32 bits", 0x100000000, []byte{0x88, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := UInt(tc.data)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("UInt(%v) = %v; want %v", tc.data, got, tc.want)
			}
		})
	}
}

func TestBytes(t *testing.T) {
	testCases := []struct {
		name string
		data string
		want string
	}{
		{"Null", "", "A1 00"},
		{"Tiny byte", "2F", "A1 2F"},
		{"Short byte", "8F", "A1 8F"},
		{"8 bytes", "01 02 03 04 05 06 07 08", "A8 01 02 03 04 05 06 07 08"},
		{"60 bytes",
			strings.Repeat("464f4f424152", 10),
			"d03c" + strings.Repeat("464f4f424152", 10),
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			in, _ := hex.DecodeString(strings.ReplaceAll(tc.data, " ", ""))
			want, _ := hex.DecodeString(strings.ReplaceAll(tc.want, " ", ""))
			got, err := Bytes(in)
			if err != nil {
				t.Fatalf("Bytes(%x) returned error: %v", in, err)
			}
			if !bytes.Equal(got, want) {
				t.Errorf("Bytes(%x) = %x; want %x", in, got, want)
			}
		})
	}
}

func TestBytesTooLarge(t *testing.T) {
	if _, err := Bytes(make([]byte, 2048)); !errors.Is(err, ErrBytestringSize) {
		t.Errorf("Bytes(2048 zero bytes) error = %v; want %v", err, ErrBytestringSize)
	}
}

func TestDecode(t *testing.T) {
	testCases := []struct {
		name string
		data string
		want List
	}{
		{"Null", "A0", List{[]byte{}}},
		{"Call", "F8", List{Call}},
		{"Tiny byte", "A1 2F", List{[]byte{0x2f}}},
		{"Tiny uint", "2F", List{uint64(0x2f)}},
		{"Short byte", "A1 8F", List{[]byte{0x8f}}},
		{"Short uint", "81 8F", List{uint64(0x8f)}},
		{"8 bytes", "A8 01 02 03 04 05 06 07 08", List{[]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}}},
		{"16 bytes", "D0 10 01 02 03 04 05 06 07 08 01 02 03 04 05 06 07 08",
			List{[]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}}},
		{"Long byte", "E2 00 00 04 01 02 03 04", List{[]byte{0x01, 0x02, 0x03, 0x04}}},
		{"EmptyAtom", "FF", List{}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			in, _ := hex.DecodeString(strings.ReplaceAll(tc.data, " ", ""))
			got, err := Decode(in)
			if err != nil {
				t.Fatalf("Decode(%x) returned error: %v", in, err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Decode(%x) = %+v; want %+v", in, got, tc.want)
			}
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	testCases := []struct {
		name string
		data string
	}{
		{"MediumIntegerNotImplemented", "C0 00"},
		{"LongIntegerNotImplemented", "E0 00 00 00"},
		{"BadList", "F1"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			in, _ := hex.DecodeString(strings.ReplaceAll(tc.data, " ", ""))
			if _, err := Decode(in); err == nil {
				t.Errorf("Decode(%x) returned nil error, want one", in)
			}
		})
	}
}

func TestDecodeLists(t *testing.T) {
	testCases := []struct {
		name string
		data string
		want List
	}{
		{"Empty list", "F0 F1", List{List{}}},
		{"One element", "F0 F8 F1", List{List{Call}}},
		{"Two nested element", "F0 F0 F8 F8 F1 F1", List{List{List{Call, Call}}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			in, _ := hex.DecodeString(strings.ReplaceAll(tc.data, " ", ""))
			got, err := Decode(in)
			if err != nil {
				t.Fatalf("Decode(%x) returned error: %v", in, err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Decode(%x) = %+v; want %+v", in, got, tc.want)
			}
		})
	}
}

func TestDecodeFlatDoesNotRecurse(t *testing.T) {
	in, _ := hex.DecodeString(strings.ReplaceAll("F0 F8 F1", " ", ""))
	got, err := DecodeFlat(in)
	if err != nil {
		t.Fatalf("DecodeFlat returned error: %v", err)
	}
	want := List{StartList, Call, EndList}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("DecodeFlat(%x) = %+v; want %+v", in, got, want)
	}
}

func TestEqualBytes(t *testing.T) {
	testCases := []struct {
		name string
		data interface{}
		comp []byte
		want bool
	}{
		{"Equal byte slices", []byte{1, 2, 3}, []byte{1, 2, 3}, true},
		{"Different byte slices", []byte{1, 2, 3}, []byte{4, 5, 6}, false},
		{"Special nil case", []byte{}, []byte{}, true},
		{"Unrelated type", "not bytes", []byte{1, 2, 3}, false},
		{"Nil input", nil, []byte{1, 2, 3}, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := EqualBytes(tc.data, tc.comp); got != tc.want {
				t.Errorf("EqualBytes(%v, %v) = %v; want %v", tc.data, tc.comp, got, tc.want)
			}
		})
	}
}

func TestEqualToken(t *testing.T) {
	testCases := []struct {
		name string
		data interface{}
		comp TokenType
		want bool
	}{
		{"Equal TokenType values", StartList, StartList, true},
		{"Different TokenType values", StartList, EndList, false},
		{"Equal byte slice representation", Token(StartList), StartList, true},
		{"Mismatched byte slice", []byte{0}, StartList, false},
		{"Unrelated type", "StartList", StartList, false},
		{"Nil input", nil, StartList, false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := EqualToken(tc.data, tc.comp); got != tc.want {
				t.Errorf("EqualToken(%v, %v) = %v; want %v", tc.data, tc.comp, got, tc.want)
			}
		})
	}
}

func TestGetUInt(t *testing.T) {
	list := List{uint64(42), []byte{1, 2}}
	if got, err := GetUInt(list, 0); err != nil || got != 42 {
		t.Errorf("GetUInt(list, 0) = %v, %v; want 42, nil", got, err)
	}
	if _, err := GetUInt(list, 1); err == nil {
		t.Errorf("GetUInt(list, 1) returned nil error for a non-uint token")
	}
	if _, err := GetUInt(list, 5); err == nil {
		t.Errorf("GetUInt(list, 5) returned nil error for an out-of-range index")
	}
}
