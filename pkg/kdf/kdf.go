// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package kdf derives an Opal credential from an operator-entered
// passphrase and the drive's serial number.
package kdf

import (
	"crypto/sha1"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	iterations = 75000
	keyLength  = 32
	saltLength = 20
)

// Derive returns the 32-byte PBKDF2-HMAC-SHA1 credential for password,
// salted with serial padded (or truncated) to 20 characters. This exact
// scheme, iteration count and key length are a compatibility constant: any
// drive that was provisioned against this derivation must keep unlocking
// with it.
func Derive(password, serial string) []byte {
	salt := fmt.Sprintf("%-*s", saltLength, serial)
	return pbkdf2.Key([]byte(password), []byte(salt[:saltLength]), iterations, keyLength, sha1.New)
}
