// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fwsvc names the firmware-services boundary the pre-boot
// orchestrator is built against: console I/O, sleeping, power control,
// controller enumeration/re-enumeration, and boot-image load/start. A real
// firmware build wires these against UEFI protocols (or an equivalent
// bare-metal runtime); fwsvc/linuxsvc wires them against a development
// Linux host so the orchestrator can be exercised and tested without one.
package fwsvc

import (
	"time"

	"github.com/open-source-firmware/opal-pba-unlock/pkg/drive"
)

// PasswordPrompter reads an operator passphrase from the console.
type PasswordPrompter interface {
	// ReadPassword displays prompt and reads a line of masked input.
	// aborted is true if the operator requested shutdown (e.g. Escape)
	// instead of completing entry.
	ReadPassword(prompt string) (password string, aborted bool, err error)
	ClearScreen() error
}

// Sleeper performs the cooperative, single-threaded stalls this module
// ever needs: inter-poll delays and the fixed error/lockout pauses.
type Sleeper interface {
	Sleep(d time.Duration)
}

// PowerController terminates the pre-boot phase by resetting the machine.
// Both methods are expected not to return on real firmware; returning at
// all signals that the underlying platform call itself failed.
type PowerController interface {
	ColdReset() error
	Shutdown() error
}

// Controller is one attached, lockable NVMe controller: its transport and
// an opaque handle identifying it to the firmware's device-path-keyed
// enumeration services.
type Controller struct {
	Handle string
	Drive  drive.Intf
}

// ControllerEnumerator lists the NVMe controllers whose media is not
// itself a logical partition — the candidates for Opal discovery.
type ControllerEnumerator interface {
	ListLockableControllers() ([]Controller, error)
}

// Reenumerator forces the firmware to forget and rediscover a controller's
// child partitions after an unlock changes what's visible behind it.
type Reenumerator interface {
	Reenumerate(handle string) error
}

// BootVolume reads the next-stage image off the system boot volume.
type BootVolume interface {
	// ReadSystemPartitionFile reads path from the single EFI System
	// Partition GPT entry; it errors if there isn't exactly one.
	ReadSystemPartitionFile(path string) ([]byte, error)
}

// ImageLauncher loads and starts the next-stage image. Launch does not
// return to the caller on success; the returned image owns the machine.
type ImageLauncher interface {
	Launch(image []byte, cmdline string) error
}

// Services bundles every firmware collaborator the orchestrator needs,
// one small interface per concern, composed at the call site.
type Services struct {
	Prompter   PasswordPrompter
	Sleeper    Sleeper
	Power      PowerController
	Enumerator ControllerEnumerator
	Reenum     Reenumerator
	Volume     BootVolume
	Launcher   ImageLauncher
}
