// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build linux

// Package linuxsvc implements fwsvc.Services against a plain Linux host:
// a real TTY for password entry, /dev/nvme*n1 controllers opened through
// pkg/drive, and a local directory standing in for the boot volume. It
// exists to develop and test the L7 orchestrator off real firmware; it is
// never the production wiring.
package linuxsvc

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/open-source-firmware/opal-pba-unlock/pkg/drive"
	"github.com/open-source-firmware/opal-pba-unlock/pkg/fwsvc"
)

// TTYPrompter reads a masked password from the given terminal fd (usually
// os.Stdin's), following the same term.ReadPassword pattern as the kong
// CLI's own password resolver.
type TTYPrompter struct {
	In  io.Reader
	Out io.Writer
	Fd  int
}

func NewTTYPrompter() *TTYPrompter {
	return &TTYPrompter{In: os.Stdin, Out: os.Stdout, Fd: int(os.Stdin.Fd())}
}

func (p *TTYPrompter) ReadPassword(prompt string) (string, bool, error) {
	fmt.Fprint(p.Out, prompt)
	var line []byte
	var err error
	if term.IsTerminal(p.Fd) {
		line, err = term.ReadPassword(p.Fd)
		fmt.Fprintln(p.Out)
	} else {
		line, err = bufio.NewReader(p.In).ReadBytes('\n')
	}
	if err != nil {
		if err == io.EOF {
			return "", true, nil
		}
		return "", false, fmt.Errorf("linuxsvc: reading password: %w", err)
	}
	return strings.TrimRight(string(line), "\r\n"), false, nil
}

func (p *TTYPrompter) ClearScreen() error {
	_, err := fmt.Fprint(p.Out, "\033[H\033[2J")
	return err
}

// RealSleeper sleeps the wall clock.
type RealSleeper struct{}

func (RealSleeper) Sleep(d time.Duration) { time.Sleep(d) }

// LoggingPower stands in for a real cold-reset/shutdown call: production
// firmware wiring replaces this with the platform reset service. Bringing
// an actual host down is never appropriate for a development harness.
type LoggingPower struct{}

func (LoggingPower) ColdReset() error {
	log.Println("linuxsvc: cold-reset requested (no-op on a development host)")
	return nil
}

func (LoggingPower) Shutdown() error {
	log.Println("linuxsvc: shutdown requested (no-op on a development host)")
	return nil
}

// GlobEnumerator lists lockable controllers by globbing NVMe namespace
// device nodes, the closest Linux equivalent to walking block-I/O handles
// by device path.
type GlobEnumerator struct {
	Pattern string // defaults to /dev/nvme*n1
}

func (e GlobEnumerator) ListLockableControllers() ([]fwsvc.Controller, error) {
	pattern := e.Pattern
	if pattern == "" {
		pattern = "/dev/nvme*n1"
	}
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("linuxsvc: globbing %s: %w", pattern, err)
	}
	var out []fwsvc.Controller
	for _, path := range paths {
		d, err := drive.Open(path)
		if err != nil {
			log.Printf("linuxsvc: skipping %s: %v", path, err)
			continue
		}
		out = append(out, fwsvc.Controller{Handle: path, Drive: d})
	}
	return out, nil
}

// NoopReenumerator logs instead of forcing a rescan: a development host's
// kernel already owns block-device enumeration, unlike firmware's
// connect/disconnect-controller protocol calls.
type NoopReenumerator struct{}

func (NoopReenumerator) Reenumerate(handle string) error {
	log.Printf("linuxsvc: would reconnect controller %s to surface newly-unlocked partitions", handle)
	return nil
}

// DirVolume reads boot-image files out of a local directory, standing in
// for the real EFI System Partition/FAT lookup.
type DirVolume struct {
	BaseDir string
}

func (v DirVolume) ReadSystemPartitionFile(path string) ([]byte, error) {
	full := filepath.Join(v.BaseDir, filepath.FromSlash(strings.ReplaceAll(path, `\`, "/")))
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("linuxsvc: reading %s: %w", full, err)
	}
	return data, nil
}

// LoggingLauncher stands in for handle_protocol/load_image/start_image: it
// only logs what it would have launched and returns nil. It does not check
// the image's PE/COFF header.
type LoggingLauncher struct{}

func (LoggingLauncher) Launch(image []byte, cmdline string) error {
	log.Printf("linuxsvc: would launch %d-byte image with args %q", len(image), cmdline)
	return nil
}

// New assembles a full fwsvc.Services backed by this package's
// implementations, rooted at baseDir for boot-volume file reads.
func New(baseDir string) fwsvc.Services {
	return fwsvc.Services{
		Prompter:   NewTTYPrompter(),
		Sleeper:    RealSleeper{},
		Power:      LoggingPower{},
		Enumerator: GlobEnumerator{},
		Reenum:     NoopReenumerator{},
		Volume:     DirVolume{BaseDir: baseDir},
		Launcher:   LoggingLauncher{},
	}
}
