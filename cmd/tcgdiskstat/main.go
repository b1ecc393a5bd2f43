// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// tcgdiskstat is a fleet provisioning/monitoring tool: it walks every block
// device on the host, runs Level-0 Discovery against the NVMe ones, and
// reports which are Opal-capable and whether they are currently locked. It
// is ambient tooling, not part of the pre-boot hot path and does not
// implement any of the Non-goals this module otherwise rules out.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/open-source-firmware/opal-pba-unlock/pkg/discovery"
	"github.com/open-source-firmware/opal-pba-unlock/pkg/drive"
)

var (
	outputFmt = flag.String("output", "table", "Output format; one of [table, json, openmetrics]")
	noHeader  = flag.Bool("no-header", false, "Supress the header in table format output")
)

// DeviceState is one enumerated block device's identity plus its parsed
// Level-0 Discovery result. Level0 is nil when Level-0 Discovery failed for
// the device: no answer to the TCG Security-Receive, or a response with an
// incompatible header version.
type DeviceState struct {
	Device   string
	Identity *drive.Identity
	Level0   *discovery.Level0
}

type Devices []DeviceState

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
		fmt.Println()
		flag.PrintDefaults()
		fmt.Println()
		fmt.Println("The following state flags might be shown:")
		fmt.Println("  L/l - Locking is supported and is enabled (L) or disabled (l)")
		fmt.Println("  M/m - MBR is enabled and is active (M) or hidden (m)")
		fmt.Println("  E   - The device has media encryption")
		fmt.Println()
	}
	flag.Parse()

	sysblk, err := os.ReadDir("/sys/class/block/")
	if err != nil {
		log.Printf("Failed to enumerate block devices: %v", err)
		return
	}

	var state Devices

	for _, fi := range sysblk {
		devname := fi.Name()
		if _, err := os.Stat(filepath.Join("/sys/class/block", devname, "device")); os.IsNotExist(err) {
			continue
		}
		devpath := filepath.Join("/dev", devname)
		if _, err := os.Stat(devpath); os.IsNotExist(err) {
			log.Printf("Failed to find device node %s", devpath)
			continue
		}

		d, err := drive.Open(devpath)
		if err != nil {
			log.Printf("drive.Open(%s): %v", devpath, err)
			continue
		}
		defer d.Close()
		identity, err := d.Identify()
		if err != nil {
			log.Printf("drive.Identify(%s): %v", devpath, err)
		}
		d0, err := discovery.Discovery0(d)
		if err != nil {
			if err != discovery.ErrIncompatibleVersion {
				log.Printf("discovery.Discovery0(%s): %v", devpath, err)
			}
			d0 = nil
		}
		state = append(state, DeviceState{
			Device:   devpath,
			Identity: identity,
			Level0:   d0,
		})
	}

	switch *outputFmt {
	case "json":
		outputJSON(state)
	case "openmetrics":
		outputMetrics(state)
	case "table":
		outputTable(state)
	default:
		fmt.Printf("Unsupported output format %q\n", *outputFmt)
		flag.Usage()
		os.Exit(2)
	}
}

func outputJSON(state Devices) {
	b, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal JSON: %v", err)
	}
	os.Stdout.Write(b)
}

// sscFeatures reports which Security Subsystem Classes a parsed Level-0
// result advertises. This module only ever drives Enterprise and Opal v2
// sessions (§1 Non-goals rule out Opal 1.0-only drives), so those are the
// only two it recognizes.
func sscFeatures(l0 *discovery.Level0) []string {
	feat := []string{}
	if l0.Enterprise != nil {
		feat = append(feat, "Enterprise")
	}
	if l0.OpalV2 != nil {
		feat = append(feat, "Opal 2")
	}
	return feat
}

func outputTable(state Devices) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	if !*noHeader {
		fmt.Fprintf(w, "DEVICE\tMODEL\tSERIAL\tFIRMWARE\tPROTOCOL\tSSC\tSTATE\n")
	}
	for _, s := range state {
		feat := []string{}
		st := ""
		if s.Level0 != nil {
			feat = sscFeatures(s.Level0)
			if l := s.Level0.Locking; l != nil {
				switch {
				case l.Has(discovery.LockingEnabled):
					st += "L"
				case l.Has(discovery.LockingSupported):
					st += "l"
				}
				if l.Has(discovery.MBREnabled) {
					if l.Has(discovery.MBRDone) {
						st += "m"
					} else {
						st += "M"
					}
				}
				if l.Has(discovery.MediaEncryption) {
					st += "E"
				}
			}
		} else {
			st = "-"
			feat = []string{"-"}
		}

		model, serial, firmware, proto := "-", "-", "-", "-"
		if s.Identity != nil {
			model, serial, firmware, proto = s.Identity.Model, s.Identity.SerialNumber, s.Identity.Firmware, s.Identity.Protocol
		}
		fmt.Fprint(w,
			s.Device, "\t",
			model, "\t",
			serial, "\t",
			firmware, "\t",
			proto, "\t",
			strings.Join(feat, ","), "\t",
			st, "\t",
			"\n")
	}
	w.Flush()
}
