// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// opalunlock is a development-host stand-in for the pre-boot unlocker's
// orchestrator: it parses the same `\config` verb file the firmware build
// reads, drives pkg/preboot against real /dev/nvme* controllers through
// fwsvc/linuxsvc, and reports the outcome on the controlling terminal
// instead of chain-loading an image. It exists to exercise the L7
// orchestrator off real firmware; it is never the production binary.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/open-source-firmware/opal-pba-unlock/pkg/cmdutil"
	"github.com/open-source-firmware/opal-pba-unlock/pkg/config"
	"github.com/open-source-firmware/opal-pba-unlock/pkg/fwsvc"
	"github.com/open-source-firmware/opal-pba-unlock/pkg/fwsvc/linuxsvc"
	"github.com/open-source-firmware/opal-pba-unlock/pkg/preboot"
)

// On real firmware preboot.Run only returns on failure; a firmware build
// would log the tagged error, show preboot.DumpFatal's debug rendering,
// pause, and cold-reset (§6 "Exit behavior"). This development driver logs
// the same diagnostic and exits instead of resetting the host it's running
// on; since linuxsvc's launcher returns nil, Run returns nil on success here.


const (
	programName = "opalunlock"
	programDesc = "Development-host driver for the pre-boot Opal unlocker"
)

var cli struct {
	Config   string `arg:"" required:"" help:"Path to the unlocker's \\config verb file"`
	Device   string `optional:"" default:"/dev/nvme*n1" help:"Glob pattern for NVMe controller device nodes"`
	BaseDir  string `optional:"" default:"." help:"Directory standing in for the EFI system partition"`
	Password string `required:"" type:"password" help:"Preset password for scripted testing (prompts interactively at parse time if omitted)"`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name(programName),
		kong.Description(programDesc),
		kong.UsageOnError(),
		kong.Resolvers(cmdutil.ResolvePassword(false)),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true, Summary: true}))

	err := run()
	ctx.FatalIfErrorf(err)
}

func run() error {
	data, err := os.ReadFile(cli.Config)
	if err != nil {
		return fmt.Errorf("reading config %s: %w", cli.Config, err)
	}
	cfg, err := config.Parse(data)
	if err != nil {
		return fmt.Errorf("parsing config %s: %w", cli.Config, err)
	}

	svc := linuxsvc.New(cli.BaseDir)
	svc.Enumerator = linuxsvc.GlobEnumerator{Pattern: cli.Device}
	svc.Prompter = fixedPrompter{password: cli.Password}

	if err := preboot.Run(context.Background(), svc, cfg); err != nil {
		fmt.Fprintln(os.Stderr, preboot.DumpFatal(err))
		return err
	}
	fmt.Println("opalunlock: unlock sequence completed")
	return nil
}

// fixedPrompter supplies a single preset password instead of reading the
// TTY, so the orchestrator's retry loop can be exercised in a script
// without an interactive terminal. It never aborts: a script supplying the
// wrong password would otherwise spin forever against NOT_AUTHORIZED, so
// callers relying on this for CI should only supply a known-correct one.
type fixedPrompter struct {
	password string
}

func (f fixedPrompter) ReadPassword(prompt string) (string, bool, error) {
	fmt.Print(prompt, "<preset>\n")
	return f.password, false, nil
}

func (f fixedPrompter) ClearScreen() error { return nil }

var _ fwsvc.PasswordPrompter = fixedPrompter{}
