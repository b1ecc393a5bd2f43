// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package preboot implements the orchestrator (L7): for every lockable
// NVMe controller, prompt for a password until the drive unlocks or its
// authority locks out, then chain-load the configured boot image.
package preboot

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/open-source-firmware/opal-pba-unlock/pkg/config"
	"github.com/open-source-firmware/opal-pba-unlock/pkg/discovery"
	"github.com/open-source-firmware/opal-pba-unlock/pkg/fwsvc"
	"github.com/open-source-firmware/opal-pba-unlock/pkg/kdf"
	"github.com/open-source-firmware/opal-pba-unlock/pkg/method"
	"github.com/open-source-firmware/opal-pba-unlock/pkg/opal"
	"github.com/open-source-firmware/opal-pba-unlock/pkg/session"
	"github.com/open-source-firmware/opal-pba-unlock/pkg/uid"
)

const (
	defaultPrompt      = "password: "
	defaultRetryPrompt = "bad password, retry: "
	lockoutPause       = 10 * time.Second
)

var ErrImageNotPeCoff = errors.New("preboot: configured image is not a PE/COFF (MZ) image")

// Run drives the whole pre-boot unlock sequence and, on success, chain
// loads the configured image. On real firmware a successful Launch does not
// return, so Run only returns when something failed; the caller is expected
// to log the error, pause, and reset the machine. If svc.Launcher returns
// nil (as a development launcher does), Run returns nil.
func Run(ctx context.Context, svc fwsvc.Services, cfg *config.Config) error {
	controllers, err := svc.Enumerator.ListLockableControllers()
	if err != nil {
		return tagLocation(fmt.Errorf("enumerating controllers: %w", err))
	}

	for _, c := range controllers {
		if err := unlockController(ctx, svc, cfg, c); err != nil {
			return err
		}
	}

	image, err := svc.Volume.ReadSystemPartitionFile(cfg.Image)
	if err != nil {
		return tagLocation(fmt.Errorf("reading boot image: %w", err))
	}
	if len(image) < 2 || image[0] != 0x4D || image[1] != 0x5A {
		return tagLocation(ErrImageNotPeCoff)
	}
	if err := svc.Launcher.Launch(image, cfg.Args); err != nil {
		return tagLocation(fmt.Errorf("launching boot image: %w", err))
	}
	return nil
}

// unlockController handles a single controller: skips it if Level-0
// Discovery reports it unlocked or without a Locking feature, otherwise
// prompts until it unlocks or locks out. A failed discovery, or a locked
// drive reporting neither Enterprise nor Opal v2, is returned as an error.
func unlockController(ctx context.Context, svc fwsvc.Services, cfg *config.Config, c fwsvc.Controller) error {
	level0, err := discovery.Discovery0(c.Drive)
	if err != nil {
		if errors.Is(err, discovery.ErrUnsupported) {
			return nil
		}
		return tagLocation(fmt.Errorf("%s: discovering Opal features: %w", c.Handle, err))
	}
	if !level0.IsLocked() {
		return nil
	}
	comID, isEnterprise, err := level0.ComID()
	if err != nil {
		return tagLocation(fmt.Errorf("%s: %w", c.Handle, err))
	}
	serial, err := c.Drive.SerialNumber()
	if err != nil {
		return tagLocation(fmt.Errorf("%s: reading serial number: %w", c.Handle, err))
	}
	salt := strings.TrimRight(string(serial), "\x00 ")

	prompt := defaultPrompt
	if cfg.Prompt != nil {
		prompt = *cfg.Prompt
	}
	retryPrompt := defaultRetryPrompt
	if cfg.RetryPrompt != nil {
		retryPrompt = *cfg.RetryPrompt
	}

	for {
		password, aborted, err := svc.Prompter.ReadPassword(prompt)
		if err != nil {
			return tagLocation(fmt.Errorf("%s: reading password: %w", c.Handle, err))
		}
		if aborted {
			return svc.Power.Shutdown()
		}

		challenge := kdf.Derive(password, salt)
		s, err := session.Start(ctx, c.Drive, comID, uid.LockingSP, uid.LockingAuthorityAdmin1, challenge, isEnterprise)
		if err != nil {
			switch {
			case errors.Is(err, method.ErrStatusAuthorityLockedOut):
				if cfg.SedLockedMsg != nil {
					log.Println(*cfg.SedLockedMsg)
				}
				svc.Sleeper.Sleep(lockoutPause)
				return svc.Power.ColdReset()
			case errors.Is(err, method.ErrStatusNotAuthorized):
				if cfg.ClearOnRetry {
					svc.Prompter.ClearScreen()
				}
				prompt = retryPrompt
				continue
			default:
				return tagLocation(fmt.Errorf("%s: starting session: %w", c.Handle, err))
			}
		}

		if err := opal.SetMBRDone(ctx, s, true); err != nil {
			s.Close(ctx)
			return tagLocation(fmt.Errorf("%s: setting MBR done: %w", c.Handle, err))
		}
		if err := opal.SetLockingRange(ctx, s, 0, opal.LockingStateReadWrite); err != nil {
			s.Close(ctx)
			return tagLocation(fmt.Errorf("%s: unlocking range: %w", c.Handle, err))
		}
		if err := s.Close(ctx); err != nil {
			return tagLocation(fmt.Errorf("%s: closing session: %w", c.Handle, err))
		}
		break
	}

	if err := svc.Reenum.Reenumerate(c.Handle); err != nil {
		return tagLocation(fmt.Errorf("%s: re-enumerating: %w", c.Handle, err))
	}
	return nil
}
