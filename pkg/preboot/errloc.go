// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package preboot

import (
	"fmt"
	"runtime"

	"github.com/davecgh/go-spew/spew"
)

// tagLocation prepends the caller's file:line to err, the first time a
// low-level error crosses into orchestrator-owned code. skip=1 walks past
// this function to its direct caller, the frame that caught the error.
func tagLocation(err error) error {
	if err == nil {
		return nil
	}
	_, file, line, ok := runtime.Caller(1)
	if !ok {
		return err
	}
	return fmt.Errorf("%s:%d: %w", file, line, err)
}

// DumpFatal renders a debug dump of a fatal error's full value graph, for
// the operator-visible diagnostic a caller of Run shows before the final
// reset pause (§6 "Exit behavior", §7 "operator-visible messages show the
// tagged location plus a debug dump of the error").
func DumpFatal(err error) string {
	return spew.Sdump(err)
}
