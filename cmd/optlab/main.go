// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command optlab runs the optimization and statistics teaching problems.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(os.Stdout, nil).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "optlab:", err)
		stop()
		os.Exit(1)
	}
}
