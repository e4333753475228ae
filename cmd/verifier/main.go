/*
Package main is the entry point for the pydverify CLI.

Usage:

	pydverify [command]

Available Commands:

	update      Refresh the knowledge base now
	schedule    Update now, then keep the knowledge base fresh on a schedule
	verify      Verify and correct one drafted answer
	assess      Assess a batch of answers and write an accuracy report
	serve       Serve the verification HTTP API
	status      Show knowledge base and history status

Exit codes: 0 success, 1 failure, 2 configuration error or unwritable storage.
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pydverify/backend/internal/cli"
)

// Version information (set via ldflags during build)
var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	rootCmd := cli.NewRootCmd(fmt.Sprintf("%s (commit: %s)", version, commit))
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	os.Exit(cli.ExitCode(err))
}
