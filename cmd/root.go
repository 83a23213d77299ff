// Package cmd is the gateway's CLI surface (spec §4.J / §6): process
// lifecycle (run/start/stop/restart/status), cron control, and WhatsApp
// pairing, built with cobra in place of the teacher's JSON-RPC method
// registration table (that transport is an admin dashboard — explicitly
// out of scope per spec.md's Non-goals).
package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Exit codes (spec §6): 0 success, 1 error, 2 misuse, 130 interrupted.
const (
	ExitOK        = 0
	ExitError     = 1
	ExitMisuse    = 2
	ExitInterrupt = 130
)

var configPath string

// exitCoder lets a command's RunE error carry a specific process exit code
// (spec §6: 0 success, 1 error, 2 misuse, 130 interrupted) instead of the
// blanket ExitError every other error maps to.
type exitCoder interface {
	error
	ExitCode() int
}

type interruptedError struct{}

func (interruptedError) Error() string { return "interrupted" }
func (interruptedError) ExitCode() int { return ExitInterrupt }

var rootCmd = &cobra.Command{
	Use:           "hermes-agent",
	Short:         "Agent Gateway Core — per-session turn scheduling, delivery, and cron for a conversational agent",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the JSON5 config file (defaults layer under it)")
	rootCmd.AddCommand(gatewayCmd, cronCmd, pairCmd)
}

// Execute runs the CLI and returns the process exit code; main() is
// expected to call os.Exit(cmd.Execute()).
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		var coder exitCoder
		if errors.As(err, &coder) {
			return coder.ExitCode()
		}
		return ExitError
	}
	return ExitOK
}
