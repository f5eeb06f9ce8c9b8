package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/vvka-141/geoload/pkg/geoload"
)

// ForcedApprover implements the Approver interface for --force in a terminal.
// It prints a warning and a short countdown, then approves; Ctrl+C during the
// countdown cancels the run.
type ForcedApprover struct {
	verbose bool
	output  io.Writer
	sleepFn func(time.Duration)
}

// NewForcedApprover creates a new ForcedApprover.
func NewForcedApprover(verbose bool) geoload.Approver {
	return &ForcedApprover{verbose: verbose, output: os.Stderr, sleepFn: time.Sleep}
}

// RequestApproval displays a countdown and automatically approves after it.
func (a *ForcedApprover) RequestApproval(ctx context.Context, table geoload.TableRef, featureCount int) (bool, error) {
	fmt.Fprintf(a.output, "\nWARNING: --force given. All rows of '%s' will be replaced by %d features.\n", table, featureCount)

	countdownSeconds := int(geoload.DefaultForceApprovalCountdown.Seconds())
	for i := countdownSeconds; i > 0; i-- {
		if err := ctx.Err(); err != nil {
			fmt.Fprintln(a.output)
			return false, err
		}
		fmt.Fprintf(a.output, "\rTruncating in: %d seconds... (Press Ctrl+C to cancel)", i)
		a.sleepFn(time.Second)
	}
	if err := ctx.Err(); err != nil {
		fmt.Fprintln(a.output)
		return false, err
	}

	fmt.Fprintf(a.output, "\r✓ Proceeding with table replacement...                              \n")
	return true, nil
}

// AutoApprover approves without prompting. It is used when no operator is
// present (CI, piped stdin, GEOLOAD_NON_INTERACTIVE=1).
type AutoApprover struct {
	output io.Writer
}

// NewAutoApprover creates a new AutoApprover.
func NewAutoApprover() geoload.Approver {
	return &AutoApprover{output: os.Stderr}
}

// RequestApproval announces the replacement and approves it.
func (a *AutoApprover) RequestApproval(ctx context.Context, table geoload.TableRef, featureCount int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	fmt.Fprintf(a.output, "Replacing all rows of '%s' with %d features (non-interactive).\n", table, featureCount)
	return true, nil
}

var (
	_ geoload.Approver = (*ForcedApprover)(nil)
	_ geoload.Approver = (*AutoApprover)(nil)
)
