package ui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/vvka-141/geoload/internal/tui"
	"github.com/vvka-141/geoload/pkg/geoload"
)

// InteractiveApprover implements the Approver interface for console-based
// interactive confirmation. It asks the operator to type the qualified table
// name before the table is truncated.
type InteractiveApprover struct {
	verbose bool
	input   io.Reader
	output  io.Writer

	// prompt, when set, replaces line-based reading with a terminal UI.
	prompt func(context.Context, tui.ConfirmPrompt) (string, error)
}

// NewInteractiveApprover creates a new InteractiveApprover. The bubbletea
// prompt is used when stdin and stderr are terminals.
func NewInteractiveApprover(verbose bool) geoload.Approver {
	a := &InteractiveApprover{verbose: verbose, input: os.Stdin, output: os.Stderr}
	if tui.IsInteractive() {
		a.prompt = tui.RunConfirm
	}
	return a
}

// RequestApproval asks the operator to type the table name to confirm.
func (a *InteractiveApprover) RequestApproval(ctx context.Context, table geoload.TableRef, featureCount int) (bool, error) {
	expected := table.String()

	input, err := a.read(ctx, tui.ConfirmPrompt{
		Title: fmt.Sprintf("WARNING: You are about to TRUNCATE the table '%s'", expected),
		Details: []string{
			fmt.Sprintf("This will permanently delete all rows and insert %d features.", featureCount),
		},
		Expected: expected,
	})
	if errors.Is(err, tui.ErrCancelled) {
		fmt.Fprintln(a.output, tui.ErrorStyle.Render(tui.SymbolCross+" Cancelled."))
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if input == expected {
		fmt.Fprintln(a.output, tui.SuccessStyle.Render(tui.SymbolCheck+" Confirmed. Proceeding with table replacement..."))
		return true, nil
	}
	fmt.Fprintln(a.output, tui.ErrorStyle.Render(fmt.Sprintf("%s Input '%s' does not match table name '%s'. Operation cancelled.", tui.SymbolCross, input, expected)))
	return false, nil
}

func (a *InteractiveApprover) read(ctx context.Context, p tui.ConfirmPrompt) (string, error) {
	if a.prompt != nil {
		return a.prompt(ctx, p)
	}

	fmt.Fprintf(a.output, "\n⚠️  %s\n", p.Title)
	for _, line := range p.Details {
		fmt.Fprintln(a.output, line)
	}
	fmt.Fprintf(a.output, "\nTo confirm, type the table name '%s' and press Enter: ", p.Expected)

	inputChan := make(chan string, 1)
	errChan := make(chan error, 1)

	go func() {
		reader := bufio.NewReader(a.input)
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			errChan <- err
			return
		}
		inputChan <- strings.TrimSpace(line)
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-errChan:
		return "", fmt.Errorf("failed to read input: %w", err)
	case line := <-inputChan:
		return line, nil
	}
}

var _ geoload.Approver = (*InteractiveApprover)(nil)
