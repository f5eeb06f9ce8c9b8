package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RequireNoArgs rejects positional arguments with a hint to use --file.
// The error text starts like cobra's own so it maps to the usage exit code.
func RequireNoArgs(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return nil
	}
	return fmt.Errorf(`accepts 0 arg(s), received %d

Pass the input with --file:
  %s --file %s`, len(args), cmd.CommandPath(), args[0])
}
