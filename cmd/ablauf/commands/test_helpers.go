//go:build !testbinary
// +build !testbinary

package commands

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/cobra"

	"github.com/valksor/go-ablauf/internal/display"
)

// newTestRoot builds a minimal root command that captures output. Colors
// are disabled so assertions see plain text.
func newTestRoot(t *testing.T, stdout, stderr *bytes.Buffer) *cobra.Command {
	t.Helper()
	display.SetColorsEnabled(false)

	cmd := &cobra.Command{
		Use:   "ablauf",
		Short: "Test command",
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	return cmd
}

// executeCommand runs the command with arguments under a background
// context.
func executeCommand(cmd *cobra.Command, args ...string) error {
	cmd.SetArgs(args)
	return cmd.ExecuteContext(context.Background())
}
