package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func resolvePath(args []string, flagPath string) string {
	if len(args) > 0 {
		return args[0]
	}

	return flagPath
}

// isSilent honors the command's own --silent flag plus the persistent
// --quiet flag when the command runs under the root command.
func isSilent(cmd *cobra.Command, silent bool) bool {
	if silent {
		return true
	}

	quiet, err := cmd.Flags().GetBool("quiet")
	if err != nil {
		return false
	}

	return quiet
}

func isVerbose(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return false
	}

	return verbose
}

func progressf(silent bool, writer io.Writer, format string, args ...any) {
	if silent {
		return
	}

	_, _ = fmt.Fprintf(writer, "progress: "+format+"\n", args...)
}
