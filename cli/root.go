package cli

import (
	"github.com/spf13/cobra"
)

func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "taskmill",
		Short: "Taskmill worker runtime CLI",
	}

	root.AddCommand(
		ServeCmd(),
		ConfigCmd(),
	)

	return root
}
