package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewCollectionsCommand creates the collections command.
func NewCollectionsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "collections",
		Short: "List the collections the configured source provides",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, release, err := openSource(opts.Config)
			if err != nil {
				return err
			}
			defer release()

			names, err := src.Names()
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}
