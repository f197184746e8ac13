package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get ADDRESS",
		Short: "Print the body of a page",
		Long:  `Prints the body of the page at ADDRESS, as shown by search ("segment:doc").`,
		Args:  argsExactly(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}
			body, err := a.service().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), body)
			return nil
		},
	}
}
