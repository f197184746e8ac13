package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/scrapbox/service"
	apperrors "github.com/Adithya-Monish-Kumar-K/scrapq/pkg/errors"
)

func newIndexCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "index [JSON_FILE]",
		Short: "Build the index from a bundle file",
		Long: `Reads a Scrapbox JSON bundle and builds a new index at the configured
index_path. JSON_FILE defaults to the json_file config key. The index
directory must not already hold an index.`,
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}
			path := a.cfg.JSONFile
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return apperrors.New(apperrors.ErrConfig, "no bundle file given and json_file is not configured")
			}

			fmt.Fprintln(cmd.OutOrStdout(), "start to create index")
			bundle, err := service.LoadBundle(path)
			if err != nil {
				return err
			}
			if _, err := a.service().Ingest(cmd.Context(), bundle); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "finish to create index")
			return nil
		},
	}
}
