package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	apperrors "github.com/Adithya-Monish-Kumar-K/scrapq/pkg/errors"
)

func newVerifyCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the index files for damage",
		Long: `Re-reads the manifest and every segment of the index, checking
checksums, document counts and every posting list. Exits non-zero when any
part is damaged.`,
		Args: argsExactly(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}
			report, err := a.service().Verify(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				data, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal report: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
			} else {
				for _, name := range report.Names() {
					c := report.Components[name]
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", name, c.Status, c.Message)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "index\t%s\n", report.Status)
			}
			if !report.Healthy() {
				return apperrors.Newf(apperrors.ErrCorruptIndex, "index %s failed verification", a.cfg.IndexPath)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output the report as JSON")
	return cmd
}
