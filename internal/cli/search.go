package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/scrapq/internal/scrapbox"
)

func newSearchCmd(a *app) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search indexed pages",
		Long: `Runs a keyword query over page titles and bodies and prints one
"address<TAB>title" line per hit, best first. Words are ANDed; use OR
between clauses, "quotes" for phrases and title: or body: to restrict a
word to one field.`,
		Args: argsExactly(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(cmd); err != nil {
				return err
			}
			if !cmd.Flags().Changed("limit") {
				limit = a.cfg.Search.DefaultLimit
			}
			results, err := a.service().Search(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if asJSON {
				return outputSearchJSON(cmd, results)
			}
			for _, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", r.Address, r.Title)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of results")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output results as JSON")
	return cmd
}

func outputSearchJSON(cmd *cobra.Command, results []scrapbox.SearchResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
