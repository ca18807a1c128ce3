package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rescale/filequery/internal/catalog"
	"github.com/rescale/filequery/internal/query"
	"github.com/rescale/filequery/internal/services"
)

// newQueriesCmd creates the 'queries' command.
func newQueriesCmd() *cobra.Command {
	var showQuery bool

	cmd := &cobra.Command{
		Use:   "queries",
		Short: "List the query catalog",
		Long: `List the saved queries with their catalog index.

The index is what 'run' and 'browse' expect.

Examples:
  filequery queries
  filequery queries --show-query
  filequery queries --catalog ./team-queries.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			cat, err := services.LoadCatalog(cfg)
			if err != nil {
				return err
			}
			printCatalog(cmd.OutOrStdout(), cat, showQuery)
			return nil
		},
	}

	cmd.Flags().BoolVar(&showQuery, "show-query", false, "Print the rendered query and the fields it reads")

	return cmd
}

func printCatalog(w io.Writer, cat *catalog.Catalog, showQuery bool) {
	for i := 0; i < cat.Count(); i++ {
		entry, _ := cat.Entry(i)
		if showQuery {
			fmt.Fprintf(w, "%3d  %-32s %-48s %s\n", i, entry.Label, entry.Query.String(), fieldList(entry.Query))
		} else {
			fmt.Fprintf(w, "%3d  %s\n", i, entry.Label)
		}
	}
}

// fieldList names the record fields a query reads, "-" for none.
func fieldList(q query.Query) string {
	fields := q.Fields()
	if len(fields) == 0 {
		return "-"
	}
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.String()
	}
	return strings.Join(names, ",")
}
