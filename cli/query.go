package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stevemurr/stub-server/query"
	"github.com/stevemurr/stub-server/record"
	"github.com/stevemurr/stub-server/store"
)

// Page is the query command output. It has the same shape as a list response.
type Page struct {
	Items      []record.Record `json:"items"`
	TotalItems int             `json:"totalItems"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "query <collection> [field=value ...]",
		Short: "Run a list query against a collection without starting the server",
		Long: `Run a list query against a collection and print the resulting page.

Arguments after the collection name are query parameters, exactly as they
would appear in the URL: field filters plus skip, limit and orderBy.

  stub-server query widgets color=red "orderBy=id desc" limit=10`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(args[1:])
			if err != nil {
				return err
			}
			src, release, err := openSource(opts.Config)
			if err != nil {
				return err
			}
			defer release()
			return runQuery(src, args[0], params, cmd.OutOrStdout())
		},
	}
}

func parseParams(args []string) (query.Params, error) {
	params := query.Params{}
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid parameter %q: expected field=value", arg)
		}
		params[k] = append(params[k], v)
	}
	return params, nil
}

// runQuery loads strictly, so a malformed file is reported instead of
// printing an empty page.
func runQuery(src store.Source, name string, params query.Params, w io.Writer) error {
	c, err := store.NewCollections(src, store.WithStrictLoad()).Get(name)
	if err != nil {
		return err
	}
	res, err := c.Query(params)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Page{Items: res.Items, TotalItems: res.Total})
}
