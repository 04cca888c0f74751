package cli

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/stevemurr/stub-server/store"
)

// NewImportCommand creates the import command.
func NewImportCommand(opts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "import <dir>",
		Short: "Seed a SQLite database from a directory of JSON or YAML files",
		Long: `Copy every collection file in <dir> into a SQLite database so the
server can run with --backend sqlite. Existing collections of the same name
are replaced.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if dbPath == "" {
				dbPath = filepath.Join(opts.Config.DataDirectory, store.SqliteFile)
			}
			return runImport(args[0], dbPath, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "database path (default <data-directory>/stub.db)")
	return cmd
}

func runImport(dir, dbPath string, w io.Writer) error {
	src := store.NewDirSource(dir)
	names, err := src.Names()
	if err != nil {
		return err
	}

	db, err := store.NewSqliteSource(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	for _, name := range names {
		recs, err := src.Load(name)
		if err != nil {
			return errors.Wrapf(err, "import %s", name)
		}
		if err := db.Import(name, recs); err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: %d records\n", name, len(recs))
	}
	return nil
}
