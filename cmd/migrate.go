package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Long: `Apply every schema migration that has not been applied yet and list them.
Running it against an up-to-date database is a no-op.`,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	addDatabaseFlags(migrateCmd.Flags())
	bindDatabaseFlags(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	applied, err := a.migrate(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(applied) == 0 {
		fmt.Fprintln(out, "Database is up to date")
		return nil
	}
	for _, m := range applied {
		fmt.Fprintf(out, "Applied %04d_%s\n", m.Version, m.Name)
	}
	return nil
}

func addDatabaseFlags(f *pflag.FlagSet) {
	f.StringP("database", "d", "", "Database file path or URL (default <user config dir>/folio/folio.db)")
	f.String("driver", "sqlite3", "Database driver (sqlite3, pgx)")
	f.Bool("in-memory", false, "Use a throwaway in-memory sqlite database")

	AddFlagValidation(f, "driver", ValidateDriver)
}

// bindDatabaseFlags binds the database flags of cmd when it is about to
// run. serve, migrate and seed define the same flags, and a binding made in
// init would leave only the last registered command's flags connected.
func bindDatabaseFlags(cmd *cobra.Command) {
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		for key, name := range map[string]string{
			"database.dsn":       "database",
			"database.driver":    "driver",
			"database.in_memory": "in-memory",
		} {
			if err := viper.BindPFlag(key, f.Lookup(name)); err != nil {
				return err
			}
		}
		return nil
	}
}
