package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel"

	"github.com/conneroisu/folio/internal/config"
	"github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/logging"
	"github.com/conneroisu/folio/internal/server"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"s"},
	Short:   "Migrate the database and serve the blog",
	Long: `Apply pending migrations, then serve the home page until interrupted.
The server refuses to start against a schema it could not migrate.

Examples:
  folio serve                          # Serve on localhost:8080
  folio serve -p 3000 --host 0.0.0.0   # Listen on all interfaces
  folio serve -d ./blog.db             # Use a specific database file
  folio serve --in-memory              # Throwaway in-memory database
  folio serve --driver pgx -d postgres://localhost/folio`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := serveCmd.Flags()
	f.String("host", "localhost", "Host to bind to")
	f.IntP("port", "p", 8080, "Port to serve on")
	addDatabaseFlags(f)

	AddFlagValidation(f, "port", ValidatePort)

	_ = viper.BindPFlag("server.host", f.Lookup("host"))
	_ = viper.BindPFlag("server.port", f.Lookup("port"))
	bindDatabaseFlags(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.migrate(ctx); err != nil {
		return err
	}

	if config.Watch(func(cfg *config.Config, err error) { applyReload(ctx, a, cfg, err) }) {
		a.logger.Info(ctx, "Watching config file for changes", "file", configPath())
	}

	srv, err := server.New(a.cfg, a.store, a.logger,
		server.WithTracer(otel.Tracer("github.com/conneroisu/folio/internal/server")),
	)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Serving folio at http://%s\n", a.cfg.Server.Addr())

	if err := srv.Start(ctx); err != nil {
		if suggestions := errors.ServerStartError(err, a.cfg.Server.Host, a.cfg.Server.Port); len(suggestions) > 0 {
			return errors.NewEnhancedError(
				fmt.Sprintf("Failed to start server on %s", a.cfg.Server.Addr()),
				err,
				suggestions,
			)
		}
		return err
	}

	a.logger.Info(ctx, "Server stopped")
	return nil
}

// applyReload applies the parts of a reloaded config that can change on a
// running process. Everything else needs a restart.
func applyReload(ctx context.Context, a *app, cfg *config.Config, err error) {
	if err != nil {
		a.logger.Warn(ctx, err, "Ignoring invalid config change")
		return
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		a.logger.Warn(ctx, err, "Ignoring invalid log level")
		return
	}
	a.logs.SetLevel(level)
	a.logger.Info(ctx, "Configuration reloaded", "log_level", level.String())
}
