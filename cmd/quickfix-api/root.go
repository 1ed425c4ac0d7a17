// README: Cobra commands: serve (default) and migrate.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"quickfix/internal/config"
	"quickfix/internal/infra"
	"quickfix/internal/logger"
	"quickfix/migrations"
)

var seedDemo bool

var rootCmd = &cobra.Command{
	Use:           "quickfix-api",
	Short:         "Roadside assistance dispatch API",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate [up|down|status|version|redo|reset]",
	Short: "Run database migrations against QUICKFIX_DB_DSN",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMigrate,
}

func init() {
	for _, c := range []*cobra.Command{rootCmd, serveCmd} {
		c.Flags().BoolVar(&seedDemo, "seed", false, "load demo Bangalore users, vendors and workers")
	}
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func runServe(cmd *cobra.Command, args []string) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := logger.SetLevel(cfg.App.LogLevel); err != nil {
		return err
	}
	log := logger.New("main")

	a, err := buildApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, a.Close())
	}()

	if seedDemo {
		if err := seed(ctx, a.users, log); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	server := a.server.HTTPServer(cfg.HTTP.Addr)
	serveErr := make(chan error, 1)
	go func() {
		log.Infof("listening on %s (store=%s, directory=%s, exclusion=%s)",
			cfg.HTTP.Addr, cfg.DB.Store, cfg.Reroute.Directory, cfg.Reroute.Exclusion)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DB.DSN == "" {
		return errors.New("QUICKFIX_DB_DSN is required")
	}
	command := "up"
	if len(args) == 1 {
		command = args[0]
	}
	pool, err := infra.NewDB(ctx, cfg.DB.DSN, cfg.DB.MaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	return migrations.Run(ctx, pool, command)
}
