package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/maruel/recdb/internal/inbox"
	"github.com/maruel/recdb/internal/server"
)

func newWatchCommand(opts *RootOptions) *cobra.Command {
	var dir, httpAddr string
	var debounce, interval time.Duration
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Import files dropped into an inbox directory until interrupted",
		Long: `Watch an inbox directory and import every <source>.<json|csv|yaml> file dropped in
it. Imported files move to processed/, unreadable ones to failed/.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if dir == "" {
				dir = filepath.Join(opts.DataDir, "inbox")
			}
			return withApp(ctx, opts, func(a *app) error {
				var srvErr chan error
				if httpAddr != "" {
					srv := &http.Server{
						Addr:              httpAddr,
						Handler:           server.NewRouter(a.store, a.metrics),
						BaseContext:       func(_ net.Listener) context.Context { return ctx },
						ReadHeaderTimeout: 10 * time.Second,
					}
					srvErr = make(chan error, 1)
					go func() {
						slog.InfoContext(ctx, "Serving HTTP", "addr", httpAddr)
						srvErr <- srv.ListenAndServe()
					}()
					defer func() {
						shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
						defer cancel()
						if err := srv.Shutdown(shutdownCtx); err != nil {
							slog.ErrorContext(ctx, "Failed to shut down server", "err", err)
						}
					}()
				}
				in := inbox.New(a.store, inbox.Config{
					Dir:      dir,
					Sources:  a.reg.IDs(),
					Debounce: debounce,
					Interval: interval,
					Logger:   slog.Default(),
				})
				runErr := make(chan error, 1)
				go func() { runErr <- in.Run(ctx) }()
				select {
				case err := <-srvErr:
					if !errors.Is(err, http.ErrServerClosed) {
						return fmt.Errorf("server error: %w", err)
					}
					return <-runErr
				case err := <-runErr:
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				}
			})
		},
	}
	cmd.Flags().StringVar(&dir, "inbox", "", "inbox directory (default: <data-dir>/inbox)")
	cmd.Flags().StringVar(&httpAddr, "http", "", "serve a read-only JSON API and /metrics on this address (e.g. localhost:8080)")
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "delay after the last write before importing a file")
	cmd.Flags().DurationVar(&interval, "interval", 250*time.Millisecond, "minimum delay between two imports")
	return cmd
}
