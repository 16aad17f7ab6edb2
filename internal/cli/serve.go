package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/KreativLabs-id/diskusibisnis/backend/internal/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	SkipMigrate     bool
	ShutdownTimeout time.Duration
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().BoolVar(&opts.SkipMigrate, "skip-migrate", false, "do not migrate the schema on start")
	cmd.Flags().DurationVar(&opts.ShutdownTimeout, "shutdown-timeout", 15*time.Second, "grace period for in-flight requests")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, db, err := open(opts.RootOptions)
	if err != nil {
		return err
	}
	defer db.Close()

	if !opts.SkipMigrate {
		if err := db.Migrate(); err != nil {
			return err
		}
	}

	s, err := server.NewServer(cfg, db)
	if err != nil {
		return err
	}
	s.StartBackground(ctx)
	defer s.StopBackground()

	srv := s.HTTPServer()
	errCh := make(chan error, 1)
	go func() {
		log.Printf("🚀 Server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("⚠️ Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), opts.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
