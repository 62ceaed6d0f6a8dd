package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mnemos-io/mnemos/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the maintenance scheduler and the HTTP admin API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	svc, closeAll, err := openServices(cmd.Context())
	if err != nil {
		return err
	}
	defer closeAll()

	if err := svc.lifecycle.Start(); err != nil {
		return fmt.Errorf("start lifecycle scheduler: %w", err)
	}

	srv := server.New(svc.lifecycle, svc.recovery, svc.retrier, svc.db, VersionString())
	addr := svc.cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		fmt.Fprintf(os.Stderr, "mnemos serving on %s\n", addr)
		fmt.Fprintf(os.Stderr, "  graph: %s\n", svc.cfg.Graph.URI)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	fmt.Fprintln(os.Stderr, "\nshutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
