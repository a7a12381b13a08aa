package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/haukened/callguard/internal/guard/common/log"
	"github.com/haukened/callguard/internal/guard/gateways/transport"
)

const defaultShutdownTimeout = 10 * time.Second

func (c *cli) newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Screen newline-delimited JSON events from stdin",
		Long: `Read one JSON event per line from stdin and write one JSON verdict per line
to stdout. Blocked events are journaled and notified according to the channel
policy; allowed messages are added to the message history.

Messages the user sent are marked "direction":"out" with the recipient in
"to". They are never screened; they only add the recipient to the message
history.

serve holds an exclusive lock on the contact and journal databases. While it
runs, contacts, journal and history commands time out after about one second.

Example events:
  {"id":"1","kind":"sms","from":"555-1111","body":"hello"}
  {"id":"2","kind":"sms","direction":"out","to":"555-2222"}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.Info(map[string]any{
				"version":   version,
				"env":       c.cfg.Env,
				"log_level": c.cfg.Log.Level,
				"workers":   c.cfg.Transport.Workers,
				"metrics":   c.cfg.Metrics.Addr,
			}, "Starting callguard")

			return c.withApp(func(app *Application) error {
				return app.Run(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
			})
		},
	}
}

// Run screens events from in until the input ends or ctx is cancelled.
func (app *Application) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	logger := log.GetLogger()

	srv, err := app.startMetrics()
	if err != nil {
		return err
	}

	t := transport.NewStreamTransport(transport.StreamOptions{
		Name:    "stdio",
		In:      in,
		Out:     out,
		Workers: app.config.Transport.Workers,
		Clock:   app.clock,
		Logger:  logger,
	})
	if err := t.Start(ctx, app.screener); err != nil {
		app.stopMetrics(srv)
		return fmt.Errorf("failed to start transport: %w", err)
	}

	log.Info(map[string]any{"address": t.Address()}, "callguard started")

	drained := make(chan struct{})
	go func() {
		t.Wait()
		close(drained)
	}()

	// SIGHUP re-reads the address book
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

wait:
	for {
		select {
		case <-hup:
			app.reloadAddressBook()
		case <-drained:
			log.Info(nil, "Input exhausted")
			break wait
		case <-ctx.Done():
			log.Info(nil, "Shutdown initiated")
			if err := t.Stop(); err != nil {
				log.Warn(map[string]any{"error": err}, "Error during transport shutdown")
			}
			select {
			case <-drained:
			case <-time.After(defaultShutdownTimeout):
				log.Warn(map[string]any{"timeout": defaultShutdownTimeout}, "Shutdown timeout exceeded")
				app.stopMetrics(srv)
				return fmt.Errorf("shutdown timeout")
			}
			break wait
		}
	}

	app.stopMetrics(srv)
	log.Info(nil, "callguard stopped gracefully")
	return nil
}

// reloadAddressBook re-reads the address book file. A failed reload keeps the
// previous contents.
func (app *Application) reloadAddressBook() {
	if app.book == nil {
		return
	}
	if err := app.book.Reload(); err != nil {
		log.Warn(map[string]any{"error": err}, "Address book reload failed")
		return
	}
	log.Info(map[string]any{"numbers": app.book.Len()}, "Address book reloaded")
}

// startMetrics serves /metrics when an address is configured. Binding happens
// before returning so a bad address fails the start.
func (app *Application) startMetrics() (*http.Server, error) {
	addr := app.config.Metrics.Addr
	if addr == "" {
		return nil, nil
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen for metrics: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	app.metricsAddr = ln.Addr().String()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(map[string]any{"error": err}, "Metrics server failed")
		}
	}()
	log.Info(map[string]any{"address": app.metricsAddr}, "Metrics endpoint started")
	return srv, nil
}

func (app *Application) stopMetrics(srv *http.Server) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn(map[string]any{"error": err}, "Error during metrics shutdown")
	}
}
