package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"google.golang.org/grpc"

	"weavemint.dev/weavemint/config"
	"weavemint.dev/weavemint/gateway"
	"weavemint.dev/weavemint/logging"
	"weavemint.dev/weavemint/storage"
	"weavemint.dev/weavemint/storage/registry"

	_ "weavemint.dev/weavemint/storage/localfs"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out, errOut io.Writer) int {
	fs := pflag.NewFlagSet("weavegated", pflag.ContinueOnError)
	fs.SetOutput(errOut)
	configPath := fs.String("config", "", "config file; its server and storage sections set defaults")
	listen := fs.String("listen", "", "gRPC listen address")
	httpListen := fs.String("http-listen", "", "HTTP listen address for GET /{id}; empty disables it")
	backend := fs.String("backend", "", "storage backend name")
	logLevel := fs.String("log-level", "", "log level: debug, info, warn, error")
	maxMsg := fs.Int("max-msg-bytes", 0, "max gRPC message size in bytes; 0 uses grpc defaults")
	listBackends := fs.Bool("list-backends", false, "list supported backends and exit")

	registry.RegisterFlags(fs)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *listBackends {
		for _, b := range registry.List() {
			if b.Description == "" {
				_, _ = fmt.Fprintf(out, "%s\n", b.Name)
				continue
			}
			_, _ = fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
		}
		return 0
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.LoadFile(*configPath); err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
	}
	if *listen == "" {
		*listen = cfg.Server.Listen
	}
	if !fs.Changed("http-listen") {
		*httpListen = cfg.Server.HTTPListen
	}
	if *logLevel == "" {
		*logLevel = cfg.Log.Level
	}

	logger, _, err := logging.New(logging.Options{Level: *logLevel, Writer: errOut})
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	cas, closeFn, err := openBackend(fs, cfg, *backend)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	if closeFn != nil {
		defer closeFn()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := serve(ctx, logger, cas, *listen, *httpListen, *maxMsg); err != nil {
		logger.Error("gateway stopped", "error", err)
		return 1
	}
	return 0
}

// openBackend prefers --backend and backend flags; without them it uses the
// config's storage section.
func openBackend(fs *pflag.FlagSet, cfg *config.Config, name string) (storage.CAS, func() error, error) {
	if name != "" || fs.Changed("localfs-dir") {
		if name == "" {
			name = cfg.Storage.Backend
		}
		return registry.Open(name)
	}
	return registry.OpenWithConfig(cfg.Storage.Backend, cfg.Storage.Options)
}

func serve(ctx context.Context, logger *slog.Logger, cas storage.CAS, listen, httpListen string, maxMsg int) error {
	lis, err := net.Listen("tcp", listen)
	if err != nil {
		return err
	}
	defer lis.Close()

	var opts []grpc.ServerOption
	if maxMsg > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(maxMsg), grpc.MaxSendMsgSize(maxMsg))
	}
	s := grpc.NewServer(opts...)
	gateway.RegisterGatewayServer(s, &gateway.Server{CAS: cas, Logger: logger})

	errc := make(chan error, 2)
	go func() { errc <- s.Serve(lis) }()
	logger.Info("gateway listening", "grpc", lis.Addr().String())

	var hs *http.Server
	if httpListen != "" {
		hs = &http.Server{
			Addr:              httpListen,
			Handler:           gateway.NewHTTPHandler(cas, logger),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errc <- err
			}
		}()
		logger.Info("content references served", "http", httpListen)
	}

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err = <-errc:
	}
	if hs != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = hs.Shutdown(shutdownCtx)
		cancel()
	}
	s.GracefulStop()
	return err
}
