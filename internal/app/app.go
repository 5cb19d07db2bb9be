package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	server "blast-arena/server"
	servernet "blast-arena/server/internal/net"
	"blast-arena/server/logging"
	loggingSinks "blast-arena/server/logging/sinks"
)

// Config carries process-level options; zero values fall back to defaults
// and environment variables.
type Config struct {
	Addr   string
	Logger *log.Logger
}

// Run wires the logging router, room manager, and HTTP surface, then serves
// until the listener fails.
func Run(ctx context.Context, cfg Config) error {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	addr := cfg.Addr
	if addr == "" {
		addr = os.Getenv("ADDR")
	}
	if addr == "" {
		addr = ":8080"
	}

	logConfig := logging.DefaultConfig()
	sinks := map[string]logging.Sink{
		"console": loggingSinks.NewConsole(os.Stdout),
	}
	if path := os.Getenv("LOG_NDJSON_PATH"); path != "" {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			logger.Printf("invalid LOG_NDJSON_PATH=%q: %v", path, err)
		} else {
			sinks["ndjson"] = loggingSinks.NewJSON(file)
			logConfig.EnabledSinks = append(logConfig.EnabledSinks, "ndjson")
		}
	}

	router := logging.NewRouter(logConfig, logging.SystemClock{}, sinks)
	defer func() {
		if cerr := router.Close(ctx); cerr != nil {
			logger.Printf("failed to close logging router: %v", cerr)
		}
	}()

	manager := server.NewManager(router, server.NewTelemetryCounters())
	defer manager.Shutdown()

	handler := servernet.NewHTTPHandler(manager, servernet.HTTPHandlerConfig{Logger: logger})

	srv := &http.Server{Addr: addr, Handler: handler}
	logger.Printf("server listening on %s", srv.Addr)

	if err := srv.ListenAndServe(); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
