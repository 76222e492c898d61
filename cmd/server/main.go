package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/NicolasHaas/linechat/pkg/logging"
	"github.com/NicolasHaas/linechat/pkg/server"
	"github.com/NicolasHaas/linechat/pkg/version"
)

func main() {
	cfg := server.DefaultConfig()

	showVersion := flag.Bool("version", false, "Print version and exit")
	configFile := flag.String("config", "", "YAML config file (flags override file values)")
	listen := flag.String("listen", "", "TCP bind address (e.g. :4000)")
	wsAddr := flag.String("ws", "", "HTTP bind address for the /ws WebSocket endpoint (empty to disable)")
	metricsAddr := flag.String("metrics", "", "HTTP bind address for Prometheus /metrics (empty to disable)")
	idleTimeout := flag.Duration("idle-timeout", 0, "Close sessions silent this long (e.g. 60s)")
	logLevel := flag.String("log-level", "info", "Log level: "+logging.LevelNames())
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	flag.Parse()

	if *showVersion {
		fmt.Println("linechat " + version.Full())
		return
	}

	// Configure structured logging
	if err := logging.Setup(logging.Options{
		Level:  *logLevel,
		Format: *logFormat,
		Output: os.Stdout,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	if *configFile != "" {
		loaded, err := server.LoadConfig(*configFile)
		if err != nil {
			slog.Error("load config", "file", *configFile, "err", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *listen != "" {
		cfg.ListenAddr = *listen
	}
	if *wsAddr != "" {
		cfg.WSAddr = *wsAddr
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if *idleTimeout > 0 {
		cfg.IdleTimeout = *idleTimeout
	}

	slog.Info("starting linechat", "version", version.String())

	srv := server.New(cfg)
	if err := srv.Run(); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}
