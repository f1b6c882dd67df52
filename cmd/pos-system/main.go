package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pos-system/internal/app/order"
	"pos-system/internal/app/terminal"
	"pos-system/internal/common/config"
	"pos-system/internal/common/logger"
)

func main() {
	mode := flag.String("mode", "", "pos-terminal | order-service")
	port := flag.Int("port", 0, "http port")
	cfgPath := flag.String("config", "", "path to YAML config (defaults to config.yaml)")
	flag.Parse()

	lg := logger.New("bootstrap")
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	path := *cfgPath
	if path == "" {
		var err error
		if path, err = config.FindConfig(); err != nil {
			fmt.Fprintln(os.Stderr, "no config file found; pass --config")
			os.Exit(2)
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		lg.Error("config_load_failed", err, map[string]any{"path": path})
		os.Exit(1)
	}

	switch *mode {
	case "pos-terminal":
		if *port == 0 {
			*port = 3001
		}
		lg.Info("service_started", map[string]any{"service": "pos-terminal", "port": *port})
		if err := terminal.Run(ctx, cfg, *port); err != nil {
			lg.Error("fatal", err, nil)
			os.Exit(1)
		}
	case "order-service":
		if *port == 0 {
			*port = 3000
		}
		lg.Info("service_started", map[string]any{"service": "order-service", "port": *port})
		if err := order.Run(ctx, cfg, *port); err != nil {
			lg.Error("fatal", err, nil)
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "--mode is required: pos-terminal | order-service")
		os.Exit(2)
	}
}
