// Command reconpilotd runs a reconnaissance session against a target
// and serves its live progress over HTTP and WebSocket.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/reconpilot/reconpilotd/internal/api"
	"github.com/reconpilot/reconpilotd/internal/config"
	"github.com/reconpilot/reconpilotd/internal/events"
	"github.com/reconpilot/reconpilotd/internal/orchestrator"
	"github.com/reconpilot/reconpilotd/internal/rules"
	"github.com/reconpilot/reconpilotd/internal/scoring"
	"github.com/reconpilot/reconpilotd/internal/store"
	"github.com/reconpilot/reconpilotd/internal/tools"
	"github.com/reconpilot/reconpilotd/internal/tools/adapters"
)

func main() {
	target := flag.String("target", "", "Target to scan immediately on startup (optional)")
	mode := flag.String("mode", "auto", "Scan mode for -target: auto, passive or interactive")
	configPath := flag.String("config", "", "Path to config file (defaults to the XDG config directory)")
	port := flag.Int("port", 0, "Override server port")
	flag.Parse()

	cfgPath := *configPath
	if cfgPath == "" {
		cfgPath = config.DefaultConfigPath()
	}

	cfg, err := config.LoadOrDefault(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(ctx, cfg.Storage.Path)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	bus := events.New()

	registry := tools.NewRegistry()
	adapters.RegisterDefaults(registry)

	rulesEngine := rules.NewEngine()
	scoringEngine := scoring.NewEngine()

	manager := orchestrator.NewManager(registry, rulesEngine, scoringEngine, bus, st)

	broadcaster := api.NewBroadcaster(bus, cfg.Server.MaxConnections)
	server := api.NewServer(cfg, manager, broadcaster, cfg.Server.AllowedOrigins, cfg.Server.AuthToken)

	if *target != "" {
		opts := orchestrator.Options{
			Mode:        parseMode(*mode),
			MaxParallel: cfg.Scan.MaxParallel,
			PassiveOnly: cfg.Scan.PassiveOnly,
			Stealth:     cfg.Scan.Stealth,
			Timeout:     cfg.Scan.Timeout,
		}
		log.Printf("Starting scan of %s (mode=%s)", *target, *mode)
		manager.StartSession(ctx, *target, opts)
	}

	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		cancel()
		os.Exit(0)
	}()

	if err := api.ListenAndServe(cfg.Server.Host, cfg.Server.Port, mux); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func parseMode(m string) orchestrator.Mode {
	switch m {
	case "passive":
		return orchestrator.Passive
	case "interactive":
		return orchestrator.Interactive
	default:
		return orchestrator.Auto
	}
}
