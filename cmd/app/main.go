package main

import (
	"flag"
	"log"
	"os"

	"github.com/Maiki02/trading-bot-sub000/internal/di"
	"github.com/Maiki02/trading-bot-sub000/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s instruments=%d notifier=%s", cfg.Environment, len(cfg.Engine.Instruments), cfg.Notifier.Backend)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
