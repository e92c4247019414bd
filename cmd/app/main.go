// Command app runs the forecasting service: the HTTP API plus the scheduler
// and queue workers, assembled through the DI graph.
package main

import (
	"flag"
	"log"
	"os"

	"StockCast/internal/di"
	"StockCast/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	log.Printf("env=%s ticker=%s sqlite=%s", cfg.Environment, cfg.Data.Ticker, cfg.Data.SQLitePath)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
