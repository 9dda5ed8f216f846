package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"PriceShaper/internal/di"
	"PriceShaper/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	checkOnly := flag.Bool("check", false, "validate config, print engine tuning and exit")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if *checkOnly {
		engine := di.ProvideEngine(cfg).Config()
		fmt.Printf("config ok: env=%s symbols=%v timeframe=%s engine=%+v\n",
			cfg.Environment, cfg.Finnhub.Symbols, cfg.Live.Timeframe, engine)
		return
	}

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// blocks until SIGINT/SIGTERM
	err = app.Run()
	cleanup()
	if err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
