package main

import (
	"log"

	"github.com/Bill1907/prepup/internal/bootstrap"
	"github.com/Bill1907/prepup/internal/shared/config"
	"github.com/Bill1907/prepup/internal/shared/server"
	"github.com/Bill1907/prepup/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()
	for _, missing := range cfg.Missing {
		telemetry.Warn("config.unresolved", map[string]any{"error": missing.Error()})
	}

	app, err := bootstrap.Build(cfg)
	if err != nil {
		log.Fatalf("bootstrap build: %v", err)
	}
	defer app.Close()

	addr := server.Addr(cfg.Port)
	telemetry.Info("api.starting", map[string]any{"addr": addr, "env": cfg.Env})

	if err := app.Router.Run(addr); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
