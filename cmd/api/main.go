package main

import (
	"github.com/Egham-7/repurpose-api/internal/config"
	pkgconfig "github.com/Egham-7/repurpose-api/pkg/config"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

func main() {
	envFiles := []string{".env.local", ".env.development", ".env"}
	config.LoadEnvFiles(envFiles)

	cfg, err := config.LoadFromFile("config.yaml")
	if err != nil {
		fiberlog.Fatalf("Failed to load config: %v", err)
	}

	server := pkgconfig.NewServer(cfg)

	fiberlog.Info("Starting repurpose API server...")
	if err := server.Run(); err != nil {
		fiberlog.Fatalf("Server failed: %v", err)
	}
}
