package main

import (
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"coview/internal/config"
	"coview/internal/logging"
	"coview/internal/server"
)

func main() {
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}

	logging.Init(cfg.LogLevel, cfg.LogJSON)

	server.NewServer(cfg).Run()
}
