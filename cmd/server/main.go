package main

import (
	"flag"
	"os"
	"path"

	"github.com/gpt2giga/gpt2giga/internal/cmd"
	"github.com/gpt2giga/gpt2giga/internal/config"
	"github.com/gpt2giga/gpt2giga/internal/logging"
	"github.com/gpt2giga/gpt2giga/internal/util"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

func init() {
	logging.SetupBaseLogger()
}

func main() {
	var configPath string

	flag.StringVar(&configPath, "config", "", "Configure File Path")

	flag.Parse()

	// Credentials may live in a .env file next to the binary.
	_ = godotenv.Load()

	if configPath == "" {
		wd, err := os.Getwd()
		if err != nil {
			log.Fatalf("failed to get working directory: %v", err)
		}
		configPath = path.Join(wd, "config.yaml")
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	util.SetLogLevel(cfg)
	if errLog := logging.ConfigureLogOutput(cfg.LoggingToFile); errLog != nil {
		log.Fatalf("failed to configure log output: %v", errLog)
	}

	cmd.StartService(cfg, configPath)
}
