// Package cmd wires the gpt2giga services together: it builds the credential
// manager and backend client from the configuration, starts the API server
// and the config watcher, and handles graceful shutdown on SIGINT/SIGTERM.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gpt2giga/gpt2giga/internal/api"
	"github.com/gpt2giga/gpt2giga/internal/auth/gigachat"
	"github.com/gpt2giga/gpt2giga/internal/client"
	"github.com/gpt2giga/gpt2giga/internal/config"
	"github.com/gpt2giga/gpt2giga/internal/watcher"
	log "github.com/sirupsen/logrus"
)

// StartService runs the proxy until a shutdown signal arrives.
func StartService(cfg *config.Config, configPath string) {
	if cfg.GigaChat.AuthKey == "" {
		log.Fatal("no GigaChat credential configured: set gigachat.auth-key or GIGACHAT_AUTH_KEY")
	}

	tokenManager := gigachat.NewTokenManager(gigachat.NewGigaChatAuth(cfg))
	gigaClient := client.NewGigaChatClient(cfg, tokenManager)
	server := api.NewServer(cfg, gigaClient)

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()

	configWatcher, errWatcher := watcher.NewWatcher(configPath, func(newCfg *config.Config) {
		server.UpdateConfig(newCfg)
	})
	if errWatcher != nil {
		log.Warnf("config watcher unavailable: %v", errWatcher)
	} else {
		if err := configWatcher.Start(watchCtx); err != nil {
			log.Warnf("failed to start config watcher: %v", err)
		}
		defer func() {
			_ = configWatcher.Stop()
		}()
	}

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("server error: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Debug("received shutdown signal, cleaning up")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		log.Errorf("graceful shutdown failed: %v", err)
	}
}
