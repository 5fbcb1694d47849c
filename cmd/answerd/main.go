package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.temporal.io/sdk/client"

	"github.com/douletlabs/answerd/internal/api"
	"github.com/douletlabs/answerd/internal/catalog"
	"github.com/douletlabs/answerd/internal/config"
	"github.com/douletlabs/answerd/internal/events"
	"github.com/douletlabs/answerd/internal/secrets"
	"github.com/douletlabs/answerd/internal/store"
	"github.com/douletlabs/answerd/internal/store/memory"
	"github.com/douletlabs/answerd/internal/store/postgres"
	"github.com/douletlabs/answerd/internal/workflows"
)

type server interface {
	Start(ctx context.Context, addr string) error
}

var (
	loadConfig = func() (config.Config, error) {
		return config.Load(), nil
	}
	newBroker = events.NewBroker
	newStore  = func(cfg config.Config) (store.Store, error) {
		if cfg.StoreBackend == "memory" {
			return memory.New(), nil
		}
		return postgres.New(cfg.PostgresURL)
	}
	parseSecretsKey = secrets.ParseKey
	dialTemporal    = client.Dial
	newWorkflows    = workflows.NewService
	newCatalog      = func(st store.Store, broker *events.Broker, secretsKey []byte, baseURL string) api.CatalogFetcher {
		return catalog.NewFetcher(st, broker, secretsKey, baseURL)
	}
	newServer = func(st store.Store, broker *events.Broker, wf *workflows.Service, cat api.CatalogFetcher, cfg config.Config) server {
		return api.NewServer(st, broker, wf, cat, cfg)
	}
	notifyContext = signal.NotifyContext
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := notifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	broker := newBroker()
	st, err := newStore(cfg)
	if err != nil {
		return err
	}

	var secretsKey []byte
	if cfg.SecretsKey != "" {
		secretsKey, err = parseSecretsKey(cfg.SecretsKey)
		if err != nil {
			return err
		}
	} else {
		log.Println("warning: ANSWERD_SECRETS_KEY not set, stored credentials cannot be decrypted")
	}

	workflowClient, err := dialTemporal(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		return err
	}
	if workflowClient != nil {
		defer workflowClient.Close()
	}
	workflowService := newWorkflows(workflowClient, cfg.TemporalTaskQueue)

	cat := newCatalog(st, broker, secretsKey, cfg.OpenRouterBaseURL)
	server := newServer(st, broker, workflowService, cat, cfg)

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("answerd listening on %s", addr)
	if err := server.Start(ctx, addr); err != nil {
		return err
	}

	return nil
}
