package main

import (
	"log"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/douletlabs/answerd/internal/config"
	"github.com/douletlabs/answerd/internal/events"
	"github.com/douletlabs/answerd/internal/store"
	"github.com/douletlabs/answerd/internal/store/memory"
	"github.com/douletlabs/answerd/internal/store/postgres"
	"github.com/douletlabs/answerd/internal/workflows"
)

var (
	loadConfig = func() (config.Config, error) {
		return config.Load(), nil
	}
	dialTemporal = client.Dial
	newStore     = func(cfg config.Config) (store.Store, error) {
		if cfg.StoreBackend == "memory" {
			return memory.New(), nil
		}
		return postgres.New(cfg.PostgresURL)
	}
	newBroker     = events.NewBroker
	newActivities = func(st store.Store, broker workflows.Publisher, cfg config.Config) *workflows.AskActivities {
		return workflows.NewAskActivities(st, broker, cfg)
	}
	newWorker       = worker.New
	workerInterrupt = worker.InterruptCh
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
	temporalClient, err := dialTemporal(client.Options{
		HostPort: cfg.TemporalAddress,
	})
	if err != nil {
		return err
	}
	if temporalClient != nil {
		defer temporalClient.Close()
	}

	st, err := newStore(cfg)
	if err != nil {
		return err
	}

	activities := newActivities(st, newBroker(), cfg)

	w := newWorker(temporalClient, cfg.TemporalTaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.AskWorkflow)
	w.RegisterActivity(activities)

	log.Println("answerd worker started")
	if err := w.Run(workerInterrupt()); err != nil {
		return err
	}

	return nil
}
