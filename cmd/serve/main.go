// cmd/serve wires the ambient configuration, a checkpoint store, and a
// scenario into the HTTP observation-surface mirror, following the
// teacher's cmd/settlement wiring-and-listen style.
package main

import (
	"flag"
	"log"
	"net/http"

	"github.com/joho/godotenv"

	"rtgssim/internal/checkpointstore"
	ckmemory "rtgssim/internal/checkpointstore/memory"
	ckpostgres "rtgssim/internal/checkpointstore/postgres"
	ckredis "rtgssim/internal/checkpointstore/redis"
	"rtgssim/internal/httpapi"
	"rtgssim/internal/orchestrator"
	"rtgssim/internal/scenario"
	"rtgssim/pkg/config"
)

func main() {
	scenarioPath := flag.String("scenario", "", "path to a scenario JSON file")
	flag.Parse()

	if *scenarioPath == "" {
		log.Fatal("usage: serve -scenario path/to/scenario.json")
	}

	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found, using process environment: %v", err)
	}

	cfg := config.Load()
	if err := cfg.ValidateCore(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	store, err := buildCheckpointStore(cfg.CheckpointStore)
	if err != nil {
		log.Fatalf("failed to build checkpoint store: %v", err)
	}

	simCfg, err := scenario.Load(*scenarioPath)
	if err != nil {
		log.Fatalf("failed to load scenario: %v", err)
	}

	orch := orchestrator.New(simCfg)
	server := httpapi.New(orch, store, simCfg.ConfigHash)
	server.Run()

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	log.Printf("rtgssim observation surface listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

func buildCheckpointStore(cfg config.CheckpointStoreConfig) (checkpointstore.Store, error) {
	switch cfg.Backend {
	case "postgres":
		return ckpostgres.Connect(cfg.PostgresURL, cfg.PostgresMaxOpenConn, cfg.PostgresMaxIdleConn)
	case "redis":
		return ckredis.Connect(cfg.RedisURL, cfg.RedisTTL), nil
	case "memory", "":
		return ckmemory.New(), nil
	default:
		return nil, errUnknownBackend(cfg.Backend)
	}
}

type errUnknownBackend string

func (e errUnknownBackend) Error() string {
	return "unknown checkpoint store backend: " + string(e)
}
