// Package bootstrap wires every council collaborator into one Orchestrator,
// the same single-constructor shape ai-notetaking-be's own
// bootstrap.NewContainer used to assemble its controllers and services from
// a *config.Config.
package bootstrap

import (
	"log"

	"github.com/redis/go-redis/v9"

	"ai-notetaking-be/internal/config"
	applogger "ai-notetaking-be/internal/pkg/logger"
	"ai-notetaking-be/pkg/council/cerr"
	"ai-notetaking-be/pkg/council/events"
	"ai-notetaking-be/pkg/council/orchestrator"
	"ai-notetaking-be/pkg/council/roles"
	"ai-notetaking-be/pkg/council/store"
	"ai-notetaking-be/pkg/council/title"
	"ai-notetaking-be/pkg/database"
	"ai-notetaking-be/pkg/llm/factory"
)

// Container holds the deliberation pipeline's wired collaborators, the way
// the teacher's Container held its controllers and background services.
type Container struct {
	Orchestrator orchestrator.IOrchestrator
	Store        store.ConversationStore
	Bus          *events.Bus
	Logger       *applogger.ZapLogger
}

// NewContainer builds a Container from cfg. A missing MODEL_API_KEY is
// fatal for every provider except "ollama": the ConfigMissing error surfaces here, before any HTTP route or
// CLI command can reach the orchestrator, per spec §7's "boundary-only"
// propagation rule for ConfigMissing.
func NewContainer(cfg *config.Config) (*Container, error) {
	if cfg.Keys.ModelAPIKey == "" && cfg.Keys.ModelProvider != "ollama" {
		return nil, cerr.New(cerr.KindConfigMissing, "MODEL_API_KEY is required for provider "+cfg.Keys.ModelProvider)
	}

	client, err := factory.New(cfg.Keys.ModelProvider, cfg.Keys.ModelAPIKey, cfg.Keys.ModelBaseURL)
	if err != nil {
		return nil, err
	}

	roleTable := roles.NewTable()

	convStore, err := newStore(cfg)
	if err != nil {
		return nil, err
	}

	var rdb *redis.Client
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] failed to parse REDIS_URL: %v; events stay process-local", err)
		} else {
			rdb = redis.NewClient(opt)
		}
	}
	bus := events.NewBus(rdb)

	var titleGen *title.Generator
	if cfg.Council.TitleModelID != "" {
		titleGen = &title.Generator{Client: client, ModelID: cfg.Council.TitleModelID}
	}

	sysLogger := applogger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	orch := orchestrator.New(cfg.Council, client, roleTable, convStore, bus, titleGen, orchestrator.WithLogger(sysLogger))

	return &Container{Orchestrator: orch, Store: convStore, Bus: bus, Logger: sysLogger}, nil
}

// newStore picks GormStore when PERSIST_STORAGE is set and a DB connection
// string is configured, falling back to MemoryStore otherwise — the same
// decision SPEC_FULL.md records for the CLI demo versus a durable server.
func newStore(cfg *config.Config) (store.ConversationStore, error) {
	if !cfg.App.PersistStorage {
		return store.NewMemoryStore(), nil
	}
	if cfg.App.DBConnection == "" {
		log.Println("[WARN] PERSIST_STORAGE=true but DB_CONNECTION_STRING is empty; falling back to MemoryStore")
		return store.NewMemoryStore(), nil
	}

	db, err := database.NewGormDBFromDSN(cfg.App.DBConnection)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(db); err != nil {
		return nil, err
	}
	return store.NewGormStore(db), nil
}
