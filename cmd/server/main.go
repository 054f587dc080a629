package main

import (
	"net/http"

	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/rangeburo/orchestrator/internal/api"
	"github.com/rangeburo/orchestrator/internal/auth"
	"github.com/rangeburo/orchestrator/internal/catalog"
	"github.com/rangeburo/orchestrator/internal/config"
	"github.com/rangeburo/orchestrator/internal/peers"
	"github.com/rangeburo/orchestrator/internal/registry"
	"github.com/rangeburo/orchestrator/internal/workflow"
)

func main() {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid config: %v", err)
	}

	// 1. Session registry with sqlite journal
	db, err := registry.InitDB(cfg.DBPath)
	if err != nil {
		logger.Fatalf("Failed to init journal DB: %v", err)
	}
	defer db.Close()
	journal := registry.NewJournal(db)
	lastID, err := journal.LastID()
	if err != nil {
		logger.Fatalf("Failed to read journal: %v", err)
	}
	reg := registry.New(
		registry.WithJournal(journal),
		registry.WithMaxLive(cfg.MaxSessions),
		registry.WithStartAfter(lastID),
		registry.WithLogger(logger),
	)

	// 2. Peer service clients
	var content peers.ContentClient
	var ranges peers.RangeClient
	if cfg.MockPeers {
		logger.Warn("MOCK_PEERS is set: peer services are simulated in-process")
		content = peers.NewMockContentClient()
		ranges = peers.NewMockRangeClient()
	} else {
		logger.Infof("Peer services: content=%s instantiation=%s timeout=%s",
			cfg.ContentServerURL, cfg.InstantiationServerURL, cfg.PeerTimeout)
		content = peers.NewHTTPContentClient(cfg.ContentServerURL, cfg.PeerUser, cfg.PeerTimeout, logger)
		ranges = peers.NewHTTPRangeClient(cfg.InstantiationServerURL, cfg.PeerUser, cfg.PeerTimeout, logger)
	}

	// 3. Training catalog
	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		logger.Fatalf("Failed to load training catalog: %v", err)
	}
	logger.Infof("Training catalog: %d templates from %s", len(cat.Templates()), cfg.CatalogPath)

	var configs *catalog.Configurations
	if cfg.ConfigsPath != "" {
		configs, err = catalog.LoadConfigurations(cfg.ConfigsPath)
		if err != nil {
			logger.Fatalf("Failed to load saved configurations: %v", err)
		}
		logger.Infof("Saved configurations loaded from %s", cfg.ConfigsPath)
	}

	// 4. Trainer database (optional)
	var users *auth.Users
	if cfg.UsersPath != "" {
		users, err = auth.LoadUsers(cfg.UsersPath)
		if err != nil {
			logger.Fatalf("Failed to load users file: %v", err)
		}
		logger.Infof("Trainer authentication enabled (passwords required: %v)", cfg.RequirePassword)
	}

	// 5. Workflow engine and API server
	engine := workflow.NewEngine(reg, content, ranges, cfg.LMSURL, logger)
	apiServer := api.NewServer(engine, cat, configs, users, cfg.RequirePassword, logger)

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	logger.Infof("Training orchestrator listening on port %s", cfg.Port)
	logger.Infof("Session journal: %s", cfg.DBPath)

	if err := http.ListenAndServe(":"+cfg.Port, corsHandler(apiServer)); err != nil {
		logger.Fatalf("Server failed: %v", err)
	}
}
