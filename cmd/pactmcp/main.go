package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"pactline-backend/core/pact"
	"pactline-backend/mcp"
	"pactline-backend/services"
	pactstore "pactline-backend/storage/pact"
)

type config struct {
	StoreDriver string
	PGDSN       string
	Admin       string
	GrantsFile  string
}

// grantsFile seeds session policies and verifier registrations at startup.
// Issued session keys are logged once; there is no retrieval endpoint.
type grantsFile struct {
	MinVerifierStake int64 `yaml:"min_verifier_stake"`
	Sessions         []struct {
		Owner      string   `yaml:"owner"`
		AllowedOps []string `yaml:"allowed_ops"`
		ValueCap   int64    `yaml:"value_cap"`
		Budget     int64    `yaml:"budget"`
		RatePerMin int      `yaml:"rate_per_min"`
		TTLHours   int      `yaml:"ttl_hours"`
	} `yaml:"sessions"`
	Verifiers []struct {
		Address      string   `yaml:"address"`
		Capabilities []string `yaml:"capabilities"`
		Stake        int64    `yaml:"stake"`
	} `yaml:"verifiers"`
}

func loadConfig() config {
	storeDriver := os.Getenv("PACT_STORE_DRIVER")
	if storeDriver == "" {
		storeDriver = "memory"
	}

	admin := os.Getenv("PACT_ADMIN_ADDRESS")
	if admin == "" {
		admin = "admin"
	}

	return config{
		StoreDriver: storeDriver,
		PGDSN:       os.Getenv("PACT_PG_DSN"),
		Admin:       admin,
		GrantsFile:  os.Getenv("PACT_GRANTS_FILE"),
	}
}

func main() {
	cfg := loadConfig()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	var store pact.Store
	switch cfg.StoreDriver {
	case "postgres":
		if cfg.PGDSN == "" {
			logger.Fatal("PACT_PG_DSN required when PACT_STORE_DRIVER=postgres")
		}
		pg, err := pactstore.NewPGStore(ctx, cfg.PGDSN)
		if err != nil {
			logger.Fatal("failed to init store", zap.Error(err))
		}
		store = pg
	default:
		store = pactstore.NewMemoryStore()
	}
	defer store.Close()

	admin := pact.Address(cfg.Admin)
	ledger := pact.NewLedger(store, pact.NewMemoryVault(), logger)
	policy := services.NewPolicyEngine(admin)
	registry := services.NewRegistry(admin, 0)

	if cfg.GrantsFile != "" {
		if err := seedGrants(cfg.GrantsFile, admin, policy, registry, logger); err != nil {
			logger.Fatal("failed to load grants file", zap.Error(err))
		}
	}

	mcpServer := mcp.NewMCPServer(ledger, policy, registry)

	logger.Info("pact MCP server starting", zap.String("driver", cfg.StoreDriver))

	if err := server.ServeStdio(mcpServer.GetMCPServer()); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func seedGrants(path string, admin pact.Address, policy *services.PolicyEngine, registry *services.Registry, logger *zap.Logger) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var gf grantsFile
	if err := yaml.Unmarshal(raw, &gf); err != nil {
		return err
	}

	if gf.MinVerifierStake > 0 {
		if err := registry.SetMinStake(admin, gf.MinVerifierStake); err != nil {
			return err
		}
	}
	for _, v := range gf.Verifiers {
		if err := registry.Register(pact.Address(v.Address), v.Capabilities, v.Stake); err != nil {
			return err
		}
	}
	for _, s := range gf.Sessions {
		grant := services.SessionGrant{
			Owner:      pact.Address(s.Owner),
			AllowedOps: s.AllowedOps,
			ValueCap:   s.ValueCap,
			Budget:     s.Budget,
			RatePerMin: s.RatePerMin,
		}
		if s.TTLHours > 0 {
			grant.ExpiresAt = time.Now().Add(time.Duration(s.TTLHours) * time.Hour)
		}
		key, err := policy.Grant(admin, grant)
		if err != nil {
			return err
		}
		logger.Info("session grant issued",
			zap.String("owner", s.Owner),
			zap.String("key", key))
	}
	return nil
}
